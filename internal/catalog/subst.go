package catalog

import (
	"os"
	"strings"
)

// ExpandRefs resolves ${VAR} and ${VAR:-default} references in a string
// against the provided lookup. Unset variables without a default expand to
// the empty string. Text outside references passes through untouched.
func ExpandRefs(s string, lookup func(string) (string, bool)) string {
	if !strings.Contains(s, "${") {
		return s
	}

	var out strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			out.WriteString(s)
			break
		}
		end := strings.Index(s[start:], "}")
		if end < 0 {
			out.WriteString(s)
			break
		}
		end += start

		out.WriteString(s[:start])
		ref := s[start+2 : end]

		name := ref
		def := ""
		if idx := strings.Index(ref, ":-"); idx >= 0 {
			name = ref[:idx]
			def = ref[idx+2:]
		}

		if val, ok := lookup(name); ok {
			out.WriteString(val)
		} else {
			out.WriteString(def)
		}

		s = s[end+1:]
	}
	return out.String()
}

// ExpandEnvRefs resolves references against the process environment.
func ExpandEnvRefs(s string) string {
	return ExpandRefs(s, os.LookupEnv)
}

// expandTree walks a decoded JSON/YAML document and substitutes every string
// value in place. Substitution happens at load time so the materialized
// catalog carries no unresolved references.
func expandTree(node any, lookup func(string) (string, bool)) any {
	switch v := node.(type) {
	case string:
		return ExpandRefs(v, lookup)
	case map[string]any:
		for key, val := range v {
			v[key] = expandTree(val, lookup)
		}
		return v
	case []any:
		for i, val := range v {
			v[i] = expandTree(val, lookup)
		}
		return v
	default:
		return node
	}
}
