package workerspec

import (
	"strconv"
	"strings"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/catalystcommunity/gpu-orchestrator/internal/catalog"
	"github.com/catalystcommunity/gpu-orchestrator/internal/hardware"
)

// DefaultSpec is used when the WORKERS variable is empty or absent.
const DefaultSpec = "simulation:1"

// Spec is one resolved worker entry. Count is always a concrete positive
// integer; the literal "auto" never survives parsing.
type Spec struct {
	Type  string
	Count int
}

// ParseOptions carries the inputs count resolution depends on.
type ParseOptions struct {
	Catalog  *catalog.Catalog
	Hardware hardware.Resources

	// GPUMode is "actual" or "mock"
	GPUMode string
}

// Parse expands the WORKERS specification ("type:count(,type:count)*") into
// concrete worker specs. Unknown worker types are dropped with a warning;
// "auto" counts resolve against the catalog and hardware; GPU-bound counts
// truncate to the detected GPU count in actual mode.
func Parse(raw string, opts ParseOptions) []Spec {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		logging.Log.Warnf("WORKERS not set, defaulting to %q", DefaultSpec)
		raw = DefaultSpec
	}

	var specs []Spec
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		name, rawCount := splitEntry(entry)

		def, ok := opts.Catalog.Worker(name)
		if !ok {
			logging.Log.WithField("worker_type", name).
				Warn("Unknown worker type in WORKERS, dropping entry")
			continue
		}

		var count int
		if strings.EqualFold(rawCount, "auto") {
			count = ResolveAuto(name, def, opts)
		} else {
			requested, err := strconv.Atoi(rawCount)
			if err != nil || requested < 1 {
				logging.Log.WithField("worker_type", name).WithField("count", rawCount).
					Warn("Unparsable worker count, defaulting to 1")
				requested = 1
			}
			count = ResolveExplicit(name, def, requested, opts)
		}

		if count < 1 {
			logging.Log.WithField("worker_type", name).
				Warn("Worker resolves to zero instances on this hardware, dropping entry")
			continue
		}

		specs = append(specs, Spec{Type: name, Count: count})
	}

	return specs
}

func splitEntry(entry string) (name, count string) {
	parts := strings.SplitN(entry, ":", 2)
	name = strings.TrimSpace(parts[0])
	count = "1"
	if len(parts) == 2 && strings.TrimSpace(parts[1]) != "" {
		count = strings.TrimSpace(parts[1])
	}
	return name, count
}
