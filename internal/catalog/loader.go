package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/catalystcommunity/app-utils-go/logging"
	"gopkg.in/yaml.v3"
)

var (
	// ErrCatalogMissing means no candidate path held a catalog file
	ErrCatalogMissing = errors.New("service-mapping catalog not found")

	// ErrCatalogInvalid means a catalog file existed but did not parse or
	// failed schema validation
	ErrCatalogInvalid = errors.New("service-mapping catalog invalid")
)

// CatalogFilename is the conventional name of the service-mapping document.
const CatalogFilename = "service-mapping.json"

// EnvMappingFilename is the optional sibling document with connector and
// job-type env tables.
const EnvMappingFilename = "service-env-mapping.json"

// DefaultCandidatePaths returns the ordered search list for the catalog:
// bundled next to the executable, the service-manager install dir, colocated
// in the workspace, then relative to the working directory. First existing
// path wins.
func DefaultCandidatePaths(serviceManagerDir, workspaceDir string) []string {
	var candidates []string
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), CatalogFilename))
	}
	candidates = append(candidates,
		filepath.Join(serviceManagerDir, CatalogFilename),
		filepath.Join(workspaceDir, CatalogFilename),
		filepath.Join("config", CatalogFilename),
	)
	return candidates
}

// Load locates and parses the catalog from the first existing candidate path,
// along with the optional sibling env mapping. The returned catalog is fully
// materialized: every ${VAR} and ${VAR:-default} reference has been expanded
// against the process environment.
func Load(candidates []string) (*Catalog, *EnvMapping, error) {
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}

		cat, err := LoadFile(candidate)
		if err != nil {
			return nil, nil, err
		}

		mapping, err := LoadEnvMapping(filepath.Join(filepath.Dir(candidate), EnvMappingFilename))
		if err != nil {
			return nil, nil, err
		}

		logging.Log.WithField("path", candidate).Info("Loaded service-mapping catalog")
		return cat, mapping, nil
	}

	return nil, nil, fmt.Errorf("%w: searched %s", ErrCatalogMissing, strings.Join(candidates, ", "))
}

// LoadFile parses a single catalog document. JSON by default; .yaml/.yml
// parse as YAML.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrCatalogInvalid, path, err)
	}

	// Decode to a generic tree first so env substitution sees every string
	// value, then re-encode into the typed catalog.
	var tree map[string]any
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %v", ErrCatalogInvalid, path, err)
		}
	} else {
		if err := json.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %v", ErrCatalogInvalid, path, err)
		}
	}

	expandTree(tree, os.LookupEnv)

	materialized, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("%w: materializing %s: %v", ErrCatalogInvalid, path, err)
	}

	var cat Catalog
	if err := json.Unmarshal(materialized, &cat); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrCatalogInvalid, path, err)
	}

	if err := validate(&cat); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCatalogInvalid, path, err)
	}

	return &cat, nil
}

var workerKinds = map[WorkerKind]bool{
	DirectWorker:  true,
	ServiceClient: true,
	DaemonClient:  true,
}

var scalingStrategies = map[ScalingStrategy]bool{
	"":               true,
	ScaleGPUBound:    true,
	ScaleConcurrency: true,
	ScaleSingleton:   true,
}

var serviceKinds = map[ServiceKind]bool{
	PM2Service:      true,
	DaemonService:   true,
	ManagedService:  true,
	ExternalAPI:     true,
	ExternalService: true,
}

func validate(cat *Catalog) error {
	if len(cat.Workers) == 0 {
		return errors.New("catalog declares no workers")
	}

	for name, def := range cat.Workers {
		if def.Type != "" && !workerKinds[def.Type] {
			return fmt.Errorf("worker %q has unknown type %q", name, def.Type)
		}
		if !scalingStrategies[def.ScalingStrategy] {
			return fmt.Errorf("worker %q has unknown scaling_strategy %q", name, def.ScalingStrategy)
		}
		for _, svc := range def.Services {
			if _, ok := cat.Services[svc]; !ok {
				return fmt.Errorf("worker %q references undeclared service %q", name, svc)
			}
		}

		// Legacy resource_bindings coexist with scaling_strategy in older
		// catalogs; the strategy wins and the conflict is surfaced once here.
		if def.ScalingStrategy != "" {
			if binding, ok := cat.ResourceBindings[name]; ok {
				logging.Log.WithField("worker", name).
					WithField("resource_binding", binding).
					WithField("scaling_strategy", string(def.ScalingStrategy)).
					Warn("Worker has both a legacy resource binding and a scaling strategy; using the scaling strategy")
			}
		}
	}

	for name, def := range cat.Services {
		if def.Type == "" {
			return fmt.Errorf("service %q is missing a type", name)
		}
		if !serviceKinds[def.Type] {
			return fmt.Errorf("service %q has unknown type %q", name, def.Type)
		}
	}

	return nil
}
