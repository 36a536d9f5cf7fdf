package installer

import (
	"context"
	"sort"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/catalystcommunity/gpu-orchestrator/internal/catalog"
	"github.com/catalystcommunity/gpu-orchestrator/internal/workerspec"
)

// RequiredDaemons computes the daemon services the selected workers depend
// on: the union of the workers' declared services, intersected with catalog
// entries that are daemon-typed. Sorted for deterministic install order.
func RequiredDaemons(cat *catalog.Catalog, specs []workerspec.Spec) []string {
	seen := make(map[string]bool)
	for _, spec := range specs {
		def, ok := cat.Worker(spec.Type)
		if !ok {
			continue
		}
		for _, name := range cat.DaemonServices(def) {
			seen[name] = true
		}
	}

	daemons := make([]string, 0, len(seen))
	for name := range seen {
		daemons = append(daemons, name)
	}
	sort.Strings(daemons)
	return daemons
}

// BootstrapResult records the outcome of one daemon install attempt.
type BootstrapResult struct {
	Service string
	Err     error
}

// Bootstrap installs the required daemons sequentially, before the manifest
// is emitted, so dependent workers never race their daemons. An individual
// daemon failure is logged and non-fatal: the manifest stays internally
// consistent and the daemon-client workers report their own connect errors.
// An unknown installer is fatal; the catalog is wrong, not the daemon.
func Bootstrap(ctx context.Context, cat *catalog.Catalog, specs []workerspec.Spec, opts Options) ([]BootstrapResult, error) {
	daemons := RequiredDaemons(cat, specs)
	if len(daemons) == 0 {
		return nil, nil
	}

	logging.Log.WithField("daemons", daemons).Info("Bootstrapping daemon services")

	results := make([]BootstrapResult, 0, len(daemons))
	for _, svcName := range daemons {
		svc, _ := cat.Service(svcName)

		inst, err := New(svcName, svc, opts)
		if err != nil {
			return results, err
		}

		installErr := inst.Install(ctx)
		if installErr != nil {
			logging.Log.WithError(installErr).WithField("service", svcName).
				Warn("Daemon install failed, continuing; dependent workers will surface connect errors")
		}
		results = append(results, BootstrapResult{Service: svcName, Err: installErr})
	}

	return results, nil
}
