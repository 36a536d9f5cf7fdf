package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/catalystcommunity/gpu-orchestrator/internal/catalog"
	"github.com/catalystcommunity/gpu-orchestrator/internal/hardware"
	"github.com/catalystcommunity/gpu-orchestrator/internal/installer"
	"github.com/catalystcommunity/gpu-orchestrator/internal/manifest"
	"github.com/catalystcommunity/gpu-orchestrator/internal/metrics"
	"github.com/catalystcommunity/gpu-orchestrator/internal/workerspec"
	"github.com/google/uuid"
)

// ErrMissingTransportURL means none of the searched environment variables
// held a queue transport URL. Workers would start but never claim jobs, so
// the manifest is not emitted.
var ErrMissingTransportURL = errors.New("missing transport URL")

// HardwareDetector produces the node's hardware snapshot. The concrete
// detector never fails; tests substitute fixed snapshots.
type HardwareDetector interface {
	Detect(ctx context.Context) hardware.Resources
}

// Options configures one orchestration run. Every input is explicit so runs
// are deterministic given identical catalog, environment, and hardware.
type Options struct {
	CatalogCandidates []string

	WorkersSpec string
	GPUMode     string
	MachineID   string

	WorkspaceDir     string
	EntrypointScript string
	InstallerDir     string

	ComfyUIBasePort      int
	SimulationBasePort   int
	SimulationWSBasePort int
	MinimalBasePort      int

	Knobs manifest.WorkerKnobs

	// TransportURLKeys are searched in order for the queue transport URL
	TransportURLKeys []string

	// EmitPath receives the manifest; empty means build only (plan mode)
	EmitPath string

	// SkipDaemons disables the daemon bootstrap (plan mode)
	SkipDaemons bool

	// BaseEnv overrides the pass-through environment; nil uses the process env
	BaseEnv map[string]string

	// Detector overrides hardware detection; nil uses the real detector
	Detector HardwareDetector
}

// Result is everything one run produced.
type Result struct {
	RunID        string
	Hardware     hardware.Resources
	Specs        []workerspec.Spec
	Manifest     *manifest.Manifest
	Daemons      []installer.BootstrapResult
	TransportURL string
}

// Run executes the full pipeline: catalog load and hardware detection in
// parallel, transport check, worker-spec resolution, descriptor build,
// daemon bootstrap, then manifest emission. Daemons always bootstrap before
// emission so dependent workers never race them.
func Run(ctx context.Context, opts Options) (*Result, error) {
	runID := uuid.New().String()
	log := logging.Log.WithField("run_id", runID)
	log.Info("Starting orchestration run")

	detector := opts.Detector
	if detector == nil {
		detector = hardware.NewDetector(opts.WorkspaceDir, opts.GPUMode)
	}

	// Hardware detection fans out its own probes; the catalog load is one
	// small file read, so the two proceed in parallel and join here.
	type detection struct {
		resources hardware.Resources
	}
	detectCh := make(chan detection, 1)
	go func() {
		start := time.Now()
		resources := detector.Detect(ctx)
		metrics.RecordPhase("detect", time.Since(start).Seconds())
		detectCh <- detection{resources: resources}
	}()

	catalogStart := time.Now()
	cat, envMapping, err := catalog.Load(opts.CatalogCandidates)
	if err != nil {
		return nil, err
	}
	metrics.RecordPhase("catalog", time.Since(catalogStart).Seconds())

	resources := (<-detectCh).resources
	metrics.DetectedGPUs.Set(float64(resources.GPUCount))

	transportURL, err := resolveTransportURL(opts.TransportURLKeys, opts.BaseEnv)
	if err != nil {
		return nil, err
	}

	specs := workerspec.Parse(opts.WorkersSpec, workerspec.ParseOptions{
		Catalog:  cat,
		Hardware: resources,
		GPUMode:  opts.GPUMode,
	})
	for _, spec := range specs {
		metrics.WorkerInstances.WithLabelValues(spec.Type).Set(float64(spec.Count))
	}

	buildStart := time.Now()
	builder := manifest.NewBuilder(manifest.BuildOptions{
		Catalog:              cat,
		EnvMapping:           envMapping,
		Hardware:             resources,
		MachineID:            opts.MachineID,
		WorkspaceDir:         opts.WorkspaceDir,
		Script:               opts.EntrypointScript,
		TransportURL:         transportURL,
		GPUMode:              opts.GPUMode,
		ComfyUIBasePort:      opts.ComfyUIBasePort,
		SimulationBasePort:   opts.SimulationBasePort,
		SimulationWSBasePort: opts.SimulationWSBasePort,
		MinimalBasePort:      opts.MinimalBasePort,
		Knobs:                opts.Knobs,
		BaseEnv:              opts.BaseEnv,
	})
	built, err := builder.Build(specs)
	if err != nil {
		return nil, err
	}
	metrics.RecordPhase("build", time.Since(buildStart).Seconds())

	result := &Result{
		RunID:        runID,
		Hardware:     resources,
		Specs:        specs,
		Manifest:     built,
		TransportURL: transportURL,
	}

	if !opts.SkipDaemons {
		bootstrapStart := time.Now()
		daemons, err := installer.Bootstrap(ctx, cat, specs, installer.Options{
			WorkspaceDir:            opts.WorkspaceDir,
			InstallerDir:            opts.InstallerDir,
			ComfyUIPort:             opts.ComfyUIBasePort,
			SimulationPort:          opts.SimulationBasePort,
			SimulationWebsocketPort: opts.SimulationWSBasePort,
		})
		result.Daemons = daemons
		for _, daemon := range daemons {
			metrics.RecordDaemonInstall(daemon.Service, daemon.Err == nil)
		}
		metrics.RecordPhase("bootstrap", time.Since(bootstrapStart).Seconds())
		if err != nil {
			return nil, err
		}
	}

	if opts.EmitPath != "" {
		emitStart := time.Now()
		if err := manifest.Emit(built, opts.EmitPath); err != nil {
			return nil, err
		}
		metrics.RecordPhase("emit", time.Since(emitStart).Seconds())
	}

	metrics.RecordManifest(len(built.Apps), len(built.ServicePairs))

	log.WithField("apps", len(built.Apps)).
		WithField("service_pairs", len(built.ServicePairs)).
		Info("Orchestration run complete")

	return result, nil
}

// resolveTransportURL searches the configured keys in order. Absence is
// fatal; the diagnostic names every key an operator could set.
func resolveTransportURL(keys []string, baseEnv map[string]string) (string, error) {
	lookup := os.LookupEnv
	if baseEnv != nil {
		lookup = func(key string) (string, bool) {
			val, ok := baseEnv[key]
			return val, ok
		}
	}

	for _, key := range keys {
		if val, ok := lookup(key); ok && val != "" {
			return val, nil
		}
	}

	logging.Log.WithField("searched", strings.Join(keys, ", ")).
		Error("No transport URL configured; set one of the searched variables")
	return "", fmt.Errorf("%w: searched %s", ErrMissingTransportURL, strings.Join(keys, ", "))
}
