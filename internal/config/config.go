package config

import (
	"path/filepath"

	"github.com/catalystcommunity/app-utils-go/env"
)

// TransportURLKeys are the environment variables searched, in order, for the
// queue transport URL. Workers cannot claim jobs without one, so the
// orchestrator refuses to emit a manifest when all of them are unset.
var TransportURLKeys = []string{"REDIS_URL", "QUEUE_REDIS_URL", "HUB_REDIS_URL"}

var (
	// WorkspaceDir is the root directory for the manifest, logs, and disk probes
	WorkspaceDir = env.GetEnvOrDefault("WORKSPACE_DIR", "/workspace")

	// ServiceManagerDir is the install location checked for a bundled catalog
	ServiceManagerDir = env.GetEnvOrDefault("SERVICE_MANAGER_DIR", "/opt/service-manager")

	// EntrypointScript is the launcher the supervisor invokes for every
	// descriptor; the first argument selects the role (redis-worker, comfyui, ...)
	EntrypointScript = env.GetEnvOrDefault("SERVICE_ENTRYPOINT", "/workspace/bin/service-runner")

	// MachineID prefixes every worker id in the manifest
	MachineID = env.GetEnvOrDefault("MACHINE_ID", "unknown-machine")

	// Workers is the declarative worker specification, "type:count(,type:count)*"
	Workers = env.GetEnvOrDefault("WORKERS", "")

	// GPUMode selects whether instance counts bind to detected GPUs ("actual")
	// or to declarative counts ("mock")
	GPUMode = env.GetEnvOrDefault("GPU_MODE", "actual")

	// ComfyUIBasePort is the first port assigned to co-located ComfyUI instances
	ComfyUIBasePort = env.GetEnvAsIntOrDefault("COMFYUI_BASE_PORT", "8188")

	// SimulationBasePort is the first port for co-located simulation HTTP services
	SimulationBasePort = env.GetEnvAsIntOrDefault("SIMULATION_BASE_PORT", "8299")

	// SimulationWebsocketBasePort is the first port for websocket simulation services
	SimulationWebsocketBasePort = env.GetEnvAsIntOrDefault("SIMULATION_WS_BASE_PORT", "8399")

	// MinimalServiceBasePort is the first port for minimal co-located services
	MinimalServiceBasePort = env.GetEnvAsIntOrDefault("MINIMAL_SERVICE_BASE_PORT", "8300")

	// StatusPort exposes /metrics and /status when orchestrate runs with --serve
	StatusPort = env.GetEnvAsIntOrDefault("ORCHESTRATOR_STATUS_PORT", "9280")

	// Worker runtime knobs forwarded into every worker environment
	WorkerPollIntervalMS     = env.GetEnvOrDefault("WORKER_POLL_INTERVAL_MS", "5000")
	WorkerJobTimeoutMinutes  = env.GetEnvOrDefault("WORKER_JOB_TIMEOUT_MINUTES", "30")
	WorkerQualityLevels      = env.GetEnvOrDefault("WORKER_QUALITY_LEVELS", "low,medium,high")
	WorkerDebuggingEnabled   = env.GetEnvOrDefault("WORKER_DEBUGGING_ENABLED", "false")
	WorkerDevelopmentMode    = env.GetEnvOrDefault("WORKER_DEVELOPMENT_MODE", "false")
	WorkerWebsocketAuthToken = env.GetEnvOrDefault("WORKER_WEBSOCKET_AUTH_TOKEN", "")
)

// ManifestPath is the canonical location the external supervisor consumes.
func ManifestPath() string {
	return filepath.Join(WorkspaceDir, "ecosystem.manifest")
}

// LogDir is where every descriptor's log files live.
func LogDir() string {
	return filepath.Join(WorkspaceDir, "logs")
}
