package cmd

import (
	"github.com/catalystcommunity/gpu-orchestrator/internal/catalog"
	"github.com/catalystcommunity/gpu-orchestrator/internal/config"
	"github.com/catalystcommunity/gpu-orchestrator/internal/manifest"
	"github.com/catalystcommunity/gpu-orchestrator/internal/orchestrator"
	"github.com/urfave/cli/v2"
)

// orchestratorOptions assembles the run options shared by the orchestrate
// and plan commands from config defaults and CLI flags.
func orchestratorOptions(ctx *cli.Context) orchestrator.Options {
	workspace := ctx.String("workspace")
	return orchestrator.Options{
		CatalogCandidates: catalog.DefaultCandidatePaths(config.ServiceManagerDir, workspace),

		WorkersSpec: ctx.String("workers"),
		GPUMode:     ctx.String("gpu-mode"),
		MachineID:   ctx.String("machine-id"),

		WorkspaceDir:     workspace,
		EntrypointScript: config.EntrypointScript,
		InstallerDir:     config.ServiceManagerDir,

		ComfyUIBasePort:      config.ComfyUIBasePort,
		SimulationBasePort:   config.SimulationBasePort,
		SimulationWSBasePort: config.SimulationWebsocketBasePort,
		MinimalBasePort:      config.MinimalServiceBasePort,

		Knobs: manifest.WorkerKnobs{
			PollIntervalMS:     config.WorkerPollIntervalMS,
			JobTimeoutMinutes:  config.WorkerJobTimeoutMinutes,
			QualityLevels:      config.WorkerQualityLevels,
			DebuggingEnabled:   config.WorkerDebuggingEnabled,
			DevelopmentMode:    config.WorkerDevelopmentMode,
			WebsocketAuthToken: config.WorkerWebsocketAuthToken,
		},

		TransportURLKeys: config.TransportURLKeys,
	}
}

// commonFlags are shared by every command that runs the resolution pipeline.
var commonFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "workers",
		Aliases: []string{"w"},
		Value:   config.Workers,
		Usage:   "Worker specification, type:count(,type:count)*; count may be 'auto'",
		EnvVars: []string{"WORKERS"},
	},
	&cli.StringFlag{
		Name:    "gpu-mode",
		Aliases: []string{"g"},
		Value:   config.GPUMode,
		Usage:   "GPU arithmetic mode: actual (bind to detected GPUs) or mock",
		EnvVars: []string{"GPU_MODE"},
	},
	&cli.StringFlag{
		Name:    "machine-id",
		Aliases: []string{"m"},
		Value:   config.MachineID,
		Usage:   "Machine identifier prefixed onto every worker id",
		EnvVars: []string{"MACHINE_ID"},
	},
	&cli.StringFlag{
		Name:    "workspace",
		Value:   config.WorkspaceDir,
		Usage:   "Workspace root for the manifest, logs, and disk probes",
		EnvVars: []string{"WORKSPACE_DIR"},
	},
	&cli.StringFlag{
		Name:    "log-level",
		Value:   "info",
		Usage:   "Log level: debug, info, warn, error",
		EnvVars: []string{"LOG_LEVEL"},
	},
}
