package cmd

import (
	"context"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/catalystcommunity/gpu-orchestrator/internal/catalog"
	"github.com/catalystcommunity/gpu-orchestrator/internal/config"
	"github.com/catalystcommunity/gpu-orchestrator/internal/hardware"
	"github.com/catalystcommunity/gpu-orchestrator/internal/installer"
	"github.com/catalystcommunity/gpu-orchestrator/internal/workerspec"
	"github.com/urfave/cli/v2"
)

var DaemonsCommand = &cli.Command{
	Name:  "daemons",
	Usage: "Bootstrap the daemon services the selected workers require, without emitting a manifest",
	Flags: commonFlags,
	Action: func(ctx *cli.Context) error {
		applyLogLevel(ctx.String("log-level"))

		workspace := ctx.String("workspace")
		candidates := catalog.DefaultCandidatePaths(config.ServiceManagerDir, workspace)
		cat, _, err := catalog.Load(candidates)
		if err != nil {
			return err
		}

		detector := hardware.NewDetector(workspace, ctx.String("gpu-mode"))
		resources := detector.Detect(context.Background())

		specs := workerspec.Parse(ctx.String("workers"), workerspec.ParseOptions{
			Catalog:  cat,
			Hardware: resources,
			GPUMode:  ctx.String("gpu-mode"),
		})

		results, err := installer.Bootstrap(context.Background(), cat, specs, installer.Options{
			WorkspaceDir:            workspace,
			InstallerDir:            config.ServiceManagerDir,
			ComfyUIPort:             config.ComfyUIBasePort,
			SimulationPort:          config.SimulationBasePort,
			SimulationWebsocketPort: config.SimulationWebsocketBasePort,
		})
		if err != nil {
			return err
		}

		for _, result := range results {
			if result.Err != nil {
				logging.Log.WithError(result.Err).WithField("service", result.Service).
					Warn("Daemon bootstrap finished with an error")
			}
		}
		return nil
	},
}
