package main

import (
	"os"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/catalystcommunity/gpu-orchestrator/cmd"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "gpu-orchestrator",
		Usage: "GPU-aware worker orchestrator for job-processing nodes",
		Commands: []*cli.Command{
			cmd.OrchestrateCommand,
			cmd.PlanCommand,
			cmd.HardwareCommand,
			cmd.DaemonsCommand,
			cmd.HealthCheckCommand,
		},
	}
	err := app.Run(os.Args)
	if err != nil {
		// log fatal so we exit with the proper exit code, this is important for containerized deployment health checks
		logging.Log.WithError(err).Fatal("runtime error")
	}
}
