package cmd

import (
	"context"
	"fmt"

	"github.com/catalystcommunity/gpu-orchestrator/internal/manifest"
	"github.com/catalystcommunity/gpu-orchestrator/internal/orchestrator"
	"github.com/urfave/cli/v2"
)

var PlanCommand = &cli.Command{
	Name:  "plan",
	Usage: "Resolve the worker spec and print the manifest without writing it or starting daemons",
	Flags: commonFlags,
	Action: func(ctx *cli.Context) error {
		applyLogLevel(ctx.String("log-level"))

		opts := orchestratorOptions(ctx)
		opts.SkipDaemons = true

		result, err := orchestrator.Run(context.Background(), opts)
		if err != nil {
			return err
		}

		data, err := manifest.Encode(result.Manifest)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}
