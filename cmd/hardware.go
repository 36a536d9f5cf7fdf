package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/catalystcommunity/gpu-orchestrator/internal/hardware"
	"github.com/urfave/cli/v2"
)

var HardwareCommand = &cli.Command{
	Name:  "hardware",
	Usage: "Detect node hardware and print the snapshot as JSON",
	Flags: commonFlags,
	Action: func(ctx *cli.Context) error {
		applyLogLevel(ctx.String("log-level"))

		detector := hardware.NewDetector(ctx.String("workspace"), ctx.String("gpu-mode"))
		resources := detector.Detect(context.Background())

		data, err := json.MarshalIndent(resources, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}
