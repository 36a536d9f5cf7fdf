package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/catalystcommunity/gpu-orchestrator/internal/config"
	"github.com/catalystcommunity/gpu-orchestrator/internal/manifest"
	"github.com/catalystcommunity/gpu-orchestrator/internal/metrics"
	"github.com/catalystcommunity/gpu-orchestrator/internal/orchestrator"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var OrchestrateCommand = &cli.Command{
	Name:  "orchestrate",
	Usage: "Detect hardware, bootstrap daemons, and emit the process manifest",
	Flags: append(commonFlags, orchestrateFlags...),
	Action: func(ctx *cli.Context) error {
		return runOrchestrate(ctx)
	},
}

var orchestrateFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:    "serve",
		Aliases: []string{"s"},
		Value:   false,
		Usage:   "Keep serving /metrics and /status after emission until signalled",
		EnvVars: []string{"ORCHESTRATOR_SERVE"},
	},
	&cli.IntFlag{
		Name:    "status-port",
		Value:   config.StatusPort,
		Usage:   "Port for the /metrics and /status endpoints",
		EnvVars: []string{"ORCHESTRATOR_STATUS_PORT"},
	},
	&cli.IntFlag{
		Name:    "timeout",
		Value:   0,
		Usage:   "Overall run timeout in seconds (0 = no timeout); daemon installs can span minutes",
		EnvVars: []string{"ORCHESTRATOR_TIMEOUT"},
	},
}

func runOrchestrate(ctx *cli.Context) error {
	applyLogLevel(ctx.String("log-level"))

	runCtx := context.Background()
	if timeout := ctx.Int("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, time.Duration(timeout)*time.Second)
		defer cancel()
	}

	opts := orchestratorOptions(ctx)
	opts.EmitPath = config.ManifestPath()

	result, err := orchestrator.Run(runCtx, opts)
	if err != nil {
		return err
	}

	if !ctx.Bool("serve") {
		return nil
	}

	return serveStatus(ctx.Int("status-port"), result)
}

// serveStatus exposes /metrics and /status for the external monitor UI until
// the process is signalled.
func serveStatus(port int, result *orchestrator.Result) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(statusPayload(result))
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: cors.Default().Handler(mux),
	}

	errChan := make(chan error, 1)
	go func() {
		logging.Log.WithField("port", port).Info("Status server listening")
		errChan <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logging.Log.Infof("Received signal %v, shutting down status server", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errChan:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

type status struct {
	RunID        string                 `json:"run_id"`
	Hardware     any                    `json:"hardware"`
	WorkerSpecs  []statusWorker         `json:"worker_specs"`
	Apps         []string               `json:"apps"`
	ServicePairs []manifest.ServicePair `json:"service_pairs"`
}

type statusWorker struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

func statusPayload(result *orchestrator.Result) status {
	payload := status{
		RunID:        result.RunID,
		Hardware:     result.Hardware,
		ServicePairs: result.Manifest.ServicePairs,
	}
	for _, spec := range result.Specs {
		payload.WorkerSpecs = append(payload.WorkerSpecs, statusWorker{Type: spec.Type, Count: spec.Count})
	}
	for _, app := range result.Manifest.Apps {
		payload.Apps = append(payload.Apps, app.Name)
	}
	return payload
}

func applyLogLevel(level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		logging.Log.WithField("log_level", level).Warn("Unknown log level, keeping info")
		return
	}
	logging.Log.SetLevel(parsed)
}
