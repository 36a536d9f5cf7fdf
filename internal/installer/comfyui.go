package installer

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/catalystcommunity/app-utils-go/logging"
)

// commandRunner executes an install script; injectable for tests.
type commandRunner func(ctx context.Context, dir, script string) error

func runScript(ctx context.Context, dir, script string) error {
	cmd := exec.CommandContext(ctx, script)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// ComfyUIManagementClient installs and starts a ComfyUI daemon, then waits
// for its HTTP API to come up.
type ComfyUIManagementClient struct {
	service string
	script  string
	opts    Options
}

func (c *ComfyUIManagementClient) Name() string { return c.service }

func (c *ComfyUIManagementClient) Install(ctx context.Context) error {
	if err := runInstallScript(ctx, c.script, c.opts); err != nil {
		return fmt.Errorf("installing %s: %w", c.service, err)
	}

	url := fmt.Sprintf("http://127.0.0.1:%d/system_stats", c.opts.ComfyUIPort)
	if err := waitForHTTP(ctx, url, readinessTimeout(c.opts)); err != nil {
		return fmt.Errorf("waiting for %s: %w", c.service, err)
	}

	logging.Log.WithField("service", c.service).WithField("port", c.opts.ComfyUIPort).
		Info("ComfyUI daemon ready")
	return nil
}

// runInstallScript runs the script when it exists; a missing script means
// the daemon is preinstalled and only the readiness wait applies.
func runInstallScript(ctx context.Context, script string, opts Options) error {
	if script == "" {
		return nil
	}
	if _, err := os.Stat(script); err != nil {
		logging.Log.WithField("script", script).
			Debug("No installer script present, assuming daemon is preinstalled")
		return nil
	}

	run := opts.run
	if run == nil {
		run = runScript
	}

	logging.Log.WithField("script", script).Info("Running installer script")
	return run(ctx, opts.WorkspaceDir, script)
}

func readinessTimeout(opts Options) time.Duration {
	if opts.ReadinessTimeout > 0 {
		return opts.ReadinessTimeout
	}
	return DefaultReadinessTimeout
}

// waitForHTTP polls url until it answers 2xx, the timeout lapses, or the
// context is cancelled.
func waitForHTTP(ctx context.Context, url string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 2 * time.Second}

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%s not ready after %v", url, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}
