package installer

import (
	"context"
	"fmt"
	"time"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/gorilla/websocket"
)

// SimulationService installs and starts a simulation daemon, then waits for
// its websocket endpoint to accept a connection.
type SimulationService struct {
	service string
	script  string
	opts    Options
}

func (s *SimulationService) Name() string { return s.service }

func (s *SimulationService) Install(ctx context.Context) error {
	if err := runInstallScript(ctx, s.script, s.opts); err != nil {
		return fmt.Errorf("installing %s: %w", s.service, err)
	}

	url := fmt.Sprintf("ws://127.0.0.1:%d/ws", s.opts.SimulationWebsocketPort)
	if err := waitForWebsocket(ctx, url, readinessTimeout(s.opts)); err != nil {
		return fmt.Errorf("waiting for %s: %w", s.service, err)
	}

	logging.Log.WithField("service", s.service).
		WithField("port", s.opts.SimulationWebsocketPort).
		Info("Simulation daemon ready")
	return nil
}

// waitForWebsocket dials url until the handshake succeeds, the timeout
// lapses, or the context is cancelled.
func waitForWebsocket(ctx context.Context, url string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}

	for {
		conn, resp, err := dialer.DialContext(ctx, url, nil)
		if err == nil {
			conn.Close()
			return nil
		}
		if resp != nil {
			resp.Body.Close()
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

// NullInstaller is the variant for services with no installer identity.
// There is nothing to install; the daemon-client workers surface their own
// connection errors when the daemon is absent.
type NullInstaller struct {
	service string
}

func (n *NullInstaller) Name() string { return n.service }

func (n *NullInstaller) Install(ctx context.Context) error {
	logging.Log.WithField("service", n.service).
		Info("Service has no installer, skipping daemon install")
	return nil
}
