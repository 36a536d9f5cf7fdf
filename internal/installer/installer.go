package installer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/catalystcommunity/gpu-orchestrator/internal/catalog"
)

// ErrUnknownInstaller means a service names an installer outside the closed
// set, or pins an installer file outside the installer search directory.
var ErrUnknownInstaller = errors.New("unknown installer")

// Installer installs and starts one daemon service. Install blocks until the
// daemon is running or the attempt has definitively failed; it may span
// minutes.
type Installer interface {
	Name() string
	Install(ctx context.Context) error
}

// Options configures installer construction for one orchestration run.
type Options struct {
	// WorkspaceDir is the working directory install scripts run in
	WorkspaceDir string

	// InstallerDir is the trust boundary for installer scripts; an
	// installer_filename resolving outside it is rejected
	InstallerDir string

	// ComfyUIPort is the readiness probe port for ComfyUI daemons
	ComfyUIPort int

	// SimulationPort and SimulationWebsocketPort are the readiness probe
	// ports for simulation daemons
	SimulationPort          int
	SimulationWebsocketPort int

	// ReadinessTimeout bounds the post-install readiness wait
	ReadinessTimeout time.Duration

	run commandRunner
}

// DefaultReadinessTimeout is how long installers wait for their daemon to
// come up after the install step.
const DefaultReadinessTimeout = 2 * time.Minute

// New constructs the installer for a service. Construction is a plain table
// lookup on the catalog's installer identity; anything outside the closed
// set fails here, before any daemon is touched.
func New(svcName string, svc catalog.ServiceDef, opts Options) (Installer, error) {
	scriptPath, err := resolveScript(svc, opts)
	if err != nil {
		return nil, err
	}

	switch svc.Installer {
	case catalog.InstallerComfyUI:
		return &ComfyUIManagementClient{service: svcName, script: scriptPath, opts: opts}, nil
	case catalog.InstallerSimulation:
		return &SimulationService{service: svcName, script: scriptPath, opts: opts}, nil
	case "":
		return &NullInstaller{service: svcName}, nil
	default:
		return nil, fmt.Errorf("%w: service %q declares installer %q", ErrUnknownInstaller, svcName, svc.Installer)
	}
}

// resolveScript picks the installer script path: an explicit
// installer_filename wins over derivation from the installer identity.
// Anything escaping the installer directory is rejected.
func resolveScript(svc catalog.ServiceDef, opts Options) (string, error) {
	if svc.InstallerFilename == "" {
		return derivedScriptPath(svc.Installer, opts.InstallerDir), nil
	}

	resolved := filepath.Clean(filepath.Join(opts.InstallerDir, svc.InstallerFilename))
	rel, err := filepath.Rel(opts.InstallerDir, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: installer_filename %q escapes %s", ErrUnknownInstaller, svc.InstallerFilename, opts.InstallerDir)
	}
	return resolved, nil
}

func derivedScriptPath(installerName, dir string) string {
	switch installerName {
	case catalog.InstallerComfyUI:
		return filepath.Join(dir, "install-comfyui.sh")
	case catalog.InstallerSimulation:
		return filepath.Join(dir, "install-simulation.sh")
	default:
		return ""
	}
}
