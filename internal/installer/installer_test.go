package installer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/catalystcommunity/gpu-orchestrator/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	opts := Options{InstallerDir: "/opt/service-manager"}

	t.Run("comfyui installer", func(t *testing.T) {
		inst, err := New("comfyui", catalog.ServiceDef{Installer: catalog.InstallerComfyUI}, opts)
		require.NoError(t, err)
		assert.IsType(t, &ComfyUIManagementClient{}, inst)
		assert.Equal(t, "comfyui", inst.Name())
	})

	t.Run("simulation installer", func(t *testing.T) {
		inst, err := New("simulation", catalog.ServiceDef{Installer: catalog.InstallerSimulation}, opts)
		require.NoError(t, err)
		assert.IsType(t, &SimulationService{}, inst)
	})

	t.Run("null installer", func(t *testing.T) {
		inst, err := New("ollama", catalog.ServiceDef{}, opts)
		require.NoError(t, err)
		assert.IsType(t, &NullInstaller{}, inst)
	})

	t.Run("unknown installer rejected", func(t *testing.T) {
		_, err := New("mystery", catalog.ServiceDef{Installer: "MysteryInstaller"}, opts)
		assert.ErrorIs(t, err, ErrUnknownInstaller)
	})
}

func TestResolveScript(t *testing.T) {
	opts := Options{InstallerDir: "/opt/service-manager"}

	t.Run("derived from installer identity", func(t *testing.T) {
		path, err := resolveScript(catalog.ServiceDef{Installer: catalog.InstallerComfyUI}, opts)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/opt/service-manager", "install-comfyui.sh"), path)
	})

	t.Run("explicit filename wins", func(t *testing.T) {
		path, err := resolveScript(catalog.ServiceDef{
			Installer:         catalog.InstallerComfyUI,
			InstallerFilename: "custom-comfyui.sh",
		}, opts)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/opt/service-manager", "custom-comfyui.sh"), path)
	})

	t.Run("subdirectory filename allowed", func(t *testing.T) {
		path, err := resolveScript(catalog.ServiceDef{
			Installer:         catalog.InstallerSimulation,
			InstallerFilename: "sim/install.sh",
		}, opts)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/opt/service-manager", "sim", "install.sh"), path)
	})

	t.Run("escaping filename rejected", func(t *testing.T) {
		_, err := resolveScript(catalog.ServiceDef{
			Installer:         catalog.InstallerComfyUI,
			InstallerFilename: "../outside.sh",
		}, opts)
		assert.ErrorIs(t, err, ErrUnknownInstaller)
	})

	t.Run("absolute-looking traversal rejected", func(t *testing.T) {
		_, err := resolveScript(catalog.ServiceDef{
			Installer:         catalog.InstallerComfyUI,
			InstallerFilename: "../../etc/passwd",
		}, opts)
		assert.ErrorIs(t, err, ErrUnknownInstaller)
	})
}

func TestNullInstallerInstall(t *testing.T) {
	inst := &NullInstaller{service: "ollama"}
	assert.NoError(t, inst.Install(context.Background()))
}

func TestRunInstallScriptMissingScript(t *testing.T) {
	// A missing script means the daemon is preinstalled; not an error.
	err := runInstallScript(context.Background(), filepath.Join(t.TempDir(), "absent.sh"), Options{})
	assert.NoError(t, err)
}
