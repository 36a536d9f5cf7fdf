package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/catalystcommunity/gpu-orchestrator/internal/hardware"
	"github.com/catalystcommunity/gpu-orchestrator/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticDetector substitutes a fixed hardware snapshot for the real probes.
type staticDetector struct {
	resources hardware.Resources
}

func (s staticDetector) Detect(ctx context.Context) hardware.Resources {
	return s.resources
}

const scenarioCatalog = `{
  "workers": {
    "comfyui": {
      "type": "direct_worker",
      "is_gpu_bound": true,
      "scaling_strategy": "gpu_bound",
      "services": ["comfyui"]
    },
    "simulation": {
      "type": "service_client",
      "scaling_strategy": "concurrency",
      "services": ["simulation"]
    },
    "ollama": {
      "type": "daemon_client",
      "is_gpu_bound": false,
      "scaling_strategy": "concurrency",
      "services": ["ollama"]
    }
  },
  "services": {
    "comfyui": {
      "type": "pm2_service",
      "installer": "ComfyUIManagementClient",
      "is_gpu_bound": true,
      "connector": "comfyui"
    },
    "simulation": {
      "type": "pm2_service",
      "installer": "SimulationService",
      "connector": "simulation"
    },
    "ollama": {
      "type": "daemon_service",
      "connector": "ollama"
    }
  }
}`

// scenarioOptions builds run options against a temp workspace holding the
// scenario catalog.
func scenarioOptions(t *testing.T, workers, gpuMode string, gpus int) Options {
	t.Helper()

	workspace := t.TempDir()
	catalogPath := filepath.Join(workspace, "service-mapping.json")
	require.NoError(t, os.WriteFile(catalogPath, []byte(scenarioCatalog), 0o644))

	return Options{
		CatalogCandidates: []string{catalogPath},

		WorkersSpec: workers,
		GPUMode:     gpuMode,
		MachineID:   "node-A",

		WorkspaceDir:     workspace,
		EntrypointScript: filepath.Join(workspace, "bin", "service-runner"),
		InstallerDir:     filepath.Join(workspace, "installers"),

		ComfyUIBasePort:      8188,
		SimulationBasePort:   8299,
		SimulationWSBasePort: 8399,
		MinimalBasePort:      8300,

		Knobs: manifest.WorkerKnobs{
			PollIntervalMS:    "5000",
			JobTimeoutMinutes: "30",
			QualityLevels:     "low,medium,high",
			DebuggingEnabled:  "false",
			DevelopmentMode:   "false",
		},

		TransportURLKeys: []string{"REDIS_URL", "QUEUE_REDIS_URL", "HUB_REDIS_URL"},

		EmitPath: filepath.Join(workspace, "ecosystem.manifest"),

		BaseEnv: map[string]string{
			"PATH":      "/usr/bin",
			"REDIS_URL": "redis://queue:6379",
		},

		Detector: staticDetector{resources: hardware.Resources{
			GPUCount:  gpus,
			HasGPU:    gpus > 0,
			GPUVendor: hardware.VendorNVIDIA,
			GPUModel:  "NVIDIA GeForce RTX 4090",
		}},
	}
}

func appNames(m *manifest.Manifest) []string {
	out := make([]string, 0, len(m.Apps))
	for _, app := range m.Apps {
		out = append(out, app.Name)
	}
	return out
}

// Two-GPU node, comfyui:auto: one worker and one ComfyUI instance per GPU.
func TestScenarioGPUAutoOnTwoGPUNode(t *testing.T) {
	opts := scenarioOptions(t, "comfyui:auto", "actual", 2)

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"health-server",
		"redis-worker-comfyui-gpu0",
		"comfyui-gpu0",
		"redis-worker-comfyui-gpu1",
		"comfyui-gpu1",
	}, appNames(result.Manifest))

	worker0 := result.Manifest.Apps[1]
	assert.Equal(t, "node-A-worker-comfyui-0", worker0.Env["WORKER_ID"])
	assert.Contains(t, worker0.Args, "--cuda-device=0")
	assert.Contains(t, worker0.Args, "--service-port=8188")

	worker1 := result.Manifest.Apps[3]
	assert.Equal(t, "node-A-worker-comfyui-1", worker1.Env["WORKER_ID"])
	assert.Contains(t, worker1.Args, "--cuda-device=1")
	assert.Contains(t, worker1.Args, "--service-port=8189")

	require.Len(t, result.Manifest.ServicePairs, 2)
	assert.Equal(t, 8188, result.Manifest.ServicePairs[0].Port)
	assert.Equal(t, 8189, result.Manifest.ServicePairs[1].Port)

	// The manifest landed at the canonical path.
	_, statErr := os.Stat(opts.EmitPath)
	assert.NoError(t, statErr)
}

// Mock mode: auto resolves to one regardless of declared GPUs.
func TestScenarioMockGPUOverride(t *testing.T) {
	t.Setenv("MACHINE_NUM_GPUS", "4")
	opts := scenarioOptions(t, "comfyui:auto", "mock", 0)

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"health-server",
		"redis-worker-comfyui-gpu0",
		"comfyui-gpu0",
	}, appNames(result.Manifest))
	assert.Len(t, result.Manifest.ServicePairs, 1)
}

// Requesting eight workers on a two-GPU node truncates to two.
func TestScenarioTruncationInActualMode(t *testing.T) {
	opts := scenarioOptions(t, "comfyui:8", "actual", 2)

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)

	workers := 0
	services := 0
	for _, app := range result.Manifest.Apps {
		switch {
		case app.Name == "health-server":
		case app.Args[0] == "redis-worker":
			workers++
		default:
			services++
		}
	}
	assert.Equal(t, 2, workers)
	assert.Equal(t, 2, services)
	assert.Len(t, result.Manifest.ServicePairs, 2)
}

// Daemon clients scale to GPUs; the daemon itself never appears in the
// manifest but its install is attempted exactly once.
func TestScenarioDaemonClientWithGPUDaemon(t *testing.T) {
	opts := scenarioOptions(t, "ollama:auto", "actual", 3)

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"health-server",
		"redis-worker-ollama-0",
		"redis-worker-ollama-1",
		"redis-worker-ollama-2",
	}, appNames(result.Manifest))
	assert.Empty(t, result.Manifest.ServicePairs)

	require.Len(t, result.Daemons, 1)
	assert.Equal(t, "ollama", result.Daemons[0].Service)
	assert.NoError(t, result.Daemons[0].Err)
}

// Unknown worker types drop with a warning; valid entries continue.
func TestScenarioUnknownWorkerTypeMixedWithValid(t *testing.T) {
	opts := scenarioOptions(t, "bogus:2,simulation:1", "actual", 0)

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"health-server",
		"redis-worker-simulation-0",
		"simulation-0",
	}, appNames(result.Manifest))
}

// No transport URL: fatal, and no manifest appears at the canonical path.
func TestScenarioMissingTransportURL(t *testing.T) {
	opts := scenarioOptions(t, "simulation:1", "actual", 0)
	delete(opts.BaseEnv, "REDIS_URL")

	_, err := Run(context.Background(), opts)
	require.ErrorIs(t, err, ErrMissingTransportURL)
	assert.ErrorContains(t, err, "REDIS_URL")
	assert.ErrorContains(t, err, "QUEUE_REDIS_URL")
	assert.ErrorContains(t, err, "HUB_REDIS_URL")

	_, statErr := os.Stat(opts.EmitPath)
	assert.True(t, os.IsNotExist(statErr))
}

// Identical inputs produce byte-identical manifests.
func TestRunDeterminism(t *testing.T) {
	opts := scenarioOptions(t, "comfyui:auto,simulation:2", "actual", 2)

	first, err := Run(context.Background(), opts)
	require.NoError(t, err)
	firstBytes, err := os.ReadFile(opts.EmitPath)
	require.NoError(t, err)

	second, err := Run(context.Background(), opts)
	require.NoError(t, err)
	secondBytes, err := os.ReadFile(opts.EmitPath)
	require.NoError(t, err)

	assert.Equal(t, firstBytes, secondBytes)
	assert.NotEqual(t, first.RunID, second.RunID)
}

// Plan mode: no emission, no daemons.
func TestRunPlanMode(t *testing.T) {
	opts := scenarioOptions(t, "ollama:auto", "actual", 1)
	opts.EmitPath = ""
	opts.SkipDaemons = true

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Empty(t, result.Daemons)
	assert.NotEmpty(t, result.Manifest.Apps)
}

func TestResolveTransportURL(t *testing.T) {
	keys := []string{"REDIS_URL", "QUEUE_REDIS_URL"}

	t.Run("first key wins", func(t *testing.T) {
		url, err := resolveTransportURL(keys, map[string]string{
			"REDIS_URL":       "redis://a:6379",
			"QUEUE_REDIS_URL": "redis://b:6379",
		})
		require.NoError(t, err)
		assert.Equal(t, "redis://a:6379", url)
	})

	t.Run("fallback key", func(t *testing.T) {
		url, err := resolveTransportURL(keys, map[string]string{"QUEUE_REDIS_URL": "redis://b:6379"})
		require.NoError(t, err)
		assert.Equal(t, "redis://b:6379", url)
	})

	t.Run("empty value does not count", func(t *testing.T) {
		_, err := resolveTransportURL(keys, map[string]string{"REDIS_URL": ""})
		assert.ErrorIs(t, err, ErrMissingTransportURL)
	})
}
