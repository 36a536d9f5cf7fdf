package hardware

import (
	"context"
	"fmt"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/catalystcommunity/app-utils-go/env"
	"github.com/catalystcommunity/app-utils-go/logging"
)

// gpuProbe is the joined result of the GPU fall-through detection.
type gpuProbe struct {
	count    int
	model    string
	vendor   string
	memoryGB float64
}

// smiListLine matches one entry of `nvidia-smi -L`:
//
//	GPU 0: NVIDIA GeForce RTX 4090 (UUID: GPU-...)
var smiListLine = regexp.MustCompile(`^GPU\s+\d+:\s+(.+?)\s+\(UUID:`)

// detectGPU runs the ordered fall-through: nvidia-smi, platform listing,
// then the mock-mode environment fallback. First success wins.
func (d *Detector) detectGPU(ctx context.Context) gpuProbe {
	if probe, ok := d.detectNvidiaSmi(ctx); ok {
		return probe
	}
	if probe, ok := d.detectPlatformGPU(ctx); ok {
		return probe
	}
	if d.GPUMode == "mock" {
		if probe, ok := detectEnvironmentGPU(); ok {
			return probe
		}
	}
	return gpuProbe{vendor: VendorNone}
}

func (d *Detector) detectNvidiaSmi(ctx context.Context) (gpuProbe, bool) {
	probeCtx, cancel := context.WithTimeout(ctx, d.ProbeTimeout)
	defer cancel()

	out, err := d.run(probeCtx, "nvidia-smi", "-L")
	if err != nil {
		return gpuProbe{}, false
	}

	var models []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		match := smiListLine.FindStringSubmatch(strings.TrimSpace(line))
		if match != nil {
			models = append(models, match[1])
		}
	}
	if len(models) == 0 {
		return gpuProbe{}, false
	}

	probe := gpuProbe{
		count:  len(models),
		vendor: VendorNVIDIA,
		model:  summarizeModels(models),
	}

	if memGB, ok := d.queryNvidiaMemory(ctx); ok {
		probe.memoryGB = memGB
	} else {
		// Model heuristic; a hint, not a contract.
		probe.memoryGB = modelMemoryHintGB(models[0])
	}

	return probe, true
}

// queryNvidiaMemory asks the query form for the first GPU's total memory in MiB.
func (d *Detector) queryNvidiaMemory(ctx context.Context) (float64, bool) {
	probeCtx, cancel := context.WithTimeout(ctx, d.ProbeTimeout)
	defer cancel()

	out, err := d.run(probeCtx, "nvidia-smi", "--query-gpu=memory.total", "--format=csv,noheader,nounits")
	if err != nil {
		return 0, false
	}
	first := strings.TrimSpace(strings.SplitN(strings.TrimSpace(string(out)), "\n", 2)[0])
	mib, err := strconv.ParseFloat(first, 64)
	if err != nil || mib <= 0 {
		return 0, false
	}
	return mib / 1024, true
}

// summarizeModels reduces a model list to the first unique model, appending
// a marker when heterogeneous GPUs are present.
func summarizeModels(models []string) string {
	unique := make(map[string]bool)
	for _, model := range models {
		unique[model] = true
	}
	if len(unique) > 1 {
		return fmt.Sprintf("%s (+%d more)", models[0], len(unique)-1)
	}
	return models[0]
}

// modelMemoryHintGB maps well-known model identifiers to their typical VRAM.
func modelMemoryHintGB(model string) float64 {
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "h100"):
		return 80
	case strings.Contains(lower, "a100"):
		return 80
	case strings.Contains(lower, "l40"):
		return 48
	case strings.Contains(lower, "4090"), strings.Contains(lower, "3090"):
		return 24
	case strings.Contains(lower, "4080"):
		return 16
	case strings.Contains(lower, "4070"), strings.Contains(lower, "3080"):
		return 12
	default:
		return 8
	}
}

// detectPlatformGPU is step two of the fall-through: count display adapters
// from the platform listing and infer the vendor by substring.
func (d *Detector) detectPlatformGPU(ctx context.Context) (gpuProbe, bool) {
	switch runtime.GOOS {
	case "linux":
		return d.detectLinuxPCI(ctx)
	case "darwin":
		return d.detectMacDisplays(ctx)
	case "windows":
		return d.detectWindowsControllers(ctx)
	default:
		return gpuProbe{}, false
	}
}

func (d *Detector) detectLinuxPCI(ctx context.Context) (gpuProbe, bool) {
	probeCtx, cancel := context.WithTimeout(ctx, d.ProbeTimeout)
	defer cancel()

	out, err := d.run(probeCtx, "lspci")
	if err != nil {
		return gpuProbe{}, false
	}

	var probe gpuProbe
	for _, line := range strings.Split(string(out), "\n") {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "vga") && !strings.Contains(lower, "3d controller") && !strings.Contains(lower, "display controller") {
			continue
		}
		probe.count++
		if probe.vendor == "" {
			probe.vendor = vendorFromText(lower)
		}
		if probe.model == "" {
			if idx := strings.Index(line, ": "); idx >= 0 {
				probe.model = strings.TrimSpace(line[idx+2:])
			}
		}
	}
	if probe.count == 0 {
		return gpuProbe{}, false
	}
	return probe, true
}

func (d *Detector) detectMacDisplays(ctx context.Context) (gpuProbe, bool) {
	probeCtx, cancel := context.WithTimeout(ctx, d.ProbeTimeout)
	defer cancel()

	out, err := d.run(probeCtx, "system_profiler", "SPDisplaysDataType")
	if err != nil {
		return gpuProbe{}, false
	}

	var probe gpuProbe
	for _, line := range strings.Split(string(out), "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "Chipset Model:") {
			continue
		}
		probe.count++
		model := strings.TrimSpace(strings.TrimPrefix(trimmed, "Chipset Model:"))
		if probe.model == "" {
			probe.model = model
		}
		if probe.vendor == "" {
			if strings.Contains(model, "Apple") {
				probe.vendor = VendorApple
			} else {
				probe.vendor = vendorFromText(strings.ToLower(model))
			}
		}
	}
	if probe.count == 0 {
		return gpuProbe{}, false
	}
	return probe, true
}

func (d *Detector) detectWindowsControllers(ctx context.Context) (gpuProbe, bool) {
	probeCtx, cancel := context.WithTimeout(ctx, d.ProbeTimeout)
	defer cancel()

	out, err := d.run(probeCtx, "wmic", "path", "win32_videocontroller", "get", "name")
	if err != nil {
		return gpuProbe{}, false
	}

	var probe gpuProbe
	for _, line := range strings.Split(string(out), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.EqualFold(trimmed, "Name") {
			continue
		}
		probe.count++
		if probe.model == "" {
			probe.model = trimmed
		}
		if probe.vendor == "" {
			probe.vendor = vendorFromText(strings.ToLower(trimmed))
		}
	}
	if probe.count == 0 {
		return gpuProbe{}, false
	}
	return probe, true
}

func vendorFromText(lower string) string {
	switch {
	case strings.Contains(lower, "nvidia"):
		return VendorNVIDIA
	case strings.Contains(lower, "amd"), strings.Contains(lower, "ati"):
		return VendorAMD
	case strings.Contains(lower, "intel"):
		return VendorIntel
	default:
		return ""
	}
}

// detectEnvironmentGPU sources GPUs from MACHINE_* variables. Mock mode only.
func detectEnvironmentGPU() (gpuProbe, bool) {
	count := env.GetEnvAsIntOrDefault("MACHINE_NUM_GPUS", "0")
	if count == 0 && env.GetEnvAsBoolOrDefault("MACHINE_HAS_GPU", "false") {
		count = 1
	}
	if count == 0 {
		return gpuProbe{}, false
	}

	logging.Log.WithField("gpu_count", count).
		Info("Using environment-declared GPUs (mock mode)")

	return gpuProbe{
		count:    count,
		vendor:   VendorEnvironment,
		model:    env.GetEnvOrDefault("MACHINE_GPU_MODEL", "Environment GPU"),
		memoryGB: envFloat("MACHINE_GPU_MEMORY_GB", 0),
	}, true
}
