package hardware

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"github.com/catalystcommunity/app-utils-go/env"
	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/gammazero/workerpool"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// DefaultProbeTimeout bounds each subprocess probe.
const DefaultProbeTimeout = 5 * time.Second

// probeCount is the number of concurrent sub-detections (GPU, CPU, memory, disk).
const probeCount = 4

// commandRunner executes a probe subprocess and returns its stdout.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Detector produces a Resources snapshot for the node. It never fails: a
// probe that errors degrades only its own fields, falling back to the
// MACHINE_* environment variables.
type Detector struct {
	// WorkspaceDir is the path probed for disk capacity
	WorkspaceDir string

	// GPUMode gates the environment GPU fallback: only "mock" mode may
	// source GPUs from MACHINE_* variables
	GPUMode string

	// ProbeTimeout bounds each subprocess probe; defaults to DefaultProbeTimeout
	ProbeTimeout time.Duration

	run commandRunner
}

// NewDetector creates a detector for the given workspace and GPU mode.
func NewDetector(workspaceDir, gpuMode string) *Detector {
	return &Detector{
		WorkspaceDir: workspaceDir,
		GPUMode:      gpuMode,
		ProbeTimeout: DefaultProbeTimeout,
		run:          runCommand,
	}
}

// Detect runs the four sub-probes concurrently and joins them into one
// snapshot. Sub-probe failures degrade individual fields only.
func (d *Detector) Detect(ctx context.Context) Resources {
	if d.run == nil {
		d.run = runCommand
	}
	if d.ProbeTimeout <= 0 {
		d.ProbeTimeout = DefaultProbeTimeout
	}

	resources := Resources{
		Platform:     runtime.GOOS,
		Architecture: runtime.GOARCH,
		DetectedAt:   time.Now().UTC(),
	}
	if hostname, err := os.Hostname(); err == nil {
		resources.Hostname = hostname
	}

	var gpu gpuProbe

	pool := workerpool.New(probeCount)
	pool.Submit(func() { gpu = d.detectGPU(ctx) })
	pool.Submit(func() { resources.CPUCores = d.detectCPU(ctx) })
	pool.Submit(func() { resources.RAMGB, resources.FreeRAMGB = d.detectMemory(ctx) })
	pool.Submit(func() { resources.DiskGB, resources.FreeDiskGB = d.detectDisk(ctx) })
	pool.StopWait()

	resources.GPUCount = gpu.count
	resources.GPUModel = gpu.model
	resources.GPUVendor = gpu.vendor
	resources.GPUMemoryGB = gpu.memoryGB
	resources.HasGPU = gpu.count > 0
	if resources.GPUCount == 0 {
		resources.GPUVendor = VendorNone
	}

	logging.Log.WithField("gpu_count", resources.GPUCount).
		WithField("gpu_vendor", resources.GPUVendor).
		WithField("cpu_cores", resources.CPUCores).
		WithField("ram_gb", resources.RAMGB).
		Info("Hardware detection complete")

	return resources
}

func (d *Detector) detectCPU(ctx context.Context) int {
	probeCtx, cancel := context.WithTimeout(ctx, d.ProbeTimeout)
	defer cancel()

	cores, err := cpu.CountsWithContext(probeCtx, true)
	if err != nil || cores <= 0 {
		logging.Log.WithError(err).Warn("CPU probe failed, falling back to environment")
		return env.GetEnvAsIntOrDefault("MACHINE_CPU_CORES", strconv.Itoa(runtime.NumCPU()))
	}
	return cores
}

func (d *Detector) detectMemory(ctx context.Context) (totalGB, freeGB float64) {
	probeCtx, cancel := context.WithTimeout(ctx, d.ProbeTimeout)
	defer cancel()

	vm, err := mem.VirtualMemoryWithContext(probeCtx)
	if err != nil {
		logging.Log.WithError(err).Warn("Memory probe failed, falling back to environment")
		total := envFloat("MACHINE_RAM_GB", 0)
		return total, total
	}
	return bytesToGB(vm.Total), bytesToGB(vm.Available)
}

func (d *Detector) detectDisk(ctx context.Context) (totalGB, freeGB float64) {
	probeCtx, cancel := context.WithTimeout(ctx, d.ProbeTimeout)
	defer cancel()

	usage, err := disk.UsageWithContext(probeCtx, d.WorkspaceDir)
	if err != nil {
		logging.Log.WithError(err).WithField("path", d.WorkspaceDir).
			Warn("Disk probe failed, falling back to environment")
		total := envFloat("MACHINE_DISK_GB", 0)
		return total, total
	}
	return bytesToGB(usage.Total), bytesToGB(usage.Free)
}

func bytesToGB(b uint64) float64 {
	return float64(b) / (1024 * 1024 * 1024)
}

func envFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return val
}
