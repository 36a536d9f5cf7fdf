package hardware

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	t.Run("no gpus means no vendor", func(t *testing.T) {
		d := newTestDetector(nil, "actual")
		d.WorkspaceDir = t.TempDir()

		resources := d.Detect(context.Background())

		assert.Equal(t, 0, resources.GPUCount)
		assert.False(t, resources.HasGPU)
		assert.Equal(t, VendorNone, resources.GPUVendor)
		assert.Equal(t, runtime.GOOS, resources.Platform)
		assert.Equal(t, runtime.GOARCH, resources.Architecture)
		assert.False(t, resources.DetectedAt.IsZero())
		assert.Greater(t, resources.CPUCores, 0)
		assert.Greater(t, resources.RAMGB, 0.0)
		assert.Greater(t, resources.DiskGB, 0.0)
	})

	t.Run("nvidia gpus populate all gpu fields", func(t *testing.T) {
		d := newTestDetector(map[string]string{
			"nvidia-smi -L": "GPU 0: NVIDIA GeForce RTX 4090 (UUID: GPU-a)\nGPU 1: NVIDIA GeForce RTX 4090 (UUID: GPU-b)\n",
		}, "actual")
		d.WorkspaceDir = t.TempDir()

		resources := d.Detect(context.Background())

		assert.Equal(t, 2, resources.GPUCount)
		assert.True(t, resources.HasGPU)
		assert.Equal(t, VendorNVIDIA, resources.GPUVendor)
		assert.Equal(t, "NVIDIA GeForce RTX 4090", resources.GPUModel)
		assert.Equal(t, 24.0, resources.GPUMemoryGB)
	})

	t.Run("mock mode environment gpus", func(t *testing.T) {
		t.Setenv("MACHINE_NUM_GPUS", "3")

		d := newTestDetector(nil, "mock")
		d.WorkspaceDir = t.TempDir()

		resources := d.Detect(context.Background())

		assert.Equal(t, 3, resources.GPUCount)
		assert.True(t, resources.HasGPU)
		assert.Equal(t, VendorEnvironment, resources.GPUVendor)
	})
}
