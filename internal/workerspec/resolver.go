package workerspec

import (
	"strconv"
	"strings"

	"github.com/catalystcommunity/app-utils-go/env"
	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/catalystcommunity/gpu-orchestrator/internal/catalog"
)

// GPUModeActual binds GPU arithmetic to detected hardware; GPUModeMock binds
// it to declarative counts.
const (
	GPUModeActual = "actual"
	GPUModeMock   = "mock"
)

const defaultConcurrency = 2

// ResolveAuto computes the instance count for a worker whose requested count
// is the literal "auto".
func ResolveAuto(name string, def catalog.WorkerTypeDef, opts ParseOptions) int {
	if def.ScalingStrategy == catalog.ScaleSingleton {
		return 1
	}

	switch def.Type {
	case catalog.DirectWorker:
		if !def.IsGPUBound {
			return 1
		}
		if opts.GPUMode == GPUModeMock {
			return 1
		}
		return opts.Hardware.GPUCount

	case catalog.ServiceClient:
		if def.ScalingStrategy == catalog.ScaleConcurrency {
			return concurrencyFor(name)
		}
		return 1

	case catalog.DaemonClient:
		if def.ScalingStrategy != catalog.ScaleConcurrency {
			return 1
		}
		// A daemon client scales to the GPUs its daemon consumes. The daemon
		// consumes GPUs when any declared service is daemon-typed.
		if len(opts.Catalog.DaemonServices(def)) > 0 {
			if opts.GPUMode == GPUModeMock {
				return max(1, env.GetEnvAsIntOrDefault("NUM_GPUS", "1"))
			}
			return max(1, opts.Hardware.GPUCount)
		}
		return concurrencyFor(name)

	default:
		return 1
	}
}

// ResolveExplicit computes the instance count for a worker with an explicit
// requested count. GPU-bound direct workers truncate to the detected GPU
// count in actual mode; singletons always pin to one.
func ResolveExplicit(name string, def catalog.WorkerTypeDef, requested int, opts ParseOptions) int {
	if def.ScalingStrategy == catalog.ScaleSingleton {
		if requested != 1 {
			logging.Log.WithField("worker_type", name).WithField("requested", requested).
				Info("Singleton worker pinned to one instance")
		}
		return 1
	}

	if def.Type == catalog.DirectWorker && def.IsGPUBound && opts.GPUMode != GPUModeMock {
		if requested > opts.Hardware.GPUCount {
			logging.Log.WithField("worker_type", name).
				WithField("requested", requested).
				WithField("gpu_count", opts.Hardware.GPUCount).
				Infof("Truncating %s workers %d -> %d to match detected GPUs", name, requested, opts.Hardware.GPUCount)
			return opts.Hardware.GPUCount
		}
	}

	return requested
}

// concurrencyFor reads the per-worker-type concurrency knob, e.g.
// SIMULATION_CONCURRENCY for the "simulation" worker type.
func concurrencyFor(workerType string) int {
	key := strings.ToUpper(strings.ReplaceAll(workerType, "-", "_")) + "_CONCURRENCY"
	return env.GetEnvAsIntOrDefault(key, strconv.Itoa(defaultConcurrency))
}
