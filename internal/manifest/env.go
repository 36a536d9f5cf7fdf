package manifest

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/catalystcommunity/gpu-orchestrator/internal/catalog"
)

// WorkerKnobs are the common runtime knobs forwarded into every worker
// environment, read from the host environment with documented defaults.
type WorkerKnobs struct {
	PollIntervalMS     string
	JobTimeoutMinutes  string
	QualityLevels      string
	DebuggingEnabled   string
	DevelopmentMode    string
	WebsocketAuthToken string
}

// deriveWorkerEnv builds the environment for worker instance i of the given
// type. The merge order is fixed, later steps win: pass-through, fixed
// overrides, worker knobs, required-env forwarding, connector tables,
// service-specific overrides.
func (b *Builder) deriveWorkerEnv(workerType string, def catalog.WorkerTypeDef, i int) map[string]string {
	env := b.passThroughEnv()

	// Fixed overrides always take precedence over pass-through values.
	env["LOG_LEVEL"] = "info"
	env["APP_ENV"] = "production"
	env["WORKER_ID"] = fmt.Sprintf("%s-worker-%s-%d", b.opts.MachineID, workerType, i)
	env["CONNECTORS"] = workerType
	env["MACHINE_ID"] = b.opts.MachineID
	env["REDIS_URL"] = b.opts.TransportURL
	env["LOG_SHIPPER_DISABLED"] = "true"

	env["WORKER_POLL_INTERVAL_MS"] = b.opts.Knobs.PollIntervalMS
	env["WORKER_JOB_TIMEOUT_MINUTES"] = b.opts.Knobs.JobTimeoutMinutes
	env["WORKER_QUALITY_LEVELS"] = b.opts.Knobs.QualityLevels
	env["WORKER_DEBUGGING_ENABLED"] = b.opts.Knobs.DebuggingEnabled
	env["WORKER_DEVELOPMENT_MODE"] = b.opts.Knobs.DevelopmentMode
	env["WORKER_WEBSOCKET_AUTH_TOKEN"] = b.opts.Knobs.WebsocketAuthToken

	for _, key := range def.RequiredEnv {
		if val, ok := b.lookupHost(key); ok {
			env[key] = val
		}
	}

	for _, svcName := range def.Services {
		svc, ok := b.opts.Catalog.Service(svcName)
		if !ok {
			continue
		}
		b.applyConnectorEnv(env, svc, i)
	}

	// Service-specific direct overrides.
	if _, ok := b.comfyUIService(def); ok {
		env["COMFYUI_PORT"] = strconv.Itoa(b.opts.ComfyUIBasePort + i)
	}

	return env
}

// deriveServiceEnv builds the environment for co-located service instance i.
// portKey names the env variable carrying the service's bound port.
func (b *Builder) deriveServiceEnv(svc catalog.ServiceDef, i, port int, portKey string) map[string]string {
	env := b.passThroughEnv()

	env["LOG_LEVEL"] = "info"
	env["APP_ENV"] = "production"
	env["MACHINE_ID"] = b.opts.MachineID
	env["REDIS_URL"] = b.opts.TransportURL
	env["LOG_SHIPPER_DISABLED"] = "true"

	b.applyConnectorEnv(env, svc, i)

	env[portKey] = strconv.Itoa(port)

	return env
}

// applyConnectorEnv merges the connector's declared env table (or the
// per-job-type fallback) into env. Values expand ${VAR:-default} references
// against the host environment; any variable whose name mentions both PORT
// and COMFYUI is offset by the instance index.
func (b *Builder) applyConnectorEnv(env map[string]string, svc catalog.ServiceDef, i int) {
	required := b.opts.EnvMapping.RequiredEnvForService(svc)
	for key, template := range required {
		val := catalog.ExpandRefs(template, b.lookupHost)
		if strings.Contains(key, "PORT") && strings.Contains(key, "COMFYUI") {
			if base, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
				val = strconv.Itoa(base + i)
			}
		}
		env[key] = val
	}
}

// comfyUIService reports whether the worker declares a ComfyUI-managed
// service, returning its name.
func (b *Builder) comfyUIService(def catalog.WorkerTypeDef) (string, bool) {
	for _, svcName := range def.Services {
		if svc, ok := b.opts.Catalog.Service(svcName); ok && svc.Installer == catalog.InstallerComfyUI {
			return svcName, true
		}
	}
	return "", false
}

// passThroughEnv copies the orchestrator's own environment as the merge
// baseline. Tests inject a fixed map through BuildOptions.BaseEnv.
func (b *Builder) passThroughEnv() map[string]string {
	env := make(map[string]string, len(b.baseEnv)+16)
	for key, val := range b.baseEnv {
		env[key] = val
	}
	return env
}

func (b *Builder) lookupHost(key string) (string, bool) {
	val, ok := b.baseEnv[key]
	return val, ok
}

// processEnvMap snapshots os.Environ into a map.
func processEnvMap() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if idx := strings.Index(kv, "="); idx > 0 {
			env[kv[:idx]] = kv[idx+1:]
		}
	}
	return env
}
