package manifest

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/catalystcommunity/gpu-orchestrator/internal/catalog"
	"github.com/catalystcommunity/gpu-orchestrator/internal/hardware"
	"github.com/catalystcommunity/gpu-orchestrator/internal/installer"
	"github.com/catalystcommunity/gpu-orchestrator/internal/workerspec"
)

// HealthServerName is the first app in every manifest.
const HealthServerName = "health-server"

// WebsocketSimulationService is the service name that selects websocket
// simulation descriptors for null-installer services.
const WebsocketSimulationService = "simulation-websocket"

// BuildOptions carries everything descriptor construction depends on.
type BuildOptions struct {
	Catalog    *catalog.Catalog
	EnvMapping *catalog.EnvMapping
	Hardware   hardware.Resources

	MachineID    string
	WorkspaceDir string

	// Script is the launcher every descriptor invokes; the first argument
	// selects the role
	Script string

	TransportURL string
	GPUMode      string

	ComfyUIBasePort      int
	SimulationBasePort   int
	SimulationWSBasePort int
	MinimalBasePort      int

	Knobs WorkerKnobs

	// BaseEnv overrides the pass-through environment; nil snapshots the
	// process environment
	BaseEnv map[string]string
}

// Builder assembles the manifest. All state is threaded through the builder
// value; nothing is accumulated in package globals.
type Builder struct {
	opts    BuildOptions
	baseEnv map[string]string
}

// NewBuilder creates a builder for one orchestration run.
func NewBuilder(opts BuildOptions) *Builder {
	baseEnv := opts.BaseEnv
	if baseEnv == nil {
		baseEnv = processEnvMap()
	}
	return &Builder{opts: opts, baseEnv: baseEnv}
}

// Build expands the resolved worker specs into the full manifest: the health
// server first, then each worker type's instances in ascending index order,
// each worker followed by its co-located services, with a ServicePair per
// worker+service instance.
func (b *Builder) Build(specs []workerspec.Spec) (*Manifest, error) {
	m := &Manifest{}

	m.Apps = append(m.Apps, b.healthServerDescriptor())

	for _, spec := range specs {
		def, ok := b.opts.Catalog.Worker(spec.Type)
		if !ok {
			// Parser already dropped unknown types; this guards direct callers.
			return nil, fmt.Errorf("worker type %q not in catalog", spec.Type)
		}

		for i := 0; i < spec.Count; i++ {
			worker := b.workerDescriptor(spec.Type, def, i)
			m.Apps = append(m.Apps, worker)

			for _, svcName := range def.Services {
				svc, found := b.opts.Catalog.Service(svcName)
				if !found || svc.Type != catalog.PM2Service {
					// Daemon and external services never produce descriptors.
					continue
				}

				svcDesc, err := b.serviceDescriptor(svcName, svc, i)
				if err != nil {
					return nil, err
				}
				m.Apps = append(m.Apps, svcDesc)

				m.ServicePairs = append(m.ServicePairs, ServicePair{
					WorkerName:  worker.Name,
					ServiceName: svcName,
					ServiceType: string(svc.Type),
					Port:        ExtractPort(svcDesc),
				})
			}
		}
	}

	return m, nil
}

func (b *Builder) healthServerDescriptor() ProcessDescriptor {
	env := b.passThroughEnv()
	env["LOG_LEVEL"] = "info"
	env["APP_ENV"] = "production"
	env["MACHINE_ID"] = b.opts.MachineID
	env["REDIS_URL"] = b.opts.TransportURL
	env["LOG_SHIPPER_DISABLED"] = "true"

	return b.newDescriptor(HealthServerName, []string{HealthServerName}, classHealthServer, env)
}

func (b *Builder) workerDescriptor(workerType string, def catalog.WorkerTypeDef, i int) ProcessDescriptor {
	var name string
	if def.IsGPUBound {
		name = fmt.Sprintf("redis-worker-%s-gpu%d", workerType, i)
	} else {
		name = fmt.Sprintf("redis-worker-%s-%d", workerType, i)
	}

	args := []string{"redis-worker"}
	if def.IsGPUBound {
		args = append(args, fmt.Sprintf("--cuda-device=%d", i))
	} else {
		args = append(args, fmt.Sprintf("--index=%d", i))
	}
	if _, ok := b.comfyUIService(def); ok {
		args = append(args, fmt.Sprintf("--service-port=%d", b.opts.ComfyUIBasePort+i))
	}

	return b.newDescriptor(name, args, classWorker, b.deriveWorkerEnv(workerType, def, i))
}

// serviceDescriptor emits the co-located service instance for index i,
// driven by the service's installer identity.
func (b *Builder) serviceDescriptor(svcName string, svc catalog.ServiceDef, i int) (ProcessDescriptor, error) {
	switch svc.Installer {
	case catalog.InstallerComfyUI:
		port := b.opts.ComfyUIBasePort + i
		name := fmt.Sprintf("%s-gpu%d", svcName, i)
		args := []string{svcName, fmt.Sprintf("--cuda-device=%d", i), fmt.Sprintf("--port=%d", port)}
		env := b.deriveServiceEnv(svc, i, port, "COMFYUI_PORT")
		return b.newDescriptor(name, args, classInference, env), nil

	case catalog.InstallerSimulation:
		port := b.opts.SimulationBasePort + i
		name := fmt.Sprintf("%s-%d", svcName, i)
		args := []string{svcName, fmt.Sprintf("--gpu=%d", i)}
		env := b.deriveServiceEnv(svc, i, port, "SIMULATION_PORT")
		return b.newDescriptor(name, args, classSimulation, env), nil

	case "":
		if svcName == WebsocketSimulationService {
			port := b.opts.SimulationWSBasePort + i
			name := fmt.Sprintf("%s-%d", svcName, i)
			args := []string{svcName, fmt.Sprintf("--index=%d", i)}
			env := b.deriveServiceEnv(svc, i, port, "PORT")
			return b.newDescriptor(name, args, classSimulation, env), nil
		}

		port := b.opts.MinimalBasePort + i
		name := fmt.Sprintf("%s-%d", svcName, i)
		args := []string{svcName, fmt.Sprintf("--index=%d", i)}
		env := b.deriveServiceEnv(svc, i, port, "SERVICE_PORT")
		return b.newDescriptor(name, args, classMinimal, env), nil

	default:
		return ProcessDescriptor{}, fmt.Errorf("%w: service %q declares installer %q", installer.ErrUnknownInstaller, svcName, svc.Installer)
	}
}

func (b *Builder) newDescriptor(name string, args []string, class descriptorClass, env map[string]string) ProcessDescriptor {
	logDir := filepath.Join(b.opts.WorkspaceDir, "logs")
	return ProcessDescriptor{
		Name:   name,
		Script: b.opts.Script,
		Args:   args,
		Cwd:    b.opts.WorkspaceDir,

		Instances:        1,
		Autorestart:      true,
		MaxRestarts:      defaultMaxRestarts,
		MinUptime:        class.minUptime,
		MaxMemoryRestart: class.maxMemoryRestart,
		RestartDelay:     class.restartDelayMS,

		ErrorFile: filepath.Join(logDir, name+"-error.log"),
		OutFile:   filepath.Join(logDir, name+"-out.log"),
		LogFile:   filepath.Join(logDir, name+".log"),
		MergeLogs: true,

		Env: env,
	}
}

// ExtractPort finds a descriptor's bound port: a --port= argument first, then
// the conventional env variables in a fixed order. Zero when nothing matches.
func ExtractPort(desc ProcessDescriptor) int {
	const argPrefix = "--port="
	for _, arg := range desc.Args {
		if len(arg) > len(argPrefix) && arg[:len(argPrefix)] == argPrefix {
			if port, err := strconv.Atoi(arg[len(argPrefix):]); err == nil {
				return port
			}
		}
	}
	for _, key := range []string{"COMFYUI_PORT", "PORT", "SIMULATION_PORT", "SERVICE_PORT"} {
		if val, ok := desc.Env[key]; ok {
			if port, err := strconv.Atoi(val); err == nil {
				return port
			}
		}
	}
	return 0
}
