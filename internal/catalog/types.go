package catalog

// WorkerKind classifies how a worker type executes its workload.
type WorkerKind string

const (
	// DirectWorker executes jobs in-process
	DirectWorker WorkerKind = "direct_worker"

	// ServiceClient dispatches jobs to a co-located supervised service
	ServiceClient WorkerKind = "service_client"

	// DaemonClient dispatches jobs to a singleton daemon binary
	DaemonClient WorkerKind = "daemon_client"
)

// ScalingStrategy controls how a worker type's instance count is derived.
type ScalingStrategy string

const (
	// ScaleGPUBound binds instance counts to detected GPUs
	ScaleGPUBound ScalingStrategy = "gpu_bound"

	// ScaleConcurrency binds instance counts to a concurrency knob
	ScaleConcurrency ScalingStrategy = "concurrency"

	// ScaleSingleton pins the instance count to one
	ScaleSingleton ScalingStrategy = "singleton"
)

// ServiceKind classifies how a backing service is run.
type ServiceKind string

const (
	// PM2Service is a co-located supervised process, one per worker instance
	PM2Service ServiceKind = "pm2_service"

	// DaemonService is a singleton binary started by the daemon bootstrap
	DaemonService ServiceKind = "daemon_service"

	// ManagedService is the legacy alias of DaemonService
	ManagedService ServiceKind = "managed_service"

	// ExternalAPI and ExternalService are remote; they produce no local processes
	ExternalAPI     ServiceKind = "external_api"
	ExternalService ServiceKind = "external_service"
)

// Installer identities form a closed set. The loader does not check them; a
// service used by the selected workers that names anything else fails the run
// before the manifest is emitted.
const (
	InstallerComfyUI    = "ComfyUIManagementClient"
	InstallerSimulation = "SimulationService"
)

// WorkerTypeDef declares a worker type in the service-mapping catalog.
type WorkerTypeDef struct {
	// Type defaults to direct_worker when absent from the catalog
	Type WorkerKind `json:"type"`

	IsGPUBound bool `json:"is_gpu_bound"`

	// ScalingStrategy is optional; when empty the resolver derives behavior
	// from Type and IsGPUBound
	ScalingStrategy ScalingStrategy `json:"scaling_strategy"`

	// Services this worker requires co-located, in instantiation order
	Services []string `json:"services"`

	// RequiredEnv names host environment variables forwarded when present
	RequiredEnv []string `json:"required_env"`
}

// ServiceDef declares a backing service in the service-mapping catalog.
type ServiceDef struct {
	Type ServiceKind `json:"type"`

	// Installer names the installer strategy; empty means the null installer
	Installer string `json:"installer"`

	// InstallerFilename optionally pins the installer module path; it must
	// stay inside the installer search directory
	InstallerFilename string `json:"installer_filename"`

	IsGPUBound bool `json:"is_gpu_bound"`

	// Connector is the logical connector name used for env lookups
	Connector string `json:"connector"`

	// JobTypesAccepted is the env lookup fallback when the connector has no
	// declared required envs
	JobTypesAccepted []string `json:"job_types_accepted"`
}

// Catalog is the parsed service-mapping document. It is loaded once and never
// mutated afterwards.
type Catalog struct {
	Workers  map[string]WorkerTypeDef `json:"workers"`
	Services map[string]ServiceDef    `json:"services"`

	// ResourceBindings is the legacy scaling block (per_gpu, per_machine,
	// unlimited). ScalingStrategy wins when both are present.
	ResourceBindings map[string]string `json:"resource_bindings"`
}

// Worker returns the definition for a worker type name.
func (c *Catalog) Worker(name string) (WorkerTypeDef, bool) {
	def, ok := c.Workers[name]
	if ok && def.Type == "" {
		def.Type = DirectWorker
	}
	return def, ok
}

// Service returns the definition for a service name.
func (c *Catalog) Service(name string) (ServiceDef, bool) {
	def, ok := c.Services[name]
	return def, ok
}

// IsDaemon reports whether a service kind is started by the daemon bootstrap
// rather than supervised from the manifest.
func (k ServiceKind) IsDaemon() bool {
	return k == DaemonService || k == ManagedService
}

// DaemonServices returns the names of this worker's services whose catalog
// entry is daemon-typed.
func (c *Catalog) DaemonServices(def WorkerTypeDef) []string {
	var daemons []string
	for _, name := range def.Services {
		if svc, ok := c.Services[name]; ok && svc.Type.IsDaemon() {
			daemons = append(daemons, name)
		}
	}
	return daemons
}
