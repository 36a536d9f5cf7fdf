package manifest

// ProcessDescriptor is the full supervision contract for one long-lived
// process. The external supervisor consumes these verbatim; the orchestrator
// never revisits them after emission.
type ProcessDescriptor struct {
	Name   string   `json:"name"`
	Script string   `json:"script"`
	Args   []string `json:"args"`
	Cwd    string   `json:"cwd"`

	Instances        int    `json:"instances"`
	Autorestart      bool   `json:"autorestart"`
	MaxRestarts      int    `json:"max_restarts"`
	MinUptime        string `json:"min_uptime"`
	MaxMemoryRestart string `json:"max_memory_restart"`

	// RestartDelay is in milliseconds
	RestartDelay int `json:"restart_delay"`

	ErrorFile string `json:"error_file"`
	OutFile   string `json:"out_file"`
	LogFile   string `json:"log_file"`
	MergeLogs bool   `json:"merge_logs"`

	Env map[string]string `json:"env"`
}

// ServicePair records the 1:1 association between one worker instance and
// its co-located backing service instance, with the service's bound port.
type ServicePair struct {
	WorkerName  string `json:"worker_name"`
	ServiceName string `json:"service_name"`
	ServiceType string `json:"service_type"`
	Port        int    `json:"port"`
}

// Manifest is the envelope written to the canonical path for the supervisor.
type Manifest struct {
	Apps         []ProcessDescriptor `json:"apps"`
	ServicePairs []ServicePair       `json:"service_pairs"`
}

// descriptorClass selects the supervision defaults for a process.
type descriptorClass struct {
	minUptime        string
	maxMemoryRestart string
	restartDelayMS   int
}

var (
	classHealthServer = descriptorClass{minUptime: "5s", maxMemoryRestart: "512M", restartDelayMS: 2000}
	classWorker       = descriptorClass{minUptime: "10s", maxMemoryRestart: "1G", restartDelayMS: 3000}
	classInference    = descriptorClass{minUptime: "10s", maxMemoryRestart: "2G", restartDelayMS: 5000}
	classSimulation   = descriptorClass{minUptime: "5s", maxMemoryRestart: "512M", restartDelayMS: 2000}
	classMinimal      = descriptorClass{minUptime: "5s", maxMemoryRestart: "256M", restartDelayMS: 2000}
)

const defaultMaxRestarts = 10
