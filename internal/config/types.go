package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
const CurrentConfigVersion = 1

// Executor backends.
const (
	ExecutorSSH     = "ssh"
	ExecutorProcess = "process"
)

// Config represents the complete .pxd.yaml configuration file.
type Config struct {
	Version int `yaml:"version" mapstructure:"version"`

	// Host is the SSH alias (or user@host[:port]) of the virtualization host.
	Host string `yaml:"host" mapstructure:"host"`

	// VMAliases maps VM ids to SSH aliases for VMs with their own remote access.
	// VMs not listed here are reached through Host.
	VMAliases map[uint32]string `yaml:"vm_aliases" mapstructure:"vm_aliases"`

	// ContainerExec is the command prefix that runs a command inside a container.
	// "{id}" is replaced with the container id.
	ContainerExec string `yaml:"container_exec" mapstructure:"container_exec"`

	// Executor selects the remote-execution backend: "ssh" or "process".
	Executor string `yaml:"executor" mapstructure:"executor"`

	SSH              SSHConfig               `yaml:"ssh" mapstructure:"ssh"`
	Timeouts         TimeoutConfig           `yaml:"timeouts" mapstructure:"timeouts"`
	Workers          int                     `yaml:"workers" mapstructure:"workers"`
	Cache            CacheConfig             `yaml:"cache" mapstructure:"cache"`
	Catalog          string                  `yaml:"catalog" mapstructure:"catalog"`
	BinarySearchDirs []string                `yaml:"binary_search_dirs" mapstructure:"binary_search_dirs"`
	Scripts          map[string]ScriptConfig `yaml:"scripts" mapstructure:"scripts"`
	Suggest          SuggestConfig           `yaml:"suggest" mapstructure:"suggest"`
	Server           ServerConfig            `yaml:"server" mapstructure:"server"`
	Log              LogConfig               `yaml:"log" mapstructure:"log"`
}

// SSHConfig controls how the remote-execution channel is opened.
type SSHConfig struct {
	// Binary is the ssh client used by the "process" executor.
	Binary string `yaml:"binary" mapstructure:"binary"`

	// ConnectTimeout bounds dialing a new connection.
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`

	// StrictHostKeyChecking verifies host keys against ~/.ssh/known_hosts.
	StrictHostKeyChecking bool `yaml:"strict_host_key_checking" mapstructure:"strict_host_key_checking"`
}

// TimeoutConfig bounds remote calls.
type TimeoutConfig struct {
	// Command is the default per-call timeout for primary commands.
	Command time.Duration `yaml:"command" mapstructure:"command"`

	// Enrichment bounds secondary best-effort calls (OS info, memory config).
	Enrichment time.Duration `yaml:"enrichment" mapstructure:"enrichment"`

	// PassDeadline is the wall-clock budget shared by one aggregate pass.
	PassDeadline time.Duration `yaml:"pass_deadline" mapstructure:"pass_deadline"`
}

// CacheConfig sets freshness per query class.
type CacheConfig struct {
	DefaultTTL        time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	SystemOverviewTTL time.Duration `yaml:"system_overview_ttl" mapstructure:"system_overview_ttl"`
	TargetTTL         time.Duration `yaml:"target_ttl" mapstructure:"target_ttl"`
	HostInfoTTL       time.Duration `yaml:"host_info_ttl" mapstructure:"host_info_ttl"`
	MaintenanceTTL    time.Duration `yaml:"maintenance_ttl" mapstructure:"maintenance_ttl"`
	PerformanceTTL    time.Duration `yaml:"performance_ttl" mapstructure:"performance_ttl"`
	MaxEntries        int           `yaml:"max_entries" mapstructure:"max_entries"`
	SweepInterval     time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
}

// ScriptConfig defines a local maintenance script runnable by id.
type ScriptConfig struct {
	Description string        `yaml:"description" mapstructure:"description"`
	Path        string        `yaml:"path" mapstructure:"path"`
	Args        []string      `yaml:"args" mapstructure:"args"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// SuggestConfig points at the text-generation endpoint.
type SuggestConfig struct {
	Endpoint string        `yaml:"endpoint" mapstructure:"endpoint"`
	Model    string        `yaml:"model" mapstructure:"model"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Listen       string        `yaml:"listen" mapstructure:"listen"`
	RateLimit    float64       `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second per client
	Burst        int           `yaml:"burst" mapstructure:"burst"`
	PushInterval time.Duration `yaml:"push_interval" mapstructure:"push_interval"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultBinarySearchDirs are probed in order when a binary is not on $PATH.
var DefaultBinarySearchDirs = []string{
	"/opt/*/bin",
	"/opt/bin",
	"/usr/local/sbin",
	"/usr/games",
	"/snap/bin",
	"~/.local/bin",
	"/home/*/bin",
	"/var/lib/*/bin",
	"/srv/*/bin",
	"/app/bin",
	"/config/bin",
	"/data/bin",
	"/media/*/bin",
	"/mnt/*/bin",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Host:    "proxmox",
		VMAliases: map[uint32]string{
			500: "homeassistant",
			611: "alexa",
			900: "ai-system",
		},
		ContainerExec: "pct exec {id} --",
		Executor:      ExecutorSSH,
		SSH: SSHConfig{
			Binary:                "ssh",
			ConnectTimeout:        10 * time.Second,
			StrictHostKeyChecking: true,
		},
		Timeouts: TimeoutConfig{
			Command:      15 * time.Second,
			Enrichment:   3 * time.Second,
			PassDeadline: 20 * time.Second,
		},
		Workers: 4,
		Cache: CacheConfig{
			DefaultTTL:        30 * time.Second,
			SystemOverviewTTL: 30 * time.Second,
			TargetTTL:         10 * time.Second,
			HostInfoTTL:       60 * time.Second,
			MaintenanceTTL:    2 * time.Minute,
			PerformanceTTL:    5 * time.Second,
			MaxEntries:        1024,
			SweepInterval:     time.Minute,
		},
		BinarySearchDirs: append([]string(nil), DefaultBinarySearchDirs...),
		Scripts:          make(map[string]ScriptConfig),
		Suggest: SuggestConfig{
			Timeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Listen:       "127.0.0.1:8087",
			RateLimit:    10,
			Burst:        20,
			PushInterval: 15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
