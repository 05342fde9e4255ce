package am

// Config represents the nanoprobe agent configuration
type Config struct {
	Database    DatabaseConfig    `mapstructure:"database"`
	Queue       QueueConfig       `mapstructure:"queue"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	Executor    ExecutorConfig    `mapstructure:"executor"`
	Probe       ProbeConfig       `mapstructure:"probe"`
	History     HistoryConfig     `mapstructure:"history"`
	Definitions DefinitionsConfig `mapstructure:"definitions"`
}

// DatabaseConfig configures the SQLite database holding execution history
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// QueueConfig configures the resource queue reactor
type QueueConfig struct {
	TickIntervalMS int `mapstructure:"tick_interval_ms"` // How often due commands are started (default: 1000)
}

// MonitoringConfig holds the repeat and timeout policy for monitors.
// Agents lets a single agent kind (e.g. "process", "http") override repeat and timeout.
type MonitoringConfig struct {
	RepeatSeconds       int                    `mapstructure:"repeat_seconds"`        // Default repeat interval
	TimeoutSeconds      int                    `mapstructure:"timeout_seconds"`       // Default per-run timeout
	MaxOutputBytes      int                    `mapstructure:"max_output_bytes"`      // Captured output cap per run
	RetryBackoffSeconds int                    `mapstructure:"retry_backoff_seconds"` // First retry delay after a failure
	MaxBackoffSeconds   int                    `mapstructure:"max_backoff_seconds"`   // Upper bound on retry delay
	Agents              map[string]AgentConfig `mapstructure:"agents"`
}

// AgentConfig overrides monitoring defaults for one agent kind.
// nil = inherit from [monitoring].
type AgentConfig struct {
	RepeatSeconds  *int `mapstructure:"repeat_seconds"`
	TimeoutSeconds *int `mapstructure:"timeout_seconds"`
}

// ExecutorConfig throttles process spawning
type ExecutorConfig struct {
	MaxSpawnsPerSecond float64 `mapstructure:"max_spawns_per_second"` // 0 = unlimited
	Burst              int     `mapstructure:"burst"`
}

// ProbeConfig configures remote HTTP probes
type ProbeConfig struct {
	BlockPrivateIP bool `mapstructure:"block_private_ip"` // Host-local probes usually target localhost, so off by default
	MaxRedirects   int  `mapstructure:"max_redirects"`
}

// HistoryConfig configures execution history recording
type HistoryConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	RetentionDays int  `mapstructure:"retention_days"` // 0 = keep forever
	Buffer        int  `mapstructure:"buffer"`         // Pending records before new ones are dropped
}

// DefinitionsConfig points at the monitor definitions file
type DefinitionsConfig struct {
	Path string `mapstructure:"path"`
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
