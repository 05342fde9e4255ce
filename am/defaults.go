package am

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Default values shared between SetDefaults and the zero-value fallbacks below
const (
	DefaultDatabasePath        = "nanoprobe.db"
	DefaultTickIntervalMS      = 1000
	DefaultRepeatSeconds       = 60
	DefaultTimeoutSeconds      = 30
	DefaultMaxOutputBytes      = 64 * 1024
	DefaultRetryBackoffSeconds = 5
	DefaultMaxBackoffSeconds   = 300
	DefaultDefinitionsPath     = "monitors.toml"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDatabasePath)

	v.SetDefault("queue.tick_interval_ms", DefaultTickIntervalMS)

	v.SetDefault("monitoring.repeat_seconds", DefaultRepeatSeconds)
	v.SetDefault("monitoring.timeout_seconds", DefaultTimeoutSeconds)
	v.SetDefault("monitoring.max_output_bytes", DefaultMaxOutputBytes)
	v.SetDefault("monitoring.retry_backoff_seconds", DefaultRetryBackoffSeconds)
	v.SetDefault("monitoring.max_backoff_seconds", DefaultMaxBackoffSeconds)

	v.SetDefault("executor.max_spawns_per_second", 20.0)
	v.SetDefault("executor.burst", 5)

	v.SetDefault("probe.block_private_ip", false)
	v.SetDefault("probe.max_redirects", 5)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.retention_days", 30)
	v.SetDefault("history.buffer", 256)

	v.SetDefault("definitions.path", DefaultDefinitionsPath)
}

// BindSensitiveEnvVars explicitly binds settings that operators commonly override per host
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("database.path", "NANOPROBE_DATABASE_PATH")
	v.BindEnv("definitions.path", "NANOPROBE_DEFINITIONS_PATH")
}

// GetDatabasePath returns the configured database path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return DefaultDatabasePath
	}
	return c.Database.Path
}

// TickInterval returns the reactor tick interval
func (c *Config) TickInterval() time.Duration {
	if c.Queue.TickIntervalMS <= 0 {
		return DefaultTickIntervalMS * time.Millisecond
	}
	return time.Duration(c.Queue.TickIntervalMS) * time.Millisecond
}

// RepeatFor returns the repeat interval for an agent kind, honoring [monitoring.agents.<kind>]
func (c *Config) RepeatFor(kind string) time.Duration {
	secs := c.Monitoring.RepeatSeconds
	if a, ok := c.Monitoring.Agents[kind]; ok && a.RepeatSeconds != nil {
		secs = *a.RepeatSeconds
	}
	if secs <= 0 {
		secs = DefaultRepeatSeconds
	}
	return time.Duration(secs) * time.Second
}

// TimeoutFor returns the per-run timeout for an agent kind. Zero disables the timeout.
func (c *Config) TimeoutFor(kind string) time.Duration {
	secs := c.Monitoring.TimeoutSeconds
	if a, ok := c.Monitoring.Agents[kind]; ok && a.TimeoutSeconds != nil {
		secs = *a.TimeoutSeconds
	}
	return time.Duration(secs) * time.Second
}

// MaxOutput returns the captured output cap in bytes
func (c *Config) MaxOutput() int {
	if c.Monitoring.MaxOutputBytes <= 0 {
		return DefaultMaxOutputBytes
	}
	return c.Monitoring.MaxOutputBytes
}

// Backoff returns the initial retry delay and its upper bound
func (c *Config) Backoff() (initial, max time.Duration) {
	initial = time.Duration(c.Monitoring.RetryBackoffSeconds) * time.Second
	max = time.Duration(c.Monitoring.MaxBackoffSeconds) * time.Second
	if initial <= 0 {
		initial = DefaultRetryBackoffSeconds * time.Second
	}
	if max < initial {
		max = initial
	}
	return initial, max
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Database: %s, Queue: {TickIntervalMS: %d}, Definitions: %s}",
		c.Database.Path, c.Queue.TickIntervalMS, c.Definitions.Path)
}
