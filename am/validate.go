package am

import "github.com/teranos/nanoprobe/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Tick interval: 0 = default, negative = invalid
	if c.Queue.TickIntervalMS < 0 {
		return errors.Newf("queue.tick_interval_ms must be >= 0, got %d", c.Queue.TickIntervalMS)
	}

	if c.Monitoring.RepeatSeconds < 0 {
		return errors.Newf("monitoring.repeat_seconds must be >= 0, got %d", c.Monitoring.RepeatSeconds)
	}
	// Timeout: 0 = no timeout
	if c.Monitoring.TimeoutSeconds < 0 {
		return errors.Newf("monitoring.timeout_seconds must be >= 0, got %d", c.Monitoring.TimeoutSeconds)
	}
	if c.Monitoring.MaxOutputBytes < 0 {
		return errors.Newf("monitoring.max_output_bytes must be >= 0, got %d", c.Monitoring.MaxOutputBytes)
	}
	if c.Monitoring.RetryBackoffSeconds < 0 {
		return errors.Newf("monitoring.retry_backoff_seconds must be >= 0, got %d", c.Monitoring.RetryBackoffSeconds)
	}
	if c.Monitoring.MaxBackoffSeconds < 0 {
		return errors.Newf("monitoring.max_backoff_seconds must be >= 0, got %d", c.Monitoring.MaxBackoffSeconds)
	}

	// Agent overrides: nil = inherit, explicit values follow the same rules as the defaults
	for kind, a := range c.Monitoring.Agents {
		if a.RepeatSeconds != nil && *a.RepeatSeconds <= 0 {
			return errors.Newf("monitoring.agents.%s.repeat_seconds must be > 0, got %d (omit to inherit)", kind, *a.RepeatSeconds)
		}
		if a.TimeoutSeconds != nil && *a.TimeoutSeconds < 0 {
			return errors.Newf("monitoring.agents.%s.timeout_seconds must be >= 0, got %d", kind, *a.TimeoutSeconds)
		}
	}

	// Spawn rate: 0 = unlimited
	if c.Executor.MaxSpawnsPerSecond < 0 {
		return errors.Newf("executor.max_spawns_per_second must be >= 0, got %f", c.Executor.MaxSpawnsPerSecond)
	}
	if c.Executor.MaxSpawnsPerSecond > 0 && c.Executor.Burst < 1 {
		return errors.Newf("executor.burst must be >= 1 when spawns are rate limited, got %d", c.Executor.Burst)
	}

	if c.Probe.MaxRedirects < 0 {
		return errors.Newf("probe.max_redirects must be >= 0, got %d", c.Probe.MaxRedirects)
	}

	if c.History.RetentionDays < 0 {
		return errors.Newf("history.retention_days must be >= 0, got %d", c.History.RetentionDays)
	}
	if c.History.Enabled && c.History.Buffer <= 0 {
		return errors.Newf("history.buffer must be > 0 when history is enabled, got %d", c.History.Buffer)
	}

	return nil
}
