// Package history keeps a SQLite record of every command run started by the resource queue.
package history

import "time"

// Execution is one run of a resource command
type Execution struct {
	ID       string `json:"id"`
	Resource string `json:"resource"`
	Command  string `json:"command"`
	Status   string `json:"status"` // "running", "completed", "failed"

	StartedAt   string  `json:"started_at"`             // UTC, timeLayout
	CompletedAt *string `json:"completed_at,omitempty"` // null while running
	DurationMs  *int    `json:"duration_ms,omitempty"`

	HowDied    *string `json:"how_died,omitempty"`
	ExitCode   *int    `json:"exit_code,omitempty"`
	CoreDumped bool    `json:"core_dumped"`
	TimedOut   bool    `json:"timed_out"`
	Output     *string `json:"output,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Execution status constants
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// timeLayout is fixed-width so stored timestamps sort as text
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTime renders t the way executions store it
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseTime reads a stored timestamp
func ParseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
