package reactor

import (
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/teranos/nanoprobe/errors"
	"github.com/teranos/nanoprobe/pulse/rscqueue"
	"github.com/teranos/nanoprobe/sym"
)

// queueSnapshot is computed on the loop so Stats never touches the queue
type queueSnapshot struct {
	Queued      int
	Resources   int
	Running     int
	NextDue     time.Time
	NextDueWhat string
}

// Stats reports reactor and host state
type Stats struct {
	Interval        time.Duration `json:"interval"`
	TicksSinceStart int64         `json:"ticks_since_start"`
	LastTickAt      time.Time     `json:"last_tick_at"`
	Queued          int           `json:"queued"`
	Resources       int           `json:"resources"`
	Running         int           `json:"running"`
	StartedTotal    int64         `json:"started_total"`
	CompletedTotal  int64         `json:"completed_total"`
	NextDue         time.Time     `json:"next_due,omitempty"`
	MemoryUsedGB    float64       `json:"memory_used_gb"`
	MemoryTotalGB   float64       `json:"memory_total_gb"`
	MemoryPercent   float64       `json:"memory_percent"`
}

// Stats returns a point-in-time view. Safe from any goroutine.
func (r *Reactor) Stats() Stats {
	r.mu.Lock()
	s := Stats{
		Interval:        r.interval,
		TicksSinceStart: r.ticksSinceStart,
		LastTickAt:      r.lastTickAt,
		Queued:          r.snapshot.Queued,
		Resources:       r.snapshot.Resources,
		Running:         r.snapshot.Running,
		StartedTotal:    r.startedTotal,
		CompletedTotal:  r.completedTotal,
		NextDue:         r.snapshot.NextDue,
	}
	r.mu.Unlock()

	if total, available, err := getMemoryStats(); err == nil && total > 0 {
		s.MemoryTotalGB = float64(total) / 1024 / 1024 / 1024
		s.MemoryUsedGB = float64(total-available) / 1024 / 1024 / 1024
		s.MemoryPercent = (s.MemoryUsedGB / s.MemoryTotalGB) * 100
	}
	return s
}

// getMemoryStats returns current memory usage in bytes
func getMemoryStats() (total uint64, available uint64, err error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to get memory stats")
	}
	return v.Total, v.Available, nil
}

// refreshSnapshot recomputes queue counts and logs when the amount of work changes
func (r *Reactor) refreshSnapshot(now time.Time) {
	snap := snapshotQueue(r.queue)

	r.mu.Lock()
	r.snapshot = snap
	changed := snap.Queued != r.lastActiveWork
	r.lastActiveWork = snap.Queued
	r.mu.Unlock()

	if changed {
		r.logActivity(now, snap)
	}
}

func snapshotQueue(q *rscqueue.ResourceQueue) queueSnapshot {
	snap := queueSnapshot{Queued: q.Len()}
	for _, name := range q.Resources() {
		snap.Resources++
		for _, cmd := range q.Commands(name) {
			if cmd.IsRunning() {
				snap.Running++
				continue
			}
			due := cmd.DueTime()
			if snap.NextDueWhat == "" || due.Before(snap.NextDue) {
				snap.NextDue = due
				snap.NextDueWhat = rscqueue.Describe(cmd)
			}
		}
	}
	return snap
}

// logActivity writes the one-line pulse status, one glyph per five queued commands
func (r *Reactor) logActivity(now time.Time, snap queueSnapshot) {
	if snap.Queued == 0 {
		r.pulseLog.Infow("Pulse - no queued commands")
		return
	}

	numSymbols := snap.Queued/5 + 1
	if numSymbols > 60 {
		numSymbols = 60
	}
	indicator := strings.TrimSpace(strings.Repeat(sym.Pulse+" ", numSymbols)) + " "

	msg := fmt.Sprintf("%sPulse - %d queued on %d resources, %d running",
		indicator, snap.Queued, snap.Resources, snap.Running)

	if snap.NextDueWhat != "" {
		until := snap.NextDue.Sub(now)
		if snap.NextDue.IsZero() || until < 0 {
			until = 0
		}
		msg += fmt.Sprintf(" │ next '%s' in %s", snap.NextDueWhat, until.Round(time.Second))
	}

	r.pulseLog.Infow(msg)
}
