// Package monitor is the repeat policy for resource commands.
//
// A Monitor owns one command. It keeps the command in its resource queue between runs and
// moves its due time forward after each completion: to the schedule's next time on success,
// or to an exponential backoff on failure. Monitors are driven entirely from the goroutine
// that owns the queue (the reactor loop), so they need no locking.
package monitor

import (
	"time"

	"go.uber.org/zap"

	"github.com/teranos/nanoprobe/errors"
	"github.com/teranos/nanoprobe/logger"
	"github.com/teranos/nanoprobe/pulse/rscqueue"
)

// Command is a resource command whose due time, completion and release handlers can be set.
// Every command built on rscqueue.BaseCommand satisfies it.
type Command interface {
	rscqueue.Command
	SetDueTime(t time.Time)
	SetCompletionHandler(fn func(rscqueue.Completion))
	SetReleaseHandler(fn func())
}

// Status of the last completed run
type Status string

const (
	StatusUnknown Status = ""
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
)

// Result is published after every completed run
type Result struct {
	Monitor    string
	Resource   string
	Command    string
	Status     Status
	Completion rscqueue.Completion
	Failures   int       // Consecutive failures including this one
	NextDue    time.Time // Zero when the monitor is finished
	At         time.Time
}

// Publisher receives results on the queue's goroutine and must not block
type Publisher interface {
	Publish(r Result)
}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(r Result)

// Publish calls f(r)
func (f PublisherFunc) Publish(r Result) { f(r) }

// Options configures a Monitor
type Options struct {
	Schedule     Schedule      // Default: Once
	RetryBackoff time.Duration // First delay after a failure; 0 = follow the schedule
	MaxBackoff   time.Duration // Cap on the failure delay
	Clock        func() time.Time
	Publisher    Publisher
	Logger       *zap.SugaredLogger
}

// Monitor repeats one command on its schedule
type Monitor struct {
	name  string
	cmd   Command
	opts  Options
	log   *zap.SugaredLogger
	queue *rscqueue.ResourceQueue

	status   Status
	failures int
	stopped  bool
}

// New wraps cmd and installs the monitor as its completion and release handler
func New(name string, cmd Command, opts Options) *Monitor {
	if opts.Schedule == nil {
		opts.Schedule = Once()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.MaxBackoff < opts.RetryBackoff {
		opts.MaxBackoff = opts.RetryBackoff
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	m := &Monitor{
		name: name,
		cmd:  cmd,
		opts: opts,
		log: logger.AddProbeSymbol(log.Named("monitor")).With(
			logger.FieldMonitor, name,
			logger.FieldResource, cmd.ResourceName(),
		),
	}
	cmd.SetCompletionHandler(m.handle)
	cmd.SetReleaseHandler(m.released)
	return m
}

// Name returns the monitor name
func (m *Monitor) Name() string { return m.name }

// Command returns the monitored command
func (m *Monitor) Command() Command { return m.cmd }

// Schedule returns the success schedule
func (m *Monitor) Schedule() Schedule { return m.opts.Schedule }

// Status returns the outcome of the last completed run
func (m *Monitor) Status() Status { return m.status }

// Failures returns the number of consecutive failed runs
func (m *Monitor) Failures() int { return m.failures }

// Active reports whether the command is still queued
func (m *Monitor) Active() bool { return m.queue != nil }

// Start queues the command, due immediately
func (m *Monitor) Start(q *rscqueue.ResourceQueue) error {
	if m.queue != nil {
		return errors.Newf("monitor %q already started", m.name)
	}
	if m.cmd.IsRunning() {
		return errors.Newf("monitor %q: command is still running", m.name)
	}
	m.stopped = false
	m.cmd.SetDueTime(time.Time{})
	q.Append(m.cmd)
	m.queue = q

	m.log.Debugw("Monitor started", "schedule", m.opts.Schedule.String())
	return nil
}

// Stop takes the command out of its queue. A running command is removed when it completes.
func (m *Monitor) Stop() {
	if m.queue == nil {
		return
	}
	m.stopped = true
	if !m.cmd.IsRunning() {
		m.detach()
	}
}

func (m *Monitor) detach() {
	q := m.queue
	m.queue = nil
	q.Remove(m.cmd)
}

// released runs whenever the queue drops the command, including when its owner
// clears the queue on shutdown
func (m *Monitor) released() {
	if m.queue == nil {
		return
	}
	m.queue = nil
	m.log.Debugw("Monitor released by its queue")
}

// handle runs on the queue's goroutine once per completion
func (m *Monitor) handle(c rscqueue.Completion) {
	now := m.opts.Clock()
	prev := m.status

	var next time.Time
	if c.Success() {
		m.status = StatusOK
		m.failures = 0
		next = m.opts.Schedule.Next(now)
	} else {
		m.status = StatusFailed
		m.failures++
		next = m.retryAt(now)
	}

	if m.stopped {
		next = time.Time{}
	}
	if m.queue != nil {
		if next.IsZero() {
			m.detach()
		} else {
			m.cmd.SetDueTime(next)
		}
	}

	m.logTransition(prev, c, next)

	if m.opts.Publisher != nil {
		m.opts.Publisher.Publish(Result{
			Monitor:    m.name,
			Resource:   m.cmd.ResourceName(),
			Command:    rscqueue.Describe(m.cmd),
			Status:     m.status,
			Completion: c,
			Failures:   m.failures,
			NextDue:    next,
			At:         now,
		})
	}
}

// retryAt backs off exponentially from RetryBackoff, capped at MaxBackoff,
// and never later than the schedule would have run the check anyway.
// One-shot checks are not retried.
func (m *Monitor) retryAt(now time.Time) time.Time {
	scheduled := m.opts.Schedule.Next(now)
	if m.opts.RetryBackoff <= 0 || scheduled.IsZero() {
		return scheduled
	}

	delay := m.opts.RetryBackoff
	for i := 1; i < m.failures && delay < m.opts.MaxBackoff; i++ {
		delay *= 2
	}
	if delay > m.opts.MaxBackoff {
		delay = m.opts.MaxBackoff
	}

	retry := now.Add(delay)
	if scheduled.Before(retry) {
		return scheduled
	}
	return retry
}

func (m *Monitor) logTransition(prev Status, c rscqueue.Completion, next time.Time) {
	fields := []interface{}{
		logger.FieldHowDied, c.How.String(),
		logger.FieldExitCode, c.ExitCode,
		logger.FieldDurationMS, c.Duration.Milliseconds(),
	}
	if !next.IsZero() {
		fields = append(fields, logger.FieldDueAt, next.Format(time.RFC3339))
	}

	switch {
	case m.status == StatusFailed && prev != StatusFailed:
		fields = append(fields, logger.FieldTimedOut, c.TimedOut, "output", tail(c.Output, 200))
		m.log.Warnw("Check FAILED", fields...)
	case m.status == StatusFailed:
		fields = append(fields, logger.FieldFailures, m.failures)
		m.log.Debugw("Check still failing", fields...)
	case prev == StatusFailed:
		m.log.Infow("Check OK again", fields...)
	case prev == StatusUnknown:
		m.log.Infow("Check OK", fields...)
	default:
		m.log.Debugw("Check OK", fields...)
	}
}

// tail keeps the last n bytes of s for log lines
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
