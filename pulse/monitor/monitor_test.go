package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/teranos/nanoprobe/pulse/rscqueue"
)

type fakeCommand struct {
	rscqueue.BaseCommand
	starts int
}

func newFakeCommand(resource string) *fakeCommand {
	return &fakeCommand{BaseCommand: rscqueue.NewBaseCommand(resource)}
}

func (f *fakeCommand) Execute(ctx context.Context, n rscqueue.Notifier) {
	f.Begin()
	f.starts++
}

var (
	okRun     = rscqueue.Completion{How: rscqueue.Exited}
	failedRun = rscqueue.Completion{How: rscqueue.Exited, ExitCode: 2}
)

// harness drives a monitor by hand: tick, then complete, the way the reactor loop does
type harness struct {
	t       *testing.T
	now     time.Time
	queue   *rscqueue.ResourceQueue
	cmd     *fakeCommand
	mon     *Monitor
	results []Result
}

func newHarness(t *testing.T, opts Options) *harness {
	h := &harness{
		t:     t,
		now:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		queue: rscqueue.New(rscqueue.NotifierFunc(func(rscqueue.Command, rscqueue.Completion) {})),
		cmd:   newFakeCommand("nic0"),
	}
	opts.Clock = func() time.Time { return h.now }
	opts.Publisher = PublisherFunc(func(r Result) { h.results = append(h.results, r) })
	h.mon = New("link", h.cmd, opts)
	require.NoError(t, h.mon.Start(h.queue))
	return h
}

// run ticks at the command's due time and completes the started command with c
func (h *harness) run(c rscqueue.Completion) Result {
	h.t.Helper()
	if due := h.cmd.DueTime(); due.After(h.now) {
		h.now = due
	}
	require.Equal(h.t, 1, h.queue.Tick(context.Background(), h.now))
	h.now = h.now.Add(time.Second)
	h.cmd.OnComplete(c)
	require.NotEmpty(h.t, h.results)
	return h.results[len(h.results)-1]
}

func TestMonitor_StartQueuesDueNow(t *testing.T) {
	h := newHarness(t, Options{Schedule: Every(time.Minute)})

	assert.True(t, h.mon.Active())
	assert.True(t, h.queue.Contains(h.cmd))
	assert.True(t, h.cmd.DueTime().IsZero())
	assert.Equal(t, StatusUnknown, h.mon.Status())

	assert.Error(t, h.mon.Start(h.queue), "second start")
}

func TestMonitor_RepeatsOnSuccess(t *testing.T) {
	h := newHarness(t, Options{Schedule: Every(time.Minute)})

	r := h.run(okRun)
	assert.Equal(t, StatusOK, r.Status)
	assert.Equal(t, "link", r.Monitor)
	assert.Equal(t, "nic0", r.Resource)
	assert.Equal(t, 0, r.Failures)
	assert.Equal(t, h.now.Add(time.Minute), r.NextDue)
	assert.Equal(t, r.NextDue, h.cmd.DueTime())
	assert.True(t, h.queue.Contains(h.cmd), "stays in its queue between runs")

	// Not due yet
	assert.Equal(t, 0, h.queue.Tick(context.Background(), h.now))

	h.run(okRun)
	assert.Equal(t, 2, h.cmd.starts)
	assert.Equal(t, 1, h.queue.Len())
}

func TestMonitor_FailureBackoff(t *testing.T) {
	h := newHarness(t, Options{
		Schedule:     Every(time.Hour),
		RetryBackoff: 5 * time.Second,
		MaxBackoff:   20 * time.Second,
	})

	for i, want := range []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, 20 * time.Second} {
		r := h.run(failedRun)
		assert.Equal(t, StatusFailed, r.Status)
		assert.Equal(t, i+1, r.Failures)
		assert.Equal(t, h.now.Add(want), h.cmd.DueTime(), "failure %d", i+1)
	}

	r := h.run(okRun)
	assert.Equal(t, 0, r.Failures)
	assert.Equal(t, 0, h.mon.Failures())
	assert.Equal(t, h.now.Add(time.Hour), h.cmd.DueTime())
}

func TestMonitor_BackoffNeverPastSchedule(t *testing.T) {
	h := newHarness(t, Options{
		Schedule:     Every(7 * time.Second),
		RetryBackoff: 5 * time.Second,
		MaxBackoff:   time.Minute,
	})

	h.run(failedRun)
	assert.Equal(t, h.now.Add(5*time.Second), h.cmd.DueTime())

	h.run(failedRun)
	assert.Equal(t, h.now.Add(7*time.Second), h.cmd.DueTime())
}

func TestMonitor_NoBackoffFollowsSchedule(t *testing.T) {
	h := newHarness(t, Options{Schedule: Every(time.Minute)})

	h.run(rscqueue.Completion{How: rscqueue.Signaled, ExitCode: 9})
	assert.Equal(t, h.now.Add(time.Minute), h.cmd.DueTime())
}

func TestMonitor_TimeoutIsFailure(t *testing.T) {
	h := newHarness(t, Options{Schedule: Every(time.Minute)})

	r := h.run(rscqueue.Completion{How: rscqueue.Exited, TimedOut: true})
	assert.Equal(t, StatusFailed, r.Status)
}

func TestMonitor_OnceIsRemoved(t *testing.T) {
	h := newHarness(t, Options{})

	r := h.run(failedRun)
	assert.True(t, r.NextDue.IsZero())
	assert.False(t, h.mon.Active())
	assert.Equal(t, 0, h.queue.Len())
	assert.Empty(t, h.queue.Resources())
}

func TestMonitor_Stop(t *testing.T) {
	t.Run("idle", func(t *testing.T) {
		h := newHarness(t, Options{Schedule: Every(time.Minute)})
		h.mon.Stop()
		assert.False(t, h.mon.Active())
		assert.False(t, h.queue.Contains(h.cmd))

		h.mon.Stop() // no-op
		require.NoError(t, h.mon.Start(h.queue), "can be started again")
		assert.True(t, h.queue.Contains(h.cmd))
	})

	t.Run("running", func(t *testing.T) {
		h := newHarness(t, Options{Schedule: Every(time.Minute)})
		require.Equal(t, 1, h.queue.Tick(context.Background(), h.now))

		h.mon.Stop()
		assert.True(t, h.queue.Contains(h.cmd), "a running command stays until it completes")

		h.cmd.OnComplete(okRun)
		assert.False(t, h.queue.Contains(h.cmd))
		assert.True(t, h.results[0].NextDue.IsZero())
	})
}

func TestMonitor_QueueCleared(t *testing.T) {
	t.Run("idle", func(t *testing.T) {
		h := newHarness(t, Options{Schedule: Every(time.Minute)})

		h.queue.Clear()
		assert.False(t, h.mon.Active())
		assert.NotPanics(t, h.mon.Stop)

		require.NoError(t, h.mon.Start(h.queue))
		assert.True(t, h.mon.Active())
		assert.True(t, h.queue.Contains(h.cmd))
	})

	t.Run("running", func(t *testing.T) {
		h := newHarness(t, Options{Schedule: Every(time.Minute)})
		require.Equal(t, 1, h.queue.Tick(context.Background(), h.now))

		h.queue.Clear()
		assert.False(t, h.mon.Active())
		assert.NotPanics(t, h.mon.Stop)

		// A completion that still arrives leaves the emptied queue alone
		assert.NotPanics(t, func() { h.cmd.OnComplete(okRun) })
		assert.Equal(t, 0, h.queue.Len())
		assert.False(t, h.mon.Active())
	})
}

func TestMonitor_SharedResourceTakesTurns(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	q := rscqueue.New(rscqueue.NotifierFunc(func(rscqueue.Command, rscqueue.Completion) {}))

	a, b := newFakeCommand("nic0"), newFakeCommand("nic0")
	clock := func() time.Time { return now }
	require.NoError(t, New("a", a, Options{Schedule: Every(time.Minute), Clock: clock}).Start(q))
	require.NoError(t, New("b", b, Options{Schedule: Every(time.Minute), Clock: clock}).Start(q))

	q.Tick(context.Background(), now)
	assert.True(t, a.IsRunning())
	assert.False(t, b.IsRunning())

	a.OnComplete(okRun)
	q.Tick(context.Background(), now)
	assert.True(t, b.IsRunning(), "a is not due again, so b goes next")
}

func TestMonitor_LogsTransitions(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := newHarness(t, Options{Schedule: Every(time.Minute), Logger: zap.New(core).Sugar()})

	h.run(okRun)
	h.run(failedRun)
	h.run(failedRun)
	h.run(okRun)

	assert.Equal(t, 1, logs.FilterMessage("Check OK").FilterLevelExact(zapcore.InfoLevel).Len())
	assert.Equal(t, 1, logs.FilterMessage("Check FAILED").FilterLevelExact(zapcore.WarnLevel).Len())
	assert.Equal(t, 1, logs.FilterMessage("Check still failing").Len())
	assert.Equal(t, 1, logs.FilterMessage("Check OK again").Len())

	entry := logs.FilterMessage("Check FAILED").All()[0]
	assert.Equal(t, "link", entry.ContextMap()["monitor"])
	assert.Equal(t, "nic0", entry.ContextMap()["resource"])
	assert.Equal(t, int64(2), entry.ContextMap()["exit_code"])
}

func TestTail(t *testing.T) {
	assert.Equal(t, "abc", tail("abc", 5))
	assert.Equal(t, "...de", tail("abcde", 2))
}

func TestMonitor_OnceIsNotRetried(t *testing.T) {
	h := newHarness(t, Options{Schedule: Once(), RetryBackoff: time.Second, MaxBackoff: time.Minute})

	r := h.run(failedRun)
	assert.Equal(t, StatusFailed, r.Status)
	assert.True(t, r.NextDue.IsZero())
	assert.False(t, h.mon.Active())
}
