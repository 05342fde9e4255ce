package history

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/nanoprobe/db"
	"github.com/teranos/nanoprobe/errors"
	"github.com/teranos/nanoprobe/logger"
	"github.com/teranos/nanoprobe/pulse/rscqueue"
)

// DefaultBuffer is the number of pending writes a Recorder holds before dropping
const DefaultBuffer = 256

type eventKind int

const (
	eventStarted eventKind = iota
	eventCompleted
)

type event struct {
	kind eventKind
	exec Execution
}

// Recorder writes reactor starts and completions to a Store.
//
// Started and Completed are called on the reactor loop and never block it: records go
// through a bounded channel to a single writer goroutine, and are dropped with a warning
// when the writer falls behind.
type Recorder struct {
	store  *Store
	events chan event
	log    *zap.SugaredLogger
	wg     sync.WaitGroup

	// inflight maps a running command to its execution id; loop goroutine only
	inflight map[rscqueue.Command]*Execution

	mu      sync.Mutex
	closed  bool
	dropped atomic.Int64
	written atomic.Int64
}

// NewRecorder creates a recorder. Call Start before registering it with the reactor.
func NewRecorder(store *Store, buffer int, log *zap.SugaredLogger) *Recorder {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Recorder{
		store:    store,
		events:   make(chan event, buffer),
		log:      logger.AddDBSymbol(log.Named("history")),
		inflight: make(map[rscqueue.Command]*Execution),
	}
}

// Start launches the writer goroutine
func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.writeLoop()
}

// Stop flushes pending writes and waits for the writer to exit.
// Events that arrive after Stop are dropped.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.events)
	r.mu.Unlock()

	r.wg.Wait()

	if n := r.dropped.Load(); n > 0 {
		r.log.Warnw("History records were dropped", logger.FieldCount, n)
	}
}

// Dropped returns how many records were discarded because the writer fell behind
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Written returns how many records reached the store
func (r *Recorder) Written() int64 { return r.written.Load() }

// Started records a new running execution
func (r *Recorder) Started(cmd rscqueue.Command, at time.Time) {
	ts := FormatTime(at)
	exec := &Execution{
		ID:        uuid.NewString(),
		Resource:  cmd.ResourceName(),
		Command:   rscqueue.Describe(cmd),
		Status:    StatusRunning,
		StartedAt: ts,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	r.inflight[cmd] = exec
	r.send(event{kind: eventStarted, exec: *exec})
}

// Completed records the outcome of the run started for cmd
func (r *Recorder) Completed(cmd rscqueue.Command, c rscqueue.Completion, at time.Time) {
	exec, ok := r.inflight[cmd]
	if ok {
		delete(r.inflight, cmd)
	} else {
		// Started before this recorder was attached
		started := FormatTime(at.Add(-c.Duration))
		exec = &Execution{
			ID:        uuid.NewString(),
			Resource:  cmd.ResourceName(),
			Command:   rscqueue.Describe(cmd),
			StartedAt: started,
			CreatedAt: started,
		}
	}

	done := *exec
	ts := FormatTime(at)
	ms := int(c.Duration.Milliseconds())
	how := c.How.String()
	rc := c.ExitCode
	output := c.Output

	done.Status = StatusCompleted
	if !c.Success() {
		done.Status = StatusFailed
	}
	done.CompletedAt = &ts
	done.DurationMs = &ms
	done.HowDied = &how
	done.ExitCode = &rc
	done.CoreDumped = c.CoreDumped
	done.TimedOut = c.TimedOut
	done.Output = &output
	done.UpdatedAt = ts

	r.send(event{kind: eventCompleted, exec: done})
}

func (r *Recorder) send(ev event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}

	select {
	case r.events <- ev:
	default:
		n := r.dropped.Add(1)
		r.log.Warnw("History writer is behind, dropping record",
			logger.FieldResource, ev.exec.Resource,
			logger.FieldExecutionID, ev.exec.ID,
			"dropped_total", n)
	}
}

func (r *Recorder) writeLoop() {
	defer r.wg.Done()
	for ev := range r.events {
		if err := r.write(ev); err != nil {
			if db.IsDatabaseClosed(err) {
				r.log.Debugw("Database closed, discarding history record", logger.FieldExecutionID, ev.exec.ID)
				continue
			}
			r.log.Warnw("Failed to write history record",
				logger.FieldExecutionID, ev.exec.ID,
				logger.FieldResource, ev.exec.Resource,
				logger.FieldError, err)
			continue
		}
		r.written.Add(1)
	}
}

func (r *Recorder) write(ev event) error {
	switch ev.kind {
	case eventStarted:
		return r.store.CreateExecution(&ev.exec)
	case eventCompleted:
		err := r.store.CompleteExecution(&ev.exec)
		if errors.IsNotFoundError(err) {
			// The start record was dropped or never sent
			return r.store.CreateExecution(&ev.exec)
		}
		return err
	default:
		return errors.AssertionFailedf("unknown history event %d", ev.kind)
	}
}
