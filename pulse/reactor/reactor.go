// Package reactor runs a ResourceQueue on a single goroutine.
//
// The loop ticks the queue on a fixed interval, applies completions reported by
// executor goroutines, and runs functions posted by other goroutines. Everything that
// touches the queue happens on the loop, so the queue itself needs no locking and a
// completion is never handled in the middle of a tick.
package reactor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/nanoprobe/errors"
	"github.com/teranos/nanoprobe/logger"
	"github.com/teranos/nanoprobe/pulse/rscqueue"
	"github.com/teranos/nanoprobe/sym"
)

// Observer is told about every start and completion, on the loop goroutine.
// Implementations must not block.
type Observer interface {
	Started(cmd rscqueue.Command, at time.Time)
	Completed(cmd rscqueue.Command, c rscqueue.Completion, at time.Time)
}

// Config contains configuration for the reactor
type Config struct {
	Interval time.Duration    // How often the queue is ticked (default: 1 second)
	Clock    func() time.Time // Source of "now" for ticks (default: time.Now)
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Interval: 1 * time.Second,
		Clock:    time.Now,
	}
}

// Reactor owns a ResourceQueue and the goroutine that drives it
type Reactor struct {
	queue    *rscqueue.ResourceQueue
	clock    func() time.Time
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	logger   *zap.SugaredLogger
	pulseLog *zap.SugaredLogger // Logger with Pulse symbol pre-attached

	// inbox holds work for the loop; appended from any goroutine, drained on the loop
	inboxMu sync.Mutex
	inbox   []func()
	wake    chan struct{}
	tickReq chan struct{}

	observersMu sync.RWMutex
	observers   []Observer

	ticker *time.Ticker // loop goroutine only

	mu              sync.Mutex
	interval        time.Duration
	lastTickAt      time.Time
	ticksSinceStart int64
	startedTotal    int64
	completedTotal  int64
	snapshot        queueSnapshot
	lastActiveWork  int
	running         bool
}

// New creates a reactor. Call Start to begin ticking.
func New(cfg Config, log *zap.SugaredLogger) *Reactor {
	return NewWithContext(context.Background(), cfg, log)
}

// NewWithContext creates a reactor whose loop also stops when ctx is cancelled.
// Commands receive a context derived from ctx in Execute.
func NewWithContext(ctx context.Context, cfg Config, log *zap.SugaredLogger) *Reactor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r := &Reactor{
		clock:          cfg.Clock,
		interval:       cfg.Interval,
		ctx:            loopCtx,
		cancel:         cancel,
		logger:         log,
		pulseLog:       logger.AddPulseSymbol(log),
		wake:           make(chan struct{}, 1),
		tickReq:        make(chan struct{}, 1),
		lastActiveWork: -1,
	}
	r.queue = rscqueue.New(r)
	r.queue.SetStartHook(r.onStart)
	return r
}

// AddObserver registers o. Safe to call at any time.
func (r *Reactor) AddObserver(o Observer) {
	r.observersMu.Lock()
	defer r.observersMu.Unlock()
	r.observers = append(r.observers, o)
}

// Start begins the loop
func (r *Reactor) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	interval := r.interval
	r.mu.Unlock()

	r.ticker = time.NewTicker(interval)
	r.wg.Add(1)
	go r.run()
	logger.WithSymbol(r.logger, sym.PulseOpen).Infow("Pulse reactor started", logger.FieldInterval, interval)
}

// Stop cancels the loop, waits for it to exit and releases every queued command.
// Completions that arrive afterwards are discarded.
func (r *Reactor) Stop() {
	r.cancel()
	r.wg.Wait()
	logger.WithSymbol(r.logger, sym.PulseClose).Infow("Pulse reactor stopped")
}

// Notify queues a completion for the loop. Safe from any goroutine; never blocks.
func (r *Reactor) Notify(cmd rscqueue.Command, c rscqueue.Completion) {
	if r.ctx.Err() != nil {
		r.logger.Debugw("Dropping completion after stop",
			logger.FieldResource, cmd.ResourceName(),
			logger.FieldCommand, rscqueue.Describe(cmd))
		return
	}
	r.enqueue(func() { r.complete(cmd, c) })
}

// Post runs fn on the loop without waiting for it.
// Returns ErrNotStarted before Start and ErrStopped after Stop.
func (r *Reactor) Post(fn func(q *rscqueue.ResourceQueue)) error {
	if r.ctx.Err() != nil {
		return errors.ErrStopped
	}
	r.mu.Lock()
	running := r.running
	r.mu.Unlock()
	if !running {
		return errors.ErrNotStarted
	}
	r.enqueue(func() { fn(r.queue) })
	return nil
}

// Do runs fn on the loop and waits for it to return. It fails like Post when the loop is not running.
// Must not be called from the loop itself (completion handlers, observers); use the
// queue they already hold instead.
func (r *Reactor) Do(fn func(q *rscqueue.ResourceQueue)) error {
	done := make(chan struct{})
	if err := r.Post(func(q *rscqueue.ResourceQueue) {
		defer close(done)
		fn(q)
	}); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-r.ctx.Done():
		select {
		case <-done:
			return nil
		default:
			return errors.ErrStopped
		}
	}
}

// TickNow asks the loop for an extra tick as soon as possible
func (r *Reactor) TickNow() {
	select {
	case r.tickReq <- struct{}{}:
	default:
	}
}

// SetInterval changes the tick period
func (r *Reactor) SetInterval(d time.Duration) error {
	if d <= 0 {
		return errors.Newf("tick interval must be positive, got %s", d)
	}
	if r.ctx.Err() != nil {
		return errors.ErrStopped
	}
	r.enqueue(func() {
		r.mu.Lock()
		changed := r.interval != d
		r.interval = d
		r.mu.Unlock()
		if changed {
			r.ticker.Reset(d)
			r.pulseLog.Infow("Pulse tick interval changed", logger.FieldInterval, d)
		}
	})
	return nil
}

func (r *Reactor) enqueue(fn func()) {
	r.inboxMu.Lock()
	r.inbox = append(r.inbox, fn)
	r.inboxMu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// run is the main loop
func (r *Reactor) run() {
	defer r.wg.Done()
	defer r.ticker.Stop()
	defer r.shutdown()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.ticker.C:
			r.tick()
		case <-r.tickReq:
			r.tick()
		case <-r.wake:
			r.drainInbox()
		}
	}
}

// tick runs one queue tick with the injected clock
func (r *Reactor) tick() {
	now := r.clock()

	r.mu.Lock()
	r.lastTickAt = now
	r.ticksSinceStart++
	r.mu.Unlock()

	started := r.queue.Tick(r.ctx, now)
	if started > 0 {
		r.logger.Debugw("Tick started commands", logger.FieldCount, started, logger.FieldTick, r.ticksSinceStart)
	}

	r.refreshSnapshot(now)
}

// drainInbox runs everything queued so far; work added meanwhile waits for the next wake
func (r *Reactor) drainInbox() {
	r.inboxMu.Lock()
	pending := r.inbox
	r.inbox = nil
	r.inboxMu.Unlock()

	for _, fn := range pending {
		fn()
	}
	if len(pending) > 0 {
		r.refreshSnapshot(r.clock())
	}
}

func (r *Reactor) onStart(cmd rscqueue.Command, at time.Time) {
	r.mu.Lock()
	r.startedTotal++
	r.mu.Unlock()

	r.logger.Debugw("Starting command",
		logger.FieldResource, cmd.ResourceName(),
		logger.FieldCommand, rscqueue.Describe(cmd))

	r.observersMu.RLock()
	defer r.observersMu.RUnlock()
	for _, o := range r.observers {
		o.Started(cmd, at)
	}
}

func (r *Reactor) complete(cmd rscqueue.Command, c rscqueue.Completion) {
	r.mu.Lock()
	r.completedTotal++
	r.mu.Unlock()

	r.logger.Debugw("Command completed",
		logger.FieldResource, cmd.ResourceName(),
		logger.FieldCommand, rscqueue.Describe(cmd),
		logger.FieldHowDied, c.How.String(),
		logger.FieldExitCode, c.ExitCode,
		logger.FieldDurationMS, c.Duration.Milliseconds())

	cmd.OnComplete(c)

	at := r.clock()
	r.observersMu.RLock()
	defer r.observersMu.RUnlock()
	for _, o := range r.observers {
		o.Completed(cmd, c, at)
	}
}

// shutdown runs on the loop as it exits: late completions are applied, then the queue is emptied
func (r *Reactor) shutdown() {
	r.drainInbox()
	r.queue.Clear()
	r.refreshSnapshot(r.clock())

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}
