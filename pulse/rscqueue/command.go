package rscqueue

import (
	"context"
	"fmt"
	"time"
)

// HowDied classifies how the underlying action ended
type HowDied int

const (
	// Exited means the action ran to completion and returned ExitCode
	Exited HowDied = iota
	// Signaled means the action was killed by a signal; ExitCode carries the signal number
	Signaled
	// CoreDumped means the action was killed by a signal and left a core
	CoreDumped
	// Other covers start failures, transport errors and anything that has no exit status
	Other
)

func (h HowDied) String() string {
	switch h {
	case Exited:
		return "exited"
	case Signaled:
		return "signaled"
	case CoreDumped:
		return "core_dumped"
	case Other:
		return "other"
	default:
		return fmt.Sprintf("how_died(%d)", int(h))
	}
}

// Completion is delivered exactly once per Execute
type Completion struct {
	How        HowDied
	ExitCode   int
	CoreDumped bool
	Output     string

	// TimedOut is set when the action was killed by its own timeout
	TimedOut bool
	Duration time.Duration
}

// Success reports a normal exit with code zero
func (c Completion) Success() bool {
	return c.How == Exited && c.ExitCode == 0 && !c.TimedOut
}

// Notifier receives completions. Implementations must be safe to call from any goroutine
// and must not block; the reactor's inbox is the production implementation.
type Notifier interface {
	Notify(cmd Command, c Completion)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(cmd Command, c Completion)

// Notify calls f(cmd, c)
func (f NotifierFunc) Notify(cmd Command, c Completion) { f(cmd, c) }

// Command is an action on a named resource that the queue can start.
//
// Commands are compared by identity, so implementations should be pointer types.
// All methods except the work launched by Execute run on the goroutine that owns the queue.
type Command interface {
	// ResourceName is the queue key and the mutual-exclusion domain
	ResourceName() string

	// IsRunning is true from Execute until OnComplete
	IsRunning() bool

	// DueTime is the earliest start time. Zero means immediately eligible.
	DueTime() time.Time

	// Execute starts the action and returns without waiting for it. It marks the command
	// running before returning and reports exactly one Completion through n, including
	// when the action could not be started at all.
	Execute(ctx context.Context, n Notifier)

	// OnComplete clears the running flag and then runs the owner's completion handler
	OnComplete(c Completion)
}

// Releaser is implemented by commands that hold resources for as long as they are queued.
// Release is called once each time the queue drops an entry, including on Clear.
// BaseCommand implements it by running the handler set with SetReleaseHandler.
type Releaser interface {
	Release()
}

// BaseCommand holds the bookkeeping every command needs. Embed it and implement Execute.
//
//	type pingCommand struct {
//	    rscqueue.BaseCommand
//	}
//
//	func (p *pingCommand) Execute(ctx context.Context, n rscqueue.Notifier) {
//	    p.Begin()
//	    go func() { n.Notify(p, run(ctx)) }()
//	}
type BaseCommand struct {
	resource   string
	running    bool
	due        time.Time
	onComplete func(Completion)
	onRelease  func()
}

// NewBaseCommand returns bookkeeping for a command on resource
func NewBaseCommand(resource string) BaseCommand {
	return BaseCommand{resource: resource}
}

// ResourceName returns the resource this command acts on
func (b *BaseCommand) ResourceName() string { return b.resource }

// IsRunning reports whether Execute has been called without a matching OnComplete
func (b *BaseCommand) IsRunning() bool { return b.running }

// DueTime returns the earliest start time
func (b *BaseCommand) DueTime() time.Time { return b.due }

// SetDueTime defers the next start. The zero time makes the command immediately eligible.
func (b *BaseCommand) SetDueTime(t time.Time) { b.due = t }

// Begin marks the command running. Call it first thing in Execute.
func (b *BaseCommand) Begin() { b.running = true }

// SetCompletionHandler installs the owner's handler; nil restores the no-op default
func (b *BaseCommand) SetCompletionHandler(fn func(Completion)) { b.onComplete = fn }

// SetReleaseHandler installs fn to run whenever the queue drops this command; nil removes it
func (b *BaseCommand) SetReleaseHandler(fn func()) { b.onRelease = fn }

// Release runs the release handler, if any
func (b *BaseCommand) Release() {
	if b.onRelease != nil {
		b.onRelease()
	}
}

// OnComplete clears the running flag then runs the completion handler, if any
func (b *BaseCommand) OnComplete(c Completion) {
	b.running = false
	if b.onComplete != nil {
		b.onComplete(c)
	}
}

// Describe returns a short label for logs: the command's String() when it has one,
// otherwise its resource and type.
func Describe(cmd Command) string {
	if s, ok := cmd.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%s(%T)", cmd.ResourceName(), cmd)
}
