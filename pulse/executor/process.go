// Package executor provides the concrete commands the resource queue runs:
// local processes and HTTP probes.
package executor

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/teranos/nanoprobe/errors"
	"github.com/teranos/nanoprobe/pulse/rscqueue"
)

// ProcessOptions configures how a process command runs
type ProcessOptions struct {
	Timeout   time.Duration // 0 = no timeout
	MaxOutput int           // Bytes of combined stdout/stderr kept (default: 64 KiB)
	Env       []string      // Extra KEY=VALUE entries on top of the agent's environment
	Dir       string
	Spawner   *Spawner // Shared start throttle, may be nil
}

// waitDelay bounds how long Wait keeps reading output after the process exits,
// for children that inherited the pipes.
const waitDelay = 2 * time.Second

// ProcessCommand runs a command line as a child process
type ProcessCommand struct {
	rscqueue.BaseCommand
	commandLine string
	argv        []string
	opts        ProcessOptions
}

// NewProcessCommand parses commandLine with shell quoting rules (no shell is involved)
func NewProcessCommand(resource, commandLine string, opts ProcessOptions) (*ProcessCommand, error) {
	argv, err := shellquote.Split(commandLine)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse command line %q", commandLine)
	}
	if len(argv) == 0 {
		return nil, errors.New("empty command line")
	}

	return &ProcessCommand{
		BaseCommand: rscqueue.NewBaseCommand(resource),
		commandLine: commandLine,
		argv:        argv,
		opts:        opts,
	}, nil
}

// String returns the command line
func (p *ProcessCommand) String() string {
	return p.commandLine
}

// Argv returns the parsed argument vector
func (p *ProcessCommand) Argv() []string {
	return append([]string(nil), p.argv...)
}

// Execute starts the process on its own goroutine
func (p *ProcessCommand) Execute(ctx context.Context, n rscqueue.Notifier) {
	p.Begin()
	argv, opts := p.argv, p.opts
	go func() {
		n.Notify(p, runProcess(ctx, argv, opts))
	}()
}

func runProcess(ctx context.Context, argv []string, opts ProcessOptions) rscqueue.Completion {
	start := time.Now()

	if err := opts.Spawner.Wait(ctx); err != nil {
		return rscqueue.Completion{
			How:      rscqueue.Other,
			ExitCode: -1,
			Output:   err.Error(),
			Duration: time.Since(start),
		}
	}

	runCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	cmd.WaitDelay = waitDelay

	out := newCappedBuffer(opts.MaxOutput)
	cmd.Stdout = out
	cmd.Stderr = out

	runErr := cmd.Run()

	c := classify(cmd.ProcessState)
	c.Output = out.String()
	if cmd.ProcessState == nil && runErr != nil {
		// Never started: report why in place of output
		c.Output = runErr.Error()
	}
	c.TimedOut = opts.Timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded)
	c.Duration = time.Since(start)
	return c
}
