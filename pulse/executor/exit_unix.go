//go:build unix

package executor

import (
	"os"
	"syscall"

	"github.com/teranos/nanoprobe/pulse/rscqueue"
)

// classify maps a wait status to a completion. A nil state means the process never ran.
func classify(state *os.ProcessState) rscqueue.Completion {
	if state == nil {
		return rscqueue.Completion{How: rscqueue.Other, ExitCode: -1}
	}

	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok {
		return rscqueue.Completion{How: rscqueue.Other, ExitCode: -1}
	}

	switch {
	case ws.Exited():
		return rscqueue.Completion{How: rscqueue.Exited, ExitCode: ws.ExitStatus()}
	case ws.Signaled() && ws.CoreDump():
		return rscqueue.Completion{How: rscqueue.CoreDumped, ExitCode: int(ws.Signal()), CoreDumped: true}
	case ws.Signaled():
		return rscqueue.Completion{How: rscqueue.Signaled, ExitCode: int(ws.Signal())}
	default:
		return rscqueue.Completion{How: rscqueue.Other, ExitCode: -1}
	}
}
