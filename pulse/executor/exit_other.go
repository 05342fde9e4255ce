//go:build !unix

package executor

import (
	"os"

	"github.com/teranos/nanoprobe/pulse/rscqueue"
)

// classify maps a process state to a completion. Signals do not exist here.
func classify(state *os.ProcessState) rscqueue.Completion {
	if state == nil || !state.Exited() {
		return rscqueue.Completion{How: rscqueue.Other, ExitCode: -1}
	}
	return rscqueue.Completion{How: rscqueue.Exited, ExitCode: state.ExitCode()}
}
