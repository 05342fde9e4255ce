// Package rscqueue serializes actions on named resources.
//
// A ResourceQueue keeps one FIFO of commands per resource name and, on every Tick,
// starts at most one due command per resource that has nothing running. It performs
// no locking: Append, Remove and Tick must all be called from the same goroutine
// (the reactor loop). Completions travel back to that goroutine through a Notifier.
package rscqueue

import (
	"container/list"
	"context"
	"sort"
	"time"

	"github.com/teranos/nanoprobe/errors"
)

// Handle identifies one queued entry. It stays valid until the entry is removed
// and is never reused by the same queue.
type Handle uint64

// StartHook observes every start made by Tick
type StartHook func(cmd Command, now time.Time)

type entry struct {
	handle Handle
	cmd    Command
}

// ResourceQueue maps resource names to FIFO queues of commands.
// A name is present if and only if its queue is non-empty.
type ResourceQueue struct {
	queues     map[string]*list.List
	index      map[Handle]*list.Element
	nextHandle Handle
	notifier   Notifier
	startHook  StartHook
}

// New creates an empty queue. Commands started by Tick report completions to n.
func New(n Notifier) *ResourceQueue {
	if n == nil {
		panic(errors.AssertionFailedf("rscqueue.New: nil notifier"))
	}
	return &ResourceQueue{
		queues:   make(map[string]*list.List),
		index:    make(map[Handle]*list.Element),
		notifier: n,
	}
}

// SetStartHook installs fn to observe starts; nil removes it
func (rq *ResourceQueue) SetStartHook(fn StartHook) {
	rq.startHook = fn
}

// Append inserts cmd at the tail of its resource's queue, creating the queue if needed.
// Appending an instance that is already queued adds a second entry.
func (rq *ResourceQueue) Append(cmd Command) Handle {
	if cmd == nil {
		panic(errors.AssertionFailedf("append of nil command"))
	}

	name := cmd.ResourceName()
	q, ok := rq.queues[name]
	if !ok {
		q = list.New()
		rq.queues[name] = q
	}

	rq.nextHandle++
	h := rq.nextHandle
	rq.index[h] = q.PushBack(&entry{handle: h, cmd: cmd})
	return h
}

// Remove drops the first queued entry for cmd. Removing a command that is not queued
// is a caller bug and panics with an assertion failure.
func (rq *ResourceQueue) Remove(cmd Command) {
	name := cmd.ResourceName()
	q, ok := rq.queues[name]
	if !ok {
		panic(errors.AssertionFailedf("remove %s: no queue for resource %q", Describe(cmd), name))
	}

	for el := q.Front(); el != nil; el = el.Next() {
		if el.Value.(*entry).cmd == cmd {
			rq.drop(name, q, el)
			return
		}
	}

	panic(errors.AssertionFailedf("remove %s: command not queued on resource %q", Describe(cmd), name))
}

// RemoveHandle drops the entry identified by h. An unknown handle panics.
func (rq *ResourceQueue) RemoveHandle(h Handle) {
	el, ok := rq.index[h]
	if !ok {
		panic(errors.AssertionFailedf("remove handle %d: not queued", h))
	}
	name := el.Value.(*entry).cmd.ResourceName()
	rq.drop(name, rq.queues[name], el)
}

// drop removes el, releases its command and deletes the queue when it empties
func (rq *ResourceQueue) drop(name string, q *list.List, el *list.Element) {
	e := q.Remove(el).(*entry)
	delete(rq.index, e.handle)
	if q.Len() == 0 {
		delete(rq.queues, name)
	}
	if r, ok := e.cmd.(Releaser); ok {
		r.Release()
	}
}

// Lookup returns the command behind h, if it is still queued
func (rq *ResourceQueue) Lookup(h Handle) (Command, bool) {
	el, ok := rq.index[h]
	if !ok {
		return nil, false
	}
	return el.Value.(*entry).cmd, true
}

// Contains reports whether cmd has at least one queued entry
func (rq *ResourceQueue) Contains(cmd Command) bool {
	q, ok := rq.queues[cmd.ResourceName()]
	if !ok {
		return false
	}
	for el := q.Front(); el != nil; el = el.Next() {
		if el.Value.(*entry).cmd == cmd {
			return true
		}
	}
	return false
}

// Len returns the number of queued entries across all resources
func (rq *ResourceQueue) Len() int {
	return len(rq.index)
}

// QueueLen returns the number of entries queued for one resource
func (rq *ResourceQueue) QueueLen(name string) int {
	if q, ok := rq.queues[name]; ok {
		return q.Len()
	}
	return 0
}

// Resources returns the names that currently have a queue, sorted
func (rq *ResourceQueue) Resources() []string {
	names := make([]string, 0, len(rq.queues))
	for name := range rq.queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Running returns the number of queued commands that are running
func (rq *ResourceQueue) Running() int {
	n := 0
	for _, el := range rq.index {
		if el.Value.(*entry).cmd.IsRunning() {
			n++
		}
	}
	return n
}

// Commands returns the queued commands of one resource in FIFO order
func (rq *ResourceQueue) Commands(name string) []Command {
	q, ok := rq.queues[name]
	if !ok {
		return nil
	}
	cmds := make([]Command, 0, q.Len())
	for el := q.Front(); el != nil; el = el.Next() {
		cmds = append(cmds, el.Value.(*entry).cmd)
	}
	return cmds
}

// Clear drops every entry, releasing each command
func (rq *ResourceQueue) Clear() {
	for name, q := range rq.queues {
		for el := q.Front(); el != nil; {
			next := el.Next()
			rq.drop(name, q, el)
			el = next
		}
	}
}

// Tick starts, for each resource with nothing running, the first command whose due time
// has been reached. Returns the number of commands started.
//
// Any running command blocks its whole resource, wherever it sits in the queue, so a
// later entry never overtakes one that is in flight.
func (rq *ResourceQueue) Tick(ctx context.Context, now time.Time) int {
	started := 0
	for _, q := range rq.queues {
		if anyRunning(q) {
			continue
		}

		for el := q.Front(); el != nil; el = el.Next() {
			cmd := el.Value.(*entry).cmd
			if !isDue(cmd.DueTime(), now) {
				continue
			}
			if rq.startHook != nil {
				rq.startHook(cmd, now)
			}
			cmd.Execute(ctx, rq.notifier)
			started++
			break
		}
	}
	return started
}

func anyRunning(q *list.List) bool {
	for el := q.Front(); el != nil; el = el.Next() {
		if el.Value.(*entry).cmd.IsRunning() {
			return true
		}
	}
	return false
}

func isDue(due, now time.Time) bool {
	return due.IsZero() || !now.Before(due)
}
