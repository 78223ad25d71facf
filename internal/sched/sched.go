// Package sched tracks whether any worker goroutine is busy, so the idle
// goroutine can run only when the system has nothing else to do.
//
// Workers wrap each unit of work in Run. The idle goroutine loops on
// Relinquish, which yields until either a worker becomes busy or a quantum
// passes, and WaitIdle, which parks it until every worker is done.
package sched

import (
	"context"
	"sync"
	"time"
)

// Tracker counts busy workers and broadcasts transitions.
type Tracker struct {
	quantum time.Duration

	mu      sync.Mutex
	busy    int
	changed chan struct{}
	runs    uint64
}

// New creates a Tracker. quantum bounds how long Relinquish yields when no
// worker wakes.
func New(quantum time.Duration) *Tracker {
	if quantum <= 0 {
		quantum = time.Millisecond
	}
	return &Tracker{quantum: quantum, changed: make(chan struct{})}
}

// Run marks the caller busy for the duration of fn.
func (t *Tracker) Run(fn func()) {
	t.acquire()
	defer t.release()
	fn()
}

func (t *Tracker) acquire() {
	t.mu.Lock()
	t.busy++
	t.runs++
	if t.busy == 1 {
		t.broadcastLocked()
	}
	t.mu.Unlock()
}

func (t *Tracker) release() {
	t.mu.Lock()
	t.busy--
	if t.busy == 0 {
		t.broadcastLocked()
	}
	t.mu.Unlock()
}

func (t *Tracker) broadcastLocked() {
	close(t.changed)
	t.changed = make(chan struct{})
}

// state returns the busy count and the channel closed on the next
// transition.
func (t *Tracker) state() (int, <-chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.busy, t.changed
}

// Busy returns the number of workers inside Run.
func (t *Tracker) Busy() int {
	n, _ := t.state()
	return n
}

// Runs returns the number of Run calls so far.
func (t *Tracker) Runs() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs
}

// Relinquish yields the processor. It returns as soon as a worker is busy,
// after one quantum otherwise, or when ctx ends.
func (t *Tracker) Relinquish(ctx context.Context) {
	busy, changed := t.state()
	if busy > 0 {
		return
	}
	timer := time.NewTimer(t.quantum)
	defer timer.Stop()

	select {
	case <-changed:
	case <-timer.C:
	case <-ctx.Done():
	}
}

// WaitIdle blocks until no worker is busy or ctx ends.
func (t *Tracker) WaitIdle(ctx context.Context) error {
	for {
		busy, changed := t.state()
		if busy == 0 {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
