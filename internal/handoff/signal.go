// Package handoff carries "work is due" notifications from interrupt context
// to a waiting goroutine. A Signal is binary: raises that arrive while one is
// already pending coalesce into it, so the waiter runs at most once per wake
// regardless of how many raises it missed.
package handoff

import (
	"context"
	"sync/atomic"
)

// Signal is a coalescing one-slot notification. Raise never blocks and never
// allocates, so it is safe to call from the camera interrupt goroutine.
type Signal struct {
	ch chan struct{}

	raised    atomic.Uint64
	consumed  atomic.Uint64
	coalesced atomic.Uint64
}

// Stats are the lifetime counters of a Signal.
type Stats struct {
	Raised    uint64
	Consumed  uint64
	Coalesced uint64
}

// New returns an unset Signal.
func New() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Raise sets the signal. It reports false when the signal was already set and
// this raise was absorbed.
func (s *Signal) Raise() bool {
	s.raised.Add(1)
	select {
	case s.ch <- struct{}{}:
		return true
	default:
		s.coalesced.Add(1)
		return false
	}
}

// Wait blocks until the signal is set, then clears it. It returns ctx.Err()
// if ctx ends first.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.ch:
		s.consumed.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryWait clears the signal if set and reports whether it was.
func (s *Signal) TryWait() bool {
	select {
	case <-s.ch:
		s.consumed.Add(1)
		return true
	default:
		return false
	}
}

// Pending reports whether a raise is waiting to be consumed.
func (s *Signal) Pending() bool {
	return len(s.ch) == 1
}

// Stats returns a snapshot of the counters.
func (s *Signal) Stats() Stats {
	return Stats{
		Raised:    s.raised.Load(),
		Consumed:  s.consumed.Load(),
		Coalesced: s.coalesced.Load(),
	}
}
