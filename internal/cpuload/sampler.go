package cpuload

import (
	"sync"
	"time"
)

// Source yields the two load counters. Both wrap at 2^32 and must be read
// together so the pair is consistent.
type Source interface {
	Sample() (total, idle uint32, err error)
}

// Clock returns the current tick in milliseconds. It may wrap.
type Clock func() uint32

// MillisSince returns a Clock counting milliseconds from start.
func MillisSince(start time.Time) Clock {
	return func() uint32 {
		return uint32(time.Since(start).Milliseconds())
	}
}

// Sampler keeps the load history. Tick is normally called from one
// goroutine, Load and History from any.
type Sampler struct {
	src   Source
	clock Clock

	mu         sync.Mutex
	hist       History
	lastCoarse uint32
	ticks      uint64
}

// NewSampler creates a Sampler with an empty history.
func NewSampler(src Source, clock Clock) *Sampler {
	return &Sampler{src: src, clock: clock}
}

// Reset clears the history.
func (s *Sampler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hist = History{}
	s.lastCoarse = 0
	s.ticks = 0
}

// Tick takes one sample. A coarse sample is recorded when at least
// DecimationPeriod ticks have passed since the previous one.
func (s *Sampler) Tick() error {
	total, idle, err := s.src.Sample()
	if err != nil {
		return err
	}
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()
	decimate := now-s.lastCoarse >= DecimationPeriod
	if decimate {
		s.lastCoarse = now
	}
	s.hist.record(Entry{Total: total, Idle: idle, Tick: now}, decimate)
	s.ticks++
	return nil
}

// Load returns the current load figures.
func (s *Sampler) Load() Loads {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.Loads()
}

// History returns a copy of the sample window.
func (s *Sampler) History() History {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist
}

// Ticks returns the number of samples taken.
func (s *Sampler) Ticks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

// SimSource pairs a cycle counter with an idle meter driven by the same
// counter.
type SimSource struct {
	Counter Counter
	Idle    *IdleMeter
}

// Sample implements Source.
func (s SimSource) Sample() (total, idle uint32, err error) {
	return s.Counter.Cycles(), s.Idle.Total(), nil
}
