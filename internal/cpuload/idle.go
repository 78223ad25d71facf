package cpuload

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// IdleMeter accumulates cycles spent idle. Enter and Exit are called only from
// the idle goroutine; Total may be read from any goroutine.
type IdleMeter struct {
	counter Counter

	enteredAt uint32
	inIdle    bool

	_     cpu.CacheLinePad
	total atomic.Uint32
}

// NewIdleMeter creates a meter timed by counter.
func NewIdleMeter(counter Counter) *IdleMeter {
	return &IdleMeter{counter: counter}
}

// Enter marks the start of an idle period. A second Enter without Exit is
// ignored.
func (m *IdleMeter) Enter() {
	if m.inIdle {
		return
	}
	m.enteredAt = m.counter.Cycles()
	m.inIdle = true
}

// Exit closes the idle period and adds its length to the total. Exit without
// Enter is ignored.
func (m *IdleMeter) Exit() {
	if !m.inIdle {
		return
	}
	m.total.Add(m.counter.Cycles() - m.enteredAt)
	m.inIdle = false
}

// Total returns the accumulated idle cycles. It wraps at 2^32.
func (m *IdleMeter) Total() uint32 {
	return m.total.Load()
}
