package cpuload

// Counter is a free-running 32-bit cycle counter.
type Counter interface {
	Cycles() uint32
}

// CycleCounter emulates the core's cycle counter from the monotonic clock:
// elapsed microseconds times the core clock in MHz, truncated to 32 bits.
type CycleCounter struct {
	mhz   uint64
	start int64
	now   func() int64 // nanoseconds
}

// NewCycleCounter creates a counter for a core running at mhz.
func NewCycleCounter(mhz uint32) *CycleCounter {
	return newCycleCounter(mhz, monotonicNanos)
}

func newCycleCounter(mhz uint32, now func() int64) *CycleCounter {
	return &CycleCounter{mhz: uint64(mhz), start: now(), now: now}
}

// Cycles implements Counter.
func (c *CycleCounter) Cycles() uint32 {
	us := uint64(c.now()-c.start) / 1000
	return uint32(us * c.mhz)
}
