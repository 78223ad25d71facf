// Package cpuload measures processor load from two free-running 32-bit
// counters: total elapsed cycles and cycles spent idle.
//
// A Sampler records (total, idle, tick) triples into a short history. Slots 0
// and 1 are the last two samples; slots 2..7 are a coarse series taken
// roughly once per second. Loads are derived from differences between slots,
// computed in unsigned 32-bit arithmetic so counter wraparound cancels out.
package cpuload

// HistoryDepth is the number of retained samples.
const HistoryDepth = 8

// DecimationPeriod is the spacing, in ticks (milliseconds), of the coarse
// series.
const DecimationPeriod = 1000

// Entry is one sample.
type Entry struct {
	Total uint32
	Idle  uint32
	Tick  uint32
}

// History is the sample window. Index 0 is the newest sample.
type History [HistoryDepth]Entry

// Loads are percentages in [0, 100].
type Loads struct {
	Instant    float64 // last two samples
	OneSecond  float64 // last coarse interval
	FiveSecond float64 // five coarse intervals
}

// record shifts the fine pair and stores e as the newest sample. When
// decimate is set the coarse series is shifted too and seeded with the
// previous fine sample.
func (h *History) record(e Entry, decimate bool) {
	h[1] = h[0]
	h[0] = e
	if decimate {
		copy(h[3:], h[2:HistoryDepth-1])
		h[2] = h[1]
	}
}

// Loads derives the three load figures.
func (h *History) Loads() Loads {
	return Loads{
		Instant:    loadBetween(h[0], h[1]),
		OneSecond:  loadBetween(h[2], h[3]),
		FiveSecond: loadBetween(h[2], h[7]),
	}
}

func loadBetween(newer, older Entry) float64 {
	total := newer.Total - older.Total
	if total == 0 {
		return 0
	}
	idle := newer.Idle - older.Idle
	load := 100 * (1 - float64(idle)/float64(total))
	return max(0, min(100, load))
}
