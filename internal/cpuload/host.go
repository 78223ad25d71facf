package cpuload

import (
	"errors"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
)

// hostTicksPerSecond scales host CPU seconds into counter units.
const hostTicksPerSecond = 100

// HostSource reads aggregate CPU times of the machine the process runs on.
type HostSource struct {
	times func(percpu bool) ([]cpu.TimesStat, error)
}

// NewHostSource returns a Source backed by the host's CPU accounting.
func NewHostSource() *HostSource {
	return &HostSource{times: cpu.Times}
}

// Sample implements Source. Idle includes iowait.
func (h *HostSource) Sample() (total, idle uint32, err error) {
	stats, err := h.times(false)
	if err != nil {
		return 0, 0, fmt.Errorf("cpuload: host times: %w", err)
	}
	if len(stats) == 0 {
		return 0, 0, errors.New("cpuload: host times: no data")
	}
	t := stats[0]
	sum := t.User + t.System + t.Idle + t.Nice + t.Iowait + t.Irq +
		t.Softirq + t.Steal + t.Guest + t.GuestNice
	return toTicks(sum), toTicks(t.Idle + t.Iowait), nil
}

func toTicks(seconds float64) uint32 {
	return uint32(uint64(seconds * hostTicksPerSecond))
}
