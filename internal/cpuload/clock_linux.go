//go:build linux

package cpuload

import (
	"time"

	"golang.org/x/sys/unix"
)

// monotonicNanos reads CLOCK_MONOTONIC_RAW, which is not slewed by NTP.
func monotonicNanos() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &ts); err != nil {
		return int64(time.Since(epoch))
	}
	return ts.Nano()
}

var epoch = time.Now()
