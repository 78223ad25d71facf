//go:build !linux

package cpuload

import "time"

var epoch = time.Now()

func monotonicNanos() int64 {
	return int64(time.Since(epoch))
}
