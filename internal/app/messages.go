package app

import (
	"time"

	"framepipe.klederson.com/internal/fault"
)

// TickMsg triggers a dashboard refresh.
type TickMsg time.Time

// SnapshotMsg reports the result of saving a display snapshot.
type SnapshotMsg struct {
	Path string
	Err  error
}

// HaltedMsg is sent by the halter when the pipeline stops on a fault.
type HaltedMsg struct {
	Fault *fault.Fault
}
