package fault

import (
	"io"
	"log/slog"
	"sync"
)

// Halter is the single sink for faults. Implementations must be safe to call
// from the simulated interrupt goroutine and must not block it for long.
type Halter interface {
	Halt(f *Fault)
}

// HaltFunc adapts a function to Halter.
type HaltFunc func(f *Fault)

func (fn HaltFunc) Halt(f *Fault) { fn(f) }

// Latch records the first fault it sees, logs it and runs onHalt exactly once.
// Later faults are logged and otherwise ignored; the system is already down.
type Latch struct {
	logger *slog.Logger
	onHalt func(*Fault)

	once  sync.Once
	mu    sync.Mutex
	first *Fault
}

// NewLatch creates a Latch. onHalt may be nil. If logger is nil a no-op
// logger is used.
func NewLatch(logger *slog.Logger, onHalt func(*Fault)) *Latch {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Latch{logger: logger, onHalt: onHalt}
}

// Halt implements Halter.
func (l *Latch) Halt(f *Fault) {
	l.logger.Error("fatal fault",
		"op", f.Op,
		"location", f.Location(),
		"error", f.Err,
	)
	l.once.Do(func() {
		l.mu.Lock()
		l.first = f
		l.mu.Unlock()
		if l.onHalt != nil {
			l.onHalt(f)
		}
	})
}

// Fault returns the first fault latched, or nil.
func (l *Latch) Fault() *Fault {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.first
}
