package pipeline

import (
	"context"
	"errors"
	"time"

	"framepipe.klederson.com/internal/cpuload"
	"framepipe.klederson.com/internal/framebuf"
	"framepipe.klederson.com/internal/handoff"
)

// ErrNoSnapshot is returned when the display cannot be captured.
var ErrNoSnapshot = errors.New("pipeline: display does not support snapshots")

// Stats is a point-in-time view of the pipeline.
type Stats struct {
	Uptime time.Duration

	Slots  int
	Ring   framebuf.State
	Frames uint64
	// Ignored counts frame events from pipes other than the display pipe.
	Ignored uint64
	// LateLatches counts frames dropped because the previous display commit
	// had not latched.
	LateLatches uint64

	VSync        handoff.Stats
	TuningPasses uint64

	OverlayFront   int
	OverlayShown   int
	OverlayVisible bool
	OverlaySwaps   uint64
	// OverlayWaits counts overlay ticks skipped while a swap was unlatched.
	OverlayWaits uint64

	Load    cpuload.Loads
	History cpuload.History
	Samples uint64
	Busy    int

	Halted bool
	Fault  string
}

// Stats collects the current counters. Safe from any goroutine.
func (p *Pipeline) Stats() Stats {
	st := Stats{
		Uptime:         time.Since(p.bootTime),
		Slots:          p.ring.Len(),
		Ring:           p.ring.Snapshot(),
		Frames:         p.frames.Load(),
		Ignored:        p.ignored.Load(),
		LateLatches:    p.lateLatches.Load(),
		VSync:          p.vsync.Stats(),
		TuningPasses:   p.tuningPasses.Load(),
		OverlayFront:   p.overlay.Front(),
		OverlayShown:   p.overlay.Shown(),
		OverlayVisible: p.overlay.Visible(),
		OverlaySwaps:   p.overlay.Swaps(),
		OverlayWaits:   p.latchWaits.Load(),
		Load:           p.sampler.Load(),
		History:        p.sampler.History(),
		Samples:        p.sampler.Ticks(),
		Busy:           p.tracker.Busy(),
		Halted:         p.halted.Load(),
	}
	if f := p.fault.Load(); f != nil {
		st.Fault = f.Error()
	}
	return st
}

// SignalTuningDue marks a tuning pass as due. It never blocks and may be
// called from interrupt context; a signal already pending absorbs it.
func (p *Pipeline) SignalTuningDue() bool {
	return p.vsync.Raise()
}

// WaitTuningDue blocks until a tuning pass is due and consumes the signal.
func (p *Pipeline) WaitTuningDue(ctx context.Context) error {
	return p.vsync.Wait(ctx)
}

// SwapOverlay commits the overlay's back buffer. Only the overlay goroutine
// may call it once the pipeline is started.
func (p *Pipeline) SwapOverlay() error {
	return p.overlay.SwapAndCommit()
}

// SetOverlayVisible requests the overlay be shown or hidden. The overlay
// goroutine applies it on its next tick.
func (p *Pipeline) SetOverlayVisible(v bool) {
	p.wantVisible.Store(v)
}

// OverlayVisible reports the requested visibility.
func (p *Pipeline) OverlayVisible() bool {
	return p.wantVisible.Load()
}

// SampleLoad takes one load sample.
func (p *Pipeline) SampleLoad() error {
	return p.sampler.Tick()
}

// Load returns the current load figures.
func (p *Pipeline) Load() cpuload.Loads {
	return p.sampler.Load()
}

// Ring exposes the capture ring for read-only inspection.
func (p *Pipeline) Ring() *framebuf.Ring { return p.ring }

// Overlay exposes the overlay double buffer for read-only inspection.
func (p *Pipeline) Overlay() *framebuf.Overlay { return p.overlay }

// SaveSnapshot writes what the display is showing to path.
func (p *Pipeline) SaveSnapshot(path string) error {
	s, ok := p.disp.(interface{ Snapshot(path string) error })
	if !ok {
		return ErrNoSnapshot
	}
	return s.Snapshot(path)
}

// InjectBusFault arms a one-shot bus error on the next capture redirect, if
// the camera supports it.
func (p *Pipeline) InjectBusFault() bool {
	c, ok := p.cam.(interface{ InjectBusFault() })
	if ok {
		c.InjectBusFault()
		p.logger.Warn("bus fault armed on next capture redirect")
	}
	return ok
}
