package pipeline

import (
	"context"
	"image"
	"time"

	"framepipe.klederson.com/internal/fault"
	"framepipe.klederson.com/internal/osd"
)

// tuningLoop runs one ISP statistics pass per vertical sync. Syncs that
// arrive while a pass is running coalesce into the next one.
func (p *Pipeline) tuningLoop(ctx context.Context) {
	defer p.wg.Done()

	for {
		if err := p.WaitTuningDue(ctx); err != nil {
			return
		}
		if p.halted.Load() {
			return
		}

		var err error
		p.tracker.Run(func() { err = p.cam.RunISP() })
		if err != nil {
			p.fail(fault.Wrap(err, "isp update"))
			return
		}
		p.tuningPasses.Add(1)
	}
}

// overlayLoop samples the load meter and redraws the overlay every period.
// It is the only goroutine that touches the overlay buffers.
func (p *Pipeline) overlayLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Load.SamplePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if p.halted.Load() {
			return
		}

		var err error
		p.tracker.Run(func() { err = p.overlayTick() })
		if err != nil {
			p.fail(err)
			return
		}
	}
}

func (p *Pipeline) overlayTick() error {
	if err := p.SampleLoad(); err != nil {
		if p.sampleErrs.Add(1) == 1 {
			p.logger.Warn("load sample failed", "error", err)
		}
	}

	// The previous swap is still waiting for its vertical blank, so the back
	// slot is on screen. Try again next tick.
	if !p.overlay.Ready() {
		p.latchWaits.Add(1)
		return nil
	}

	want := p.wantVisible.Load()
	if want != p.overlay.Visible() {
		if err := p.overlay.SetVisible(want); err != nil {
			return err
		}
		p.logger.Info("overlay visibility changed", "visible", want)
	}
	if !want {
		return nil
	}

	frame := osd.Frame{Load: p.sampler.Load(), Uptime: time.Since(p.bootTime)}
	if err := p.overlay.DrawBack(func(img *image.NRGBA) { osd.Draw(img, frame) }); err != nil {
		return err
	}
	if err := p.SwapOverlay(); err != nil {
		return err
	}
	p.uiFrames.Add(1)
	return nil
}

// idleLoop runs whenever no worker is busy. Time between Enter and Exit is
// counted as idle.
func (p *Pipeline) idleLoop(ctx context.Context) {
	defer p.wg.Done()

	for ctx.Err() == nil && !p.halted.Load() {
		p.idle.Enter()
		p.tracker.Relinquish(ctx)
		p.idle.Exit()
		if err := p.tracker.WaitIdle(ctx); err != nil {
			return
		}
	}
}
