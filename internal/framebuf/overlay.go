package framebuf

import (
	"errors"
	"fmt"
	"image"
	"sync/atomic"

	"framepipe.klederson.com/internal/fault"
	"framepipe.klederson.com/internal/hal"
	"framepipe.klederson.com/internal/psram"
)

// ErrLatchPending is returned when the previous swap has not been latched by
// a vertical blank yet. The back slot is still on screen until then.
var ErrLatchPending = errors.New("framebuf: overlay swap not latched yet")

// LayerSink is the part of the display controller the overlay commits to.
type LayerSink interface {
	SetLayerAddress(layer hal.Layer, addr uint32) error
	Reload(layer hal.Layer, mode hal.ReloadMode) error
	ReloadPending(layer hal.Layer) bool
}

// Overlay is the UI layer's double buffer. The drawing goroutine is the only
// writer: it draws into Back, then SwapAndCommit hands that slot to the
// display, to be latched at the next vertical blank.
//
// Until that blank the slot that was front before the swap is still scanned
// out, and it is the current back slot. Drawing and swapping are refused
// with ErrLatchPending in that window.
type Overlay struct {
	slots [2]Slot
	size  hal.Dims
	sink  LayerSink
	layer hal.Layer

	front   atomic.Int32
	visible atomic.Bool
	swaps   atomic.Uint64
}

// NewOverlay builds the double buffer over two ARGB regions of size pixels.
func NewOverlay(regions [2]*psram.Region, size hal.Dims, sink LayerSink, layer hal.Layer) (*Overlay, error) {
	need := size.FrameSize(hal.ARGB8888)
	o := &Overlay{size: size, sink: sink, layer: layer}
	for i, r := range regions {
		if r == nil || r.Size() < need {
			return nil, fmt.Errorf("framebuf: overlay slot %d needs %d bytes", i, need)
		}
		o.slots[i] = Slot{Index: i, Region: r}
	}
	o.visible.Store(true)
	return o, nil
}

// Init clears both slots, makes slot 0 the front and commits it with an
// immediate reload.
func (o *Overlay) Init() error {
	for _, s := range o.slots {
		s.Region.Zero()
	}
	o.front.Store(0)
	o.visible.Store(true)

	if err := o.sink.SetLayerAddress(o.layer, o.slots[0].Addr()); err != nil {
		return fault.Wrap(err, "overlay init address")
	}
	return fault.Wrap(o.sink.Reload(o.layer, hal.ReloadImmediate), "overlay init reload")
}

// Size returns the overlay dimensions.
func (o *Overlay) Size() hal.Dims { return o.size }

// Front returns the index of the slot most recently committed.
func (o *Overlay) Front() int { return int(o.front.Load()) }

// Ready reports whether the last swap has latched, so the back slot is off
// screen and may be drawn.
func (o *Overlay) Ready() bool {
	return !o.sink.ReloadPending(o.layer)
}

// Shown returns the index of the slot the display is scanning out: the front
// once latched, the previous front while the latch is pending.
func (o *Overlay) Shown() int {
	front := o.front.Load()
	if !o.Ready() {
		return int(front ^ 1)
	}
	return int(front)
}

// FrontSlot returns the most recently committed slot.
func (o *Overlay) FrontSlot() Slot {
	return o.slots[o.front.Load()]
}

// Back returns the slot drawn next. It is off screen only when Ready.
func (o *Overlay) Back() Slot {
	return o.slots[o.front.Load()^1]
}

// Visible reports the current visibility.
func (o *Overlay) Visible() bool { return o.visible.Load() }

// Swaps returns the number of committed swaps.
func (o *Overlay) Swaps() uint64 { return o.swaps.Load() }

// DrawBack runs fn over the back slot as an NRGBA image. fn must not retain
// img. It returns ErrLatchPending without calling fn while the back slot is
// still on screen.
func (o *Overlay) DrawBack(fn func(img *image.NRGBA)) error {
	if !o.Ready() {
		return ErrLatchPending
	}
	back := o.Back()
	back.Region.Write(func(b []byte) {
		fn(&image.NRGBA{
			Pix:    b[:o.size.FrameSize(hal.ARGB8888)],
			Stride: o.size.W * 4,
			Rect:   image.Rect(0, 0, o.size.W, o.size.H),
		})
	})
	return nil
}

// SwapAndCommit makes the back slot the front and commits its address for
// latching at the next vertical blank. A second swap before that blank
// returns ErrLatchPending and changes nothing.
func (o *Overlay) SwapAndCommit() error {
	if !o.Ready() {
		return ErrLatchPending
	}
	next := o.front.Load() ^ 1

	if err := o.sink.SetLayerAddress(o.layer, o.slots[next].Addr()); err != nil {
		return fault.Wrap(err, "overlay commit address")
	}
	if err := o.sink.Reload(o.layer, hal.ReloadVerticalBlank); err != nil {
		return fault.Wrap(err, "overlay commit reload")
	}

	o.front.Store(next)
	o.swaps.Add(1)
	return nil
}

// SetVisible shows or hides the overlay. Hiding clears the back slot and
// swaps it in, so the layer goes fully transparent from the next blank.
// Showing only flips the flag; the next draw brings content back. Hiding
// returns ErrLatchPending while the previous swap is unlatched.
func (o *Overlay) SetVisible(v bool) error {
	if v {
		o.visible.Store(true)
		return nil
	}
	if !o.Ready() {
		return ErrLatchPending
	}
	o.Back().Region.Zero()
	if err := o.SwapAndCommit(); err != nil {
		return err
	}
	o.visible.Store(false)
	return nil
}
