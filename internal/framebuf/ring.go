// Package framebuf owns the frame buffers shared between the capture engine,
// the display controller and the drawing goroutine.
//
// The capture ring cycles N slots (N >= 3) so that the slot being written by
// capture DMA is never the slot being scanned out. Both indices live in one
// atomic word: readers always see a consistent pair, and the only writer is
// the frame-complete handler.
package framebuf

import (
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"framepipe.klederson.com/internal/fault"
	"framepipe.klederson.com/internal/psram"
)

// MinSlots is the smallest usable ring: one displayed, one capturing, one
// between them.
const MinSlots = 3

var (
	ErrSlotIndex = errors.New("framebuf: slot index out of range")
	ErrTooFew    = errors.New("framebuf: ring needs at least 3 slots")
)

// Slot is one frame buffer.
type Slot struct {
	Index  int
	Region *psram.Region
}

// Addr returns the slot's bus address.
func (s Slot) Addr() uint32 { return s.Region.Addr() }

// State is a consistent view of the ring indices.
type State struct {
	Display int
	Capture int
}

func pack(s State) uint32 {
	return uint32(s.Display)<<16 | uint32(s.Capture)&0xFFFF
}

func unpack(v uint32) State {
	return State{Display: int(v >> 16), Capture: int(v & 0xFFFF)}
}

// Ring is the capture ring.
type Ring struct {
	slots []Slot

	_     cpu.CacheLinePad
	state atomic.Uint32
	_     cpu.CacheLinePad

	advances atomic.Uint64
}

// NewRing builds a ring over regions, one slot per region, in order.
func NewRing(regions []*psram.Region) (*Ring, error) {
	if len(regions) < MinSlots {
		return nil, fmt.Errorf("%w: got %d", ErrTooFew, len(regions))
	}
	if len(regions) > 0xFFFF {
		return nil, fmt.Errorf("framebuf: %d slots exceeds index width", len(regions))
	}
	r := &Ring{slots: make([]Slot, len(regions))}
	for i, reg := range regions {
		r.slots[i] = Slot{Index: i, Region: reg}
	}
	r.state.Store(pack(State{Display: 1, Capture: 0}))
	return r, nil
}

// Len returns the number of slots.
func (r *Ring) Len() int { return len(r.slots) }

// Init zeroes every slot and resets the indices to display=1, capture=0.
// It must run before capture starts.
func (r *Ring) Init() {
	for _, s := range r.slots {
		s.Region.Zero()
	}
	r.state.Store(pack(State{Display: 1, Capture: 0}))
	r.advances.Store(0)
}

// Next returns the successor of i modulo the ring size.
func (r *Ring) Next(i int) int {
	return (i + 1) % len(r.slots)
}

// Slot returns slot i. An out-of-range index is a fault.
func (r *Ring) Slot(i int) (Slot, error) {
	if i < 0 || i >= len(r.slots) {
		return Slot{}, fault.Wrap(fmt.Errorf("%w: %d of %d", ErrSlotIndex, i, len(r.slots)), "ring slot lookup")
	}
	return r.slots[i], nil
}

// Snapshot returns the current indices.
func (r *Ring) Snapshot() State {
	return unpack(r.state.Load())
}

// DisplaySlot returns the slot being scanned out.
func (r *Ring) DisplaySlot() Slot {
	return r.slots[r.Snapshot().Display]
}

// CaptureSlot returns the slot capture DMA is writing.
func (r *Ring) CaptureSlot() Slot {
	return r.slots[r.Snapshot().Capture]
}

// Advances returns the number of completed advances since Init.
func (r *Ring) Advances() uint64 { return r.advances.Load() }

// Advance moves both indices forward one slot. It runs on every completed
// frame, in interrupt context, and performs the hand-over in a fixed order:
// capture is pointed at its new slot first, then the newly completed frame is
// committed for display, and only then are the new indices published. If
// either step fails the published state is left untouched.
//
// Neither callback may block.
func (r *Ring) Advance(redirect, commit func(Slot) error) (State, error) {
	cur := r.Snapshot()
	next := State{Display: r.Next(cur.Display), Capture: r.Next(cur.Capture)}
	if err := fault.Require(next.Display != next.Capture, "ring display/capture collision"); err != nil {
		return cur, err
	}

	capture, err := r.Slot(next.Capture)
	if err != nil {
		return cur, err
	}
	display, err := r.Slot(next.Display)
	if err != nil {
		return cur, err
	}

	if err := redirect(capture); err != nil {
		return cur, fault.Wrap(err, "redirect capture")
	}
	if err := commit(display); err != nil {
		return cur, fault.Wrap(err, "commit display")
	}

	r.state.Store(pack(next))
	r.advances.Add(1)
	return next, nil
}

// Check reports whether s satisfies the ring invariants.
func (r *Ring) Check(s State) error {
	n := len(r.slots)
	switch {
	case s.Display < 0 || s.Display >= n || s.Capture < 0 || s.Capture >= n:
		return fmt.Errorf("%w: %+v of %d", ErrSlotIndex, s, n)
	case s.Display == s.Capture:
		return fmt.Errorf("framebuf: display and capture share slot %d", s.Display)
	}
	return nil
}
