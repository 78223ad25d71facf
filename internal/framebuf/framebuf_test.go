package framebuf

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"testing/quick"

	"framepipe.klederson.com/internal/fault"
	"framepipe.klederson.com/internal/hal"
	"framepipe.klederson.com/internal/psram"
)

func newRing(t *testing.T, n int) (*Ring, *psram.Arena) {
	t.Helper()
	mem := psram.NewArena(psram.DefaultBase, 1<<16)
	regions := make([]*psram.Region, n)
	for i := range regions {
		r, err := mem.Alloc("cam", 64)
		if err != nil {
			t.Fatalf("Alloc: %v", err)
		}
		regions[i] = r
	}
	ring, err := NewRing(regions)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}
	return ring, mem
}

func nop(Slot) error { return nil }

func TestNewRingTooFew(t *testing.T) {
	mem := psram.NewArena(psram.DefaultBase, 1024)
	a, _ := mem.Alloc("a", 32)
	b, _ := mem.Alloc("b", 32)
	if _, err := NewRing([]*psram.Region{a, b}); !errors.Is(err, ErrTooFew) {
		t.Errorf("expected ErrTooFew, got %v", err)
	}
}

func TestRingInit(t *testing.T) {
	ring, _ := newRing(t, 3)
	ring.slots[2].Region.Write(func(b []byte) { b[0] = 9 })
	ring.Init()

	s := ring.Snapshot()
	if s.Display != 1 || s.Capture != 0 {
		t.Errorf("expected display=1 capture=0, got %+v", s)
	}
	ring.slots[2].Region.Read(func(b []byte) {
		if b[0] != 0 {
			t.Error("expected Init to zero every slot")
		}
	})
}

// With three slots, one advance after init points capture at 1 and commits 2
// for display.
func TestRingAdvanceThreeSlots(t *testing.T) {
	ring, _ := newRing(t, 3)
	ring.Init()

	var redirected, committed []int
	var order []string
	redirect := func(s Slot) error {
		redirected = append(redirected, s.Index)
		order = append(order, "redirect")
		return nil
	}
	commit := func(s Slot) error {
		committed = append(committed, s.Index)
		order = append(order, "commit")
		return nil
	}

	s, err := ring.Advance(redirect, commit)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if s.Display != 2 || s.Capture != 1 {
		t.Errorf("expected display=2 capture=1, got %+v", s)
	}
	if redirected[0] != 1 || committed[0] != 2 {
		t.Errorf("expected redirect to 1 and commit of 2, got %v %v", redirected, committed)
	}
	if order[0] != "redirect" || order[1] != "commit" {
		t.Errorf("expected redirect before commit, got %v", order)
	}

	// Two more advances complete the cycle.
	_, _ = ring.Advance(nop, nop)
	s, _ = ring.Advance(nop, nop)
	if s.Display != 1 || s.Capture != 0 {
		t.Errorf("expected back at display=1 capture=0 after N advances, got %+v", s)
	}
	if ring.Advances() != 3 {
		t.Errorf("expected 3 advances, got %d", ring.Advances())
	}
}

func TestRingAdvanceFailureLeavesState(t *testing.T) {
	ring, _ := newRing(t, 3)
	ring.Init()
	before := ring.Snapshot()
	busErr := errors.New("bus error")

	_, err := ring.Advance(func(Slot) error { return busErr }, nop)
	if !errors.Is(err, busErr) {
		t.Fatalf("expected redirect error, got %v", err)
	}
	if _, ok := fault.As(err); !ok {
		t.Errorf("expected a fault, got %T", err)
	}
	if ring.Snapshot() != before {
		t.Errorf("expected state unchanged, got %+v", ring.Snapshot())
	}

	committed := false
	_, err = ring.Advance(nop, func(Slot) error { committed = true; return busErr })
	if err == nil || !committed {
		t.Fatalf("expected commit failure, got %v", err)
	}
	if ring.Snapshot() != before {
		t.Errorf("expected state unchanged after commit failure, got %+v", ring.Snapshot())
	}
}

func TestRingNextClosesCycle(t *testing.T) {
	for _, n := range []int{3, 4, 5, 8} {
		ring, _ := newRing(t, n)
		for x := 0; x < n; x++ {
			got := x
			for i := 0; i < n; i++ {
				got = ring.Next(got)
				if i < n-1 && got == x {
					t.Errorf("n=%d: index %d came back after %d steps", n, x, i+1)
				}
			}
			if got != x {
				t.Errorf("n=%d: expected %d after %d steps, got %d", n, x, n, got)
			}
		}
	}
}

func TestRingSlotBounds(t *testing.T) {
	ring, _ := newRing(t, 3)
	for i := 0; i < 3; i++ {
		s, err := ring.Slot(i)
		if err != nil {
			t.Errorf("index %d: expected no error, got %v", i, err)
			continue
		}
		if s.Index != i || s.Region != ring.slots[i].Region {
			t.Errorf("index %d: expected slot %d handle, got %+v", i, i, s)
		}
	}
	for _, i := range []int{-1, 3, 100} {
		_, err := ring.Slot(i)
		if !errors.Is(err, ErrSlotIndex) {
			t.Errorf("index %d: expected ErrSlotIndex, got %v", i, err)
		}
		if f, ok := fault.As(err); !ok || f.File != "ring.go" {
			t.Errorf("index %d: expected fault located in ring.go, got %v", i, err)
		}
	}
}

// Property: for any ring size and any number of advances, display and
// capture never coincide and display is exactly one slot ahead of capture,
// (display - capture) mod N == 1.
func TestRingAdvanceProperty(t *testing.T) {
	f := func(size, steps uint8) bool {
		n := int(size%14) + MinSlots
		ring, _ := newRing(t, n)
		ring.Init()
		for i := 0; i < int(steps); i++ {
			s, err := ring.Advance(nop, nop)
			if err != nil || ring.Check(s) != nil {
				return false
			}
			if (s.Display-s.Capture+n)%n != 1 {
				return false
			}
		}
		return true
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestRingCheck(t *testing.T) {
	ring, _ := newRing(t, 3)
	if ring.Check(State{Display: 1, Capture: 1}) == nil {
		t.Error("expected collision to fail")
	}
	if ring.Check(State{Display: 3, Capture: 0}) == nil {
		t.Error("expected out of range to fail")
	}
}

// Readers racing the advancing writer always see a valid pair.
func TestRingConcurrentSnapshot(t *testing.T) {
	ring, _ := newRing(t, 4)
	ring.Init()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	bad := make(chan State, 1)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if s := ring.Snapshot(); ring.Check(s) != nil {
					select {
					case bad <- s:
					default:
					}
					return
				}
			}
		}()
	}
	for i := 0; i < 10000; i++ {
		_, _ = ring.Advance(nop, nop)
	}
	close(stop)
	wg.Wait()

	select {
	case s := <-bad:
		t.Fatalf("reader saw invalid state %+v", s)
	default:
	}
}

type fakeSink struct {
	pending uint32
	active  uint32
	armed   bool
	fail    error
}

func (f *fakeSink) SetLayerAddress(_ hal.Layer, addr uint32) error {
	if f.fail != nil {
		return f.fail
	}
	f.pending = addr
	return nil
}

func (f *fakeSink) Reload(_ hal.Layer, mode hal.ReloadMode) error {
	if mode == hal.ReloadImmediate {
		f.active = f.pending
		return nil
	}
	f.armed = true
	return nil
}

func (f *fakeSink) ReloadPending(hal.Layer) bool { return f.armed }

func (f *fakeSink) vblank() {
	if f.armed {
		f.active = f.pending
		f.armed = false
	}
}

func newOverlay(t *testing.T) (*Overlay, *fakeSink) {
	t.Helper()
	size := hal.Dims{W: 4, H: 2}
	mem := psram.NewArena(psram.DefaultBase, 1024)
	a, _ := mem.Alloc("ui0", size.FrameSize(hal.ARGB8888))
	b, _ := mem.Alloc("ui1", size.FrameSize(hal.ARGB8888))
	sink := &fakeSink{}
	o, err := NewOverlay([2]*psram.Region{a, b}, size, sink, hal.LayerUI)
	if err != nil {
		t.Fatalf("NewOverlay: %v", err)
	}
	if err := o.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return o, sink
}

func TestOverlaySwapLag(t *testing.T) {
	o, sink := newOverlay(t)
	if o.Front() != 0 || sink.active != o.slots[0].Addr() {
		t.Fatalf("expected slot 0 front and active after init")
	}
	if o.Back().Index != 1 {
		t.Fatalf("expected back slot 1, got %d", o.Back().Index)
	}

	if err := o.SwapAndCommit(); err != nil {
		t.Fatalf("SwapAndCommit: %v", err)
	}
	if o.Front() != 1 {
		t.Errorf("expected front=1, got %d", o.Front())
	}
	if sink.active != o.slots[0].Addr() {
		t.Errorf("expected slot 0 still displayed before vblank, got 0x%08X", sink.active)
	}
	if o.Shown() != 0 {
		t.Errorf("expected shown=0, got %d", o.Shown())
	}
	if sink.pending != o.slots[1].Addr() {
		t.Errorf("expected slot 1 pending, got 0x%08X", sink.pending)
	}

	sink.vblank()
	if sink.active != o.slots[1].Addr() {
		t.Errorf("expected slot 1 displayed after vblank, got 0x%08X", sink.active)
	}
	if o.Shown() != 1 {
		t.Errorf("expected shown=1 after vblank, got %d", o.Shown())
	}
}

func TestOverlaySecondSwapBeforeBlank(t *testing.T) {
	o, sink := newOverlay(t)
	if err := o.SwapAndCommit(); err != nil {
		t.Fatalf("SwapAndCommit: %v", err)
	}
	if o.Ready() {
		t.Fatal("expected overlay not ready before vblank")
	}

	// Back is slot 0, which the panel is still scanning.
	drawn := false
	err := o.DrawBack(func(*image.NRGBA) { drawn = true })
	if !errors.Is(err, ErrLatchPending) || drawn {
		t.Errorf("expected draw refused with ErrLatchPending, got %v (drawn=%v)", err, drawn)
	}
	if err := o.SwapAndCommit(); !errors.Is(err, ErrLatchPending) {
		t.Errorf("expected second swap refused, got %v", err)
	}
	if err := o.SetVisible(false); !errors.Is(err, ErrLatchPending) {
		t.Errorf("expected hide refused, got %v", err)
	}
	if o.Front() != 1 || o.Shown() != 0 || o.Swaps() != 1 {
		t.Errorf("expected front=1 shown=0 swaps=1, got %d %d %d", o.Front(), o.Shown(), o.Swaps())
	}
	if !o.Visible() {
		t.Error("expected refused hide to leave overlay visible")
	}

	sink.vblank()
	if err := o.DrawBack(func(*image.NRGBA) { drawn = true }); err != nil || !drawn {
		t.Errorf("expected draw after vblank, got %v", err)
	}
	if err := o.SwapAndCommit(); err != nil {
		t.Errorf("expected swap after vblank, got %v", err)
	}
}

// Against the simulated panel the back slot is never the scanned slot while
// the overlay reports ready.
func TestOverlayBackNeverScanned(t *testing.T) {
	size := hal.Dims{W: 4, H: 2}
	mem := psram.NewArena(psram.DefaultBase, 1024)
	a, _ := mem.Alloc("ui0", size.FrameSize(hal.ARGB8888))
	b, _ := mem.Alloc("ui1", size.FrameSize(hal.ARGB8888))
	disp := hal.NewSimDisplay(mem, hal.Dims{W: 8, H: 4}, 60, nil)
	err := disp.ConfigureLayer(hal.LayerUI, hal.LayerConfig{Window: image.Rect(0, 0, 4, 2), Format: hal.ARGB8888, Addr: a.Addr()})
	if err != nil {
		t.Fatalf("ConfigureLayer: %v", err)
	}
	o, err := NewOverlay([2]*psram.Region{a, b}, size, disp, hal.LayerUI)
	if err != nil {
		t.Fatalf("NewOverlay: %v", err)
	}
	if err := o.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	// Two overlay ticks per blank, as with a 10ms UI period on a 60Hz panel.
	for tick := 0; tick < 20; tick++ {
		if tick%2 == 1 {
			disp.VerticalBlank()
		}
		scanned := disp.Active(hal.LayerUI)
		if o.Ready() && o.Back().Addr() == scanned {
			t.Fatalf("tick %d: back slot 0x%08X is on screen", tick, scanned)
		}
		if o.slots[o.Shown()].Addr() != scanned {
			t.Fatalf("tick %d: shown=%d but panel scans 0x%08X", tick, o.Shown(), scanned)
		}
		err := o.DrawBack(func(*image.NRGBA) {})
		if err == nil {
			err = o.SwapAndCommit()
		}
		if err != nil && !errors.Is(err, ErrLatchPending) {
			t.Fatalf("tick %d: %v", tick, err)
		}
	}
	// The first swap, then one per blank.
	if o.Swaps() != 11 {
		t.Errorf("expected 11 swaps, got %d", o.Swaps())
	}
}

func TestOverlayDrawBackOnly(t *testing.T) {
	o, _ := newOverlay(t)
	err := o.DrawBack(func(img *image.NRGBA) {
		img.SetNRGBA(0, 0, color.NRGBA{R: 0xFF, A: 0xFF})
	})
	if err != nil {
		t.Fatalf("DrawBack: %v", err)
	}
	o.slots[0].Region.Read(func(b []byte) {
		if b[0] != 0 {
			t.Error("expected front slot untouched by drawing")
		}
	})
	o.slots[1].Region.Read(func(b []byte) {
		if b[0] != 0xFF || b[3] != 0xFF {
			t.Errorf("expected pixel in back slot, got %v", b[:4])
		}
	})
}

func TestOverlayHideTwice(t *testing.T) {
	o, sink := newOverlay(t)
	for _, s := range o.slots {
		s.Region.Write(func(b []byte) {
			for i := range b {
				b[i] = 0xEE
			}
		})
	}

	for i := 0; i < 2; i++ {
		if err := o.SetVisible(false); err != nil {
			t.Fatalf("SetVisible(false) #%d: %v", i+1, err)
		}
		sink.vblank()
	}
	if o.Visible() {
		t.Error("expected hidden")
	}
	for _, s := range o.slots {
		s.Region.Read(func(b []byte) {
			for _, v := range b {
				if v != 0 {
					t.Fatalf("expected slot %d transparent", s.Index)
				}
			}
		})
	}

	if err := o.SetVisible(true); err != nil || !o.Visible() {
		t.Errorf("expected visible again, got %v", err)
	}
}

func TestOverlayCommitFailure(t *testing.T) {
	o, sink := newOverlay(t)
	sink.fail = errors.New("bus error")
	if err := o.SwapAndCommit(); err == nil {
		t.Fatal("expected commit failure")
	}
	if o.Front() != 0 {
		t.Errorf("expected front unchanged, got %d", o.Front())
	}
}
