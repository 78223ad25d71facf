package hal

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"framepipe.klederson.com/internal/psram"
)

func TestCropROI(t *testing.T) {
	roi, err := CropROI(Dims{2592, 1944}, Dims{480, 480})
	if err != nil {
		t.Fatalf("CropROI: %v", err)
	}
	if roi.Dx() != roi.Dy() {
		t.Errorf("expected square crop for square output, got %v", roi)
	}
	if roi.Dy() > 1944 || roi.Dy() < 1940 {
		t.Errorf("expected crop height near sensor height, got %d", roi.Dy())
	}
	if roi.Min.X != (2592-roi.Dx())/2 {
		t.Errorf("expected centred crop, got %v", roi)
	}
}

func TestCropROIRejectsUpscale(t *testing.T) {
	if _, err := CropROI(Dims{320, 240}, Dims{480, 480}); !errors.Is(err, ErrScale) {
		t.Errorf("expected ErrScale, got %v", err)
	}
	if _, err := CropROI(Dims{320, 240}, Dims{0, 240}); !errors.Is(err, ErrScale) {
		t.Errorf("expected ErrScale for empty output, got %v", err)
	}
}

func TestCropROIIdentity(t *testing.T) {
	roi, err := CropROI(Dims{480, 480}, Dims{480, 480})
	if err != nil {
		t.Fatalf("CropROI: %v", err)
	}
	if roi != image.Rect(0, 0, 480, 480) {
		t.Errorf("expected full sensor, got %v", roi)
	}
}

func TestRGB565RoundTripExtremes(t *testing.T) {
	r, g, b := UnpackRGB565(PackRGB565(0xFF, 0xFF, 0xFF))
	if r != 0xFF || g != 0xFF || b != 0xFF {
		t.Errorf("expected white, got %d %d %d", r, g, b)
	}
	r, g, b = UnpackRGB565(PackRGB565(0, 0, 0))
	if r != 0 || g != 0 || b != 0 {
		t.Errorf("expected black, got %d %d %d", r, g, b)
	}
}

func newDisplay(t *testing.T) (*SimDisplay, *psram.Region, *psram.Region) {
	t.Helper()
	mem := psram.NewArena(psram.DefaultBase, 1<<16)
	a, _ := mem.Alloc("a", 8*8*4)
	b, _ := mem.Alloc("b", 8*8*4)
	d := NewSimDisplay(mem, Dims{16, 8}, 60, nil)
	if err := d.ConfigureLayer(LayerUI, LayerConfig{Window: image.Rect(0, 0, 8, 8), Format: ARGB8888, Addr: a.Addr()}); err != nil {
		t.Fatalf("ConfigureLayer: %v", err)
	}
	return d, a, b
}

func TestDisplayReloadAtVerticalBlank(t *testing.T) {
	d, a, b := newDisplay(t)

	if err := d.SetLayerAddress(LayerUI, b.Addr()); err != nil {
		t.Fatal(err)
	}
	if err := d.Reload(LayerUI, ReloadVerticalBlank); err != nil {
		t.Fatal(err)
	}
	if d.Active(LayerUI) != a.Addr() {
		t.Fatalf("expected old address until vblank, got 0x%08X", d.Active(LayerUI))
	}
	if d.Pending(LayerUI) != b.Addr() {
		t.Fatalf("expected pending register updated, got 0x%08X", d.Pending(LayerUI))
	}
	if !d.ReloadPending(LayerUI) {
		t.Error("expected reload armed before vblank")
	}
	if d.ReloadPending(LayerCamera) {
		t.Error("expected camera layer reload not armed")
	}

	d.VerticalBlank()
	if d.Active(LayerUI) != b.Addr() {
		t.Errorf("expected new address after vblank, got 0x%08X", d.Active(LayerUI))
	}
	if d.ReloadPending(LayerUI) {
		t.Error("expected reload cleared by vblank")
	}
}

func TestDisplayReloadImmediate(t *testing.T) {
	d, _, b := newDisplay(t)
	_ = d.SetLayerAddress(LayerUI, b.Addr())
	_ = d.Reload(LayerUI, ReloadImmediate)
	if d.Active(LayerUI) != b.Addr() {
		t.Errorf("expected immediate latch, got 0x%08X", d.Active(LayerUI))
	}
}

func TestDisplayRejectsBadInput(t *testing.T) {
	d, _, _ := newDisplay(t)
	if err := d.SetLayerAddress(Layer(5), psram.DefaultBase); !errors.Is(err, ErrLayer) {
		t.Errorf("expected ErrLayer, got %v", err)
	}
	if err := d.SetLayerAddress(LayerUI, 3); !errors.Is(err, ErrAddress) {
		t.Errorf("expected ErrAddress, got %v", err)
	}
	if err := d.ConfigureLayer(LayerCamera, LayerConfig{Window: image.Rect(10, 0, 30, 8)}); !errors.Is(err, ErrLayer) {
		t.Errorf("expected window overflow to fail, got %v", err)
	}
}

func TestDisplayCompose(t *testing.T) {
	d, a, _ := newDisplay(t)
	a.Write(func(b []byte) {
		b[0], b[1], b[2], b[3] = 0x10, 0x20, 0x30, 0xFF
	})

	img, err := d.Compose()
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if img.Bounds().Dx() != 16 {
		t.Fatalf("expected panel width 16, got %d", img.Bounds().Dx())
	}
	c := img.NRGBAAt(0, 0)
	if c.R != 0x10 || c.G != 0x20 || c.B != 0x30 {
		t.Errorf("expected UI pixel composed, got %+v", c)
	}
	if bg := img.NRGBAAt(12, 0); bg.R != 0 || bg.A != 0xFF {
		t.Errorf("expected opaque black background, got %+v", bg)
	}

	path := filepath.Join(t.TempDir(), "panel.png")
	if err := d.Snapshot(path); err != nil {
		t.Errorf("Snapshot: %v", err)
	}
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) OnVerticalSync(p PipeID) {
	r.mu.Lock()
	r.events = append(r.events, "vsync:"+p.String())
	r.mu.Unlock()
}

func (r *recorder) OnFrameComplete(p PipeID) {
	r.mu.Lock()
	r.events = append(r.events, "frame:"+p.String())
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestSimCameraSnapshotFrame(t *testing.T) {
	mem := psram.NewArena(psram.DefaultBase, 1<<16)
	buf, _ := mem.Alloc("frame", 16*16*2)
	cam := NewSimCamera(mem, Dims{64, 64}, 200, 0, nil)

	if err := cam.Start(PipeDisplay, buf.Addr(), CaptureSnapshot); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if err := cam.ConfigurePipe(PipeDisplay, PipeConfig{Crop: image.Rect(0, 0, 64, 64), Output: Dims{16, 16}, Format: RGB565}); err != nil {
		t.Fatal(err)
	}
	if err := cam.Start(PipeDisplay, buf.Addr(), CaptureSnapshot); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	cam.Run(ctx, rec)

	got := rec.snapshot()
	if len(got) != 2 || got[0] != "vsync:display" || got[1] != "frame:display" {
		t.Fatalf("expected one vsync then one frame, got %v", got)
	}
	if cam.Stats().DisplayFrames != 1 {
		t.Errorf("expected 1 frame, got %d", cam.Stats().DisplayFrames)
	}

	nonZero := false
	buf.Read(func(b []byte) {
		for _, v := range b {
			if v != 0 {
				nonZero = true
				break
			}
		}
	})
	if !nonZero {
		t.Error("expected pattern written to frame buffer")
	}
}

func TestSimCameraRedirect(t *testing.T) {
	mem := psram.NewArena(psram.DefaultBase, 1<<12)
	cam := NewSimCamera(mem, Dims{64, 64}, 30, 0, nil)

	if err := cam.RedirectCapture(PipeID(7), psram.DefaultBase); !errors.Is(err, ErrPipe) {
		t.Errorf("expected ErrPipe, got %v", err)
	}
	if err := cam.RedirectCapture(PipeDisplay, psram.DefaultBase+64); err != nil {
		t.Fatalf("RedirectCapture: %v", err)
	}
	if cam.Target(PipeDisplay) != psram.DefaultBase+64 {
		t.Errorf("expected target updated, got 0x%08X", cam.Target(PipeDisplay))
	}

	cam.InjectBusFault()
	if err := cam.RedirectCapture(PipeDisplay, psram.DefaultBase); !errors.Is(err, ErrBus) {
		t.Errorf("expected injected ErrBus, got %v", err)
	}
	if err := cam.RedirectCapture(PipeDisplay, psram.DefaultBase); err != nil {
		t.Errorf("expected fault to be one-shot, got %v", err)
	}
}
