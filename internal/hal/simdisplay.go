package hal

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"

	"framepipe.klederson.com/internal/psram"
)

type simLayer struct {
	mu         sync.Mutex
	window     image.Rectangle
	format     PixelFormat
	configured bool

	pending atomic.Uint32 // shadow register, written by SetLayerAddress
	active  atomic.Uint32 // scanned out
	reload  atomic.Bool   // latch pending at next vertical blank
	alpha   atomic.Uint32
}

// SimDisplay is a two-layer panel controller. Layer addresses go through a
// shadow register: a Reload either latches it immediately or arms a latch
// that fires on the next vertical blank.
type SimDisplay struct {
	mem    *psram.Arena
	size   Dims
	period time.Duration
	logger *slog.Logger

	layers  [2]simLayer
	vblanks atomic.Uint64
	latches atomic.Uint64
}

// NewSimDisplay creates a panel of the given size refreshing at hz.
func NewSimDisplay(mem *psram.Arena, size Dims, hz int, logger *slog.Logger) *SimDisplay {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if hz < 1 {
		hz = 1
	}
	d := &SimDisplay{
		mem:    mem,
		size:   size,
		period: time.Second / time.Duration(hz),
		logger: logger.With("component", "simdisplay"),
	}
	for i := range d.layers {
		d.layers[i].alpha.Store(0xFF)
	}
	return d
}

func (d *SimDisplay) layer(l Layer) (*simLayer, error) {
	if int(l) >= len(d.layers) {
		return nil, fmt.Errorf("%w: %d", ErrLayer, l)
	}
	return &d.layers[l], nil
}

// Size returns the panel dimensions.
func (d *SimDisplay) Size() Dims { return d.size }

// ConfigureLayer implements Display. The address takes effect immediately.
func (d *SimDisplay) ConfigureLayer(l Layer, cfg LayerConfig) error {
	ly, err := d.layer(l)
	if err != nil {
		return err
	}
	if !cfg.Window.In(image.Rect(0, 0, d.size.W, d.size.H)) || cfg.Window.Empty() {
		return fmt.Errorf("%w: %s window %v outside %dx%d panel", ErrLayer, l, cfg.Window, d.size.W, d.size.H)
	}

	ly.mu.Lock()
	ly.window = cfg.Window
	ly.format = cfg.Format
	ly.configured = true
	ly.mu.Unlock()

	ly.pending.Store(cfg.Addr)
	ly.active.Store(cfg.Addr)
	d.logger.Debug("layer configured", "layer", l, "window", cfg.Window, "format", cfg.Format)
	return nil
}

// SetLayerAddress implements Display.
func (d *SimDisplay) SetLayerAddress(l Layer, addr uint32) error {
	ly, err := d.layer(l)
	if err != nil {
		return err
	}
	if addr == 0 || addr%psram.Align != 0 {
		return fmt.Errorf("%w: %s layer 0x%08X", ErrAddress, l, addr)
	}
	ly.pending.Store(addr)
	return nil
}

// Reload implements Display.
func (d *SimDisplay) Reload(l Layer, mode ReloadMode) error {
	ly, err := d.layer(l)
	if err != nil {
		return err
	}
	switch mode {
	case ReloadImmediate:
		ly.active.Store(ly.pending.Load())
		ly.reload.Store(false)
	case ReloadVerticalBlank:
		ly.reload.Store(true)
	default:
		return fmt.Errorf("hal: unknown reload mode %d", mode)
	}
	return nil
}

// ReloadPending implements Display.
func (d *SimDisplay) ReloadPending(l Layer) bool {
	ly, err := d.layer(l)
	if err != nil {
		return false
	}
	return ly.reload.Load()
}

// SetAlpha implements Display.
func (d *SimDisplay) SetAlpha(l Layer, alpha uint8) error {
	ly, err := d.layer(l)
	if err != nil {
		return err
	}
	ly.alpha.Store(uint32(alpha))
	return nil
}

// VerticalBlank latches every armed layer. Run calls it once per refresh.
func (d *SimDisplay) VerticalBlank() {
	for i := range d.layers {
		ly := &d.layers[i]
		if ly.reload.CompareAndSwap(true, false) {
			ly.active.Store(ly.pending.Load())
			d.latches.Add(1)
		}
	}
	d.vblanks.Add(1)
}

// Run generates vertical blanks until ctx is done.
func (d *SimDisplay) Run(ctx context.Context) {
	ticker := time.NewTicker(d.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.VerticalBlank()
		}
	}
}

// Active returns the address the layer is scanning out.
func (d *SimDisplay) Active(l Layer) uint32 {
	if ly, err := d.layer(l); err == nil {
		return ly.active.Load()
	}
	return 0
}

// Pending returns the layer's shadow register.
func (d *SimDisplay) Pending(l Layer) uint32 {
	if ly, err := d.layer(l); err == nil {
		return ly.pending.Load()
	}
	return 0
}

// VBlanks returns the number of vertical blanks generated.
func (d *SimDisplay) VBlanks() uint64 { return d.vblanks.Load() }

// Compose renders what the panel is showing right now: a black background,
// the camera layer, then the UI layer blended at its alpha.
func (d *SimDisplay) Compose() (*image.NRGBA, error) {
	out := imaging.New(d.size.W, d.size.H, color.NRGBA{A: 0xFF})

	for i := range d.layers {
		ly := &d.layers[i]
		ly.mu.Lock()
		window, format, configured := ly.window, ly.format, ly.configured
		ly.mu.Unlock()
		if !configured {
			continue
		}

		addr := ly.active.Load()
		r, err := d.mem.Lookup(addr)
		if err != nil {
			return nil, fmt.Errorf("%w: %s layer scan-out: %v", ErrBus, Layer(i), err)
		}

		var img *image.NRGBA
		r.Read(func(b []byte) {
			img = decodeLayer(b, window.Dx(), window.Dy(), format)
		})
		if img == nil {
			return nil, fmt.Errorf("%w: %s layer region %s too small", ErrBus, Layer(i), r.Name())
		}
		out = imaging.Overlay(out, img, window.Min, float64(ly.alpha.Load())/255)
	}
	return out, nil
}

// Snapshot composes the panel and writes it to path. The image format follows
// the file extension.
func (d *SimDisplay) Snapshot(path string) error {
	img, err := d.Compose()
	if err != nil {
		return err
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("hal: save snapshot: %w", err)
	}
	return nil
}

func decodeLayer(b []byte, w, h int, format PixelFormat) *image.NRGBA {
	bpp := format.BytesPerPixel()
	if len(b) < w*h*bpp {
		return nil
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))

	switch format {
	case ARGB8888:
		// UI buffers are stored in NRGBA byte order already.
		copy(img.Pix, b[:w*h*4])
	case RGB565:
		for i := 0; i < w*h; i++ {
			r, g, bl := UnpackRGB565(binary.LittleEndian.Uint16(b[i*2:]))
			img.Pix[i*4+0], img.Pix[i*4+1], img.Pix[i*4+2], img.Pix[i*4+3] = r, g, bl, 0xFF
		}
	case RGB888:
		for i := 0; i < w*h; i++ {
			img.Pix[i*4+0], img.Pix[i*4+1], img.Pix[i*4+2], img.Pix[i*4+3] = b[i*3], b[i*3+1], b[i*3+2], 0xFF
		}
	}
	return img
}
