package hal

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"framepipe.klederson.com/internal/psram"
)

type simPipe struct {
	mu         sync.Mutex
	cfg        PipeConfig
	configured bool
	mode       CaptureMode

	started atomic.Bool
	target  atomic.Uint32 // next DMA destination, latched at frame start
	frames  atomic.Uint64
}

// SimCamera is a Camera that paints a moving test pattern into psram at a
// fixed frame rate. Events are delivered from its own goroutine, which plays
// the part of interrupt context.
type SimCamera struct {
	mem     *psram.Arena
	sensor  Dims
	period  time.Duration
	ispCost time.Duration
	logger  *slog.Logger

	pipes [3]simPipe // indexed by PipeID

	ispRuns   atomic.Uint64
	busFaults atomic.Uint64
	injectBus atomic.Bool
}

// SimCameraStats are the camera's lifetime counters.
type SimCameraStats struct {
	DisplayFrames uint64
	MLFrames      uint64
	ISPRuns       uint64
	BusFaults     uint64
}

// NewSimCamera creates a simulated sensor of the given size running at fps.
func NewSimCamera(mem *psram.Arena, sensor Dims, fps int, ispCost time.Duration, logger *slog.Logger) *SimCamera {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if fps < 1 {
		fps = 1
	}
	return &SimCamera{
		mem:     mem,
		sensor:  sensor,
		period:  time.Second / time.Duration(fps),
		ispCost: ispCost,
		logger:  logger.With("component", "simcam"),
	}
}

func (c *SimCamera) pipe(id PipeID) (*simPipe, error) {
	if id != PipeDisplay && id != PipeML {
		return nil, fmt.Errorf("%w: %d", ErrPipe, id)
	}
	return &c.pipes[id], nil
}

// SensorDims implements Camera.
func (c *SimCamera) SensorDims() Dims { return c.sensor }

// ConfigurePipe implements Camera.
func (c *SimCamera) ConfigurePipe(id PipeID, cfg PipeConfig) error {
	p, err := c.pipe(id)
	if err != nil {
		return err
	}
	if cfg.Output.W <= 0 || cfg.Output.H <= 0 {
		return fmt.Errorf("%w: %s output %dx%d", ErrScale, id, cfg.Output.W, cfg.Output.H)
	}
	if cfg.Crop.Dx() < cfg.Output.W || cfg.Crop.Dy() < cfg.Output.H {
		return fmt.Errorf("%w: %s crop %v to %dx%d", ErrScale, id, cfg.Crop, cfg.Output.W, cfg.Output.H)
	}

	p.mu.Lock()
	p.cfg = cfg
	p.configured = true
	p.mu.Unlock()

	c.logger.Debug("pipe configured", "pipe", id, "crop", cfg.Crop, "out_w", cfg.Output.W, "out_h", cfg.Output.H, "format", cfg.Format)
	return nil
}

// Start implements Camera.
func (c *SimCamera) Start(id PipeID, addr uint32, mode CaptureMode) error {
	p, err := c.pipe(id)
	if err != nil {
		return err
	}
	p.mu.Lock()
	configured, cfg := p.configured, p.cfg
	p.mode = mode
	p.mu.Unlock()
	if !configured {
		return fmt.Errorf("%w: %s", ErrNotConfigured, id)
	}

	r, err := c.mem.Lookup(addr)
	if err != nil {
		return fmt.Errorf("%w: %s start: %v", ErrAddress, id, err)
	}
	if need := cfg.Output.FrameSize(cfg.Format); r.Size() < need {
		return fmt.Errorf("%w: %s region %s holds %d bytes, frame needs %d", ErrAddress, id, r.Name(), r.Size(), need)
	}

	p.target.Store(addr)
	p.started.Store(true)
	c.logger.Info("pipe started", "pipe", id, "addr", fmt.Sprintf("0x%08X", addr))
	return nil
}

// RedirectCapture implements Camera. The new address is used from the next
// frame start on.
func (c *SimCamera) RedirectCapture(id PipeID, addr uint32) error {
	p, err := c.pipe(id)
	if err != nil {
		return err
	}
	if c.injectBus.CompareAndSwap(true, false) {
		c.busFaults.Add(1)
		return fmt.Errorf("%w: %s redirect to 0x%08X", ErrBus, id, addr)
	}
	if addr == 0 || addr%psram.Align != 0 {
		return fmt.Errorf("%w: %s redirect to 0x%08X", ErrAddress, id, addr)
	}
	p.target.Store(addr)
	return nil
}

// RunISP implements Camera. The simulated statistics pass just takes time.
func (c *SimCamera) RunISP() error {
	if c.ispCost > 0 {
		time.Sleep(c.ispCost)
	}
	c.ispRuns.Add(1)
	return nil
}

// InjectBusFault makes the next RedirectCapture fail.
func (c *SimCamera) InjectBusFault() {
	c.injectBus.Store(true)
}

// Stats returns the camera counters.
func (c *SimCamera) Stats() SimCameraStats {
	return SimCameraStats{
		DisplayFrames: c.pipes[PipeDisplay].frames.Load(),
		MLFrames:      c.pipes[PipeML].frames.Load(),
		ISPRuns:       c.ispRuns.Load(),
		BusFaults:     c.busFaults.Load(),
	}
}

// Target returns the address the pipe will write its next frame to.
func (c *SimCamera) Target(id PipeID) uint32 {
	p, err := c.pipe(id)
	if err != nil {
		return 0
	}
	return p.target.Load()
}

// Run streams frames to h until ctx is done.
func (c *SimCamera) Run(ctx context.Context, h EventHandler) {
	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	var frame uint32
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame++
			c.emitFrame(PipeDisplay, frame, h)
			c.emitFrame(PipeML, frame, h)
		}
	}
}

func (c *SimCamera) emitFrame(id PipeID, frame uint32, h EventHandler) {
	p := &c.pipes[id]
	if !p.started.Load() {
		return
	}

	addr := p.target.Load()
	h.OnVerticalSync(id)

	p.mu.Lock()
	cfg, mode := p.cfg, p.mode
	p.mu.Unlock()

	r, err := c.mem.Lookup(addr)
	if err != nil {
		c.busFaults.Add(1)
		c.logger.Error("dma target unmapped, frame dropped", "pipe", id, "addr", fmt.Sprintf("0x%08X", addr))
		return
	}
	r.Write(func(b []byte) { paintPattern(b, cfg, frame) })

	p.frames.Add(1)
	if mode == CaptureSnapshot {
		p.started.Store(false)
	}
	h.OnFrameComplete(id)
}

// paintPattern fills one frame with diagonal colour bars drifting with the
// frame number and a brightness that breathes over a few seconds.
func paintPattern(b []byte, cfg PipeConfig, frame uint32) {
	w, h := cfg.Output.W, cfg.Output.H
	bpp := cfg.Format.BytesPerPixel()
	if len(b) < w*h*bpp {
		return
	}
	gain := 0.6 + 0.4*math.Sin(float64(frame)*0.05)

	for y := 0; y < h; y++ {
		row := b[y*w*bpp : (y+1)*w*bpp]
		for x := 0; x < w; x++ {
			band := (x + y + int(frame)*4) / 40 % 6
			r, g, bl := barColor(band)
			r = uint8(float64(r) * gain)
			g = uint8(float64(g) * gain)
			bl = uint8(float64(bl) * gain)

			px := row[x*bpp:]
			switch cfg.Format {
			case RGB565:
				binary.LittleEndian.PutUint16(px, PackRGB565(r, g, bl))
			case RGB888:
				if cfg.SwapRB {
					r, bl = bl, r
				}
				px[0], px[1], px[2] = r, g, bl
			default:
				px[0], px[1], px[2], px[3] = r, g, bl, 0xFF
			}
		}
	}
}

var bars = [6][3]uint8{
	{0xFF, 0x00, 0x00},
	{0xFF, 0xFF, 0x00},
	{0x00, 0xFF, 0x00},
	{0x00, 0xFF, 0xFF},
	{0x00, 0x00, 0xFF},
	{0xFF, 0x00, 0xFF},
}

func barColor(band int) (uint8, uint8, uint8) {
	c := bars[band]
	return c[0], c[1], c[2]
}

// PackRGB565 packs 8-bit channels into a 16-bit RGB565 word.
func PackRGB565(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}

// UnpackRGB565 expands an RGB565 word to 8-bit channels.
func UnpackRGB565(v uint16) (r, g, b uint8) {
	r5 := uint8(v >> 11 & 0x1F)
	g6 := uint8(v >> 5 & 0x3F)
	b5 := uint8(v & 0x1F)
	return r5<<3 | r5>>2, g6<<2 | g6>>4, b5<<3 | b5>>2
}
