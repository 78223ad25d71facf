// Package pipeline owns the frame buffers and the goroutines that move them:
// the capture event handlers (run from interrupt context), the ISP tuning
// loop, the overlay drawing loop and the idle loop that feeds the CPU load
// meter.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"framepipe.klederson.com/internal/config"
	"framepipe.klederson.com/internal/cpuload"
	"framepipe.klederson.com/internal/fault"
	"framepipe.klederson.com/internal/framebuf"
	"framepipe.klederson.com/internal/hal"
	"framepipe.klederson.com/internal/handoff"
	"framepipe.klederson.com/internal/psram"
	"framepipe.klederson.com/internal/sched"
)

// ErrStarted is returned by Start on a running pipeline.
var ErrStarted = errors.New("pipeline: already started")

// Deps are the collaborators a Pipeline drives. Camera, Display and Memory
// are required.
type Deps struct {
	Camera  hal.Camera
	Display hal.Display
	Memory  *psram.Arena

	// Halter receives the first fatal fault. Defaults to a Latch that only logs.
	Halter fault.Halter
	Logger *slog.Logger
	// Counter times the idle meter. Defaults to a CycleCounter at the
	// configured core clock.
	Counter cpuload.Counter
	// LoadSource overrides the source selected by config.
	LoadSource cpuload.Source
	// Clock feeds the sampler's tick. Defaults to milliseconds since New.
	Clock cpuload.Clock
}

// Pipeline is the context object tying the buffers to their owners.
type Pipeline struct {
	cfg    *config.Config
	cam    hal.Camera
	disp   hal.Display
	mem    *psram.Arena
	halter fault.Halter
	logger *slog.Logger

	ring    *framebuf.Ring
	overlay *framebuf.Overlay
	mlBuf   *psram.Region
	vsync   *handoff.Signal
	idle    *cpuload.IdleMeter
	sampler *cpuload.Sampler
	tracker *sched.Tracker

	// bound once so the interrupt path does not allocate
	redirectFn func(framebuf.Slot) error
	commitFn   func(framebuf.Slot) error

	wantVisible atomic.Bool
	halted      atomic.Bool
	fault       atomic.Pointer[fault.Fault]

	frames       atomic.Uint64
	ignored      atomic.Uint64
	tuningPasses atomic.Uint64
	uiFrames     atomic.Uint64
	latchWaits   atomic.Uint64
	lateLatches  atomic.Uint64
	sampleErrs   atomic.Uint64

	bootTime time.Time

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
}

// New allocates every buffer from deps.Memory and wires the components. No
// goroutine runs and no hardware is touched until Start.
func New(cfg *config.Config, deps Deps) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Camera == nil || deps.Display == nil || deps.Memory == nil {
		return nil, errors.New("pipeline: camera, display and memory are required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	p := &Pipeline{
		cfg:      cfg,
		cam:      deps.Camera,
		disp:     deps.Display,
		mem:      deps.Memory,
		halter:   deps.Halter,
		logger:   logger.With("component", "pipeline"),
		vsync:    handoff.New(),
		tracker:  sched.New(cfg.Load.IdleQuantum),
		bootTime: time.Now(),
	}
	if p.halter == nil {
		p.halter = fault.NewLatch(logger, nil)
	}

	if err := p.allocBuffers(); err != nil {
		return nil, err
	}

	counter := deps.Counter
	if counter == nil {
		counter = cpuload.NewCycleCounter(cfg.Load.CoreClockMHz)
	}
	p.idle = cpuload.NewIdleMeter(counter)

	src := deps.LoadSource
	if src == nil {
		switch cfg.Load.Source {
		case config.SourceHost:
			src = cpuload.NewHostSource()
		default:
			src = cpuload.SimSource{Counter: counter, Idle: p.idle}
		}
	}
	clock := deps.Clock
	if clock == nil {
		clock = cpuload.MillisSince(p.bootTime)
	}
	p.sampler = cpuload.NewSampler(src, clock)

	p.redirectFn = p.redirectCapture
	p.commitFn = p.commitDisplay
	p.wantVisible.Store(true)
	return p, nil
}

func (p *Pipeline) allocBuffers() error {
	camDims := hal.Dims{W: p.cfg.Capture.Width, H: p.cfg.Capture.Height}
	camSize := camDims.FrameSize(hal.RGB565)

	slots := make([]*psram.Region, p.cfg.Capture.Slots())
	for i := range slots {
		r, err := p.mem.Alloc(fmt.Sprintf("camera%d", i), camSize)
		if err != nil {
			return fmt.Errorf("pipeline: alloc capture ring: %w", err)
		}
		slots[i] = r
	}
	ring, err := framebuf.NewRing(slots)
	if err != nil {
		return err
	}
	p.ring = ring

	uiDims := p.uiDims()
	var ui [2]*psram.Region
	for i := range ui {
		r, err := p.mem.Alloc(fmt.Sprintf("ui%d", i), uiDims.FrameSize(hal.ARGB8888))
		if err != nil {
			return fmt.Errorf("pipeline: alloc overlay: %w", err)
		}
		ui[i] = r
	}
	overlay, err := framebuf.NewOverlay(ui, uiDims, p.disp, hal.LayerUI)
	if err != nil {
		return err
	}
	p.overlay = overlay

	mlDims := hal.Dims{W: p.cfg.Capture.MLWidth, H: p.cfg.Capture.MLHeight}
	p.mlBuf, err = p.mem.Alloc("ml", mlDims.FrameSize(hal.RGB888))
	if err != nil {
		return fmt.Errorf("pipeline: alloc ml buffer: %w", err)
	}
	return nil
}

func (p *Pipeline) uiDims() hal.Dims {
	return hal.Dims{W: p.cfg.Display.Width, H: p.cfg.Display.UIHeight}
}

// InitBuffers zeroes every buffer and resets ring and overlay indices. It is
// called by Start; calling it while capture runs is a bug.
func (p *Pipeline) InitBuffers() error {
	p.ring.Init()
	p.mlBuf.Zero()
	return p.overlay.Init()
}

// Start brings up display layers and capture pipes, then runs the tuning,
// overlay and idle goroutines until ctx is done. Configuration failures are
// returned; failures once running go to the Halter.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrStarted
	}

	if err := p.configureDisplay(); err != nil {
		return err
	}
	if err := p.InitBuffers(); err != nil {
		return err
	}
	if err := p.configureCamera(); err != nil {
		return err
	}

	if err := p.cam.Start(hal.PipeDisplay, p.ring.CaptureSlot().Addr(), hal.CaptureContinuous); err != nil {
		return fmt.Errorf("pipeline: start display pipe: %w", err)
	}
	if p.cfg.Capture.MLEnabled {
		if err := p.cam.Start(hal.PipeML, p.mlBuf.Addr(), hal.CaptureContinuous); err != nil {
			return fmt.Errorf("pipeline: start ml pipe: %w", err)
		}
	}

	p.wg.Add(3)
	go p.tuningLoop(ctx)
	go p.overlayLoop(ctx)
	go p.idleLoop(ctx)
	p.started = true
	p.logger.Info("pipeline started",
		"slots", p.ring.Len(),
		"fps", p.cfg.Capture.FPS,
		"load_source", p.cfg.Load.Source,
		"psram", p.mem.Stats(),
	)
	return nil
}

func (p *Pipeline) configureDisplay() error {
	x0 := p.cfg.Display.LetterboxX0
	camWin := image.Rect(x0, 0, x0+p.cfg.Capture.Width, p.cfg.Capture.Height)
	err := p.disp.ConfigureLayer(hal.LayerCamera, hal.LayerConfig{
		Window: camWin,
		Format: hal.RGB565,
		Addr:   p.ring.DisplaySlot().Addr(),
	})
	if err != nil {
		return fmt.Errorf("pipeline: camera layer: %w", err)
	}

	ui := p.uiDims()
	err = p.disp.ConfigureLayer(hal.LayerUI, hal.LayerConfig{
		Window: image.Rect(0, 0, ui.W, ui.H),
		Format: hal.ARGB8888,
		Addr:   p.overlay.FrontSlot().Addr(),
	})
	if err != nil {
		return fmt.Errorf("pipeline: ui layer: %w", err)
	}
	if err := p.disp.SetAlpha(hal.LayerUI, 0xFF); err != nil {
		return fmt.Errorf("pipeline: ui alpha: %w", err)
	}
	return nil
}

func (p *Pipeline) configureCamera() error {
	sensor := p.cam.SensorDims()
	pipes := []struct {
		id     hal.PipeID
		out    hal.Dims
		format hal.PixelFormat
		swap   bool
	}{
		{hal.PipeDisplay, hal.Dims{W: p.cfg.Capture.Width, H: p.cfg.Capture.Height}, hal.RGB565, false},
		{hal.PipeML, hal.Dims{W: p.cfg.Capture.MLWidth, H: p.cfg.Capture.MLHeight}, hal.RGB888, true},
	}
	for _, pc := range pipes {
		roi, err := hal.CropROI(sensor, pc.out)
		if err != nil {
			return fmt.Errorf("pipeline: %s pipe: %w", pc.id, err)
		}
		err = p.cam.ConfigurePipe(pc.id, hal.PipeConfig{Crop: roi, Output: pc.out, Format: pc.format, SwapRB: pc.swap})
		if err != nil {
			return fmt.Errorf("pipeline: %s pipe: %w", pc.id, err)
		}
	}
	return nil
}

// Wait blocks until every pipeline goroutine has returned.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// OnFrameComplete advances the capture ring. Interrupt context: it never
// blocks, logs or allocates.
func (p *Pipeline) OnFrameComplete(pipe hal.PipeID) {
	if pipe != hal.PipeDisplay {
		p.ignored.Add(1)
		return
	}
	if p.halted.Load() {
		return
	}
	// The last committed slot has not latched yet. Advancing now would point
	// DMA at it, so this frame is dropped and capture keeps its slot.
	if p.disp.ReloadPending(hal.LayerCamera) {
		p.lateLatches.Add(1)
		return
	}
	if _, err := p.ring.Advance(p.redirectFn, p.commitFn); err != nil {
		p.fail(err)
		return
	}
	p.frames.Add(1)
}

// OnVerticalSync schedules a tuning pass. Interrupt context.
func (p *Pipeline) OnVerticalSync(pipe hal.PipeID) {
	if pipe != hal.PipeDisplay {
		return
	}
	p.SignalTuningDue()
}

func (p *Pipeline) redirectCapture(s framebuf.Slot) error {
	return p.cam.RedirectCapture(hal.PipeDisplay, s.Addr())
}

func (p *Pipeline) commitDisplay(s framebuf.Slot) error {
	if err := p.disp.SetLayerAddress(hal.LayerCamera, s.Addr()); err != nil {
		return err
	}
	return p.disp.Reload(hal.LayerCamera, hal.ReloadVerticalBlank)
}

// fail latches err as the system fault and hands it to the Halter. Only the
// first call has any effect.
func (p *Pipeline) fail(err error) {
	if !p.halted.CompareAndSwap(false, true) {
		return
	}
	f, ok := fault.As(err)
	if !ok {
		f = &fault.Fault{Op: "pipeline", File: "???", Err: err}
	}
	p.fault.Store(f)
	p.halter.Halt(f)
}

// Halted reports whether a fatal fault has been raised.
func (p *Pipeline) Halted() bool { return p.halted.Load() }

// Fault returns the latched fault, or nil.
func (p *Pipeline) Fault() *fault.Fault { return p.fault.Load() }
