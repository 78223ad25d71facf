// Package hal defines the camera and display engines the pipeline drives,
// plus simulated implementations of both backed by a psram.Arena.
package hal

import (
	"errors"
	"fmt"
	"image"
)

var (
	ErrPipe          = errors.New("hal: unknown pipe")
	ErrNotConfigured = errors.New("hal: pipe not configured")
	ErrLayer         = errors.New("hal: unknown layer")
	ErrScale         = errors.New("hal: output larger than crop window")
	ErrAddress       = errors.New("hal: bad buffer address")
	ErrBus           = errors.New("hal: bus error")
)

// PipeID selects a capture pipe.
type PipeID uint8

const (
	PipeDisplay PipeID = 1
	PipeML      PipeID = 2
)

func (p PipeID) String() string {
	switch p {
	case PipeDisplay:
		return "display"
	case PipeML:
		return "ml"
	default:
		return fmt.Sprintf("pipe%d", uint8(p))
	}
}

// Layer selects a display layer.
type Layer uint8

const (
	LayerCamera Layer = 0
	LayerUI     Layer = 1
)

func (l Layer) String() string {
	switch l {
	case LayerCamera:
		return "camera"
	case LayerUI:
		return "ui"
	default:
		return fmt.Sprintf("layer%d", uint8(l))
	}
}

// ReloadMode says when a new layer address takes effect.
type ReloadMode uint8

const (
	ReloadImmediate ReloadMode = iota
	ReloadVerticalBlank
)

// CaptureMode selects continuous or single-shot capture.
type CaptureMode uint8

const (
	CaptureContinuous CaptureMode = iota
	CaptureSnapshot
)

// PixelFormat is a frame buffer pixel layout.
type PixelFormat uint8

const (
	RGB565 PixelFormat = iota
	RGB888
	ARGB8888
)

// BytesPerPixel returns the storage size of one pixel.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case RGB565:
		return 2
	case RGB888:
		return 3
	default:
		return 4
	}
}

func (f PixelFormat) String() string {
	switch f {
	case RGB565:
		return "RGB565"
	case RGB888:
		return "RGB888"
	case ARGB8888:
		return "ARGB8888"
	default:
		return "unknown"
	}
}

// Dims is a width/height pair in pixels.
type Dims struct {
	W, H int
}

// FrameSize returns the bytes needed for one frame of f at d.
func (d Dims) FrameSize(f PixelFormat) int {
	return d.W * d.H * f.BytesPerPixel()
}

// PipeConfig is the output stage of one capture pipe.
type PipeConfig struct {
	Crop   image.Rectangle // sensor window, before downscale
	Output Dims
	Format PixelFormat
	// SwapRB selects BGR byte order on RGB888 output.
	SwapRB bool
}

// LayerConfig places a display layer on the panel.
type LayerConfig struct {
	Window image.Rectangle
	Format PixelFormat
	Addr   uint32
}

// Camera is the capture engine. RedirectCapture is called from interrupt
// context and must not block.
type Camera interface {
	SensorDims() Dims
	ConfigurePipe(pipe PipeID, cfg PipeConfig) error
	Start(pipe PipeID, addr uint32, mode CaptureMode) error
	RedirectCapture(pipe PipeID, addr uint32) error
	RunISP() error
}

// Display is the panel controller. SetLayerAddress and Reload are called from
// interrupt context and must not block.
type Display interface {
	ConfigureLayer(layer Layer, cfg LayerConfig) error
	SetLayerAddress(layer Layer, addr uint32) error
	Reload(layer Layer, mode ReloadMode) error
	// ReloadPending reports whether a vertical-blank reload is armed and
	// not yet latched.
	ReloadPending(layer Layer) bool
	SetAlpha(layer Layer, alpha uint8) error
}

// EventHandler receives capture events. Both methods run in interrupt
// context.
type EventHandler interface {
	// OnVerticalSync fires at the start of each captured frame.
	OnVerticalSync(pipe PipeID)
	// OnFrameComplete fires once a frame has fully landed in memory.
	OnFrameComplete(pipe PipeID)
}
