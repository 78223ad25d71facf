package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	// Panel geometry (RGB565 background, ARGB overlay on the top half)
	LCDWidth        = 800
	LCDHeight       = 480
	LetterboxX0     = 160 // camera layer is centred, overlay panel fills the left margin
	LetterboxWidth  = 480
	LetterboxHeight = 480
	UILayerHeight   = LCDHeight / 2
	RefreshHz       = 60

	// Capture
	CameraFPS    = 30
	DisplayDelay = 1 // frames between "captured" and "shown"; slots = delay + 2
	SensorWidth  = 2592
	SensorHeight = 1944
	MLWidth      = 480
	MLHeight     = 480

	// Threads
	UIPeriod     = 10 * time.Millisecond
	IdleQuantum  = time.Millisecond
	ISPCost      = 3 * time.Millisecond
	CoreClockMHz = 800

	// External RAM
	PSRAMSize = 32 << 20

	// Dashboard
	TargetFPS     = 10
	StatsInterval = 5 * time.Second // headless stats log period
	AspectRatio   = 0.5             // terminal cell width/height
	DialRings     = 2
	LoadHistory   = 120 // sparkline samples kept by the dashboard

	// App
	AppName    = "FRAMEPIPE"
	AppVersion = "1.0"
)

// Load sources
const (
	SourceSim  = "sim"
	SourceHost = "host"
)

// Config holds the runtime-tunable settings. Anything not set in a config
// file keeps the DefaultConfig value.
type Config struct {
	Capture CaptureConfig `yaml:"capture" toml:"capture"`
	Display DisplayConfig `yaml:"display" toml:"display"`
	Load    LoadConfig    `yaml:"load" toml:"load"`
	Tuning  TuningConfig  `yaml:"tuning" toml:"tuning"`
	Log     LogConfig     `yaml:"log" toml:"log"`
}

// CaptureConfig describes the sensor and the two capture pipes.
type CaptureConfig struct {
	FPS          int `yaml:"fps" toml:"fps"`
	DelayDepth   int `yaml:"delay_depth" toml:"delay_depth"`
	SensorWidth  int `yaml:"sensor_width" toml:"sensor_width"`
	SensorHeight int `yaml:"sensor_height" toml:"sensor_height"`
	Width        int `yaml:"width" toml:"width"`
	Height       int `yaml:"height" toml:"height"`
	MLWidth      int `yaml:"ml_width" toml:"ml_width"`
	MLHeight     int `yaml:"ml_height" toml:"ml_height"`
	// MLEnabled starts the ML pipe into its single buffer. Its frames are
	// not part of the display ring.
	MLEnabled bool `yaml:"ml_enabled" toml:"ml_enabled"`
}

// Slots returns the capture ring size.
func (c CaptureConfig) Slots() int {
	return c.DelayDepth + 2
}

// DisplayConfig describes the panel and its layers.
type DisplayConfig struct {
	Width       int `yaml:"width" toml:"width"`
	Height      int `yaml:"height" toml:"height"`
	UIHeight    int `yaml:"ui_height" toml:"ui_height"`
	LetterboxX0 int `yaml:"letterbox_x0" toml:"letterbox_x0"`
	RefreshHz   int `yaml:"refresh_hz" toml:"refresh_hz"`
}

// LoadConfig selects and paces the CPU load sampler.
type LoadConfig struct {
	// Source is "sim" (cycle counter + idle goroutine) or "host" (host CPU times).
	Source       string        `yaml:"source" toml:"source"`
	CoreClockMHz uint32        `yaml:"core_clock_mhz" toml:"core_clock_mhz"`
	SamplePeriod time.Duration `yaml:"sample_period" toml:"sample_period"`
	IdleQuantum  time.Duration `yaml:"idle_quantum" toml:"idle_quantum"`
}

// TuningConfig paces the ISP tuning pass.
type TuningConfig struct {
	ISPCost time.Duration `yaml:"isp_cost" toml:"isp_cost"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // "text" or "json"
	File   string `yaml:"file" toml:"file"`
}

// DefaultConfig returns a Config populated from the constants above.
func DefaultConfig() *Config {
	return &Config{
		Capture: CaptureConfig{
			FPS:          CameraFPS,
			DelayDepth:   DisplayDelay,
			SensorWidth:  SensorWidth,
			SensorHeight: SensorHeight,
			Width:        LetterboxWidth,
			Height:       LetterboxHeight,
			MLWidth:      MLWidth,
			MLHeight:     MLHeight,
		},
		Display: DisplayConfig{
			Width:       LCDWidth,
			Height:      LCDHeight,
			UIHeight:    UILayerHeight,
			LetterboxX0: LetterboxX0,
			RefreshHz:   RefreshHz,
		},
		Load: LoadConfig{
			Source:       SourceSim,
			CoreClockMHz: CoreClockMHz,
			SamplePeriod: UIPeriod,
			IdleQuantum:  IdleQuantum,
		},
		Tuning: TuningConfig{
			ISPCost: ISPCost,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File:   "framepipe.log",
		},
	}
}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Validate checks the Config for values the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Capture.FPS < 1 || c.Capture.FPS > 120 {
		bad("capture.fps %d out of range [1,120]", c.Capture.FPS)
	}
	if c.Capture.DelayDepth < 1 {
		bad("capture.delay_depth %d must be >= 1 (ring needs at least 3 slots)", c.Capture.DelayDepth)
	}
	if c.Capture.Width <= 0 || c.Capture.Height <= 0 {
		bad("capture output %dx%d must be positive", c.Capture.Width, c.Capture.Height)
	}
	if c.Capture.MLWidth <= 0 || c.Capture.MLHeight <= 0 {
		bad("capture ml output %dx%d must be positive", c.Capture.MLWidth, c.Capture.MLHeight)
	}
	if c.Capture.SensorWidth < c.Capture.Width || c.Capture.SensorHeight < c.Capture.Height {
		bad("sensor %dx%d smaller than output %dx%d",
			c.Capture.SensorWidth, c.Capture.SensorHeight, c.Capture.Width, c.Capture.Height)
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		bad("display %dx%d must be positive", c.Display.Width, c.Display.Height)
	}
	if c.Display.UIHeight <= 0 || c.Display.UIHeight > c.Display.Height {
		bad("display.ui_height %d out of range (0,%d]", c.Display.UIHeight, c.Display.Height)
	}
	if c.Display.LetterboxX0+c.Capture.Width > c.Display.Width || c.Capture.Height > c.Display.Height {
		bad("camera layer %dx%d at x=%d does not fit %dx%d panel",
			c.Capture.Width, c.Capture.Height, c.Display.LetterboxX0, c.Display.Width, c.Display.Height)
	}
	if c.Display.RefreshHz < 1 {
		bad("display.refresh_hz %d must be positive", c.Display.RefreshHz)
	} else if c.Capture.FPS > c.Display.RefreshHz {
		// Each advance points DMA at the slot whose replacement only latches
		// at the next vertical blank.
		bad("capture.fps %d exceeds display.refresh_hz %d", c.Capture.FPS, c.Display.RefreshHz)
	}
	if c.Load.Source != SourceSim && c.Load.Source != SourceHost {
		bad("load.source %q must be %q or %q", c.Load.Source, SourceSim, SourceHost)
	}
	if c.Load.CoreClockMHz == 0 {
		bad("load.core_clock_mhz must be positive")
	}
	if c.Load.SamplePeriod <= 0 {
		bad("load.sample_period must be positive")
	}
	if c.Load.IdleQuantum <= 0 {
		bad("load.idle_quantum must be positive")
	}
	if c.Tuning.ISPCost < 0 {
		bad("tuning.isp_cost must not be negative")
	}

	return errors.Join(errs...)
}

// FrameInterval returns the capture frame period.
func (c *Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.Capture.FPS)
}

// RefreshInterval returns the display refresh period.
func (c *Config) RefreshInterval() time.Duration {
	return time.Second / time.Duration(c.Display.RefreshHz)
}
