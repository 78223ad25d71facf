package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.Capture.Slots() != 3 {
		t.Errorf("expected 3 ring slots, got %d", cfg.Capture.Slots())
	}
	if got := cfg.FrameInterval(); got != time.Second/30 {
		t.Errorf("expected 30fps interval, got %v", got)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capture.DelayDepth = 0
	cfg.Load.Source = "gpu"
	cfg.Display.UIHeight = 0

	err := cfg.Validate()
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	for _, want := range []string{"delay_depth", "load.source", "ui_height"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in error, got %q", want, err)
		}
	}
}

func TestValidateLetterboxFit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Display.LetterboxX0 = 400
	if err := cfg.Validate(); err == nil {
		t.Error("expected camera layer overflow to fail validation")
	}
}

func TestValidateFrameRateWithinRefresh(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capture.FPS = cfg.Display.RefreshHz
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected fps equal to refresh to pass, got %v", err)
	}

	cfg.Capture.FPS = 120
	err := cfg.Validate()
	if !errors.Is(err, ErrInvalid) || !strings.Contains(err.Error(), "refresh_hz") {
		t.Errorf("expected fps above refresh to fail, got %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	src := `
capture:
  fps: 15
  delay_depth: 3
load:
  sample_period: 20ms
log:
  level: debug
`
	cfg, err := LoadFromReader(strings.NewReader(src), FormatYAML)
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Capture.FPS != 15 || cfg.Capture.Slots() != 5 {
		t.Errorf("expected fps 15 and 5 slots, got %d and %d", cfg.Capture.FPS, cfg.Capture.Slots())
	}
	if cfg.Load.SamplePeriod != 20*time.Millisecond {
		t.Errorf("expected 20ms sample period, got %v", cfg.Load.SamplePeriod)
	}
	// untouched keys keep defaults
	if cfg.Display.Width != LCDWidth {
		t.Errorf("expected default width, got %d", cfg.Display.Width)
	}
}

func TestLoadYAMLUnknownKey(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("capture:\n  fsp: 10\n"), FormatYAML)
	if err == nil {
		t.Error("expected unknown key to fail")
	}
}

func TestLoadTOML(t *testing.T) {
	src := `
[capture]
fps = 60
ml_enabled = true

[tuning]
isp_cost = "5ms"
`
	cfg, err := LoadFromReader(strings.NewReader(src), FormatTOML)
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Capture.FPS != 60 || !cfg.Capture.MLEnabled {
		t.Errorf("expected fps 60 with ml enabled, got %d and %v", cfg.Capture.FPS, cfg.Capture.MLEnabled)
	}
	if cfg.Tuning.ISPCost != 5*time.Millisecond {
		t.Errorf("expected 5ms isp cost, got %v", cfg.Tuning.ISPCost)
	}

	if _, err := LoadFromReader(strings.NewReader("[capture]\nframes = 1\n"), FormatTOML); err == nil {
		t.Error("expected unknown toml key to fail")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "framepipe.toml")
	if err := os.WriteFile(path, []byte("[capture]\nfps = 24\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv(EnvConfig, path)
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Capture.FPS != 24 {
		t.Errorf("expected fps from env-named file, got %d", cfg.Capture.FPS)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected env log level, got %q", cfg.Log.Level)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("capture:\n  delay_depth: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestFormatFor(t *testing.T) {
	if _, err := FormatFor("x.json"); err == nil {
		t.Error("expected json to be unsupported")
	}
	if f, _ := FormatFor("X.YML"); f != FormatYAML {
		t.Errorf("expected yaml, got %q", f)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(LogConfig{Level: "debug", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Debug("hello")
	if !strings.Contains(buf.String(), `"boot"`) {
		t.Errorf("expected boot id in record, got %s", buf.String())
	}

	if _, err := NewLogger(LogConfig{Level: "loud"}, &buf); err == nil {
		t.Error("expected unknown level to fail")
	}
}
