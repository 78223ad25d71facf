package ui

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"

	"framepipe.klederson.com/internal/cpuload"
	"framepipe.klederson.com/internal/fault"
	"framepipe.klederson.com/internal/pipeline"
)

func TestMain(m *testing.M) {
	zone.NewGlobal()
	os.Exit(m.Run())
}

func TestRenderSparkline(t *testing.T) {
	got := renderSparkline([]float64{0, 50, 100, 150}, 3)
	if got != "▄██" {
		t.Errorf("expected last three values scaled, got %q", got)
	}
	if renderSparkline(nil, 10) != "" {
		t.Error("expected empty sparkline for no data")
	}
}

func TestLoadPanelHeight(t *testing.T) {
	st := pipeline.Stats{Load: cpuload.Loads{Instant: 42, OneSecond: 40, FiveSecond: 38}, OverlayVisible: true}
	out := RenderLoadPanel(st, []float64{10, 20, 30}, 50, 12)
	if n := len(strings.Split(out, "\n")); n != 12 {
		t.Errorf("expected exactly 12 lines, got %d", n)
	}
	if !strings.Contains(out, "42.0%") {
		t.Error("expected instant load in panel")
	}
}

func TestFaultPanel(t *testing.T) {
	f := &fault.Fault{Op: "redirect capture", File: "ring.go", Line: 42, Err: errors.New("bus error")}
	out := RenderFaultPanel(f, 60, 10)
	for _, want := range []string{"HALTED", "ring.go:42", "bus error"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in fault panel", want)
		}
	}
}

func TestBarsFillWidth(t *testing.T) {
	st := pipeline.Stats{Slots: 3}
	if w := lipgloss.Width(RenderStatusBar(120, st, 29.9)); w < 120 {
		t.Errorf("expected status bar to fill 120 columns, got %d", w)
	}
	if w := lipgloss.Width(RenderMenuBar(120, "sim", false, true)); w < 120 {
		t.Errorf("expected menu bar to fill 120 columns, got %d", w)
	}
}
