package app

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"

	"framepipe.klederson.com/internal/config"
	"framepipe.klederson.com/internal/dial"
	"framepipe.klederson.com/internal/fault"
	"framepipe.klederson.com/internal/pipeline"
	"framepipe.klederson.com/internal/ui"
)

// shared holds state shared between the Bubble Tea model copies and main.go.
// Because Bubble Tea uses value receivers, pointer fields ensure all copies
// see the same underlying data.
type shared struct {
	pipe  *pipeline.Pipeline
	sweep *dial.Sweep
	load  *LoadRing
}

// AppModel is the root Bubble Tea model for the dashboard.
type AppModel struct {
	width  int
	height int

	loadSource  string
	snapshotDir string

	keys     keyMap
	help     help.Model
	showHelp bool

	shared *shared

	// Cached snapshot
	stats      pipeline.Stats
	fault      *fault.Fault
	lastFrames uint64
	lastTick   time.Time
	fps        float64
	notice     string
}

// New creates a new AppModel watching p.
func New(p *pipeline.Pipeline, loadSource, snapshotDir string) AppModel {
	return AppModel{
		loadSource:  loadSource,
		snapshotDir: snapshotDir,
		keys:        defaultKeys(),
		help:        help.New(),
		shared: &shared{
			pipe:  p,
			sweep: dial.NewSweep(),
			load:  NewLoadRing(config.LoadHistory),
		},
	}
}

func (m AppModel) Init() tea.Cmd {
	return tickCmd()
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case TickMsg:
		m.refresh(time.Time(msg))
		return m, tickCmd()

	case SnapshotMsg:
		if msg.Err != nil {
			m.notice = "snapshot failed: " + msg.Err.Error()
		} else {
			m.notice = "saved " + msg.Path
		}
		return m, nil

	case HaltedMsg:
		m.fault = msg.Fault
		m.stats = m.shared.pipe.Stats()
		return m, nil
	}

	return m, nil
}

// refresh pulls a fresh Stats and advances the dashboard animation.
func (m *AppModel) refresh(now time.Time) {
	st := m.shared.pipe.Stats()
	if !m.lastTick.IsZero() {
		if dt := now.Sub(m.lastTick).Seconds(); dt > 0 {
			m.fps = float64(st.Frames-m.lastFrames) / dt
		}
	}
	m.lastTick = now
	m.lastFrames = st.Frames

	m.stats = st
	m.shared.sweep.Point(st.Ring.Display, st.Slots)
	m.shared.load.Push(st.Load.Instant)
	if st.Halted && m.fault == nil {
		m.fault = m.shared.pipe.Fault()
	}
}

func (m AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Overlay):
		return m.toggleOverlay()
	case key.Matches(msg, m.keys.Snapshot):
		return m, m.snapshotCmd()
	case key.Matches(msg, m.keys.Fault):
		return m.injectFault()
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
	}
	return m, nil
}

func (m AppModel) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionRelease || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}
	switch {
	case zone.Get(ui.ZoneOverlay).InBounds(msg):
		return m.toggleOverlay()
	case zone.Get(ui.ZoneSnapshot).InBounds(msg):
		return m, m.snapshotCmd()
	case zone.Get(ui.ZoneFault).InBounds(msg):
		return m.injectFault()
	case zone.Get(ui.ZoneHelp).InBounds(msg):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
	case zone.Get(ui.ZoneQuit).InBounds(msg):
		return m, tea.Quit
	}
	return m, nil
}

func (m AppModel) toggleOverlay() (tea.Model, tea.Cmd) {
	want := !m.shared.pipe.OverlayVisible()
	m.shared.pipe.SetOverlayVisible(want)
	if want {
		m.notice = "overlay on"
	} else {
		m.notice = "overlay off"
	}
	return m, nil
}

func (m AppModel) injectFault() (tea.Model, tea.Cmd) {
	if m.shared.pipe.InjectBusFault() {
		m.notice = "bus fault armed"
	} else {
		m.notice = "camera cannot inject faults"
	}
	return m, nil
}

func (m AppModel) snapshotCmd() tea.Cmd {
	pipe := m.shared.pipe
	path := filepath.Join(m.snapshotDir,
		fmt.Sprintf("framepipe-%s.png", time.Now().Format("20060102-150405")))
	return func() tea.Msg {
		return SnapshotMsg{Path: path, Err: pipe.SaveSnapshot(path)}
	}
}

func (m AppModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing " + config.AppName + "..."
	}

	var helpView string
	if m.showHelp {
		helpView = m.help.View(m.keys)
	} else if m.notice != "" {
		helpView = ui.StyleHelp.Render(" " + m.notice)
	}

	menuH := 1
	statusH := 1
	helpH := 0
	if helpView != "" {
		helpH = strings.Count(helpView, "\n") + 1
	}
	bodyH := m.height - menuH - statusH - helpH
	if bodyH < 5 {
		bodyH = 5
	}

	ringW := m.width * 3 / 5
	if ringW < 30 {
		ringW = 30
	}
	loadW := m.width - ringW
	if loadW < 24 {
		loadW = 24
		ringW = m.width - loadW
	}

	menuBar := ui.RenderMenuBar(m.width, m.loadSource, m.stats.Halted, m.shared.pipe.OverlayVisible())

	innerW := ringW - 4
	innerH := bodyH - 4
	if innerW < 5 {
		innerW = 5
	}
	if innerH < 3 {
		innerH = 3
	}
	dialContent := dial.Render(innerW, innerH, m.stats.Ring, m.stats.Slots, m.shared.sweep)
	legend := dial.RenderLegend(innerW)
	ringPanel := ui.RenderRingPanel(ringW, bodyH, dialContent, legend)

	var side string
	if m.stats.Halted {
		side = ui.RenderFaultPanel(m.fault, loadW, bodyH)
	} else {
		side = ui.RenderLoadPanel(m.stats, m.shared.load.Values(), loadW, bodyH)
	}

	statusBar := ui.RenderStatusBar(m.width, m.stats, m.fps)

	view := ui.ComposeLayout(menuBar, ringPanel, side, statusBar, helpView)
	return zone.Scan(lipgloss.NewStyle().MaxHeight(m.height).Render(view))
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(config.TargetFPS), func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
