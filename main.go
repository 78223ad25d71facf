package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"
	zone "github.com/lrstanley/bubblezone"
	"github.com/spf13/cobra"

	"framepipe.klederson.com/internal/app"
	"framepipe.klederson.com/internal/config"
	"framepipe.klederson.com/internal/fault"
	"framepipe.klederson.com/internal/hal"
	"framepipe.klederson.com/internal/osd"
	"framepipe.klederson.com/internal/pipeline"
	"framepipe.klederson.com/internal/psram"
)

// exitHalted is the process status after a fatal pipeline fault.
const exitHalted = 3

var errHalted = errors.New("pipeline halted")

var (
	flagConfig      string
	flagHeadless    bool
	flagFPS         int
	flagDelay       int
	flagLoadSource  string
	flagML          bool
	flagSnapshotDir string
	flagSnapshot    string
	flagLogLevel    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "framepipe",
		Short: "FRAMEPIPE - simulated camera-to-display frame pipeline",
		Long: `FRAMEPIPE runs a simulated camera feeding a capture ring buffer that is
shown on a simulated LCD, with a double-buffered diagnostics overlay drawn
over it. The terminal dashboard shows the ring state, CPU load and overlay.

Without a terminal (or with --headless) the pipeline runs in the background
and logs its counters periodically.`,
		SilenceUsage: true,
		RunE:         run,
	}

	rootCmd.Flags().StringVar(&flagConfig, "config", "", "Config file (.yaml or .toml); defaults to $"+config.EnvConfig)
	rootCmd.Flags().BoolVar(&flagHeadless, "headless", false, "Run without the dashboard and log stats instead")
	rootCmd.Flags().IntVar(&flagFPS, "fps", config.CameraFPS, "Camera frame rate")
	rootCmd.Flags().IntVar(&flagDelay, "delay", config.DisplayDelay, "Frames between capture and display (ring holds delay+2 slots)")
	rootCmd.Flags().StringVar(&flagLoadSource, "load-source", config.SourceSim, "CPU load source: sim or host")
	rootCmd.Flags().BoolVar(&flagML, "ml", false, "Also start the ML capture pipe")
	rootCmd.Flags().StringVar(&flagSnapshotDir, "snapshot-dir", ".", "Directory for display snapshots taken from the dashboard")
	rootCmd.Flags().StringVar(&flagSnapshot, "snapshot", "", "Write the composed display to this image on exit (headless)")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s v%s\n", config.AppName, config.AppVersion)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errHalted) {
			os.Exit(exitHalted)
		}
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("fps") {
		cfg.Capture.FPS = flagFPS
	}
	if flags.Changed("delay") {
		cfg.Capture.DelayDepth = flagDelay
	}
	if flags.Changed("ml") {
		cfg.Capture.MLEnabled = flagML
	}
	if flags.Changed("load-source") {
		cfg.Load.Source = flagLoadSource
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = flagLogLevel
	}
	return cfg, cfg.Validate()
}

// dashboardFits reports whether stdout is a terminal large enough for the
// dashboard.
func dashboardFits() bool {
	fd := os.Stdout.Fd()
	if !term.IsTerminal(fd) {
		return false
	}
	w, h, err := term.GetSize(fd)
	return err == nil && w >= 60 && h >= 16
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	headless := flagHeadless || !dashboardFits()

	var logOut io.Writer = os.Stderr
	if !headless {
		f, err := config.OpenLogFile(cfg.Log)
		if err != nil {
			return err
		}
		defer f.Close()
		logOut = f
	}
	logger, err := config.NewLogger(cfg.Log, logOut)
	if err != nil {
		return err
	}
	logger.Info("starting",
		"version", config.AppVersion,
		"slots", cfg.Capture.Slots(),
		"fps", cfg.Capture.FPS,
		"load_source", cfg.Load.Source,
		"headless", headless)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mem := psram.NewArena(psram.DefaultBase, config.PSRAMSize)
	cam := hal.NewSimCamera(mem,
		hal.Dims{W: cfg.Capture.SensorWidth, H: cfg.Capture.SensorHeight},
		cfg.Capture.FPS, cfg.Tuning.ISPCost, logger)
	disp := hal.NewSimDisplay(mem,
		hal.Dims{W: cfg.Display.Width, H: cfg.Display.Height},
		cfg.Display.RefreshHz, logger)

	halted := make(chan *fault.Fault, 1)
	latch := fault.NewLatch(logger, func(f *fault.Fault) { halted <- f })

	p, err := pipeline.New(cfg, pipeline.Deps{
		Camera:  cam,
		Display: disp,
		Memory:  mem,
		Halter:  latch,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	go disp.Run(ctx)
	if err := p.Start(ctx); err != nil {
		return err
	}
	go cam.Run(ctx, p)

	if headless {
		err = runHeadless(ctx, p, halted, logger)
	} else {
		err = runDashboard(p, cfg, halted)
	}

	cancel()
	p.Wait()

	if flagSnapshot != "" {
		if serr := p.SaveSnapshot(flagSnapshot); serr != nil {
			logger.Error("snapshot", "path", flagSnapshot, "error", serr)
		} else {
			logger.Info("snapshot saved", "path", flagSnapshot)
		}
	}
	if err == nil && latch.Fault() != nil {
		err = fmt.Errorf("%w: %v", errHalted, latch.Fault())
	}
	logger.Info("stopped", "frames", p.Stats().Frames)
	return err
}

func runDashboard(p *pipeline.Pipeline, cfg *config.Config, halted <-chan *fault.Fault) error {
	zone.NewGlobal()
	defer zone.Close()

	model := app.New(p, cfg.Load.Source, flagSnapshotDir)
	prog := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithFPS(30),
	)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case f := <-halted:
			prog.Send(app.HaltedMsg{Fault: f})
		case <-done:
		}
	}()

	_, err := prog.Run()
	return err
}

func runHeadless(ctx context.Context, p *pipeline.Pipeline, halted <-chan *fault.Fault, logger *slog.Logger) error {
	ticker := time.NewTicker(config.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case f := <-halted:
			return fmt.Errorf("%w: %v", errHalted, f)
		case <-ticker.C:
			st := p.Stats()
			logger.Info("stats",
				"uptime", osd.FormatRuntime(st.Uptime),
				"frames", st.Frames,
				"display", st.Ring.Display,
				"capture", st.Ring.Capture,
				"vsync_coalesced", st.VSync.Coalesced,
				"tuning", st.TuningPasses,
				"overlay_swaps", st.OverlaySwaps,
				"load", osd.FormatPercent(st.Load.Instant),
				"load_1s", osd.FormatPercent(st.Load.OneSecond),
				"load_5s", osd.FormatPercent(st.Load.FiveSecond),
			)
		}
	}
}
