// Package main provides the mesh builder demo entry point: simulated
// tracking and reconstruction collaborators wired to the session controller
// and a headless render loop.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/martinezdelprenois/meshbuilder/internal/app/frame"
	"github.com/martinezdelprenois/meshbuilder/internal/app/mailbox"
	"github.com/martinezdelprenois/meshbuilder/internal/app/session"
	"github.com/martinezdelprenois/meshbuilder/internal/infra/config"
	"github.com/martinezdelprenois/meshbuilder/internal/infra/headless"
	"github.com/martinezdelprenois/meshbuilder/internal/infra/logger"
	"github.com/martinezdelprenois/meshbuilder/internal/infra/sim"
)

var (
	app        = kingpin.New("meshbuilder", "AR mesh visualization demo pipeline")
	configPath = app.Flag("config", "Path to config file").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
	duration   = app.Flag("duration", "Stop automatically after this long (0 = run until signal)").Duration()

	// check-config command
	checkConfigCmd = app.Command("check-config", "Validate the config file and exit")
)

func init() {
	// run command (default) - no need to store the command
	app.Command("run", "Run the demo pipeline (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Initialize logger
	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	cfg, err := loadConfig()
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if command == checkConfigCmd.FullCommand() {
		zlog.Info().Msg("config ok")
		return
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Pipeline error: %v", err)
		os.Exit(1)
	}
}

// loadConfig reads the configured file, or falls back to built-in defaults
// when no path was given.
func loadConfig() (*config.Config, error) {
	if *configPath != "" {
		zlog.Info().Msgf("Loading config from %s", *configPath)
		return config.Load(*configPath)
	}
	return config.Default()
}

// run wires the pipeline and drives the render loop until a signal, a quit
// command or the configured duration.
func run(cfg *config.Config) error {
	svc, err := sim.NewService(cfg.Sim.Service)
	if err != nil {
		return errors.Wrap(err, "create simulated service")
	}
	recon, err := sim.NewReconstructor(cfg.Sim.Reconstructor)
	if err != nil {
		return errors.Wrap(err, "create simulated reconstructor")
	}

	renderer := headless.New()
	box := mailbox.New()

	ctrl := session.NewController(session.Config{
		MinServiceVersion: cfg.Session.MinServiceVersion,
		Service: session.ServiceConfig{
			LowLatencyIMU: cfg.Session.LowLatencyIMU,
			SmoothPose:    cfg.Session.SmoothPose,
			Depth:         cfg.Session.Depth,
			ColorCamera:   cfg.Session.ColorCamera,
		},
	}, session.Deps{
		Service:       svc,
		Reconstructor: recon,
		Poses:         svc,
		Display:       svc,
		Renderer:      renderer,
		Mailbox:       box,
	})
	defer ctrl.Close()

	preparer := frame.NewPreparer(ctrl, renderer, box, frame.Config{
		NearPlane: cfg.Render.NearPlane,
		FarPlane:  cfg.Render.FarPlane,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	if err := ctrl.Start(ctx); err != nil {
		if errors.Is(err, session.ErrPermissionDenied) {
			zlog.Error().Msg("Dataset permission required")
		}
		return err
	}

	// Control goroutine: the UI surface. Reads pause/resume/clear commands
	// from stdin, independent of the render loop.
	go controlLoop(ctx, ctrl, stop)

	tick := time.NewTicker(time.Second / time.Duration(cfg.Render.RefreshHz))
	defer tick.Stop()

	var statsC <-chan time.Time
	if cfg.Render.StatsIntervalSec > 0 {
		statsTick := time.NewTicker(time.Duration(cfg.Render.StatsIntervalSec) * time.Second)
		defer statsTick.Stop()
		statsC = statsTick.C
	}

	zlog.Info().
		Int("refresh_hz", cfg.Render.RefreshHz).
		Msg("Render loop started (commands: pause, resume, clear, quit)")

	// Render loop. PrepareFrame runs here and nowhere else.
	for {
		select {
		case <-ctx.Done():
			ctrl.Stop()
			logStats(renderer, box, recon, preparer)
			return nil
		case <-tick.C:
			preparer.PrepareFrame()
		case <-statsC:
			logStats(renderer, box, recon, preparer)
		}
	}
}

// controlLoop forwards stdin commands to the session controller. It runs on
// its own goroutine; the controller serializes it against the render loop.
func controlLoop(ctx context.Context, ctrl *session.Controller, stop func()) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		var err error
		switch strings.TrimSpace(strings.ToLower(scanner.Text())) {
		case "":
			continue
		case "pause":
			err = ctrl.Pause()
		case "resume":
			err = ctrl.Resume()
		case "p":
			err = ctrl.TogglePause()
		case "clear", "c":
			err = ctrl.RequestClear()
		case "quit", "q":
			stop()
			return
		default:
			zlog.Warn().Msg("Unknown command (available: pause, resume, p, clear, quit)")
			continue
		}
		if err != nil {
			zlog.Warn().Msgf("Command failed: %v", err)
		}
	}
}

func logStats(renderer *headless.Renderer, box *mailbox.Mailbox, recon *sim.Reconstructor, preparer *frame.Preparer) {
	render := renderer.Snapshot()
	mail := box.Stats()
	scene := recon.Stats()
	prep := preparer.Stats()

	zlog.Info().
		Uint64("ticks", prep.Ticks).
		Int("patches", render.Patches).
		Int("faces", render.TotalFaces).
		Uint64("mesh_updates", render.MeshUpdates).
		Uint64("view_updates", render.ViewUpdates).
		Uint64("pose_skips", prep.PoseSkips).
		Uint64("clears", render.Clears).
		Uint64("batches", scene.Batches).
		Uint64("clouds", scene.Clouds).
		Uint64("mailbox_drops", mail.Dropped).
		Msg("Pipeline stats")
}
