package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/sync/errgroup"

	"github.com/Versifine/diver/internal/audio"
	"github.com/Versifine/diver/internal/body"
	"github.com/Versifine/diver/internal/config"
	"github.com/Versifine/diver/internal/control"
	"github.com/Versifine/diver/internal/debug"
	"github.com/Versifine/diver/internal/event"
	"github.com/Versifine/diver/internal/input"
	"github.com/Versifine/diver/internal/logger"
	"github.com/Versifine/diver/internal/sim"
	"github.com/Versifine/diver/internal/transport/ws"
	"github.com/Versifine/diver/internal/view"
	"github.com/Versifine/diver/internal/world"
)

// Full-screen views own the terminal, so their logs go to a file.
const interactiveLogFile = "diver.log"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the yaml config")
	viewMode := flag.String("view", "", "override view.mode (tui, console, headless)")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *viewMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logFile := cfg.Logging.File
	if logFile == "" && cfg.View.Mode != config.ViewHeadless {
		logFile = interactiveLogFile
	}
	out, err := logger.OpenOutput(logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log output: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()
	logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: out,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Diver stopped with error", "error", err)
		fmt.Fprintf(os.Stderr, "diver: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path, viewMode string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return nil, err
	}
	if viewMode != "" {
		cfg.View.Mode = viewMode
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	water := world.Water{
		SurfaceHeight: cfg.Water.SurfaceHeight,
		Density:       cfg.Water.Density,
		Size:          cfg.Water.Size,
	}
	state := world.NewWorldState(water)
	diver := body.New(bodyOptions(cfg), state)

	queue := input.NewQueue(input.DefaultQueueSize)
	tracker := input.NewTracker(queue)
	bus := event.NewBus()
	subscribeLogging(bus, tracker)

	loop, err := sim.New(diver, tracker, bus, cfg.Simulation.RateHz)
	if err != nil {
		return err
	}
	pulse := time.Duration(cfg.Control.PulseMS) * time.Millisecond

	if cfg.Audio.Enabled {
		player, err := audio.Init()
		if err != nil {
			slog.Warn("Audio unavailable, continuing without sound", "error", err)
		} else {
			player.Subscribe(bus)
			defer player.Close()
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Listen.Enabled {
		server := ws.NewServer(ws.Options{
			Addr:     cfg.ListenAddr(),
			Water:    water,
			Radius:   diver.Radius(),
			Timestep: diver.Timestep(),
		}, queue, diver, state, bus)
		loop.AddSink(server)
		g.Go(func() error { return server.Start(gctx) })
	}

	switch cfg.View.Mode {
	case config.ViewTUI:
		screen, err := tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("create screen: %w", err)
		}
		tui, err := view.New(screen, tracker, diver, view.Options{
			Pulse:   pulse,
			Surface: cfg.Water.SurfaceHeight,
			Radius:  diver.Radius(),
			Bus:     bus,
		})
		if err != nil {
			return err
		}
		loop.AddSink(tui)
		g.Go(func() error { return tui.Run(gctx) })
	case config.ViewConsole:
		console := debug.NewConsole(diver, state, tracker, loop, bus)
		console.SetMovePulse(pulse)
		loop.AddSink(console)
		g.Go(func() error { return console.Start(gctx) })
	}

	g.Go(func() error { return loop.Run(gctx) })

	slog.Info("Diver running",
		"view", cfg.View.Mode,
		"listen", cfg.Listen.Enabled,
		"addr", cfg.ListenAddr(),
		"rate_hz", cfg.Simulation.RateHz,
	)
	err = g.Wait()
	if errors.Is(err, view.ErrQuit) || errors.Is(err, debug.ErrQuit) {
		err = nil
	}
	slog.Info("Diver stopped", "frames", loop.Frames(), "dropped_keys", queue.Dropped())
	return err
}

func bodyOptions(cfg *config.Config) body.Options {
	return body.Options{
		Timestep:       1 / cfg.Simulation.RateHz,
		Gravity:        mgl64.Vec3(cfg.Simulation.Gravity),
		Mass:           cfg.Diver.Mass,
		Radius:         cfg.Diver.Radius,
		Spawn:          mgl64.Vec3(cfg.Diver.Spawn),
		LinearDamping:  cfg.Simulation.LinearDamping,
		AngularDamping: cfg.Simulation.AngularDamping,
		Constants: control.Constants{
			WaterSurfaceHeight: cfg.Water.SurfaceHeight,
			FluidDensity:       cfg.Water.Density,
			Radius:             cfg.Diver.Radius,
			Thrust:             cfg.Control.Thrust,
		},
	}
}

func subscribeLogging(bus *event.Bus, tracker *input.Tracker) {
	bus.Subscribe(event.EventSurface, func(raw any) {
		evt, ok := raw.(event.SurfaceEvent)
		if !ok {
			return
		}
		if evt.Submerged {
			slog.Info("Diver entered the water", "frame", evt.Frame, "speed", evt.Speed)
		} else {
			slog.Info("Diver surfaced", "frame", evt.Frame, "speed", evt.Speed)
		}
	})
	bus.Subscribe(event.EventReset, func(raw any) {
		tracker.Reset()
		if evt, ok := raw.(event.ResetEvent); ok {
			slog.Info("Diver reset", "source", evt.Source)
		}
	})
}
