package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"mutool.ai/internal/app"
	"mutool.ai/internal/catalog"
	"mutool.ai/internal/config"
	"mutool.ai/internal/persistence/capture"
	"mutool.ai/internal/protocol"
	"mutool.ai/internal/render/term"
	"mutool.ai/internal/transport/bridge"
)

func main() {
	var (
		configPath  = flag.String("config", "./configs/mutool.yaml", "path to mutool.yaml (module sections and catalog cache)")
		capturesDir = flag.String("captures", "", "capture directory (default: capture.dir from config)")
		catalogPath = flag.String("catalog", "", "catalog cache (default: catalog.cache from config)")
		speed       = flag.Float64("speed", 0, "playback speed relative to capture time (0 = as fast as possible)")
		tui         = flag.Bool("tui", false, "draw overlay frames to the terminal")
		logFile     = flag.String("log_file", "", "write logs here instead of stderr")
	)
	flag.Parse()

	var logOut io.Writer = os.Stderr
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			l := zerolog.New(os.Stderr)
			l.Fatal().Err(err).Msg("Failed to open log file")
		}
		defer f.Close()
		logOut = f
	} else if *tui {
		logOut = io.Discard
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: logOut, NoColor: *logFile != "", TimeFormat: time.TimeOnly}).
		With().Timestamp().Str("component", "replay").Logger()

	path := *configPath
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		path = ""
	}
	cfg, err := config.Load(path, config.Env{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	log = log.Level(cfg.Level())
	dir := cfg.Capture.Dir
	if *capturesDir != "" {
		dir = *capturesDir
	}
	cachePath := cfg.Catalog.Cache
	if *catalogPath != "" {
		cachePath = *catalogPath
	}

	out := &output{log: log}
	if *tui {
		screen, err := term.Open()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open terminal")
		}
		defer screen.Close()
		out.screen = screen
	}

	var clock time.Time
	rt := app.New(app.Options{
		Log:    log,
		Config: cfg,
		Out:    out,
		Now:    func() time.Time { return clock },
	})
	entries, err := catalog.LoadFile(cachePath)
	if err != nil {
		log.Warn().Err(err).Str("path", cachePath).Msg("Replaying without item names")
	}
	rt.Install(entries)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	p := player{speed: *speed, sleep: sleepCtx}
	start := time.Now()
	err = capture.ReadDir(ctx, dir, func(rec capture.Record) error {
		if err := p.wait(ctx, rec.At); err != nil {
			return err
		}
		clock = rec.At
		base, err := protocol.DecodeBase(rec.Frame)
		if err != nil {
			log.Warn().Err(err).Uint64("seq", rec.Seq).Msg("Skipping unreadable frame")
			return nil
		}
		rt.Handle(ctx, bridge.Inbound{Type: base.Type, Raw: rec.Frame})
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Str("dir", dir).Msg("Replay failed")
	}

	m := rt.Metrics()
	log.Info().
		Uint64("events", m.Events).
		Uint64("frames", m.Frames).
		Uint64("bad_packets", m.BadPackets).
		Int("commands", out.commands).
		Dur("took", time.Since(start)).
		Msg("Replay finished")
}
