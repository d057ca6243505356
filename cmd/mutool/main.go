package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"mutool.ai/internal/app"
	"mutool.ai/internal/config"
	"mutool.ai/internal/notify"
	"mutool.ai/internal/persistence/capture"
	"mutool.ai/internal/persistence/statsdb"
	"mutool.ai/internal/transport/bridge"
)

func main() {
	var (
		configPath = flag.String("config", "./configs/mutool.yaml", "path to mutool.yaml (or set MUTOOL_CONFIG)")
		listen     = flag.String("listen", "", "bridge listen address (overrides config)")
		logLevel   = flag.String("log_level", "", "log level (overrides config)")
		rebuild    = flag.Bool("rebuild_catalog", false, "ignore the catalog cache and resolve names on connect")
	)
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Str("component", "mutool").Logger()

	overrides, err := config.ParseEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read environment")
	}
	if *listen != "" {
		overrides.BridgeListen = *listen
	}
	if *logLevel != "" {
		overrides.LogLevel = *logLevel
	}
	path := *configPath
	if overrides.Config != "" {
		path = overrides.Config
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("path", path).Msg("Config not found, using defaults")
		path = ""
	}
	cfg, err := config.Load(path, overrides)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *rebuild {
		cfg.Catalog.Rebuild = true
	}
	log = log.Level(cfg.Level())

	var store *statsdb.Store
	if cfg.Stats.Enabled {
		store, err = statsdb.Open(cfg.Stats.DB, log)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Stats.DB).Msg("Failed to open stats store")
		}
		defer store.Close()
	}

	var sink app.FrameSink
	if cfg.Capture.Enabled {
		w := capture.NewWriter(cfg.Capture.Dir)
		defer w.Close()
		sink = w
		log.Info().Str("dir", cfg.Capture.Dir).Msg("Capturing bridge frames")
	}

	var rt *app.Runtime
	srv := bridge.NewServer(bridge.Options{
		Log:       log,
		SendQueue: cfg.Bridge.SendQueue,
		Modules:   func() []string { return rt.Modules() },
	})

	opts := app.Options{
		Log:      log,
		Config:   cfg,
		Out:      srv,
		Resolver: srv.NameResolver(cfg.Bridge.NameTimeout()),
		Notify:   notifier(cfg, store, log),
		Capture:  sink,
	}
	if store != nil {
		opts.History = store
	}
	rt = app.New(opts)
	rt.LoadCache()

	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, rt.Metrics(), srv, store)
	})
	if store != nil {
		mux.HandleFunc("/admin/v1/sessions", sessionsHandler(store))
	}
	mux.HandleFunc(cfg.Bridge.Path, srv.Handler())

	httpSrv := &http.Server{
		Addr:              cfg.Bridge.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		srv.Close()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = httpSrv.Shutdown(ctx2)
	}()

	go func() {
		if err := rt.Run(ctx, srv.Inbox()); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Runtime stopped")
		}
	}()

	log.Info().Str("addr", cfg.Bridge.Listen).Str("path", cfg.Bridge.Path).Msg("Waiting for hook")
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Failed to serve bridge")
	}
}

// notifier fans out to every configured service and records each
// notification in the stats store.
func notifier(cfg config.Config, store *statsdb.Store, log zerolog.Logger) notify.Service {
	services := notify.Multi{notify.NewLog(log)}
	if token := strings.TrimSpace(cfg.Notify.Pushbullet.Token); token != "" {
		services = append(services, notify.NewPushbullet(token, log))
	}
	if c := cfg.Notify.Chime; c.Enabled {
		services = append(services, notify.NewChime(c.Frequency, c.Duration(), log))
	}
	var svc notify.Service = services
	if store != nil {
		svc = notify.Observe(svc, func(title, body string) {
			store.RecordNotification(statsdb.Notification{At: time.Now(), Title: title, Body: body})
		})
	}
	return svc
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
