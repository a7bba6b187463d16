// Command fabula serves a catalogue of branching stories and walks players
// through them over a JSON API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/fabula/internal/config"
	"github.com/MrWong99/fabula/internal/health"
	"github.com/MrWong99/fabula/internal/nav"
	"github.com/MrWong99/fabula/internal/observe"
	"github.com/MrWong99/fabula/internal/store"
	"github.com/MrWong99/fabula/internal/web"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// A .env file is optional; real environments set variables directly.
	_ = godotenv.Load()

	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "fabula.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "fabula: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "fabula: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, logLevel := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("fabula starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"backend", cfg.Stories.Backend,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "fabula",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Story source ──────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	reg.Register(config.BackendPostgres, newPostgresSource)

	src, err := reg.CreateSource(ctx, cfg.Stories)
	if err != nil {
		slog.Error("failed to build story source", "err", err)
		return 1
	}

	// ── Store ─────────────────────────────────────────────────────────────────
	st := store.New(src, store.WithMetrics(metrics))
	st.RegisterSources(cfg.Stories.Sources...)
	if st.DiscoverSources(ctx) {
		slog.Info("story sources discovered from manifest", "count", len(st.Sources()))
	}
	if n := st.Preload(ctx, cfg.Stories.Preload...); n > 0 {
		slog.Info("stories preloaded", "count", n)
	}

	if cfg.Stories.Watch {
		watcher, err := store.NewWatcher(st, cfg.Stories.Dir)
		if err != nil {
			slog.Error("failed to watch story directory", "dir", cfg.Stories.Dir, "err", err)
			return 1
		}
		defer watcher.Stop()
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	cfgWatcher, err := config.NewWatcher(*configPath, func(old, updated *config.Config) {
		applyConfigChange(st, logLevel, config.Diff(old, updated), updated)
	})
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		defer cfgWatcher.Stop()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	manager := nav.NewManager(st, nav.WithManagerMetrics(metrics))
	api := web.NewServer(st, manager,
		web.WithServerMetrics(metrics),
		web.WithHealthChecks(health.Checker{
			Name: "stories",
			Check: func(context.Context) error {
				if len(st.Sources()) == 0 && st.Stats().Cached == 0 {
					return errors.New("no story sources registered")
				}
				return nil
			},
		}),
	)

	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", cfg.Server.ListenAddr)
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = httpSrv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// newPostgresSource connects a pgx pool and wraps it as a story source,
// creating the stories table if needed.
func newPostgresSource(ctx context.Context, cfg config.StoriesConfig) (store.Source, error) {
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	src := store.NewPostgresSource(pool)
	if err := src.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return src, nil
}

// applyConfigChange applies the hot-reloadable parts of a config diff.
func applyConfigChange(st *store.Store, logLevel *slog.LevelVar, d config.ConfigDiff, updated *config.Config) {
	if !d.Any() {
		return
	}
	if d.LogLevelChanged {
		logLevel.Set(d.NewLogLevel.SlogLevel())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.SourcesChanged {
		st.ReplaceSources(updated.Stories.Sources...)
		slog.Info("story sources updated",
			"added", len(d.AddedSources), "removed", len(d.RemovedSources))
	}
	if d.WatchChanged {
		slog.Warn("stories.watch changed; restart to apply")
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := new(slog.LevelVar)
	lvl.Set(level.SlogLevel())
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), lvl
}
