package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/peaknext/projectflow/internal/backend"
	"github.com/peaknext/projectflow/internal/cache"
	"github.com/peaknext/projectflow/internal/config"
	"github.com/peaknext/projectflow/internal/mutation"
	"github.com/peaknext/projectflow/internal/views"
)

// app wires the store, backend, and engine for one CLI invocation.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	store   *cache.Store
	backend backend.Backend
	engine  *mutation.Engine
	viewer  string
}

func newApp(configPath, viewer string) (*app, error) {
	cfg := config.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))

	var be backend.Backend
	switch cfg.Backend.Driver {
	case "sqlite":
		s, err := backend.NewSQLite(cfg.Backend.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite backend: %w", err)
		}
		be = s
	default:
		be = backend.NewMemory()
	}

	store := cache.New(
		cache.WithLogger(log),
		cache.WithGracePeriod(cfg.Cache.GracePeriod.Std()),
	)
	engine := mutation.New(store, be, viewer, mutation.WithLogger(log))

	return &app{
		cfg:     cfg,
		log:     log,
		store:   store,
		backend: be,
		engine:  engine,
		viewer:  viewer,
	}, nil
}

func (a *app) close() {
	if c, ok := a.backend.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			a.log.Warn("close backend", "error", err)
		}
	}
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// read mounts the binding, fetches it once, and returns the projected value.
func (a *app) read(b views.Binding) (any, error) {
	a.store.Mount(b.Key)
	defer a.store.Unmount(b.Key)
	if err := b.Fetch(rootCtx); err != nil {
		return nil, err
	}
	return a.store.Read(b.Key)
}
