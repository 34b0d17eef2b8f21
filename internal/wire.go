package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/starford/habithub/internal/cache"
	"github.com/starford/habithub/internal/habitservice"
	"github.com/starford/habithub/internal/repository"
	"github.com/starford/habithub/internal/storage"
	pkgconfig "github.com/starford/habithub/pkg/config"
)

// components are the pieces shared by every command.
type components struct {
	logger  *slog.Logger
	level   *slog.LevelVar
	backend storage.Backend
	cache   cache.Cache
	repo    *repository.Repository
	svc     *habitservice.Service
	closers []func() error
}

// newLogger builds the JSON logger. The level is read through level on every
// record so it can change at runtime.
func newLogger(cfg LogFileConfig, level *slog.LevelVar, out io.Writer) (*slog.Logger, func() error) {
	closer := func() error { return nil }
	if cfg.Path != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		out = io.MultiWriter(out, file)
		closer = file.Close
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})), closer
}

// openBackend returns the table store and the ordered record sources.
func openBackend(cfg StorageConfig, logger *slog.Logger) (storage.Backend, []storage.RecordSource, func() error, error) {
	switch cfg.Backend {
	case BackendSQLite:
		db, err := storage.OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("init sqlite: %w", err)
		}
		return db, []storage.RecordSource{db}, db.Close, nil

	case BackendSheets:
		sc := cfg.Sheets
		client := &http.Client{Timeout: sc.Timeout}
		gviz := storage.NewGviz(sc.GvizBaseURL, sc.SpreadsheetID, client)
		rpc := storage.NewRPC(sc.RPCURL, storage.RPCOptions{
			Client:     client,
			MaxRetries: sc.MaxRetries,
			Logger:     logger,
		})
		backend := storage.NewSheets(gviz, rpc)
		sources := []storage.RecordSource{backend}
		if sc.RPCFallback {
			sources = append(sources, rpc)
		}
		if sc.RPCURL == "" {
			logger.Warn("storage: no rpc_url, running read-only")
		}
		return backend, sources, func() error { return nil }, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

func openCache(ctx context.Context, cfg CacheConfig) (cache.Cache, func() error, error) {
	if cfg.Backend == CacheRedis {
		r, err := cache.NewRedis(ctx, cfg.Redis.URL, cfg.Redis.Prefix)
		if err != nil {
			return nil, nil, fmt.Errorf("init redis cache: %w", err)
		}
		return r, r.Close, nil
	}
	return cache.NewMemory(), func() error { return nil }, nil
}

// build wires storage, cache, repository and service from cfg. Logs go to out.
func build(ctx context.Context, cfg *Config, out io.Writer, svcOpts ...habitservice.Option) (*components, error) {
	c := &components{level: new(slog.LevelVar)}
	c.level.Set(cfg.App.LogLevel)

	var closeLog func() error
	c.logger, closeLog = newLogger(cfg.App.LogFile, c.level, out)
	c.closers = append(c.closers, closeLog)

	loc, err := cfg.App.Location()
	if err != nil {
		c.Close()
		return nil, err
	}

	backend, sources, closeBackend, err := openBackend(cfg.Storage, c.logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.backend = backend
	c.closers = append(c.closers, closeBackend)

	rc, closeCache, err := openCache(ctx, cfg.Cache)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.cache = rc
	c.closers = append(c.closers, closeCache)

	c.repo = repository.New(sources, backend, backend, rc,
		repository.WithTTL(cfg.Cache.TTL),
		repository.WithLogger(c.logger),
	)
	opts := append([]habitservice.Option{
		habitservice.WithLocation(loc),
		habitservice.WithLogger(c.logger),
	}, svcOpts...)
	c.svc = habitservice.NewService(c.repo, backend, opts...)
	return c, nil
}

// reload applies the hot-reloadable settings from the config file at path.
func (c *components) reload(path string) error {
	next := NewDefaultConfig()
	if err := pkgconfig.Load(path, next); err != nil {
		return err
	}
	c.level.Set(next.App.LogLevel)
	c.repo.SetTTL(next.Cache.TTL)
	c.logger.Info("runtime settings applied",
		slog.String("log_level", next.App.LogLevel.String()),
		slog.Duration("cache_ttl", next.Cache.TTL))
	return nil
}

// Close releases everything in reverse order of opening.
func (c *components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	c.closers = nil
	return errors.Join(errs...)
}
