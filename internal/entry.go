// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/habithub/internal/api"
	"github.com/starford/habithub/internal/apperr"
	"github.com/starford/habithub/internal/habitservice"
	"github.com/starford/habithub/internal/mcpserver"
	"github.com/starford/habithub/internal/rowstore"
	"github.com/starford/habithub/internal/sse"
	"github.com/starford/habithub/internal/storage"
	"github.com/starford/habithub/internal/watcher"
)

var errConfigRequired = errors.New("config is required")

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := build(ctx, cfg, os.Stdout, habitservice.WithNotifier(broker))
	if err != nil {
		return err
	}
	defer c.Close()
	logger := c.logger
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("version", app.version),
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.String("cache_backend", cfg.Cache.Backend),
		slog.Duration("cache_ttl", cfg.Cache.TTL),
		slog.String("log_level", cfg.App.LogLevel.String()))

	apiRouter := api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", readyHandler(c))

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.App.WatchConfig && app.configPath != "" {
		g.Go(func() error {
			return watcher.Watch(gCtx, app.configPath, watcher.DefaultDebounce, logger, c.reload)
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown stops the remaining goroutines once the server is down.
var errShutdown = errors.New("shutdown")

// readyHandler reports ready once the cache answers.
func readyHandler(c *components) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := c.cache.Generation(r.Context()); err != nil {
			c.logger.Warn("readiness: cache unavailable", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"cache unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := build(ctx, app.config, os.Stderr)
	if err != nil {
		return err
	}
	defer c.Close()

	c.logger.Info("MCP server starting", slog.String("version", app.version))
	return mcpserver.New(c.svc, app.version).ServeStdio()
}

// ImportStats counts what Import copied.
type ImportStats struct {
	Records int
	Users   int
}

// Import copies the records and users tables from the configured spreadsheet
// into the SQLite file at storage.sqlite.path.
func Import(ctx context.Context, opts ...Option) (ImportStats, error) {
	app, err := newApplication(opts)
	if err != nil {
		return ImportStats{}, err
	}
	cfg := *app.config
	cfg.Storage.Backend = BackendSheets
	if err := cfg.Storage.Validate(); err != nil {
		return ImportStats{}, fmt.Errorf("import source: %w", err)
	}

	level := new(slog.LevelVar)
	level.Set(cfg.App.LogLevel)
	logger, closeLog := newLogger(cfg.App.LogFile, level, os.Stderr)
	defer closeLog()

	src, sources, _, err := openBackend(cfg.Storage, logger)
	if err != nil {
		return ImportStats{}, err
	}
	dst, err := storage.OpenSQLite(cfg.Storage.SQLite.Path)
	if err != nil {
		return ImportStats{}, fmt.Errorf("open import target: %w", err)
	}
	defer dst.Close()

	return importTables(ctx, sources, src, dst, logger)
}

func importTables(ctx context.Context, sources []storage.RecordSource, users storage.UserSource, dst *storage.SQLite, logger *slog.Logger) (ImportStats, error) {
	var stats ImportStats
	var rows []rowstore.Row
	var errs []error
	for _, s := range sources {
		got, err := s.FetchRecords(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		if len(got) > 0 {
			rows = got
			break
		}
	}
	if rows == nil && len(errs) > 0 {
		return stats, fmt.Errorf("fetch records: %w", errors.Join(errs...))
	}
	if err := dst.ImportRecords(ctx, rows); err != nil {
		return stats, err
	}
	stats.Records = len(rows)

	userRows, err := users.FetchUsers(ctx)
	if err != nil {
		return stats, fmt.Errorf("fetch users: %w", err)
	}
	for _, u := range rowstore.ParseUsers(userRows) {
		err := dst.CreateUser(ctx, u)
		switch {
		case errors.Is(err, apperr.ErrAlreadyExists):
			continue
		case err != nil:
			return stats, err
		}
		stats.Users++
	}
	logger.Info("import finished", slog.Int("records", stats.Records), slog.Int("users", stats.Users))
	return stats, nil
}
