// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/larder/internal/api"
	"github.com/starford/larder/internal/apperr"
	"github.com/starford/larder/internal/explorer"
	"github.com/starford/larder/internal/favorites"
	"github.com/starford/larder/internal/mcpserver"
	"github.com/starford/larder/internal/recipeapi"
	"github.com/starford/larder/internal/sse"
	"github.com/starford/larder/internal/storage"
)

// sqliteFile is the database file name inside the data directory.
const sqliteFile = "larder.db"

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stdout)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger(cfg)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("recipes_base_url", cfg.Recipes.BaseURL),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.String("storage_path", cfg.Storage.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	st, err := openStorage(cfg.Storage)
	if err != nil {
		return err
	}
	defer st.close()

	// SSE broker.
	broker := sse.NewBroker(15 * time.Second)
	defer broker.Close()

	favs, exp, err := newSession(cfg, st.provider, logger, broker)
	if err != nil {
		return err
	}
	defer exp.Close()

	apiRouter := api.NewRouter(exp, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
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
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := st.provider.Get(favs.Key()); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"storage unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reload favorites edited on disk by another process.
	if st.fs != nil && cfg.Storage.Watch {
		g.Go(func() error {
			err := storage.Watch(gCtx, st.fs, logger, func(key string) {
				if key == favs.Key() {
					favs.Reload()
				}
			})
			if err != nil {
				logger.Warn("storage watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
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

		// Streaming SSE clients hold connections open; closing the broker
		// ends them so Shutdown can drain.
		broker.Close()

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

// errShutdown cancels the group context so background goroutines stop.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger(cfg)

	st, err := openStorage(cfg.Storage)
	if err != nil {
		return err
	}
	defer st.close()

	_, exp, err := newSession(cfg, st.provider, logger, nil)
	if err != nil {
		return err
	}
	defer exp.Close()

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(exp, app.version).ServeStdio()
}

func newApplication(opts []Option, defaultLog io.Writer) (*application, error) {
	app := &application{version: "dev", logOutput: defaultLog}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// logger initializes the structured JSON logger and makes it the default.
func (a *application) logger(cfg *Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

type openedStorage struct {
	provider storage.Provider
	fs       *storage.FS
	close    func()
}

func openStorage(cfg StorageConfig) (*openedStorage, error) {
	if cfg.Driver == StorageMemory {
		return &openedStorage{provider: storage.NewMemory(), close: func() {}}, nil
	}

	// Ensure data directory exists.
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	switch cfg.Driver {
	case StorageSQLite:
		db, err := storage.OpenSQLite(filepath.Join(cfg.Path, sqliteFile))
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		return &openedStorage{provider: db, close: func() { _ = db.Close() }}, nil
	default:
		fs, err := storage.NewFS(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		return &openedStorage{provider: fs, fs: fs, close: func() {}}, nil
	}
}

func newSession(cfg *Config, provider storage.Provider, logger *slog.Logger, pub explorer.Publisher) (*favorites.Store, *explorer.Explorer, error) {
	favs := favorites.New(provider, favorites.WithLogger(logger))

	client, err := recipeapi.New(cfg.Recipes.BaseURL,
		recipeapi.WithHTTPClient(&http.Client{Timeout: cfg.Recipes.Timeout}),
		recipeapi.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("init recipe client: %w", err)
	}

	opts := []explorer.Option{
		explorer.WithInitialKeyword(cfg.Recipes.InitialQuery),
		explorer.WithDebounce(cfg.Recipes.Debounce),
		explorer.WithCache(cfg.Recipes.CacheSize, cfg.Recipes.CacheTTL),
		explorer.WithLogger(logger),
	}
	if pub != nil {
		opts = append(opts, explorer.WithPublisher(pub))
	}
	return favs, explorer.New(client, favs, opts...), nil
}
