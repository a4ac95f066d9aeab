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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/mapforge/internal/api"
	"github.com/starford/mapforge/internal/catalog"
	"github.com/starford/mapforge/internal/mapdoc"
	"github.com/starford/mapforge/internal/mcpserver"
	"github.com/starford/mapforge/internal/remote"
	"github.com/starford/mapforge/internal/sse"
	"github.com/starford/mapforge/internal/storage"
	"github.com/starford/mapforge/internal/workspace"
)

// components are the pieces shared by the HTTP and MCP front ends.
type components struct {
	persist mapdoc.Persistence
	fs      *storage.FS // nil unless the fs driver is selected
	db      *catalog.DB
	ws      *workspace.Workspace
}

func newApplication(opts []Option, logOut io.Writer) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logger == nil {
		app.logger = slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
	}
	slog.SetDefault(app.logger)
	return app, nil
}

// setup opens the persistence backend and the catalog and builds the
// workspace. The caller closes c.db.
func (a *application) setup(ctx context.Context, events workspace.Publisher) (*components, error) {
	cfg, logger := a.config, a.logger
	c := &components{}

	switch cfg.Persistence.Driver {
	case DriverRemote:
		client, err := remote.New(cfg.Persistence.Remote.BaseURL,
			remote.WithToken(cfg.Persistence.Remote.Token),
			remote.WithTimeout(cfg.Persistence.Remote.Timeout),
			remote.WithRetry(cfg.Persistence.Remote.Attempts, 500*time.Millisecond),
			remote.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("init remote persistence: %w", err)
		}
		c.persist = client
	default:
		if err := os.MkdirAll(cfg.Persistence.FS.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create map dir: %w", err)
		}
		store, err := storage.NewFS(cfg.Persistence.FS.Dir)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		c.persist, c.fs = store, store
	}

	db, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("init catalog: %w", err)
	}
	c.db = db

	// Only the local store can be enumerated; the remote catalog fills up as
	// maps are saved.
	if c.fs != nil {
		if err := catalog.Sync(ctx, db, c.fs, logger); err != nil {
			logger.Warn("initial sync failed", slog.String("error", err.Error()))
		}
	}

	wsOpts := []workspace.Option{
		workspace.WithCatalog(db),
		workspace.WithLogger(logger),
		workspace.WithSnapDefaults(cfg.Editor.SnapOptions()),
		workspace.WithEditorOptions(
			mapdoc.WithLogger(logger),
			mapdoc.WithHistoryLimit(cfg.Editor.HistoryLimit),
		),
	}
	if events != nil {
		wsOpts = append(wsOpts, workspace.WithPublisher(events))
	}
	c.ws = workspace.New(c.persist, wsOpts...)
	return c, nil
}

// Run starts the HTTP editing API, the SSE stream and the map directory
// watcher, and blocks until ctx is cancelled or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stdout)
	if err != nil {
		return err
	}
	cfg, logger := app.config, app.logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("persistence", cfg.Persistence.Driver),
		slog.String("catalog_path", cfg.Catalog.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := app.setup(ctx, broker)
	if err != nil {
		return err
	}
	defer c.db.Close()

	apiRouter := api.NewRouter(c.ws, c.db, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := c.db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"catalog unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the map directory so that external edits reach the catalog and
	// SSE clients.
	if c.fs != nil {
		g.Go(func() error {
			err := catalog.Watch(gCtx, c.db, c.fs, logger, func(kind, mapID string) {
				broker.PublishMapEvent(kind, mapID)
			})
			if err != nil {
				logger.Error("watcher stopped", slog.String("error", err.Error()))
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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		if open := c.ws.Sessions(); len(open) > 0 {
			logger.Warn("discarding open sessions", slog.Int("count", len(open)))
		}
		c.ws.CloseAll()
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the errgroup context so the watcher stops with the
// server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr so they do
// not corrupt the protocol stream.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return err
	}

	c, err := app.setup(ctx, nil)
	if err != nil {
		return err
	}
	defer c.db.Close()
	defer c.ws.CloseAll()

	app.logger.Info("MCP server starting", slog.String("persistence", app.config.Persistence.Driver))
	return mcpserver.New(c.ws, c.persist, c.db, app.logger).ServeStdio()
}
