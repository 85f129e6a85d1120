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

	"github.com/starford/verbo/internal/api"
	"github.com/starford/verbo/internal/bible"
	"github.com/starford/verbo/internal/chat"
	"github.com/starford/verbo/internal/cipher"
	"github.com/starford/verbo/internal/mcpserver"
	"github.com/starford/verbo/internal/reader"
	"github.com/starford/verbo/internal/readingservice"
	"github.com/starford/verbo/internal/remote"
	"github.com/starford/verbo/internal/sse"
	"github.com/starford/verbo/internal/storage"
)

// errStdioDone stops the watcher once the MCP client disconnects.
var errStdioDone = errors.New("mcp stdio closed")

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger. Stdout carries the protocol in MCP mode.
	var out io.Writer = os.Stdout
	if app.mcp {
		out = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("data_path", cfg.Data.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("edition", cfg.Bible.Edition),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure data directory exists.
	if err := os.MkdirAll(cfg.Data.Path, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Initialize guest-state storage.
	fs, err := storage.NewFS(cfg.Data.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// Initialize SQLite remote store.
	store, err := remote.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init remote store: %w", err)
	}
	defer store.Close()

	c, err := cipher.New(cfg.Cipher.Secret)
	if err != nil {
		return fmt.Errorf("init cipher: %w", err)
	}

	// Realtime broker; reader events, toasts and stored changes all go through it.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	store.OnChange(func(ch remote.Change) {
		broker.PublishChange(ch.Collection, ch.Kind, ch.Key)
	})

	svc, err := readingservice.Assemble(readingservice.Options{
		Provider:  bible.NewClient(cfg.Bible.BaseURL, cfg.Bible.ProxyURL, cfg.Bible.APIKey, cfg.Bible.Timeout, logger),
		Local:     storage.NewLocal(fs),
		Store:     store,
		Cipher:    c,
		Generator: chat.NewHTTPGenerator(cfg.Generator.Endpoint, cfg.Generator.Token, cfg.Generator.Timeout),
		Images:    chat.NewHTTPImageGenerator(cfg.Generator.ImageEndpoint, cfg.Generator.Token, cfg.Generator.Timeout),
		Notify:    broker,
		Observer: func(e reader.Event) {
			broker.Publish(sse.Event{Type: e.Type, Data: e.Data})
		},
		Reader:  cfg.Reader.Session(),
		Edition: cfg.Bible.Edition,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("init reading session: %w", err)
	}
	defer svc.Close()

	g, gCtx := errgroup.WithContext(ctx)

	// Start guest-state watcher; external edits are reloaded into memory.
	g.Go(func() error {
		err := storage.Watch(gCtx, fs, logger, func(kind, key string) {
			svc.ReloadGuest()
			broker.PublishChange("local", kind, key)
		})
		if err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	if app.mcp {
		g.Go(func() error {
			logger.Info("Starting MCP server on stdio")
			if err := mcpserver.New(svc).ServeStdio(); err != nil {
				return fmt.Errorf("MCP server error: %w", err)
			}
			return errStdioDone
		})
		if err := g.Wait(); err != nil && !errors.Is(err, errStdioDone) {
			logger.Error("Application error", slog.String("error", err.Error()))
			return err
		}
		return nil
	}

	ws := sse.NewWebSocketHandler(broker, cfg.App.HTTP.AllowedOrigins, logger)
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, ws)

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
		if st := svc.Reader(); st.Phase < reader.BooksReady {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, `{"status":%q}`, st.Phase.String())
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

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Close the broker first so streaming handlers return.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
