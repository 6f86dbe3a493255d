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
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ehwaz/internal/api"
	"github.com/starford/ehwaz/internal/inbox"
	"github.com/starford/ehwaz/internal/mcpserver"
	"github.com/starford/ehwaz/internal/noteservice"
	"github.com/starford/ehwaz/internal/queue"
	"github.com/starford/ehwaz/internal/remote"
	"github.com/starford/ehwaz/internal/sse"
	"github.com/starford/ehwaz/internal/storage"
	"github.com/starford/ehwaz/internal/store"
	"github.com/starford/ehwaz/internal/syncer"
	pkgconfig "github.com/starford/ehwaz/pkg/config"
)

// settings is the live configuration shared between the engine and the
// hot-reload watcher. It doubles as the orchestrator's target and credential
// source so a config swap takes effect without restarting.
type settings struct {
	mu  sync.RWMutex
	cfg *Config
}

func newSettings(cfg *Config) *settings { return &settings{cfg: cfg} }

func (s *settings) current() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *settings) swap(cfg *Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *settings) RemoteTarget() remote.Target {
	return s.current().Remote.Target()
}

func (s *settings) HasAuthentication() bool {
	return s.current().Remote.HasAuthentication()
}

func (s *settings) AuthHeader() (string, bool) {
	return s.current().Remote.AuthHeader()
}

// engine bundles the wired-up application components.
type engine struct {
	settings *settings
	db       *store.DB
	queue    *queue.Queue
	broker   *sse.Broker
	orch     *syncer.Orchestrator
	svc      *noteservice.Service
	logger   *slog.Logger
}

// buildEngine wires store, queue, remote client, orchestrator, and service.
// logW receives the JSON log stream; withEvents enables the SSE broker.
func buildEngine(cfg *Config, logW io.Writer, withEvents bool) (*engine, error) {
	logger := slog.New(slog.NewJSONHandler(logW, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	q := queue.New(db, logger)
	if err := q.Load(); err != nil {
		logger.Warn("restore commit queue failed", slog.String("error", err.Error()))
	}

	st := newSettings(cfg)
	rc := remote.NewClient(cfg.Remote.APIBase, st)

	var broker *sse.Broker
	var events syncer.EventSink
	if withEvents {
		broker = sse.NewBroker(time.Second)
		events = broker
	}

	orch := syncer.New(db, q, rc, st, st, onlineProbe(cfg.Remote.APIBase), events, logger)
	svc := noteservice.NewService(db, orch, logger)

	return &engine{
		settings: st,
		db:       db,
		queue:    q,
		broker:   broker,
		orch:     orch,
		svc:      svc,
		logger:   logger,
	}, nil
}

func (e *engine) close() {
	e.queue.Close()
	if e.broker != nil {
		e.broker.Close()
	}
	if err := e.db.Close(); err != nil {
		e.logger.Warn("close store failed", slog.String("error", err.Error()))
	}
}

// onlineProbe reports API reachability, rechecking at most every 30 seconds.
// Errors building the probe degrade to "online": the engine then finds out
// the hard way and queues.
func onlineProbe(base string) syncer.OnlineFunc {
	var mu sync.Mutex
	var last time.Time
	ok := true
	hc := &http.Client{Timeout: 3 * time.Second}
	return func() bool {
		mu.Lock()
		defer mu.Unlock()
		if time.Since(last) < 30*time.Second {
			return ok
		}
		req, err := http.NewRequest(http.MethodHead, base, nil)
		if err != nil {
			return true
		}
		resp, err := hc.Do(req)
		if resp != nil {
			resp.Body.Close()
		}
		ok = err == nil
		last = time.Now()
		return ok
	}
}

// Run starts the long-running server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	eng, err := buildEngine(cfg, os.Stdout, true)
	if err != nil {
		return err
	}
	defer eng.close()
	logger := eng.logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_path", cfg.Store.Path),
		slog.String("remote", cfg.Remote.Owner+"/"+cfg.Remote.Repo),
		slog.String("log_level", cfg.App.LogLevel.String()))

	apiRouter := api.NewRouter(eng.svc, eng.orch, eng.db.CountByStatus,
		cfg.Auth.AuthEnabled(), cfg.Auth.Token, eng.broker)

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

	// Periodic background sync.
	if cfg.Remote.SyncInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.Remote.SyncInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gCtx.Done():
					return nil
				case <-ticker.C:
					eng.orch.Sync(gCtx)
				}
			}
		})
	}

	// Inbox importer.
	if cfg.Inbox.Enable {
		dir, err := storage.NewDir(cfg.Inbox.Path)
		if err != nil {
			return fmt.Errorf("init inbox: %w", err)
		}
		g.Go(func() error {
			return inbox.Watch(gCtx, dir, eng.svc, logger)
		})
	}

	// Config hot reload: swap the live settings and drop the orchestrator's
	// cached target so the next sync pass sees the new repository.
	if app.configPath != "" {
		g.Go(func() error {
			return pkgconfig.Watch(gCtx, app.configPath, logger, func() {
				fresh := NewDefaultConfig()
				if err := pkgconfig.Load(app.configPath, fresh); err != nil {
					logger.Warn("config reload failed", slog.String("error", err.Error()))
					return
				}
				eng.settings.swap(fresh)
				eng.orch.InvalidateConfig()
				logger.Info("Configuration reloaded",
					slog.String("remote", fresh.Remote.Owner+"/"+fresh.Remote.Repo))
			})
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

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunOnce executes a single sync operation and exits: "sync" (bidirectional),
// "push", or "pull".
func RunOnce(ctx context.Context, cfg *Config, op string) error {
	eng, err := buildEngine(cfg, os.Stdout, false)
	if err != nil {
		return err
	}
	defer eng.close()

	switch op {
	case "sync":
		eng.orch.Sync(ctx)
		return nil
	case "push":
		return eng.orch.Push(ctx)
	case "pull":
		return eng.orch.Pull(ctx)
	default:
		return fmt.Errorf("unknown operation %q", op)
	}
}

// RunMCP serves the MCP stdio transport. Logs go to stderr so stdout stays a
// clean protocol stream.
func RunMCP(_ context.Context, cfg *Config) error {
	eng, err := buildEngine(cfg, os.Stderr, false)
	if err != nil {
		return err
	}
	defer eng.close()

	return mcpserver.New(eng.svc, eng.orch).ServeStdio()
}
