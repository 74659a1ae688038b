// Package server provides the HTTP API over a cellsql workspace.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/cellsql/internal/server/notifier"
	"github.com/leapstack-labs/cellsql/internal/server/router"
	"github.com/leapstack-labs/cellsql/internal/workspace"
)

// Server is the API server.
type Server struct {
	ws       *workspace.Workspace
	host     string
	port     int
	watch    bool
	version  string
	logger   *slog.Logger
	notifier *notifier.Notifier
}

// Config holds configuration for the API server.
type Config struct {
	Workspace *workspace.Workspace
	// Host is the interface to bind. Empty binds all interfaces.
	Host string
	Port int
	// Watch reloads the catalog file when it changes.
	Watch   bool
	Version string
	Logger  *slog.Logger
}

// NewServer creates a new API server instance. Catalog changes made
// through the workspace are pushed to SSE subscribers.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		ws:       cfg.Workspace,
		host:     cfg.Host,
		port:     cfg.Port,
		watch:    cfg.Watch,
		version:  cfg.Version,
		logger:   logger,
		notifier: notifier.New(),
	}
	s.ws.OnCatalogChange(func(changed []string) {
		s.notifier.Broadcast(notifier.Event{Changed: changed})
	})
	return s
}

// Handler builds the router with middleware and all routes.
func (s *Server) Handler() (http.Handler, error) {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5, "application/json"),
	)

	if err := router.SetupRoutes(r, s.ws, s.notifier, s.version); err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}
	return r, nil
}

// Serve starts the API server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(s.host, fmt.Sprint(s.port)))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until the context is cancelled. It closes ln.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	handler, err := s.Handler()
	if err != nil {
		_ = ln.Close()
		return err
	}

	s.logger.Info("starting API server", "addr", "http://"+ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch {
		eg.Go(func() error {
			return s.watchCatalog(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Notifier returns the server's notifier for SSE updates.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}

// watchCatalog reloads the catalog file on change. A missing catalog file
// only disables watching.
func (s *Server) watchCatalog(ctx context.Context) error {
	err := s.ws.Watch(ctx)
	if errors.Is(err, workspace.ErrNoCatalogFile) {
		s.logger.Warn("catalog watch disabled", "reason", err.Error())
		return nil
	}
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("catalog watch: %w", err)
	}
	return nil
}
