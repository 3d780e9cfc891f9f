// Package server runs an http.Handler with sensible timeouts and graceful shutdown.
//
// cmd/devserver uses it to serve the in-memory remote service.
//
// SHUTDOWN:
// On SIGINT/SIGTERM (or when the context passed to Serve is cancelled) the server
// stops accepting connections, waits up to ShutdownTimeout for in-flight requests,
// then runs the registered cleanup functions in reverse order.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

const DefaultShutdownTimeout = 30 * time.Second

type Config struct {
	Port            int
	ShutdownTimeout time.Duration
}

type Server struct {
	handler http.Handler
	config  Config
	logger  *slog.Logger
	cleanup []func() error
}

func New(cfg Config, handler http.Handler, logger *slog.Logger) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	return &Server{handler: handler, config: cfg, logger: logger}
}

// OnShutdown registers fn to run after the HTTP server has stopped.
func (s *Server) OnShutdown(fn func() error) {
	s.cleanup = append(s.cleanup, fn)
}

// Start listens on the configured port and blocks until a shutdown signal.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("server: listening on port %d: %w", s.config.Port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // uploads and binaries can be large
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", ln.Addr().String()),
			slog.String("url", "http://"+ln.Addr().String()),
		)
		serverErrors <- srv.Serve(ln)
	}()

	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			runErr = fmt.Errorf("graceful shutdown failed: %w", err)
		} else {
			s.logger.Info("server stopped gracefully")
		}
	}

	for i := len(s.cleanup) - 1; i >= 0; i-- {
		if err := s.cleanup[i](); err != nil {
			s.logger.Error("cleanup failed", slog.String("error", err.Error()))
			runErr = errors.Join(runErr, err)
		}
	}
	return runErr
}
