package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/astro-web3/codeveros-auth/internal/config"
	"github.com/astro-web3/codeveros-auth/pkg/logger"
	"github.com/astro-web3/codeveros-auth/pkg/otel"
)

const idleTimeoutMultiplier = 2

type Server struct {
	httpServer *http.Server
	closers    []func() error
}

func newServer(cfg *config.Config, h http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      h,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.ReadTimeout * idleTimeoutMultiplier,
		},
	}
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown drains the HTTP server, then releases the server's backing clients.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	for _, closeFn := range s.closers {
		err = errors.Join(err, closeFn())
	}
	return err
}

// Run serves until ctx is done or the listener fails. It then shuts the server down and
// flushes the tracer, each bounded by shutdownTimeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	serverErr := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "server starting", slog.String("addr", s.Addr()))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.InfoContext(ctx, "shutting down server")
	case err := <-serverErr:
		logger.ErrorContext(ctx, "server failed, shutting down", logger.Error(err))
		runErr = fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		logger.ErrorContext(shutdownCtx, "server forced to shutdown", logger.Error(err))
		runErr = errors.Join(runErr, fmt.Errorf("failed to shutdown server: %w", err))
	} else {
		logger.InfoContext(shutdownCtx, "server stopped gracefully")
	}

	if err := otel.Shutdown(shutdownCtx); err != nil {
		logger.ErrorContext(shutdownCtx, "failed to shutdown tracer provider", logger.Error(err))
		runErr = errors.Join(runErr, err)
	}

	return runErr
}
