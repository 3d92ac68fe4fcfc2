// Package graceful runs the operational HTTP server.
package graceful

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultShutdownTimeout = 10 * time.Second

// NewMux serves Prometheus metrics on /metrics and health on /healthz.
func NewMux(health http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if health != nil {
		mux.Handle("/healthz", health)
	}
	return mux
}

// Server wraps http.Server with graceful shutdown capabilities.
type Server struct {
	httpServer      *http.Server
	log             *slog.Logger
	shutdownTimeout time.Duration
}

// NewServer constructs a graceful server wrapper.
func NewServer(log *slog.Logger, srv *http.Server, shutdownTimeout time.Duration) *Server {
	if log == nil {
		log = slog.Default()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	return &Server{
		httpServer:      srv,
		log:             log,
		shutdownTimeout: shutdownTimeout,
	}
}

// ListenAndServe binds the configured address and serves until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}

	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled, then shuts the
// server down within the shutdown timeout. A clean shutdown returns nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("http server listening", slog.String("addr", ln.Addr().String()))

		err := s.httpServer.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server error", slog.Any("error", err))
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	s.log.Info("shutting down http server", slog.Duration("timeout", s.shutdownTimeout))

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("http server shutdown error", slog.Any("error", err))
		return err
	}

	return <-errCh
}
