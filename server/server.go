// Package server wires the request pipeline into an http.Server with
// optional TLS, a connection cap, an optional metrics listener, and
// graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	"github.com/p-arndt/statiker/config"
)

// shutdownTimeout bounds graceful shutdown of in-flight requests.
const shutdownTimeout = 10 * time.Second

// Server runs the edge pipeline on the configured listener.
type Server struct {
	cfg     config.Config
	handler http.Handler

	// metricsHandler, when non-nil and Obs.MetricsAddr is set, is served on
	// a separate listener at /metrics.
	metricsHandler http.Handler
}

// New returns a Server for the handler. metricsHandler may be nil.
func New(cfg config.Config, handler, metricsHandler http.Handler) *Server {
	return &Server{
		cfg:            cfg,
		handler:        handler,
		metricsHandler: metricsHandler,
	}
}

// Run serves until the context is cancelled, a termination signal arrives,
// or the listener fails. Shutdown is graceful within shutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout.Std(),
		WriteTimeout: s.cfg.Server.WriteTimeout.Std(),
		IdleTimeout:  s.cfg.Server.IdleTimeout.Std(),
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", addr, err)
	}

	if s.cfg.Server.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.Server.MaxConnections)
	}

	errChan := make(chan error, 2)

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			slog.Info("listening", "addr", ln.Addr().String(), "scheme", "https")
			err = httpServer.ServeTLS(ln, s.cfg.TLS.CertPath, s.cfg.TLS.KeyPath)
		} else {
			slog.Info("listening", "addr", ln.Addr().String(), "scheme", "http")
			err = httpServer.Serve(ln)
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	metricsServer := s.startMetrics(errChan)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if metricsServer != nil {
		metricsServer.Shutdown(shutdownCtx)
	}

	return httpServer.Shutdown(shutdownCtx)
}

// startMetrics serves the metrics handler on its own listener when
// configured. Returns nil when metrics are disabled.
func (s *Server) startMetrics(errChan chan<- error) *http.Server {
	if s.metricsHandler == nil || s.cfg.Obs.MetricsAddr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metricsHandler)

	metricsServer := &http.Server{
		Addr:    s.cfg.Obs.MetricsAddr,
		Handler: mux,
	}

	go func() {
		slog.Info("metrics listening", "addr", metricsServer.Addr)

		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	return metricsServer
}
