// Package server exposes Voxlate's network surface: the WebSocket caption
// channel plus the operational HTTP endpoints (health probes and Prometheus
// metrics).
//
// One WebSocket connection is one caption session. The connection handler
// owns the session lifecycle end to end: it creates the session on accept,
// feeds upstream binary PCM frames into it, and destroys it synchronously
// when the connection goes away.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/voxlate/voxlate/internal/config"
	"github.com/voxlate/voxlate/internal/health"
	"github.com/voxlate/voxlate/internal/observe"
	"github.com/voxlate/voxlate/internal/session"
)

// shutdownTimeout bounds graceful teardown: draining in-flight frames and
// closing the HTTP listener.
const shutdownTimeout = 10 * time.Second

// Server ties the caption session manager to an HTTP listener.
type Server struct {
	cfg      *config.Config
	sessions *session.Manager
	metrics  *observe.Metrics
	handler  http.Handler
}

// New assembles the HTTP routing for a Voxlate server. The optional checkers
// are evaluated by the /readyz endpoint.
func New(cfg *config.Config, sessions *session.Manager, metrics *observe.Metrics, checkers ...health.Checker) *Server {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		metrics:  metrics,
	}

	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", s.handleChannel)
	s.handler = observe.Middleware(metrics)(mux)
	return s
}

// Handler returns the fully assembled root handler. Exposed so tests can
// mount the server on an httptest listener.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully: open caption
// channels observe the cancellation through their request contexts, sessions
// are destroyed, and the listener is drained within [shutdownTimeout].
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,

		// Request contexts inherit the run context so WebSocket read
		// loops unblock on shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g.Go(func() error {
		slog.Info("server listening",
			"addr", srv.Addr,
			"tls", s.cfg.Server.TLS != nil,
		)
		var err error
		if tls := s.cfg.Server.TLS; tls != nil {
			err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()

		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.sessions.Shutdown(shutCtx); err != nil {
			slog.Warn("session shutdown incomplete", "error", err)
		}
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}
