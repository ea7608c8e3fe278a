// Package api serves the indexer's operational endpoints: Prometheus
// metrics and a liveness check. It intentionally exposes no read surface
// over indexed records (no GraphQL/JSON-RPC/REST query routes) — that is
// an explicit non-goal.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/roninchain/indexer/internal/constants"
)

// Server is the minimal ops HTTP server.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// New builds a Server listening on addr, serving /metrics (against reg) and
// /healthz.
func New(addr string, reg *prometheus.Registry, log *zap.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  constants.DefaultReadTimeout,
			WriteTimeout: constants.DefaultWriteTimeout,
			IdleTimeout:  constants.DefaultIdleTimeout,
		},
		log: log,
	}
}

// Start runs the HTTP server in the background. ListenAndServe errors other
// than http.ErrServerClosed are logged.
func (s *Server) Start() {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("ops server stopped unexpectedly", zap.Error(err))
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DefaultShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
