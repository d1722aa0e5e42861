// Package server exposes runs over HTTP: a client posts a run configuration
// and receives a condensed summary of the resulting report.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/shelfcheck/internal/config"
	"github.com/xkilldash9x/shelfcheck/internal/results"
)

// Runner executes one QA run. *orchestrator.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, run config.TestConfiguration) (*results.RunReport, error)
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	cfg        config.ServerConfig
	runner     Runner
	logger     *zap.Logger
	router     http.Handler
	httpServer *http.Server

	// busy is set while a run is executing; runs are never concurrent.
	busy atomic.Bool
}

// New creates a Server. Nothing listens until Start.
func New(cfg config.ServerConfig, runner Runner, logger *zap.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		runner: runner,
		logger: logger.Named("server"),
	}
	s.router = s.setupRouter()
	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and blocks until the server
// stops. It returns nil after a graceful Shutdown.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening.", zap.String("addr", s.cfg.ListenAddr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
