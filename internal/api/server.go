// SPDX-License-Identifier: MIT

// Package api exposes the gateway's HTTP surface: the proxy endpoint, the
// extraction endpoints and the system endpoints.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/oculora/hlsgate/internal/cache"
	"github.com/oculora/hlsgate/internal/config"
	"github.com/oculora/hlsgate/internal/extract"
	"github.com/oculora/hlsgate/internal/fetch"
	"github.com/oculora/hlsgate/internal/health"
	"github.com/oculora/hlsgate/internal/log"
	"github.com/oculora/hlsgate/internal/prefetch"
	"github.com/oculora/hlsgate/internal/rewrite"
)

// Deps carries the collaborators the server routes requests to.
type Deps struct {
	Manifests  *cache.Flight      // rewritten-manifest tier with single flight
	Fetcher    *fetch.Client      // shared upstream client
	Rewriter   *rewrite.Rewriter  // manifest rewriter
	Prefetcher *prefetch.Prefetcher
	Extract    *extract.Service
	Health     *health.Service
}

// Server is the HTTP front of the gateway.
type Server struct {
	cfg    *config.Settings
	deps   Deps
	logger zerolog.Logger
	http   *http.Server
}

// New creates the server. Call Start to begin serving.
func New(cfg *config.Settings, deps Deps, logger zerolog.Logger) *Server {
	s := &Server{cfg: cfg, deps: deps, logger: logger}

	s.http = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		// Segment responses stream for the duration of playback; an
		// overall write timeout would cut long streams off.
		WriteTimeout: 0,
	}

	return s
}

// Router builds the route tree. Exposed for handler tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(recoverer)
	r.Use(log.Middleware())
	r.Use(corsAllowAll)
	if s.cfg.RateLimit.Enabled {
		r.Use(rateLimit(s.cfg.RateLimit.RequestsPerMinute))
	}

	r.Get("/proxy", s.handleProxy)
	r.Get("/extract", s.handleExtract)
	r.Get("/batch-extract", s.handleBatchExtract)
	r.Get("/stream-direct", s.handleStreamDirect)
	r.Get("/playlist-info", s.handlePlaylistInfo)
	r.Get("/search", s.handleSearch)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.http.Addr).Msg("http server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
