// SPDX-License-Identifier: MIT

package extract

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/oculora/hlsgate/internal/cache"
	"github.com/oculora/hlsgate/internal/rewrite"
)

// ServiceConfig holds the cache TTLs of the extraction endpoints.
type ServiceConfig struct {
	TTLExtract      time.Duration
	TTLStreamDirect time.Duration
	TTLPlaylist     time.Duration
	BatchLimit      int // max URLs per batch request
}

// Result is the /extract response payload. Stream URLs are rewritten through
// the caller's proxy prefix.
type Result struct {
	Meta    *VideoMeta   `json:"meta"`
	Streams []StreamInfo `json:"streams"`
}

// cachedExtraction is the cache value for one normalized URL: extraction
// output before any per-request proxy rewriting.
type cachedExtraction struct {
	meta    *VideoMeta
	streams []StreamInfo
}

// Service wires the extractor to the cache and the proxy rewriter.
type Service struct {
	extractor Extractor
	flight    *cache.Flight
	rewriter  *rewrite.Rewriter
	cfg       ServiceConfig
	logger    zerolog.Logger
}

// NewService creates the extraction service. flight must wrap the memory
// cache tier; extraction results are Go values and do not serialize to the
// byte-oriented tiers.
func NewService(extractor Extractor, flight *cache.Flight, rewriter *rewrite.Rewriter, cfg ServiceConfig, logger zerolog.Logger) *Service {
	if cfg.BatchLimit < 1 {
		cfg.BatchLimit = 20
	}
	return &Service{
		extractor: extractor,
		flight:    flight,
		rewriter:  rewriter,
		cfg:       cfg,
		logger:    logger,
	}
}

// Extract normalizes rawURL, runs (or reuses) the extraction and returns the
// result with stream URLs routed through proxyPrefix. The cache holds the
// un-rewritten streams so one entry serves every host the gateway is
// reachable on.
func (s *Service) Extract(ctx context.Context, rawURL, proxyPrefix string) (*Result, error) {
	normalized, err := Normalize(rawURL)
	if err != nil {
		return nil, err
	}

	v, err := s.flight.GetOrFill(ctx, "extract:"+normalized, s.cfg.TTLExtract, func(ctx context.Context) (any, error) {
		meta, streams, err := s.extractor.Extract(ctx, normalized)
		if err != nil {
			return nil, err
		}
		return &cachedExtraction{meta: meta, streams: streams}, nil
	})
	if err != nil {
		return nil, err
	}

	ce := v.(*cachedExtraction)
	streams := make([]StreamInfo, len(ce.streams))
	for i, st := range ce.streams {
		st.URL = proxyPrefix + s.rewriter.Escape(st.URL)
		streams[i] = st
	}

	return &Result{Meta: ce.meta, Streams: streams}, nil
}

// BatchExtract runs extraction for up to BatchLimit URLs concurrently and
// returns the stream lists keyed by the input URL. Individual failures yield
// an empty list rather than failing the batch; the extractor pool bounds the
// real parallelism.
func (s *Service) BatchExtract(ctx context.Context, urls []string) map[string][]StreamInfo {
	results := make(map[string][]StreamInfo, len(urls))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, u := range urls {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			streams := s.extractStreams(ctx, u)
			mu.Lock()
			results[u] = streams
			mu.Unlock()
		}(u)
	}
	wg.Wait()

	return results
}

func (s *Service) extractStreams(ctx context.Context, rawURL string) []StreamInfo {
	normalized, err := Normalize(rawURL)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", rawURL).Msg("batch entry rejected")
		return []StreamInfo{}
	}
	_, streams, err := s.extractor.Extract(ctx, normalized)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", rawURL).Msg("batch entry failed")
		return []StreamInfo{}
	}
	return streams
}

// BatchLimit returns the configured per-request URL cap.
func (s *Service) BatchLimit() int {
	return s.cfg.BatchLimit
}

// DirectManifest returns the first raw HLS manifest URL of a video, cached.
func (s *Service) DirectManifest(ctx context.Context, videoURL string) (string, error) {
	v, err := s.flight.GetOrFill(ctx, "m3u8:"+videoURL, s.cfg.TTLStreamDirect, func(ctx context.Context) (any, error) {
		return s.extractor.DirectManifest(ctx, videoURL)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// PlaylistInfo returns the flat entries of a playlist, cached.
func (s *Service) PlaylistInfo(ctx context.Context, playlistURL string) ([]PlaylistEntry, error) {
	v, err := s.flight.GetOrFill(ctx, "pl:"+playlistURL, s.cfg.TTLPlaylist, func(ctx context.Context) (any, error) {
		return s.extractor.Playlist(ctx, playlistURL)
	})
	if err != nil {
		return nil, err
	}
	return v.([]PlaylistEntry), nil
}

// Search runs a free-text extractor search; uncached, queries are long-tail.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	return s.extractor.Search(ctx, strings.TrimSpace(query), limit)
}
