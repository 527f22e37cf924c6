// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/oculora/hlsgate/internal/cache"
	"github.com/oculora/hlsgate/internal/log"
	"github.com/oculora/hlsgate/internal/metrics"
)

// proxyPrefix derives the rewrite prefix from the request itself so the
// gateway stays relocatable: rewritten URLs point at whatever host the
// client reached us on.
func (s *Server) proxyPrefix(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if xf := r.Header.Get("X-Forwarded-Proto"); xf != "" {
		scheme = xf
	}
	return scheme + "://" + r.Host + "/" + s.cfg.Proxy.BasePath
}

// handleProxy serves GET /proxy?url=... and dispatches on the upstream URL:
// a path ending in .m3u8 is a manifest, anything else a media segment.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")

	u, err := url.Parse(raw)
	if raw == "" || err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: s.cfg.Messages.InvalidURL})
		metrics.IncProxyRequest("invalid", http.StatusBadRequest)
		return
	}

	if strings.HasSuffix(u.Path, ".m3u8") {
		s.serveManifest(w, r, raw, u)
		return
	}
	s.serveSegment(w, r, raw)
}

// serveManifest returns the rewritten manifest for url, filling the cache
// under single flight on a miss.
func (s *Server) serveManifest(w http.ResponseWriter, r *http.Request, raw string, u *url.URL) {
	ctx := r.Context()
	prefix := s.proxyPrefix(r)
	key := s.cfg.Cache.Namespace + ":rewritten:" + raw

	_, hit := s.deps.Manifests.Cache().Get(key)
	metrics.IncCacheOp("manifest", hit)

	v, err := s.deps.Manifests.GetOrFill(ctx, key, s.cfg.Cache.TTLManifest, func(ctx context.Context) (any, error) {
		resp, err := s.deps.Fetcher.Get(ctx, raw, nil)
		if err != nil {
			return nil, err
		}
		return s.deps.Rewriter.Rewrite(string(resp.Body), u, prefix), nil
	})
	if err != nil {
		code := s.writeDomainError(w, r, err)
		metrics.IncProxyRequest("manifest", code)
		logger := log.FromContext(ctx, "proxy")
		logger.Warn().Err(err).Str("url", raw).Msg("manifest fetch failed")
		return
	}

	body, _ := cache.Bytes(v)
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(s.cfg.Cache.TTLManifest.Seconds())))
	_, _ = w.Write(body)
	metrics.IncProxyRequest("manifest", http.StatusOK)
}

// segmentWriter defers the status line until the first body byte so a fetch
// that fails before producing output can still carry a real error status.
type segmentWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (sw *segmentWriter) Write(b []byte) (int, error) {
	if !sw.wroteHeader {
		sw.wroteHeader = true
		sw.ResponseWriter.WriteHeader(http.StatusOK)
	}
	return sw.ResponseWriter.Write(b)
}

func (sw *segmentWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok && sw.wroteHeader {
		f.Flush()
	}
}

// serveSegment streams the segment bytes through the prefetcher. A client
// Range header is forwarded upstream.
func (s *Server) serveSegment(w http.ResponseWriter, r *http.Request, raw string) {
	ctx := r.Context()

	hdr := http.Header{}
	if rg := r.Header.Get("Range"); rg != "" {
		hdr.Set("Range", rg)
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(s.cfg.Cache.TTLSegment.Seconds())))

	metrics.ActiveSegmentStreams.Inc()
	defer metrics.ActiveSegmentStreams.Dec()

	sw := &segmentWriter{ResponseWriter: w}
	written, err := s.deps.Prefetcher.Stream(ctx, []string{raw}, hdr, sw)
	if err != nil {
		if !sw.wroteHeader {
			w.Header().Del("Cache-Control")
			code := s.writeDomainError(w, r, err)
			metrics.IncProxyRequest("segment", code)
			logger := log.FromContext(ctx, "proxy")
			logger.Warn().Err(err).Str("url", raw).Msg("segment fetch failed")
			return
		}
		// Bytes are already on the wire; the truncated body is the error
		// signal the client gets.
		logger := log.FromContext(ctx, "proxy")
		logger.Warn().Err(err).
			Str("url", raw).
			Int64("bytes_written", written).
			Msg("segment stream aborted mid-flight")
		metrics.IncProxyRequest("segment", http.StatusOK)
		return
	}

	metrics.IncProxyRequest("segment", http.StatusOK)
}
