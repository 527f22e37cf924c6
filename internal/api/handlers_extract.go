// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/oculora/hlsgate/internal/log"
)

// handleExtract serves GET /extract?url=... with {meta, streams}; stream
// URLs are rewritten through this request's proxy prefix.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: s.cfg.Messages.InvalidURL})
		return
	}

	result, err := s.deps.Extract.Extract(r.Context(), rawURL, s.proxyPrefix(r))
	if err != nil {
		s.writeDomainError(w, r, err)
		logger := log.FromContext(r.Context(), "extract")
		logger.Warn().Err(err).Str("url", rawURL).Msg("extraction failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleBatchExtract serves GET /batch-extract?urls=a,b,c. Failures of
// individual URLs yield empty stream lists instead of failing the batch.
func (s *Server) handleBatchExtract(w http.ResponseWriter, r *http.Request) {
	var urls []string
	for _, u := range strings.Split(r.URL.Query().Get("urls"), ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}

	limit := s.deps.Extract.BatchLimit()
	if len(urls) == 0 || len(urls) > limit {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error: "1-" + strconv.Itoa(limit) + " URLs required",
		})
		return
	}

	writeJSON(w, http.StatusOK, s.deps.Extract.BatchExtract(r.Context(), urls))
}

// handleStreamDirect serves GET /stream-direct?video_url=... with the first
// raw manifest URL of the video.
func (s *Server) handleStreamDirect(w http.ResponseWriter, r *http.Request) {
	videoURL := r.URL.Query().Get("video_url")
	if videoURL == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: s.cfg.Messages.InvalidURL})
		return
	}

	manifest, err := s.deps.Extract.DirectManifest(r.Context(), videoURL)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": manifest})
}

// handlePlaylistInfo serves GET /playlist-info?playlist_url=... with the
// flat playlist entries.
func (s *Server) handlePlaylistInfo(w http.ResponseWriter, r *http.Request) {
	playlistURL := r.URL.Query().Get("playlist_url")
	if playlistURL == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: s.cfg.Messages.InvalidURL})
		return
	}

	entries, err := s.deps.Extract.PlaylistInfo(r.Context(), playlistURL)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// handleSearch serves GET /search?q=...&limit=10.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "query parameter q is required"})
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 50 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be between 1 and 50"})
			return
		}
		limit = n
	}

	results, err := s.deps.Extract.Search(r.Context(), q, limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, results)
}
