// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oculora/hlsgate/internal/extract"
	"github.com/oculora/hlsgate/internal/fetch"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the uniform error payload.
type errorBody struct {
	Error string `json:"error"`
}

// errorStatus maps a domain error to its HTTP status and client message.
// Upstream HTTP statuses pass through verbatim; message strings come from
// configuration so they stay localizable.
func (s *Server) errorStatus(err error) (int, string) {
	msgs := s.cfg.Messages

	switch {
	case errors.Is(err, extract.ErrInvalidURL):
		return http.StatusBadRequest, msgs.InvalidURL
	case errors.Is(err, extract.ErrNoManifest):
		return http.StatusNotFound, "no m3u8 manifest found"
	case errors.Is(err, extract.ErrNotFound):
		return http.StatusNotFound, "playlist not found"
	case errors.Is(err, extract.ErrNoStreams):
		return http.StatusInternalServerError, msgs.ExtractionFailed
	case errors.Is(err, fetch.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, msgs.TimeoutError
	}

	if code, ok := fetch.StatusCode(err); ok {
		return code, msgs.UpstreamError
	}

	return http.StatusInternalServerError, msgs.ExtractionFailed
}

// writeDomainError translates err and writes the JSON error response. Client
// disconnects produce no response body.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) int {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		return 0
	}

	code, msg := s.errorStatus(err)
	writeJSON(w, code, errorBody{Error: msg})
	return code
}
