// SPDX-License-Identifier: MIT

// Package health builds the /health snapshot.
package health

import (
	"runtime"
	"time"
)

// Snapshot is the health payload returned to clients.
type Snapshot struct {
	Status       string            `json:"status"`
	Service      string            `json:"service"`
	Timestamp    string            `json:"timestamp"`
	UptimeSec    int64             `json:"uptime_sec"`
	Versions     map[string]string `json:"versions"`
	CacheBackend string            `json:"cache_backend"`
	Goroutines   int               `json:"goroutines"`
}

// Service produces health snapshots for one process.
type Service struct {
	service string
	version string
	backend string
	start   time.Time
}

// New creates the health service. backend names the segment cache tier in
// use ("memory" or "redis").
func New(service, version, backend string) *Service {
	return &Service{
		service: service,
		version: version,
		backend: backend,
		start:   time.Now(),
	}
}

// Snapshot returns the current health state.
func (s *Service) Snapshot() Snapshot {
	return Snapshot{
		Status:       "healthy",
		Service:      s.service,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		UptimeSec:    int64(time.Since(s.start).Seconds()),
		Versions:     map[string]string{"go": runtime.Version(), "service": s.version},
		CacheBackend: s.backend,
		Goroutines:   runtime.NumGoroutine(),
	}
}
