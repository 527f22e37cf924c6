// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus collectors for the gateway hot path.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProxyRequestsTotal tracks /proxy dispatches by kind and outcome.
	ProxyRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsgate_proxy_requests_total",
		Help: "Total proxy requests by kind (manifest/segment) and status",
	}, []string{"kind", "status"})

	// CacheOpsTotal tracks cache lookups by tier and result.
	CacheOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsgate_cache_ops_total",
		Help: "Cache lookups by tier and result (hit/miss)",
	}, []string{"tier", "result"})

	// UpstreamAttemptDuration tracks upstream fetch attempt latency.
	UpstreamAttemptDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hlsgate_upstream_attempt_duration_seconds",
		Help:    "Upstream HTTP attempt latencies",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	}, []string{"result"})

	// UpstreamRetriesTotal counts timeout retries against upstreams.
	UpstreamRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlsgate_upstream_retries_total",
		Help: "Total upstream fetch retries after timeouts",
	})

	// ActiveSegmentStreams tracks in-flight segment responses.
	ActiveSegmentStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hlsgate_active_segment_streams",
		Help: "Segment streaming responses currently in flight",
	})

	// SegmentBytesTotal counts segment payload bytes sent to clients.
	SegmentBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hlsgate_segment_bytes_total",
		Help: "Total segment bytes written to clients",
	})

	// PrefetchInFlight tracks concurrent upstream segment fetches.
	PrefetchInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hlsgate_prefetch_in_flight",
		Help: "Upstream segment fetches currently in flight",
	})

	// ExtractionsTotal tracks extraction adapter calls by outcome.
	ExtractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsgate_extractions_total",
		Help: "Extractor invocations by operation and result",
	}, []string{"op", "result"})
)

// IncProxyRequest records a proxy dispatch outcome.
func IncProxyRequest(kind string, status int) {
	ProxyRequestsTotal.WithLabelValues(kind, strconv.Itoa(status)).Inc()
}

// IncCacheOp records a cache lookup result.
func IncCacheOp(tier string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheOpsTotal.WithLabelValues(tier, result).Inc()
}

// ObserveUpstreamAttempt records one upstream attempt.
func ObserveUpstreamAttempt(result string, d time.Duration) {
	UpstreamAttemptDuration.WithLabelValues(result).Observe(d.Seconds())
}

// IncExtraction records an extractor call outcome.
func IncExtraction(op string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	ExtractionsTotal.WithLabelValues(op, result).Inc()
}
