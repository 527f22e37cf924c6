// SPDX-License-Identifier: MIT

// Package fetch provides the shared upstream HTTP client: connection
// pooling, timeout-only retries and status surfacing.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oculora/hlsgate/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
)

// Config holds the configuration for the upstream client.
type Config struct {
	// Timeout bounds a single attempt (headers included) for buffered gets
	// and the header wait for streaming gets.
	Timeout time.Duration

	MaxConnections          int
	MaxKeepaliveConnections int
	KeepaliveExpiry         time.Duration

	// Retries is the number of additional attempts after a timeout.
	Retries int

	MaxRedirects int
	UserAgent    string
}

// Response is the result of an upstream fetch. For buffered gets Body is
// fully read and Reader is nil; for streaming gets Reader must be closed by
// the caller and Body is nil.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	Reader io.ReadCloser
}

// Client is a pooled upstream HTTP client shared process-wide.
type Client struct {
	http    *http.Client
	cfg     Config
	logger  zerolog.Logger
	backoff time.Duration // between timeout retries
}

// New creates the upstream client.
func New(cfg Config, logger zerolog.Logger) *Client {
	transport := &http.Transport{
		MaxConnsPerHost:       cfg.MaxConnections,
		MaxIdleConns:          cfg.MaxKeepaliveConnections,
		MaxIdleConnsPerHost:   cfg.MaxKeepaliveConnections,
		IdleConnTimeout:       cfg.KeepaliveExpiry,
		ResponseHeaderTimeout: cfg.Timeout,
	}
	// Upstream CDNs negotiate h2; mirror that on our side.
	if err := http2.ConfigureTransport(transport); err != nil {
		logger.Warn().Err(err).Msg("http2 transport configuration failed, continuing with HTTP/1.1")
	}

	maxRedirects := cfg.MaxRedirects
	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("%w: stopped after %d", ErrTooManyRedirects, maxRedirects)
			}
			return nil
		},
	}

	return &Client{
		http:    client,
		cfg:     cfg,
		logger:  logger,
		backoff: time.Second,
	}
}

// Get fetches url fully into memory. Intended for manifests and other small
// upstream payloads. Each attempt is bounded by the configured timeout;
// timeouts are retried with linear backoff, anything else surfaces directly.
func (c *Client) Get(ctx context.Context, url string, hdr http.Header) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			metrics.UpstreamRetriesTotal.Inc()
			c.logger.Warn().
				Str("url", url).
				Int("attempt", attempt+1).
				Int("max_attempts", c.cfg.Retries+1).
				Msg("retrying upstream fetch after timeout")
			select {
			case <-time.After(c.backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := c.attempt(ctx, url, hdr)
		if err == nil {
			data, readErr := io.ReadAll(resp.Reader)
			closeErr := resp.Reader.Close()
			if readErr != nil {
				if isTimeout(readErr) && ctx.Err() == nil {
					lastErr = readErr
					continue
				}
				return nil, fmt.Errorf("read upstream body: %w", readErr)
			}
			_ = closeErr
			return &Response{Status: resp.Status, Header: resp.Header, Body: data}, nil
		}

		if !isTimeout(err) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %s after %d attempts: %v", ErrTimeout, url, c.cfg.Retries+1, lastErr)
}

// Stream opens url for reading. The response header wait is bounded by the
// configured timeout (retried like Get); the body read is open-ended and is
// cancelled through ctx. The caller owns Reader.
func (c *Client) Stream(ctx context.Context, url string, hdr http.Header) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			metrics.UpstreamRetriesTotal.Inc()
			select {
			case <-time.After(c.backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := c.open(ctx, url, hdr)
		if err == nil {
			return resp, nil
		}
		if !isTimeout(err) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %s after %d attempts: %v", ErrTimeout, url, c.cfg.Retries+1, lastErr)
}

// attempt performs one bounded buffered-get attempt. The returned Reader is
// tied to a context that expires with the attempt timeout.
func (c *Client) attempt(ctx context.Context, url string, hdr http.Header) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)

	resp, err := c.do(attemptCtx, url, hdr)
	if err != nil {
		cancel()
		return nil, err
	}

	// Wrap so the attempt context is released when the body is closed.
	resp.Reader = &cancelReadCloser{ReadCloser: resp.Reader, cancel: cancel}
	return resp, nil
}

// open performs one streaming-get attempt; no overall deadline.
func (c *Client) open(ctx context.Context, url string, hdr http.Header) (*Response, error) {
	return c.do(ctx, url, hdr)
}

func (c *Client) do(ctx context.Context, url string, hdr http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.cfg.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		result := "error"
		if isTimeout(err) {
			result = "timeout"
		}
		metrics.ObserveUpstreamAttempt(result, time.Since(start))
		return nil, err
	}
	metrics.ObserveUpstreamAttempt("ok", time.Since(start))

	if resp.StatusCode >= 400 {
		_ = resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, URL: url}
	}

	return &Response{Status: resp.StatusCode, Header: resp.Header, Reader: resp.Body}, nil
}

type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
