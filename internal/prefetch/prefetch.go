// SPDX-License-Identifier: MIT

// Package prefetch streams ordered media segments to a client while fetching
// a bounded window of upcoming segments concurrently. Chunks reach the
// consumer strictly in segment order; within a segment, in arrival order.
package prefetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/oculora/hlsgate/internal/cache"
	"github.com/oculora/hlsgate/internal/fetch"
	"github.com/oculora/hlsgate/internal/metrics"
)

// Source fetches one segment as a byte stream. Satisfied by *fetch.Client.
type Source interface {
	Stream(ctx context.Context, url string, hdr http.Header) (*fetch.Response, error)
}

// Config holds the prefetcher tunables.
type Config struct {
	// Window is the number of segments fetched ahead of the consumer.
	Window int

	// ChunkSize is the read size for upstream segment bodies.
	ChunkSize int

	// Namespace prefixes segment cache keys.
	Namespace string

	// SegmentTTL bounds how long fetched segment bytes stay cached.
	SegmentTTL time.Duration
}

// Prefetcher drives ordered segment delivery for one or more segment URLs.
type Prefetcher struct {
	source Source
	cache  cache.Cache
	cfg    Config
	logger zerolog.Logger
}

// New creates a Prefetcher backed by source and the segment cache tier.
func New(source Source, segments cache.Cache, cfg Config, logger zerolog.Logger) *Prefetcher {
	if cfg.Window < 1 {
		cfg.Window = 1
	}
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = 8192
	}
	return &Prefetcher{source: source, cache: segments, cfg: cfg, logger: logger}
}

// SegmentError carries the failing segment's position so callers can tell a
// failure before the first byte from one mid-stream.
type SegmentError struct {
	Index int
	URL   string
	Err   error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %d (%s): %v", e.Index, e.URL, e.Err)
}

func (e *SegmentError) Unwrap() error { return e.Err }

// chunk is one unit flowing from a segment worker to the consumer. A chunk
// with err set is the worker's final word for that segment.
type chunk struct {
	data []byte
	err  error
}

// Stream fetches urls concurrently within the configured window and writes
// their bytes to w in strict segment order. hdr is forwarded upstream (Range
// passes through, which also bypasses the segment cache). Returns the number
// of bytes written; on error the caller decides whether a response status can
// still be sent based on that count.
func (p *Prefetcher) Stream(ctx context.Context, urls []string, hdr http.Header, w io.Writer) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Range requests are partial views; caching them under the full-segment
	// key would poison later reads.
	cacheable := hdr.Get("Range") == ""

	chans := make([]chan chunk, len(urls))
	for i := range chans {
		chans[i] = make(chan chunk, 4)
	}

	sem := semaphore.NewWeighted(int64(p.cfg.Window))
	var wg sync.WaitGroup

	// Dispatcher: admit segment i into the window, then fetch it. The slot
	// is released by the consumer once segment i is fully drained, pacing
	// the producers to consumption speed.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i, u := range urls {
			if err := sem.Acquire(ctx, 1); err != nil {
				// Consumer is gone; unblock any remaining drain loops.
				for j := i; j < len(urls); j++ {
					chans[j] <- chunk{err: err}
					close(chans[j])
				}
				return
			}
			wg.Add(1)
			go func(i int, u string) {
				defer wg.Done()
				p.fetchSegment(ctx, i, u, hdr, cacheable, chans[i])
			}(i, u)
		}
	}()

	defer func() {
		cancel()
		go func() {
			// Unstick workers blocked on a full chunk channel.
			for _, ch := range chans {
				for range ch {
				}
			}
		}()
		wg.Wait()
	}()

	flusher, _ := w.(http.Flusher)
	var written int64

	for i, ch := range chans {
		for c := range ch {
			if c.err != nil {
				return written, &SegmentError{Index: i, URL: urls[i], Err: c.err}
			}
			n, err := w.Write(c.data)
			written += int64(n)
			metrics.SegmentBytesTotal.Add(float64(n))
			if err != nil {
				return written, fmt.Errorf("write to client: %w", err)
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		sem.Release(1)
	}

	// A cancelled worker may close its channel without an error chunk;
	// an interrupted stream must not read as a complete one.
	if err := ctx.Err(); err != nil {
		return written, err
	}
	return written, nil
}

// fetchSegment produces the chunks for one segment and closes out. Cache hit
// short-circuits the upstream fetch; a full miss streams from upstream while
// accumulating bytes for the cache.
func (p *Prefetcher) fetchSegment(ctx context.Context, index int, url string, hdr http.Header, cacheable bool, out chan<- chunk) {
	defer close(out)

	key := p.cfg.Namespace + ":raw:" + url

	if cacheable {
		if v, ok := p.cache.Get(key); ok {
			if data, ok := cache.Bytes(v); ok {
				metrics.IncCacheOp("segment", true)
				select {
				case out <- chunk{data: data}:
				case <-ctx.Done():
				}
				return
			}
		}
		metrics.IncCacheOp("segment", false)
	}

	metrics.PrefetchInFlight.Inc()
	defer metrics.PrefetchInFlight.Dec()

	resp, err := p.source.Stream(ctx, url, hdr)
	if err != nil {
		select {
		case out <- chunk{err: err}:
		case <-ctx.Done():
		}
		return
	}
	defer resp.Reader.Close()

	var buffered []byte
	for {
		buf := make([]byte, p.cfg.ChunkSize)
		n, err := resp.Reader.Read(buf)
		if n > 0 {
			if cacheable {
				buffered = append(buffered, buf[:n]...)
			}
			select {
			case out <- chunk{data: buf[:n]}:
			case <-ctx.Done():
				return
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			p.logger.Debug().Err(err).Str("url", url).Int("segment", index).Msg("segment body read aborted")
			select {
			case out <- chunk{err: err}:
			case <-ctx.Done():
			}
			return
		}
	}

	if cacheable && len(buffered) > 0 {
		p.cache.Set(key, buffered, p.cfg.SegmentTTL)
	}
}
