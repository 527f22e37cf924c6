// SPDX-License-Identifier: MIT

package prefetch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/oculora/hlsgate/internal/cache"
	"github.com/oculora/hlsgate/internal/fetch"
)

type fakeSource struct {
	mu          sync.Mutex
	bodies      map[string]string
	delays      map[string]time.Duration
	errs        map[string]error
	calls       []string
	inFlight    int
	maxInFlight int
	blockUntil  chan struct{} // when set, Stream blocks until closed or ctx done
}

func (f *fakeSource) Stream(ctx context.Context, url string, hdr http.Header) (*fetch.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	delay := f.delays[url]
	errOut := f.errs[url]
	body := f.bodies[url]
	block := f.blockUntil
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if errOut != nil {
		return nil, errOut
	}

	return &fetch.Response{
		Status: http.StatusOK,
		Reader: io.NopCloser(bytes.NewReader([]byte(body))),
	}, nil
}

func newTestPrefetcher(src Source, window int) (*Prefetcher, cache.Cache) {
	c := cache.NewMemory(0)
	p := New(src, c, Config{
		Window:     window,
		ChunkSize:  4,
		Namespace:  "proxy",
		SegmentTTL: time.Minute,
	}, zerolog.Nop())
	return p, c
}

func TestStream_OrderPreservedWithSlowMiddleSegment(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &fakeSource{
		bodies: map[string]string{
			"http://u/0.ts": "AAAAAAAA",
			"http://u/1.ts": "BBBBBBBB",
			"http://u/2.ts": "CCCCCCCC",
		},
		delays: map[string]time.Duration{
			"http://u/1.ts": 50 * time.Millisecond,
		},
	}
	p, _ := newTestPrefetcher(src, 3)

	var buf bytes.Buffer
	written, err := p.Stream(context.Background(), []string{"http://u/0.ts", "http://u/1.ts", "http://u/2.ts"}, http.Header{}, &buf)

	require.NoError(t, err)
	assert.Equal(t, "AAAAAAAABBBBBBBBCCCCCCCC", buf.String())
	assert.Equal(t, int64(24), written)
}

func TestStream_ConcurrencyBoundedByWindow(t *testing.T) {
	defer goleak.VerifyNone(t)

	urls := []string{"http://u/0", "http://u/1", "http://u/2", "http://u/3", "http://u/4"}
	bodies := make(map[string]string, len(urls))
	delays := make(map[string]time.Duration, len(urls))
	for _, u := range urls {
		bodies[u] = "data"
		delays[u] = 10 * time.Millisecond
	}
	src := &fakeSource{bodies: bodies, delays: delays}
	p, _ := newTestPrefetcher(src, 2)

	var buf bytes.Buffer
	_, err := p.Stream(context.Background(), urls, http.Header{}, &buf)

	require.NoError(t, err)
	src.mu.Lock()
	defer src.mu.Unlock()
	assert.LessOrEqual(t, src.maxInFlight, 2)
	assert.Len(t, src.calls, len(urls))
}

func TestStream_ErrorSurfacesAtItsSlot(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &fakeSource{
		bodies: map[string]string{"http://u/0.ts": "AAAA"},
		errs: map[string]error{
			"http://u/1.ts": &fetch.StatusError{Code: http.StatusForbidden, URL: "http://u/1.ts"},
		},
	}
	p, _ := newTestPrefetcher(src, 3)

	var buf bytes.Buffer
	written, err := p.Stream(context.Background(), []string{"http://u/0.ts", "http://u/1.ts"}, http.Header{}, &buf)

	require.Error(t, err)
	var se *SegmentError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Index)

	code, ok := fetch.StatusCode(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, code)

	// Segment 0 was already on the wire when the failure surfaced.
	assert.Equal(t, "AAAA", buf.String())
	assert.Equal(t, int64(4), written)
}

func TestStream_CacheHitSkipsUpstream(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &fakeSource{bodies: map[string]string{}}
	p, c := newTestPrefetcher(src, 2)

	c.Set("proxy:raw:http://u/seg.ts", []byte("cached-bytes"), time.Minute)

	var buf bytes.Buffer
	_, err := p.Stream(context.Background(), []string{"http://u/seg.ts"}, http.Header{}, &buf)

	require.NoError(t, err)
	assert.Equal(t, "cached-bytes", buf.String())
	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Empty(t, src.calls)
}

func TestStream_PopulatesCache(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &fakeSource{bodies: map[string]string{"http://u/seg.ts": "fresh-bytes"}}
	p, c := newTestPrefetcher(src, 2)

	var buf bytes.Buffer
	_, err := p.Stream(context.Background(), []string{"http://u/seg.ts"}, http.Header{}, &buf)
	require.NoError(t, err)

	v, ok := c.Get("proxy:raw:http://u/seg.ts")
	require.True(t, ok)
	data, _ := cache.Bytes(v)
	assert.Equal(t, "fresh-bytes", string(data))
}

func TestStream_RangeRequestBypassesCache(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &fakeSource{bodies: map[string]string{"http://u/seg.ts": "partial"}}
	p, c := newTestPrefetcher(src, 2)

	c.Set("proxy:raw:http://u/seg.ts", []byte("full-cached"), time.Minute)

	hdr := http.Header{}
	hdr.Set("Range", "bytes=0-6")

	var buf bytes.Buffer
	_, err := p.Stream(context.Background(), []string{"http://u/seg.ts"}, hdr, &buf)
	require.NoError(t, err)

	// Upstream served the partial body; the cached full segment is untouched.
	assert.Equal(t, "partial", buf.String())
	v, ok := c.Get("proxy:raw:http://u/seg.ts")
	require.True(t, ok)
	data, _ := cache.Bytes(v)
	assert.Equal(t, "full-cached", string(data))
}

func TestStream_CancellationStopsProducers(t *testing.T) {
	defer goleak.VerifyNone(t)

	block := make(chan struct{})
	defer close(block)

	src := &fakeSource{
		bodies:     map[string]string{"http://u/0.ts": "AAAA", "http://u/1.ts": "BBBB"},
		blockUntil: block,
	}
	p, _ := newTestPrefetcher(src, 2)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	var buf bytes.Buffer
	_, err := p.Stream(ctx, []string{"http://u/0.ts", "http://u/1.ts"}, http.Header{}, &buf)
	require.Error(t, err)
}
