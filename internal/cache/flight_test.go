// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestFlight_SingleFillAcrossConcurrentCallers(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := NewFlight(NewMemory(0))

	var fills atomic.Int32
	release := make(chan struct{})

	const callers = 50
	var wg sync.WaitGroup
	results := make([]any, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.GetOrFill(context.Background(), "k", time.Minute, func(context.Context) (any, error) {
				fills.Add(1)
				<-release
				return "value", nil
			})
		}(i)
	}

	// Let the callers pile up on the flight before releasing the fill.
	assert.Eventually(t, func() bool { return fills.Load() == 1 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), fills.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "value", results[i])
	}
}

func TestFlight_CacheHitSkipsFill(t *testing.T) {
	f := NewFlight(NewMemory(0))
	f.Cache().Set("k", "cached", time.Minute)

	v, err := f.GetOrFill(context.Background(), "k", time.Minute, func(context.Context) (any, error) {
		t.Fatal("fill must not run on a hit")
		return nil, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "cached", v)
}

func TestFlight_FailedFillDoesNotPoison(t *testing.T) {
	f := NewFlight(NewMemory(0))
	boom := errors.New("boom")

	_, err := f.GetOrFill(context.Background(), "k", time.Minute, func(context.Context) (any, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	// Key absent, next call retries and succeeds.
	v, err := f.GetOrFill(context.Background(), "k", time.Minute, func(context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestFlight_WaiterObservesCancellation(t *testing.T) {
	f := NewFlight(NewMemory(0))

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	go func() {
		_, _ = f.GetOrFill(context.Background(), "k", time.Minute, func(context.Context) (any, error) {
			close(started)
			<-release
			return "late", nil
		})
	}()

	<-started
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.GetOrFill(ctx, "k", time.Minute, func(context.Context) (any, error) {
		return "unused", nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFlight_CompletedFillSurvivesCallerExit(t *testing.T) {
	f := NewFlight(NewMemory(0))

	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		_, _ = f.GetOrFill(ctx, "k", time.Minute, func(context.Context) (any, error) {
			<-release
			return "value", nil
		})
	}()

	cancel()
	<-done
	close(release)

	// The detached fill still lands in the cache.
	assert.Eventually(t, func() bool {
		v, ok := f.Cache().Get("k")
		return ok && v == "value"
	}, time.Second, time.Millisecond)
}
