// SPDX-License-Identifier: MIT

package extract

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of concurrently running extractor subprocesses.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a pool admitting up to workers concurrent extractions.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(workers))}
}

// Acquire blocks until a worker slot is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) error {
	return p.sem.Acquire(ctx, 1)
}

// Release returns a worker slot.
func (p *Pool) Release() {
	p.sem.Release(1)
}
