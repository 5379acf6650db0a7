// Package workerpool offloads blocking calls (completion engine, search
// provider) onto a bounded set of goroutines. Callers wait on either the
// result or their context, never on the call itself.
package workerpool

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

type Pool struct {
	name   string
	size   int64
	sem    *semaphore.Weighted
	logger *zap.Logger
}

func New(name string, size int, logger *zap.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		name:   name,
		size:   int64(size),
		sem:    semaphore.NewWeighted(int64(size)),
		logger: logger,
	}
}

func (p *Pool) Size() int {
	return int(p.size)
}

type result[T any] struct {
	value T
	err   error
}

// Do runs fn on a pool slot. If ctx ends first, Do returns ctx.Err() and the
// slot is released once fn returns; fn receives the same ctx so it can stop.
func Do[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, fmt.Errorf("%s pool: %w", p.name, err)
	}

	done := make(chan result[T], 1)
	go func() {
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("Offloaded task panicked", zap.String("pool", p.name), zap.Any("panic", r))
				done <- result[T]{err: fmt.Errorf("%s pool: task panicked: %v", p.name, r)}
			}
		}()
		v, err := fn(ctx)
		done <- result[T]{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		p.logger.Debug("Caller stopped waiting on offloaded task", zap.String("pool", p.name), zap.Error(ctx.Err()))
		return zero, ctx.Err()
	}
}
