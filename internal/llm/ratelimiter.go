package llm

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DefaultCloudConcurrency and DefaultLocalConcurrency are the default
// slot-pool widths: cloud providers get more headroom, Ollama-like local
// endpoints default to a single in-flight request.
const (
	DefaultCloudConcurrency = 4
	DefaultLocalConcurrency = 1
)

// RateLimiter is a fixed-size slot pool bounding concurrent provider calls.
type RateLimiter struct {
	sem *semaphore.Weighted
}

// NewRateLimiter returns a RateLimiter that allows at most `limit`
// concurrent calls through WithLimit.
func NewRateLimiter(limit int) *RateLimiter {
	if limit < 1 {
		limit = 1
	}
	return &RateLimiter{sem: semaphore.NewWeighted(int64(limit))}
}

// WithLimit acquires a slot, runs fn, and releases the slot. It blocks
// until a slot is free or ctx is canceled.
func (r *RateLimiter) WithLimit(ctx context.Context, fn func() error) error {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer r.sem.Release(1)
	return fn()
}

// RateLimitedProvider wraps a Provider so every Complete call passes
// through a bounded-concurrency slot pool.
type RateLimitedProvider struct {
	provider Provider
	limiter  *RateLimiter
}

// NewRateLimitedProvider wraps provider with a slot pool of the given width.
func NewRateLimitedProvider(provider Provider, concurrency int) *RateLimitedProvider {
	return &RateLimitedProvider{provider: provider, limiter: NewRateLimiter(concurrency)}
}

func (r *RateLimitedProvider) Name() string {
	return r.provider.Name()
}

func (r *RateLimitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var resp *CompletionResponse
	err := r.limiter.WithLimit(ctx, func() error {
		var innerErr error
		resp, innerErr = r.provider.Complete(ctx, req)
		return innerErr
	})
	return resp, err
}
