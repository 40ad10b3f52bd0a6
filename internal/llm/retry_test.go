package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/handoverhq/handover/internal/herrors"
)

func TestRetrySucceedsAfterOneTransientFailure(t *testing.T) {
	calls := 0
	var slept []time.Duration
	cfg := RetryConfig{
		MaxRetries: 3,
		BaseDelay:  30 * time.Second,
		Clock:      func(d time.Duration) { slept = append(slept, d) },
		Rand:       func() float64 { return 0.5 },
	}

	err := Retry(context.Background(), cfg, func() error {
		calls++
		if calls == 1 {
			return &StatusError{StatusCode: 429, Body: "rate limited"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected exactly 2 calls, got %d", calls)
	}
	if len(slept) != 1 {
		t.Fatalf("expected one backoff sleep, got %d", len(slept))
	}
	// attempt 0: baseDelay * 2^0 * (0.5 + rand01) with rand01 in [0,1)
	// bounds the sleep to [15s, 45s); rand01=0.5 pins it at 30s.
	if slept[0] != 30*time.Second {
		t.Errorf("expected 30s backoff with pinned jitter, got %s", slept[0])
	}
}

func TestRetryJitterStaysWithinBounds(t *testing.T) {
	for _, r := range []float64{0.0, 0.999} {
		r := r
		var slept time.Duration
		cfg := RetryConfig{
			MaxRetries: 2,
			BaseDelay:  30 * time.Second,
			Clock:      func(d time.Duration) { slept = d },
			Rand:       func() float64 { return r },
		}
		calls := 0
		_ = Retry(context.Background(), cfg, func() error {
			calls++
			if calls == 1 {
				return &StatusError{StatusCode: 529, Body: "overloaded"}
			}
			return nil
		})
		if slept < 15*time.Second || slept >= 45*time.Second {
			t.Errorf("rand=%v: backoff %s outside [15s, 45s)", r, slept)
		}
	}
}

func TestRetryWrapsFinalErrorAsRateLimited(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		Clock:      func(time.Duration) {},
		Rand:       func() float64 { return 0 },
	}
	underlying := &StatusError{StatusCode: 429, Body: "still limited"}

	err := Retry(context.Background(), cfg, func() error { return underlying })
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	var he *herrors.HandoverError
	if !errors.As(err, &he) {
		t.Fatalf("expected *herrors.HandoverError, got %T", err)
	}
	if he.Kind != herrors.KindRateLimited {
		t.Errorf("expected RateLimited kind, got %s", he.Kind)
	}
	if !errors.Is(err, underlying) {
		t.Error("wrapped error must expose the underlying failure via errors.Is")
	}
}

func TestRetryDoesNotRetryNonRetryableErrors(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		Clock:      func(time.Duration) { t.Error("must not sleep for a non-retryable error") },
		Rand:       func() float64 { return 0 },
	}
	calls := 0
	fatal := errors.New("schema validation failed")

	err := Retry(context.Background(), cfg, func() error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Errorf("expected the original error back, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}

func TestIsRetryableErrorClassification(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{&StatusError{StatusCode: 429}, true},
		{&StatusError{StatusCode: 529}, true},
		{&StatusError{StatusCode: 500}, false},
		{errors.New("anthropic API error (overloaded_error): overloaded"), true},
		{errors.New("rate_limit_error"), true},
		{errors.New("connection refused"), false},
	}
	for _, c := range cases {
		if got := IsRetryableError(c.err); got != c.want {
			t.Errorf("IsRetryableError(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}
