package llm

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/handoverhq/handover/internal/herrors"
)

// RetryConfig controls Retry's backoff schedule.
type RetryConfig struct {
	MaxRetries    int
	BaseDelay     time.Duration
	IsRetryable   func(error) bool
	Clock         func(time.Duration)      // injectable sleep, defaults to time.Sleep
	Rand          func() float64           // injectable jitter source, defaults to rand.Float64
}

// DefaultRetryConfig returns the default retry policy: 3 retries,
// a 30s base delay, retrying on HTTP-ish 429/529 classification.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  3,
		BaseDelay:   30 * time.Second,
		IsRetryable: IsRetryableError,
	}
}

// IsRetryableError classifies provider errors as transient (HTTP 429/529 or
// their provider-specific equivalents).
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode == 529
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "529") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "too many requests")
}

// StatusError carries an HTTP status code so IsRetryableError can classify
// it without string matching.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return "provider returned status " + strconv.Itoa(e.StatusCode) + ": " + e.Body
}

// Retry invokes fn, retrying with exponential-jittered backoff on
// retryable errors: for attempt a in [0, maxRetries), jitter = baseDelay *
// 2^a * (0.5 + rand01()). If every attempt fails, the final error is
// wrapped as a herrors RateLimited error regardless of its underlying kind.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 30 * time.Second
	}
	if cfg.IsRetryable == nil {
		cfg.IsRetryable = IsRetryableError
	}
	sleep := cfg.Clock
	if sleep == nil {
		sleep = func(d time.Duration) { time.Sleep(d) }
	}
	jitter := cfg.Rand
	if jitter == nil {
		jitter = rand.Float64
	}

	var lastErr error
	attempts := 0
	for attempt := 0; ; attempt++ {
		attempts++
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !cfg.IsRetryable(err) {
			return err
		}
		if attempt >= cfg.MaxRetries {
			break
		}

		delay := time.Duration(float64(cfg.BaseDelay) * math.Pow(2, float64(attempt)) * (0.5 + jitter()))

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		sleep(delay)
	}

	return herrors.RateLimited(attempts, lastErr)
}
