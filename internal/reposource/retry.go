package reposource

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/rohankatakam/manifestaudit/internal/mferrors"
)

// retryConfig implements the backoff policy from spec §4.2: base 1s,
// factor 2, max 5 attempts, jitter ±25%.
type retryConfig struct {
	baseDelay  time.Duration
	factor     float64
	maxAttempts int
	jitter     float64
}

var defaultRetry = retryConfig{
	baseDelay:   1 * time.Second,
	factor:      2,
	maxAttempts: 5,
	jitter:      0.25,
}

// withRetry runs op, retrying on errors classified as transient by
// isTransient, until it succeeds, a permanent error occurs, attempts
// are exhausted, or ctx is cancelled.
func withRetry(ctx context.Context, cfg retryConfig, op func(ctx context.Context) error) error {
	var lastErr error
	delay := cfg.baseDelay

	for attempt := 0; attempt < cfg.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return mferrors.Wrap(mferrors.KindCancelled, "repo source operation cancelled", err)
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !isTransient(err) {
			return mferrors.Wrap(mferrors.KindSourceUnavailable, "repo source permanent error", err)
		}
		if attempt == cfg.maxAttempts-1 {
			break
		}

		jittered := applyJitter(delay, cfg.jitter)
		select {
		case <-time.After(jittered):
		case <-ctx.Done():
			return mferrors.Wrap(mferrors.KindCancelled, "repo source operation cancelled", ctx.Err())
		}
		delay = time.Duration(float64(delay) * cfg.factor)
	}

	return mferrors.Wrap(mferrors.KindSourceExhausted, "repo source operation failed after retries", lastErr)
}

func applyJitter(d time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return d
	}
	delta := float64(d) * jitter
	offset := (rand.Float64()*2 - 1) * delta // -delta..+delta
	return time.Duration(float64(d) + offset)
}

// httpStatusError lets concrete RepoSource implementations report the HTTP
// status they observed without importing a specific SDK's error type.
type httpStatusError struct {
	StatusCode int
	Err        error
}

func (e *httpStatusError) Error() string { return e.Err.Error() }
func (e *httpStatusError) Unwrap() error { return e.Err }

func newHTTPStatusError(status int, err error) error {
	return &httpStatusError{StatusCode: status, Err: err}
}

// isTransient classifies an error per spec §4.2: HTTP 5xx and rate-limit
// responses are retried; 404/401/403 are permanent.
func isTransient(err error) bool {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return true
		case statusErr.StatusCode >= 500:
			return true
		case statusErr.StatusCode == http.StatusNotFound,
			statusErr.StatusCode == http.StatusUnauthorized,
			statusErr.StatusCode == http.StatusForbidden:
			return false
		}
	}
	// Unclassified errors (network blips, DNS) are treated as transient so
	// a flaky connection gets retried rather than aborting the phase.
	return true
}
