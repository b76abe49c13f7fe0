package reposource

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rohankatakam/manifestaudit/internal/mferrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetrySucceedsAfterTransientErrors(t *testing.T) {
	cfg := retryConfig{baseDelay: time.Millisecond, factor: 2, maxAttempts: 5, jitter: 0}
	attempts := 0

	err := withRetry(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return newHTTPStatusError(http.StatusServiceUnavailable, errors.New("boom"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	cfg := retryConfig{baseDelay: time.Millisecond, factor: 2, maxAttempts: 5, jitter: 0}
	attempts := 0

	err := withRetry(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		return newHTTPStatusError(http.StatusNotFound, errors.New("nope"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	kind, ok := mferrors.KindOf(err)
	require.True(t, ok, "permanent error must be wrapped in mferrors.Error")
	assert.Equal(t, mferrors.KindSourceUnavailable, kind)
	assert.Equal(t, 3, kind.ExitCode())
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	cfg := retryConfig{baseDelay: time.Millisecond, factor: 2, maxAttempts: 3, jitter: 0}
	attempts := 0

	err := withRetry(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		return newHTTPStatusError(http.StatusTooManyRequests, errors.New("rate limited"))
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	kind, ok := mferrors.KindOf(err)
	require.True(t, ok, "exhausted retries must be wrapped in mferrors.Error")
	assert.Equal(t, mferrors.KindSourceExhausted, kind)
	assert.NotEqual(t, mferrors.KindSourceUnavailable, kind, "exhaustion must not be confused with a permanent host error")
}

func TestOwnerNameParsesVariousForms(t *testing.T) {
	cases := map[string][2]string{
		"https://github.com/acme/widgets":     {"acme", "widgets"},
		"https://github.com/acme/widgets.git": {"acme", "widgets"},
		"github.com/acme/widgets":             {"acme", "widgets"},
		"acme/widgets":                        {"acme", "widgets"},
	}
	for input, want := range cases {
		owner, name, err := ownerName(input)
		require.NoError(t, err, input)
		assert.Equal(t, want[0], owner, input)
		assert.Equal(t, want[1], name, input)
	}
}
