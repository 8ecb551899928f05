package vector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAccessDenied(t *testing.T) {
	assert.True(t, isAccessDenied(errors.New("403 Forbidden")))
	assert.True(t, isAccessDenied(errors.New("permission denied for model")))
	assert.False(t, isAccessDenied(errors.New("500 internal server error")))
	assert.False(t, isAccessDenied(nil))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(errors.New("429 too many requests")))
	assert.True(t, isTransient(errors.New("request timeout")))
	assert.True(t, isTransient(errors.New("rate limit exceeded")))
	assert.False(t, isTransient(errors.New("invalid api key")))
	assert.False(t, isTransient(nil))
}

func TestWithRetrySucceedsEventually(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), func() error {
		attempts++
		if attempts < 2 {
			return errors.New("503 service unavailable")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestWithRetryStopsImmediatelyOnAccessDenied(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), func() error {
		attempts++
		return ErrAccessDenied
	})
	require.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, 1, attempts)
}

func TestWithRetryExhaustsAndReturnsLastError(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), func() error {
		attempts++
		return errors.New("503 always failing")
	})
	require.Error(t, err)
	assert.Equal(t, MaxRetries+1, attempts)
}
