package vector

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"
)

// isAccessDenied reports whether err looks like a provider's "model not
// accessible"/403 response, so the error can be returned at once instead
// of burning retries on a request that will never succeed.
func isAccessDenied(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "403") || strings.Contains(msg, "permission") || strings.Contains(msg, "access denied")
}

// isTransient reports whether err looks retryable: rate limiting, server
// errors, or a timeout.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "500") ||
		strings.Contains(msg, "502") || strings.Contains(msg, "503") ||
		strings.Contains(msg, "timeout") || strings.Contains(msg, "rate limit")
}

// withRetry runs fn up to MaxRetries+1 times with exponential backoff and
// jitter, per spec.md §7.3, retrying only errors that wrap ErrTransient or
// look transient (isTransient). Any other error, including one satisfying
// errors.Is(err, ErrAccessDenied), is returned at once without a retry.
func withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := RetryBaseDelay
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrAccessDenied) {
			return err
		}
		if !errors.Is(err, ErrTransient) && !isTransient(err) {
			return err
		}
		lastErr = err
		if attempt == MaxRetries {
			break
		}
		jitter := time.Duration(rand.Int63n(int64(delay) / 2))
		wait := delay + jitter
		if wait > RetryMaxDelay {
			wait = RetryMaxDelay
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		delay *= 2
	}
	return lastErr
}
