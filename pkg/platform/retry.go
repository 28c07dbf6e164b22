package platform

import (
	"context"
	"time"
)

// Retry runs fn, retrying exactly once after a fixed backoff when the
// failure is transient or a timeout. Non-HTTP adapters share the HTTP
// client's failure policy through this helper.
func Retry(ctx context.Context, backoff time.Duration, fn func() error) error {
	err := fn()
	if err == nil || !IsRetryable(err) {
		return err
	}

	if backoff <= 0 {
		backoff = defaultBackoff
	}
	select {
	case <-time.After(backoff):
	case <-ctx.Done():
		return err
	}

	return fn()
}
