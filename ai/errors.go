package ai

import (
	"fmt"
	"time"
)

// RateLimitError indicates the embedding service rejected a request
// for rate reasons. RetryAfterHint carries the service's suggested
// backoff when it provides one; the retry layer honors it.
type RateLimitError struct {
	RetryAfterHint time.Duration
	Err            error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("embedding service rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// RetryAfter returns the service-provided backoff hint, or zero.
func (e *RateLimitError) RetryAfter() time.Duration {
	return e.RetryAfterHint
}
