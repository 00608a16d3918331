// Copyright 2025 Openlexica
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package retry provides exponential backoff with jitter for the
// network-facing layers of the pipeline.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"
)

// ErrInvalidMaxAttempts is returned when maxAttempts is not positive.
var ErrInvalidMaxAttempts = errors.New("max attempts must be greater than 0")

// AfterHinter is implemented by errors that carry an upstream
// retry-after hint, e.g. a rate-limit response.
type AfterHinter interface {
	RetryAfter() time.Duration
}

// Permanent wraps an error to tell WithBackoff not to retry it.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// WithBackoff retries an operation with exponential backoff and jitter.
// The delay doubles on each retry, with up to 50% random jitter added.
// If the error implements AfterHinter with a positive hint, the hint is
// honored when it exceeds the computed delay. Errors wrapped in
// Permanent abort immediately and are returned unwrapped.
// Returns the error from the last attempt if all attempts fail.
func WithBackoff(ctx context.Context, operation func() error, maxAttempts int, baseDelay time.Duration) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		// Check context before attempting
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil // Success
		}

		var perm *Permanent
		if errors.As(lastErr, &perm) {
			return perm.Err
		}

		slog.Debug("operation failed, will retry", "attempt", attempt, "maxAttempts", maxAttempts, "error", lastErr)

		// Don't sleep after the last attempt
		if attempt == maxAttempts {
			break
		}

		delay := backoffDelay(baseDelay, attempt)

		// Honor an upstream retry-after hint when it is longer.
		var hinter AfterHinter
		if errors.As(lastErr, &hinter) {
			if hint := hinter.RetryAfter(); hint > delay {
				delay = hint
			}
		}

		// Sleep with context awareness
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			// Continue to next attempt
		}
	}

	return lastErr
}

// backoffDelay computes baseDelay * 2^(attempt-1) plus up to 50% jitter.
func backoffDelay(baseDelay time.Duration, attempt int) time.Duration {
	delay := baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	if delay > 0 {
		delay += time.Duration(rand.Int64N(int64(delay)/2 + 1))
	}
	return delay
}
