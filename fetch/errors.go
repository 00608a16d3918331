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


package fetch

import (
	"errors"
	"fmt"
	"time"

	"github.com/openlexica/legisport/core"
)

var (
	// ErrBaseURLRequired is returned when a client is constructed
	// without a base URL.
	ErrBaseURLRequired = errors.New("base URL is required")

	// ErrNotPDF indicates a probe target that is not a valid PDF.
	ErrNotPDF = errors.New("content is not a valid PDF")
)

// NotFoundError indicates the source has no document at the URL.
// It is permanent: the orchestrator responds by probing for a
// scan-only fallback, never by retrying.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("document not found: %s", e.URL)
}

// MultipleChoicesError indicates the source returned an ambiguity
// page (HTTP 300) listing several concrete document versions instead
// of a body. Alternatives holds the identifiers extracted from the
// page, in listing order.
type MultipleChoicesError struct {
	URL          string
	Alternatives []core.DocumentIdentifier
}

func (e *MultipleChoicesError) Error() string {
	return fmt.Sprintf("multiple choices at %s (%d alternatives)", e.URL, len(e.Alternatives))
}

// StatusError indicates a response with an unexpected HTTP status.
// Transient reports whether the status is worth retrying (429 and
// 5xx); RetryAfterHint carries the server's Retry-After when present.
type StatusError struct {
	URL            string
	Status         int
	Transient      bool
	RetryAfterHint time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Status, e.URL)
}

// RetryAfter returns the server-provided backoff hint, or zero.
func (e *StatusError) RetryAfter() time.Duration {
	return e.RetryAfterHint
}
