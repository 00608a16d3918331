package deliver

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreRequired is returned when a deliverer is constructed
	// without a downstream store.
	ErrStoreRequired = errors.New("upsert store is required")

	// ErrEmbedderRequired is returned when embedding is enabled but no
	// embedder is provided.
	ErrEmbedderRequired = errors.New("embedder is required")
)

// DownstreamUnavailableError indicates the document store could not be
// reached or refused the batch for reasons unrelated to its content.
// The orchestrator records the affected identifiers as retryable, not
// failed.
type DownstreamUnavailableError struct {
	Err error
}

func (e *DownstreamUnavailableError) Error() string {
	return fmt.Sprintf("downstream store unavailable: %v", e.Err)
}

func (e *DownstreamUnavailableError) Unwrap() error { return e.Err }
