package storage

import (
	"context"
	"time"

	"github.com/openlexica/legisport/core"
)

// Repository provides common operations shared across repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close closes the repository and releases resources.
	Close() error
}

// CheckpointRepository records durable per-(type, year) ingestion
// progress. It is the pipeline's only shared mutable state; all access
// goes through its internal synchronization.
type CheckpointRepository interface {
	Repository

	// LoadCheckpoint assembles the progress record for a combination
	// from the outcome log. Returns an empty record when the
	// combination has never been attempted.
	LoadCheckpoint(ctx context.Context, docType core.DocType, year int) (*core.CheckpointRecord, error)

	// RecordOutcome durably appends one identifier outcome and
	// advances the combination's cursor to that identifier.
	RecordOutcome(ctx context.Context, docType core.DocType, year int, rec core.OutcomeRecord) error

	// SetCandidates records the full candidate count once the
	// resolver has finished enumerating the combination.
	SetCandidates(ctx context.Context, docType core.DocType, year int, candidates int) error

	// IsComplete reports whether every candidate of the combination
	// has reached a terminal outcome.
	IsComplete(ctx context.Context, docType core.DocType, year int) (bool, error)

	// ClearCheckpoint removes all progress for a combination. This is
	// the only way to force reprocessing; it is never called
	// automatically.
	ClearCheckpoint(ctx context.Context, docType core.DocType, year int) error

	// ListCheckpoints returns the progress records of every
	// combination ever attempted.
	ListCheckpoints(ctx context.Context) ([]*core.CheckpointRecord, error)
}

// FetchCacheRepository persists one entry per fetched URL with a TTL.
type FetchCacheRepository interface {
	Repository

	// GetResponse returns the cached entry for a URL.
	// Returns ErrNotFound when the entry is absent or expired.
	GetResponse(ctx context.Context, url string) (*core.CachedResponse, error)

	// PutResponse stores an entry under its URL for the given TTL.
	// A zero TTL stores the entry without expiry.
	PutResponse(ctx context.Context, resp *core.CachedResponse, ttl time.Duration) error
}
