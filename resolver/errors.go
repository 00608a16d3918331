package resolver

import "errors"

var (
	// ErrFeedSourceRequired is returned when a feed source is not provided.
	ErrFeedSourceRequired = errors.New("feed source required")

	// ErrBadFeed indicates a listing feed page that could not be decoded.
	// Resolver-level failures are fatal to the run, never skipped.
	ErrBadFeed = errors.New("malformed listing feed")
)
