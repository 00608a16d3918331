package deliver

import (
	"context"
	"sync"

	"github.com/openlexica/legisport/core"
)

// MemoryStore is an in-process UpsertStore used by tests and the
// dry-run pipeline mode. It tracks upserted items by ID so idempotency
// can be asserted.
type MemoryStore struct {
	mu    sync.Mutex
	items map[core.ID]UpsertItem

	// FailNext makes the next UpsertBatch return a
	// DownstreamUnavailableError, then clears itself.
	FailNext error
}

var _ UpsertStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[core.ID]UpsertItem),
	}
}

// UpsertBatch inserts or overwrites items, counting new vs. present.
func (s *MemoryStore) UpsertBatch(ctx context.Context, items []UpsertItem) (*core.BatchUploadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailNext != nil {
		err := s.FailNext
		s.FailNext = nil
		return nil, &DownstreamUnavailableError{Err: err}
	}

	result := &core.BatchUploadResult{}
	for _, item := range items {
		if _, ok := s.items[item.ID]; ok {
			result.AlreadyPresent++
		} else {
			result.Inserted++
		}
		s.items[item.ID] = item
	}
	return result, nil
}

// Close releases nothing; the store is in-process.
func (s *MemoryStore) Close() error {
	return nil
}

// Len returns the number of distinct items stored.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Get returns a stored item by ID.
func (s *MemoryStore) Get(id core.ID) (UpsertItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	return item, ok
}
