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


package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/openlexica/legisport/core"
	"github.com/openlexica/legisport/storage"
)

// FetchCacheRepository implements storage.FetchCacheRepository for
// BadgerDB. Expiry is delegated to badger's native TTL support, so
// stale entries vanish without a sweeper.
type FetchCacheRepository struct {
	backend *Backend
}

var _ storage.FetchCacheRepository = (*FetchCacheRepository)(nil)

// NewFetchCacheRepository creates a new FetchCacheRepository.
func NewFetchCacheRepository(backend *Backend) *FetchCacheRepository {
	return &FetchCacheRepository{
		backend: backend,
	}
}

// Close releases repository resources. The backend is owned by the
// caller and closed separately.
func (r *FetchCacheRepository) Close() error {
	return nil
}

// GetResponse returns the cached entry for a URL, or
// storage.ErrNotFound when absent or expired.
func (r *FetchCacheRepository) GetResponse(ctx context.Context, url string) (*core.CachedResponse, error) {
	var resp *core.CachedResponse

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCacheKey(url))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			resp, unmarshalErr = storage.UnmarshalCachedResponse(val)
			if unmarshalErr != nil {
				return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, unmarshalErr)
			}
			return nil
		})
	}, false)

	if err != nil {
		return nil, err
	}
	return resp, nil
}

// PutResponse stores an entry under its URL. A zero TTL stores the
// entry without expiry.
func (r *FetchCacheRepository) PutResponse(ctx context.Context, resp *core.CachedResponse, ttl time.Duration) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		entry := badger.NewEntry(makeCacheKey(resp.URL), storage.MarshalCachedResponse(resp))
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		if err := tx.SetEntry(entry); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
