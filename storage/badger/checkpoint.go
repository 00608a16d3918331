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

// CheckpointRepository implements storage.CheckpointRepository for
// BadgerDB. Each identifier outcome is its own key under the
// combination's prefix, so concurrent workers committing out-of-order
// outcomes never contend on a single record.
type CheckpointRepository struct {
	backend *Backend
}

var _ storage.CheckpointRepository = (*CheckpointRepository)(nil)

// NewCheckpointRepository creates a new CheckpointRepository.
func NewCheckpointRepository(backend *Backend) *CheckpointRepository {
	return &CheckpointRepository{
		backend: backend,
	}
}

// Close releases repository resources. The backend is owned by the
// caller and closed separately.
func (r *CheckpointRepository) Close() error {
	return nil
}

// RecordOutcome durably appends one identifier outcome and advances
// the combination's cursor. Concurrent workers read and rewrite the
// shared meta key, so the transaction runs under the backend's
// conflict-retrying write helper; the outcome key itself is unique per
// identifier and never contends.
func (r *CheckpointRepository) RecordOutcome(ctx context.Context, docType core.DocType, year int, rec core.OutcomeRecord) error {
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}

	return r.backend.WithWriteTx(func(tx *badger.Txn) error {
		key := makeOutcomeKey(docType, year, rec.Ident)
		if err := tx.Set(key, storage.MarshalOutcomeRecord(&rec)); err != nil {
			return err
		}

		meta, err := r.readMeta(tx, docType, year)
		if err != nil {
			return err
		}
		meta.Cursor = rec.Ident
		meta.UpdatedAt = rec.At
		return tx.Set(makeMetaKey(docType, year), storage.MarshalCheckpointMeta(meta))
	})
}

// SetCandidates records the full candidate count for a combination.
func (r *CheckpointRepository) SetCandidates(ctx context.Context, docType core.DocType, year int, candidates int) error {
	return r.backend.WithWriteTx(func(tx *badger.Txn) error {
		meta, err := r.readMeta(tx, docType, year)
		if err != nil {
			return err
		}
		meta.Candidates = candidates
		meta.UpdatedAt = time.Now().UTC()
		return tx.Set(makeMetaKey(docType, year), storage.MarshalCheckpointMeta(meta))
	})
}

// LoadCheckpoint folds a combination's outcome log into its progress
// record. Returns an empty record for a never-attempted combination.
func (r *CheckpointRepository) LoadCheckpoint(ctx context.Context, docType core.DocType, year int) (*core.CheckpointRecord, error) {
	record := core.NewCheckpointRecord(docType, year)

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		meta, err := r.readMeta(tx, docType, year)
		if err != nil {
			return err
		}
		record.Meta = *meta

		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeOutcomeScanPrefix(docType, year)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				rec, err := storage.UnmarshalOutcomeRecord(val)
				if err != nil {
					return fmt.Errorf("%w: %w", storage.ErrCorruptCheckpoint, err)
				}
				record.Apply(*rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}
	return record, nil
}

// IsComplete reports whether a combination is fully processed.
func (r *CheckpointRepository) IsComplete(ctx context.Context, docType core.DocType, year int) (bool, error) {
	record, err := r.LoadCheckpoint(ctx, docType, year)
	if err != nil {
		return false, err
	}
	return record.IsComplete(), nil
}

// ClearCheckpoint removes all progress for a combination. Explicit
// operator action only; nothing in the pipeline calls this.
func (r *CheckpointRepository) ClearCheckpoint(ctx context.Context, docType core.DocType, year int) error {
	return r.backend.WithWriteTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeOutcomeScanPrefix(docType, year)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)

		var keys [][]byte
		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		iter.Close()

		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Delete(makeMetaKey(docType, year))
	})
}

// ListCheckpoints returns the progress record of every combination
// ever attempted, in key order.
func (r *CheckpointRepository) ListCheckpoints(ctx context.Context) ([]*core.CheckpointRecord, error) {
	type combo struct {
		docType core.DocType
		year    int
	}
	var combos []combo

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(checkpointMetaPrefix + ":")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			docType, year, err := parseMetaKey(iter.Item().Key())
			if err != nil {
				return fmt.Errorf("%w: %w", storage.ErrCorruptCheckpoint, err)
			}
			combos = append(combos, combo{docType: docType, year: year})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	records := make([]*core.CheckpointRecord, 0, len(combos))
	for _, c := range combos {
		record, err := r.LoadCheckpoint(ctx, c.docType, c.year)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// readMeta reads a combination's meta record within a transaction,
// returning a zero value when absent.
func (r *CheckpointRepository) readMeta(tx *badger.Txn, docType core.DocType, year int) (*core.CheckpointMeta, error) {
	item, err := tx.Get(makeMetaKey(docType, year))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return &core.CheckpointMeta{}, nil
		}
		return nil, err
	}

	var meta *core.CheckpointMeta
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		meta, unmarshalErr = storage.UnmarshalCheckpointMeta(val)
		return unmarshalErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrCorruptCheckpoint, err)
	}
	return meta, nil
}
