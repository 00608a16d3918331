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


// Package deliver pushes parsed records into the downstream document
// store as idempotent batch upserts, generating embeddings on the way.
package deliver

import (
	"context"

	"github.com/openlexica/legisport/core"
)

// UpsertItem is one record prepared for the downstream store.
type UpsertItem struct {
	// ID is the deterministic record ID; redelivery of the same ID
	// must leave exactly one copy downstream.
	ID core.ID `json:"id"`
	// Payload carries the record fields.
	Payload map[string]any `json:"payload"`
	// Vector is the embedding, nil for records with no text.
	Vector []float32 `json:"vector,omitempty"`
}

// UpsertStore is the downstream document store. Upserts keyed by item
// ID must be idempotent; implementations must be thread-safe.
type UpsertStore interface {
	// UpsertBatch inserts or overwrites a batch of items and reports
	// how many were new vs. already present.
	UpsertBatch(ctx context.Context, items []UpsertItem) (*core.BatchUploadResult, error)

	// Close releases store resources.
	Close() error
}
