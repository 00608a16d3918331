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


package deliver

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/openlexica/legisport/ai"
	"github.com/openlexica/legisport/core"
	"github.com/openlexica/legisport/retry"
	"github.com/panjf2000/ants/v2"
)

const (
	// defaultDocBatchSize applies to whole-document and fallback
	// records; their payloads are large.
	defaultDocBatchSize = 16
	// defaultProvisionBatchSize applies to provision and
	// cross-reference records.
	defaultProvisionBatchSize = 128

	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
)

// Deliverer embeds record text and upserts batches into the
// downstream store. Batches are processed concurrently on a worker
// pool; every record carries a deterministic ID so delivery is
// idempotent regardless of batch boundaries or retries.
type Deliverer struct {
	store    UpsertStore
	embedder ai.Embedder
	pool     *ants.Pool

	docBatchSize       int
	provisionBatchSize int
	maxAttempts        int
	baseDelay          time.Duration
	logger             *slog.Logger
}

// Option configures a Deliverer.
type Option func(*Deliverer) error

// WithEmbedder enables embedding generation for records with text.
// Without an embedder, records are delivered vectorless.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(d *Deliverer) error {
		d.embedder = embedder
		return nil
	}
}

// WithBatchSizes sets the per-kind batch sizes.
func WithBatchSizes(docs, provisions int) Option {
	return func(d *Deliverer) error {
		if docs < 1 || provisions < 1 {
			return fmt.Errorf("batch sizes must be positive")
		}
		d.docBatchSize = docs
		d.provisionBatchSize = provisions
		return nil
	}
}

// WithRetry sets the retry budget for embedding and upsert calls.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(d *Deliverer) error {
		d.maxAttempts = maxAttempts
		d.baseDelay = baseDelay
		return nil
	}
}

// WithPoolSize sets the worker pool size for concurrent batches.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(d *Deliverer) error {
		if size < 1 {
			size = 1
		}
		if d.pool != nil {
			d.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		d.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Deliverer) error {
		if logger == nil {
			logger = slog.Default()
		}
		d.logger = logger.With("component", "deliver")
		return nil
	}
}

// NewDeliverer creates a deliverer over a downstream store.
func NewDeliverer(store UpsertStore, opts ...Option) (*Deliverer, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	d := &Deliverer{
		store:              store,
		pool:               pool,
		docBatchSize:       defaultDocBatchSize,
		provisionBatchSize: defaultProvisionBatchSize,
		maxAttempts:        defaultMaxAttempts,
		baseDelay:          defaultBaseDelay,
		logger:             slog.Default().With("component", "deliver"),
	}
	for _, opt := range opts {
		if optErr := opt(d); optErr != nil {
			d.Release()
			return nil, optErr
		}
	}
	return d, nil
}

// Release frees the worker pool. The store is closed by its owner.
func (d *Deliverer) Release() {
	if d.pool != nil {
		d.pool.Release()
	}
}

// Deliver embeds and upserts all records from one document. Batches
// run concurrently; the combined result counts inserts across all of
// them. On error, records already upserted stay upserted; redelivery
// after a retry overwrites them in place.
func (d *Deliverer) Deliver(ctx context.Context, records []core.Record) (*core.BatchUploadResult, error) {
	batches := d.batch(records)
	if len(batches) == 0 {
		return &core.BatchUploadResult{}, nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		total    core.BatchUploadResult
		firstErr error
	)

	for _, batch := range batches {
		batch := batch
		wg.Add(1)
		submitErr := d.pool.Submit(func() {
			defer wg.Done()
			result, err := d.deliverBatch(ctx, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			total.Add(result)
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = submitErr
			}
			mu.Unlock()
		}
	}
	wg.Wait()

	if firstErr != nil {
		return &total, firstErr
	}
	return &total, nil
}

// DeliverCrossRefs upserts extracted cross-references as a secondary
// record stream. Cross-references are never embedded.
func (d *Deliverer) DeliverCrossRefs(ctx context.Context, refs []core.CrossReference) (*core.BatchUploadResult, error) {
	total := &core.BatchUploadResult{}

	for start := 0; start < len(refs); start += d.provisionBatchSize {
		end := min(start+d.provisionBatchSize, len(refs))

		items := make([]UpsertItem, 0, end-start)
		for _, ref := range refs[start:end] {
			key := ref.From.String() + "|" + ref.SourcePath + "|" + ref.TargetURI + "|" + ref.Citation
			items = append(items, UpsertItem{
				ID: core.IDFromContent(key),
				Payload: map[string]any{
					"kind":        "crossref",
					"from":        ref.From.String(),
					"source_path": ref.SourcePath,
					"citation":    ref.Citation,
					"target_uri":  ref.TargetURI,
				},
			})
		}

		result, err := d.upsert(ctx, items)
		if err != nil {
			return total, err
		}
		total.Add(result)
	}
	return total, nil
}

// batch splits records into per-kind batches: documents and fallback
// markers in small batches, provisions in large ones.
func (d *Deliverer) batch(records []core.Record) [][]core.Record {
	var docs, provisions []core.Record
	for _, rec := range records {
		if rec.Kind() == core.KindProvision {
			provisions = append(provisions, rec)
		} else {
			docs = append(docs, rec)
		}
	}

	var batches [][]core.Record
	for start := 0; start < len(docs); start += d.docBatchSize {
		batches = append(batches, docs[start:min(start+d.docBatchSize, len(docs))])
	}
	for start := 0; start < len(provisions); start += d.provisionBatchSize {
		batches = append(batches, provisions[start:min(start+d.provisionBatchSize, len(provisions))])
	}
	return batches
}

// deliverBatch embeds one batch and upserts it.
func (d *Deliverer) deliverBatch(ctx context.Context, batch []core.Record) (*core.BatchUploadResult, error) {
	items := make([]UpsertItem, len(batch))
	var embedIdx []int
	var embedTexts []string

	for i, rec := range batch {
		items[i] = UpsertItem{
			ID:      rec.RecordID(),
			Payload: payloadFor(rec),
		}
		if text := rec.EmbedText(); text != "" && d.embedder != nil {
			embedIdx = append(embedIdx, i)
			embedTexts = append(embedTexts, text)
		}
	}

	if len(embedTexts) > 0 {
		var vectors [][]float32
		err := retry.WithBackoff(ctx, func() error {
			var embedErr error
			vectors, embedErr = d.embedder.EmbedTexts(ctx, embedTexts)
			return embedErr
		}, d.maxAttempts, d.baseDelay)
		if err != nil {
			return nil, fmt.Errorf("embedding batch of %d: %w", len(embedTexts), err)
		}
		if len(vectors) != len(embedTexts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(embedTexts))
		}
		for j, idx := range embedIdx {
			items[idx].Vector = NormalizeVector(vectors[j])
		}
	}

	return d.upsert(ctx, items)
}

// upsert pushes one prepared batch with the retry budget. Downstream
// unavailability survives the budget as a retryable error for the
// caller to classify.
func (d *Deliverer) upsert(ctx context.Context, items []UpsertItem) (*core.BatchUploadResult, error) {
	var result *core.BatchUploadResult
	err := retry.WithBackoff(ctx, func() error {
		var upsertErr error
		result, upsertErr = d.store.UpsertBatch(ctx, items)
		return upsertErr
	}, d.maxAttempts, d.baseDelay)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("batch upserted",
		"items", len(items),
		"inserted", result.Inserted,
		"already_present", result.AlreadyPresent)
	return result, nil
}

// payloadFor flattens a record into downstream payload fields.
func payloadFor(rec core.Record) map[string]any {
	switch r := rec.(type) {
	case *core.ParsedDocument:
		payload := map[string]any{
			"kind":       kindLabel(r.Unit),
			"ident":      r.Ident.String(),
			"doc_type":   string(r.Ident.Type),
			"title":      r.Title,
			"path":       r.Path,
			"text":       r.Text,
			"source_url": r.SourceURL,
		}
		if r.Extent != "" {
			payload["extent"] = r.Extent
		}
		if r.Status != "" {
			payload["status"] = r.Status
		}
		if !r.EnactedOn.IsZero() {
			payload["enacted_on"] = r.EnactedOn.Format(time.DateOnly)
		}
		return payload

	case *core.FallbackMarker:
		return map[string]any{
			"kind":       "fallback",
			"ident":      r.Ident.String(),
			"doc_type":   string(r.Ident.Type),
			"title":      r.Title,
			"pdf_url":    r.PDFURL,
			"fetched_at": r.FetchedAt.Format(time.RFC3339),
		}

	default:
		return map[string]any{
			"kind":  "unknown",
			"ident": rec.Identifier().String(),
		}
	}
}

func kindLabel(kind core.RecordKind) string {
	switch kind {
	case core.KindDocument:
		return "document"
	case core.KindProvision:
		return "provision"
	case core.KindFallback:
		return "fallback"
	default:
		return "unknown"
	}
}
