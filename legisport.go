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


// Package legisport assembles the ingestion pipeline: checkpointed
// crawling of the UK legislation corpus, structural parsing, and
// idempotent delivery into a downstream document store.
package legisport

import (
	"context"
	"log/slog"
	"time"

	"github.com/openlexica/legisport/ai"
	"github.com/openlexica/legisport/ai/openai"
	"github.com/openlexica/legisport/deliver"
	"github.com/openlexica/legisport/fetch"
	"github.com/openlexica/legisport/orchestrate"
	"github.com/openlexica/legisport/resolver"
	"github.com/openlexica/legisport/storage"
	"github.com/openlexica/legisport/storage/badger"
)

// Pipeline wires every stage over one local database. Construct with
// NewPipeline, run combinations with Run, and Close when done.
type Pipeline struct {
	backend     *badger.Backend
	checkpoints storage.CheckpointRepository
	deliverer   *deliver.Deliverer
	orch        *orchestrate.Orchestrator
	logger      *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*pipelineOptions)

type pipelineOptions struct {
	aiConfig    *ai.Config
	embedder    ai.Embedder
	noEmbed     bool
	sourceURL   string
	snapshotDir string
	rateLimit   float64
	cacheTTL    time.Duration
	workers     int
	limit       int
	docBatch    int
	provBatch   int
}

// WithAIConfig sets the embedding service configuration.
func WithAIConfig(config *ai.Config) PipelineOption {
	return func(o *pipelineOptions) {
		o.aiConfig = config
	}
}

// WithEmbedder injects a pre-built embedder, bypassing the AI config.
func WithEmbedder(embedder ai.Embedder) PipelineOption {
	return func(o *pipelineOptions) {
		o.embedder = embedder
	}
}

// WithoutEmbedding delivers records vectorless.
func WithoutEmbedding() PipelineOption {
	return func(o *pipelineOptions) {
		o.noEmbed = true
	}
}

// WithSourceURL sets the legislation source base URL.
func WithSourceURL(url string) PipelineOption {
	return func(o *pipelineOptions) {
		o.sourceURL = url
	}
}

// WithSnapshotDir runs the pipeline against an offline snapshot
// directory instead of the live source.
func WithSnapshotDir(dir string) PipelineOption {
	return func(o *pipelineOptions) {
		o.snapshotDir = dir
	}
}

// WithRateLimit sets the global source request ceiling in requests
// per second.
func WithRateLimit(rps float64) PipelineOption {
	return func(o *pipelineOptions) {
		o.rateLimit = rps
	}
}

// WithCacheTTL sets the fetch cache freshness window.
func WithCacheTTL(ttl time.Duration) PipelineOption {
	return func(o *pipelineOptions) {
		o.cacheTTL = ttl
	}
}

// WithWorkers sets how many identifiers are processed concurrently.
func WithWorkers(n int) PipelineOption {
	return func(o *pipelineOptions) {
		o.workers = n
	}
}

// WithLimit caps how many identifiers one run dispatches. Zero means
// no limit; a capped run stops early and resumes from the checkpoint.
func WithLimit(n int) PipelineOption {
	return func(o *pipelineOptions) {
		o.limit = n
	}
}

// WithBatchSizes sets how many full-document and provision records go
// into one upsert batch.
func WithBatchSizes(docs, provisions int) PipelineOption {
	return func(o *pipelineOptions) {
		o.docBatch = docs
		o.provBatch = provisions
	}
}

// NewPipeline opens the local database at filePath and wires the
// pipeline stages over the given downstream store. The store is owned
// by the caller and is not closed by Pipeline.Close.
func NewPipeline(filePath string, store deliver.UpsertStore, opts ...PipelineOption) (*Pipeline, error) {
	options := &pipelineOptions{
		aiConfig:  ai.DefaultConfig(),
		sourceURL: "https://www.legislation.gov.uk",
		rateLimit: 4,
		cacheTTL:  24 * time.Hour,
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, false)
	if err != nil {
		return nil, err
	}

	var enum orchestrate.Enumerator
	var source orchestrate.DocumentSource
	if options.snapshotDir != "" {
		local := orchestrate.NewLocalSource(options.snapshotDir, slog.Default())
		enum, source = local, local
	} else {
		client, err := fetch.NewClient(options.sourceURL, slog.Default(),
			fetch.WithCache(badger.NewFetchCacheRepository(backend)),
			fetch.WithCacheTTL(options.cacheTTL),
			fetch.WithRateLimit(options.rateLimit),
		)
		if err != nil {
			backend.Close()
			return nil, err
		}
		res, err := resolver.New(client, options.sourceURL, slog.Default())
		if err != nil {
			backend.Close()
			return nil, err
		}
		enum, source = res, client
	}

	deliverOpts := []deliver.Option{}
	if options.workers > 0 {
		deliverOpts = append(deliverOpts, deliver.WithPoolSize(options.workers))
	}
	if options.docBatch > 0 && options.provBatch > 0 {
		deliverOpts = append(deliverOpts, deliver.WithBatchSizes(options.docBatch, options.provBatch))
	}
	if !options.noEmbed {
		embedder := options.embedder
		if embedder == nil {
			embedder, err = openai.NewEmbedder(options.aiConfig)
			if err != nil {
				backend.Close()
				return nil, err
			}
		}
		deliverOpts = append(deliverOpts, deliver.WithEmbedder(embedder))
	}

	deliverer, err := deliver.NewDeliverer(store, deliverOpts...)
	if err != nil {
		backend.Close()
		return nil, err
	}

	checkpoints := badger.NewCheckpointRepository(backend)

	orchOpts := []orchestrate.Option{}
	if options.workers > 0 {
		orchOpts = append(orchOpts, orchestrate.WithPoolSize(options.workers))
	}
	if options.limit > 0 {
		orchOpts = append(orchOpts, orchestrate.WithLimit(options.limit))
	}
	orch, err := orchestrate.New(enum, source, deliverer, checkpoints, orchOpts...)
	if err != nil {
		deliverer.Release()
		checkpoints.Close()
		backend.Close()
		return nil, err
	}

	return &Pipeline{
		backend:     backend,
		checkpoints: checkpoints,
		deliverer:   deliverer,
		orch:        orch,
		logger:      slog.Default(),
	}, nil
}

// Run processes the requested combinations. See orchestrate.Orchestrator.Run.
func (p *Pipeline) Run(ctx context.Context, requests []resolver.Request) (*orchestrate.RunSummary, error) {
	return p.orch.Run(ctx, requests)
}

// Checkpoints exposes the checkpoint store for status inspection and
// operator resets.
func (p *Pipeline) Checkpoints() storage.CheckpointRepository {
	return p.checkpoints
}

// Close releases the pipeline and its database.
func (p *Pipeline) Close() error {
	p.orch.Release()
	p.deliverer.Release()

	if err := p.checkpoints.Close(); err != nil {
		p.logger.Error("error closing checkpoint repository", "err", err)
	}
	if err := p.backend.Close(); err != nil {
		p.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}
