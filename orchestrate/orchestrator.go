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


// Package orchestrate drives the pipeline: it enumerates candidates,
// consults the checkpoint store, runs fetch-parse-deliver per
// identifier on a worker pool, and records every outcome durably.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/openlexica/legisport/core"
	"github.com/openlexica/legisport/deliver"
	"github.com/openlexica/legisport/fetch"
	"github.com/openlexica/legisport/parse"
	"github.com/openlexica/legisport/resolver"
	"github.com/openlexica/legisport/storage"
	"github.com/panjf2000/ants/v2"
)

var (
	// ErrEnumeratorRequired is returned when no identifier source is
	// configured.
	ErrEnumeratorRequired = errors.New("enumerator is required")
	// ErrSourceRequired is returned when no document source is
	// configured.
	ErrSourceRequired = errors.New("document source is required")
	// ErrDelivererRequired is returned when no deliverer is configured.
	ErrDelivererRequired = errors.New("deliverer is required")
	// ErrCheckpointsRequired is returned when no checkpoint store is
	// configured.
	ErrCheckpointsRequired = errors.New("checkpoint repository is required")
)

// Enumerator yields the candidate identifiers of a combination.
// resolver.Resolver satisfies this; local-directory mode and tests
// substitute their own.
type Enumerator interface {
	ForEach(ctx context.Context, req resolver.Request, fn func(core.DocumentIdentifier) error) error
}

// DocumentSource retrieves content for one identifier. fetch.Client
// satisfies this.
type DocumentSource interface {
	FetchDocument(ctx context.Context, ident core.DocumentIdentifier) (*core.RawContent, error)
	ProbePDF(ctx context.Context, ident core.DocumentIdentifier) (string, error)
}

// RecordDeliverer pushes parsed output downstream. deliver.Deliverer
// satisfies this.
type RecordDeliverer interface {
	Deliver(ctx context.Context, records []core.Record) (*core.BatchUploadResult, error)
	DeliverCrossRefs(ctx context.Context, refs []core.CrossReference) (*core.BatchUploadResult, error)
}

// Orchestrator is the only component that knows all pipeline stages.
type Orchestrator struct {
	enum        Enumerator
	source      DocumentSource
	deliverer   RecordDeliverer
	checkpoints storage.CheckpointRepository

	pool          *ants.Pool
	attemptBudget int
	limit         int
	progress      io.Writer
	logger        *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithPoolSize sets how many identifiers are processed concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1. The global
// request-rate ceiling lives in the fetch client and is independent of
// this setting.
func WithPoolSize(size int) Option {
	return func(o *Orchestrator) error {
		if size < 1 {
			size = 1
		}
		if o.pool != nil {
			o.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		o.pool = pool
		return nil
	}
}

// WithAttemptBudget sets how many times a transiently failing fetch is
// re-queued within one run before the identifier fails permanently.
func WithAttemptBudget(n int) Option {
	return func(o *Orchestrator) error {
		if n < 1 {
			return fmt.Errorf("attempt budget must be positive")
		}
		o.attemptBudget = n
		return nil
	}
}

// WithLimit caps how many identifiers the whole run dispatches,
// across all combinations. Identifiers already checkpointed do not
// count. Zero means no limit. A run cut short by the limit leaves its
// combination incomplete and resumable.
func WithLimit(n int) Option {
	return func(o *Orchestrator) error {
		if n < 0 {
			return fmt.Errorf("limit must not be negative")
		}
		o.limit = n
		return nil
	}
}

// WithProgressWriter sets where the progress line is written.
// Default is os.Stderr; tests pass io.Discard.
func WithProgressWriter(w io.Writer) Option {
	return func(o *Orchestrator) error {
		if w == nil {
			w = io.Discard
		}
		o.progress = w
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger.With("component", "orchestrate")
		return nil
	}
}

// New creates an orchestrator over the pipeline stages.
func New(
	enum Enumerator,
	source DocumentSource,
	deliverer RecordDeliverer,
	checkpoints storage.CheckpointRepository,
	opts ...Option,
) (*Orchestrator, error) {
	if enum == nil {
		return nil, ErrEnumeratorRequired
	}
	if source == nil {
		return nil, ErrSourceRequired
	}
	if deliverer == nil {
		return nil, ErrDelivererRequired
	}
	if checkpoints == nil {
		return nil, ErrCheckpointsRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		enum:          enum,
		source:        source,
		deliverer:     deliverer,
		checkpoints:   checkpoints,
		pool:          pool,
		attemptBudget: 2,
		progress:      os.Stderr,
		logger:        slog.Default().With("component", "orchestrate"),
	}
	for _, opt := range opts {
		if optErr := opt(o); optErr != nil {
			o.Release()
			return nil, optErr
		}
	}
	return o, nil
}

// Release frees the worker pool.
func (o *Orchestrator) Release() {
	if o.pool != nil {
		o.pool.Release()
	}
}

// Run processes the requested combinations in order. Per-identifier
// failures never abort the run; resolver and checkpoint failures do.
// On context cancellation the run stops dispatching, waits for
// in-flight identifiers and returns the partial summary with the
// context error; progress up to that point is durably checkpointed.
func (o *Orchestrator) Run(ctx context.Context, requests []resolver.Request) (*RunSummary, error) {
	summary := &RunSummary{Started: time.Now().UTC()}
	defer func() { summary.Finished = time.Now().UTC() }()

	budget := o.limit
	for _, req := range requests {
		if o.limit > 0 && budget <= 0 {
			o.logger.Info("dispatch limit reached, stopping run", "limit", o.limit)
			break
		}
		combo, dispatched, err := o.runCombination(ctx, req, budget)
		if combo != nil {
			summary.Combos = append(summary.Combos, combo)
		}
		if err != nil {
			return summary, err
		}
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		budget -= dispatched
	}
	return summary, nil
}

// runCombination processes one (type, year) pair end to end, stopping
// after budget dispatches when budget is positive. It returns how many
// identifiers it dispatched.
func (o *Orchestrator) runCombination(ctx context.Context, req resolver.Request, budget int) (*ComboSummary, int, error) {
	combo := &ComboSummary{Type: req.Type, Year: req.Year}
	logger := o.logger.With("type", req.Type, "year", req.Year)

	complete, err := o.checkpoints.IsComplete(ctx, req.Type, req.Year)
	if err != nil {
		return combo, 0, fmt.Errorf("checkpoint read for %s/%d: %w", req.Type, req.Year, err)
	}
	if complete {
		logger.Info("combination already complete, skipping")
		combo.SkippedComplete = true
		return combo, 0, nil
	}

	checkpoint, err := o.checkpoints.LoadCheckpoint(ctx, req.Type, req.Year)
	if err != nil {
		return combo, 0, fmt.Errorf("checkpoint load for %s/%d: %w", req.Type, req.Year, err)
	}

	// Enumeration failures are process-fatal: a partial candidate list
	// would corrupt checkpoint completeness.
	var candidates []core.DocumentIdentifier
	err = o.enum.ForEach(ctx, req, func(ident core.DocumentIdentifier) error {
		candidates = append(candidates, ident)
		return nil
	})
	if err != nil {
		return combo, 0, fmt.Errorf("resolving %s/%d: %w", req.Type, req.Year, err)
	}
	combo.Candidates = len(candidates)

	if err := o.checkpoints.SetCandidates(ctx, req.Type, req.Year, len(candidates)); err != nil {
		return combo, 0, fmt.Errorf("checkpoint update for %s/%d: %w", req.Type, req.Year, err)
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	tracker := NewProgressTracker(o.progress, len(candidates), len(candidates)/20)
	tracker.Start()
	defer tracker.Finish()

	dispatched := 0
	for _, ident := range candidates {
		if ctx.Err() != nil {
			break
		}
		if checkpoint.Seen(ident.String()) {
			combo.Skipped++
			tracker.Increment(1)
			continue
		}
		if o.limit > 0 && dispatched >= budget {
			logger.Info("dispatch limit reached mid-combination",
				"dispatched", dispatched, "candidates", len(candidates))
			break
		}
		dispatched++

		ident := ident
		wg.Add(1)
		submitErr := o.pool.Submit(func() {
			defer wg.Done()

			outcome, reason, result := o.processIdentifier(ctx, ident)

			recordErr := o.checkpoints.RecordOutcome(ctx, req.Type, req.Year, core.OutcomeRecord{
				Ident:   ident.String(),
				Outcome: outcome,
				Reason:  reason,
				At:      time.Now().UTC(),
			})
			if recordErr != nil {
				// A checkpoint write failure means the outcome is not
				// durable; the identifier will be re-attempted next run.
				logger.Error("failed to record outcome", "ident", ident.String(), "error", recordErr)
			}

			tracker.Increment(1)

			mu.Lock()
			defer mu.Unlock()
			combo.record(outcome, ident.String(), reason)
			if result != nil {
				combo.Inserted += result.Inserted
				combo.AlreadyPresent += result.AlreadyPresent
			}
		})
		if submitErr != nil {
			wg.Done()
			return combo, dispatched, submitErr
		}
	}
	wg.Wait()

	logger.Info("combination finished",
		"candidates", combo.Candidates,
		"done", combo.Done,
		"fallback", combo.Fallback,
		"retryable", combo.FailedRetryable,
		"permanent", combo.FailedPermanent,
		"skipped", combo.Skipped)
	return combo, dispatched, nil
}

// processIdentifier runs one identifier through the state machine,
// re-queuing transient fetch failures up to the attempt budget.
func (o *Orchestrator) processIdentifier(ctx context.Context, ident core.DocumentIdentifier) (core.Outcome, string, *core.BatchUploadResult) {
	var outcome core.Outcome
	var reason string
	var result *core.BatchUploadResult

	for attempt := 1; attempt <= o.attemptBudget; attempt++ {
		var requeue bool
		outcome, reason, result, requeue = o.attemptOne(ctx, ident)
		if !requeue {
			return outcome, reason, result
		}
		o.logger.Warn("transient failure, re-queuing identifier",
			"ident", ident.String(), "attempt", attempt, "reason", reason)
	}

	// Transient failures that survive the whole budget become
	// permanent for this combination; an operator reset reopens them.
	return core.OutcomeFailedPermanent, "retry budget exhausted: " + reason, result
}

// attemptOne performs a single pass through fetch, parse and deliver.
// requeue is true only for transient fetch failures.
func (o *Orchestrator) attemptOne(ctx context.Context, ident core.DocumentIdentifier) (outcome core.Outcome, reason string, result *core.BatchUploadResult, requeue bool) {
	logger := o.logger.With("ident", ident.String())
	logger.Debug("state change", "state", StateFetching)

	content, err := o.source.FetchDocument(ctx, ident)
	if err != nil {
		var notFound *fetch.NotFoundError
		if errors.As(err, &notFound) {
			return o.probeFallback(ctx, ident)
		}

		var choices *fetch.MultipleChoicesError
		if errors.As(err, &choices) {
			content, err = o.fetchAlternative(ctx, ident, choices)
		}
		if err != nil {
			var status *fetch.StatusError
			if errors.As(err, &status) && status.Transient {
				return 0, err.Error(), nil, true
			}
			if ctx.Err() != nil {
				return core.OutcomeFailedRetryable, ctx.Err().Error(), nil, false
			}
			// Transport-level errors exhausted their in-client retries.
			if isTransportError(err) {
				return 0, err.Error(), nil, true
			}
			return core.OutcomeFailedPermanent, err.Error(), nil, false
		}
	}

	logger.Debug("state change", "state", StateParsing)
	parsed, err := parse.Parse(content, ident)
	if err != nil {
		var structural *parse.StructuralParseError
		if errors.As(err, &structural) {
			// Logged with the raw content reference for operator review.
			logger.Error("structural parse failure",
				"url", content.URL, "detail", structural.Detail, "error", err)
		}
		return core.OutcomeFailedPermanent, err.Error(), nil, false
	}

	logger.Debug("state change", "state", StateUploading)
	result, err = o.deliverer.Deliver(ctx, parsed.Records)
	if err != nil {
		return classifyDeliveryError(err), err.Error(), result, false
	}
	if len(parsed.CrossRefs) > 0 {
		refResult, err := o.deliverer.DeliverCrossRefs(ctx, parsed.CrossRefs)
		if refResult != nil {
			result.Add(refResult)
		}
		if err != nil {
			return classifyDeliveryError(err), err.Error(), result, false
		}
	}

	if parsed.Fallback != nil {
		logger.Debug("state change", "state", StateFallback)
		return core.OutcomeFallback, "", result, false
	}
	logger.Debug("state change", "state", StateDone)
	return core.OutcomeDone, "", result, false
}

// probeFallback handles a 404: a scan-only companion makes the
// identifier a fallback, anything else is permanent.
func (o *Orchestrator) probeFallback(ctx context.Context, ident core.DocumentIdentifier) (core.Outcome, string, *core.BatchUploadResult, bool) {
	pdfURL, err := o.source.ProbePDF(ctx, ident)
	if err != nil {
		return core.OutcomeFailedPermanent,
			"no machine-readable content and no scan: " + err.Error(), nil, false
	}

	marker := &core.FallbackMarker{
		Ident:     ident,
		PDFURL:    pdfURL,
		FetchedAt: time.Now().UTC(),
	}
	result, err := o.deliverer.Deliver(ctx, []core.Record{marker})
	if err != nil {
		return classifyDeliveryError(err), err.Error(), result, false
	}

	o.logger.Info("scan-only document recorded", "ident", ident.String(), "pdf_url", pdfURL)
	return core.OutcomeFallback, "", result, false
}

// fetchAlternative resolves an ambiguous URL by trying the listed
// alternatives in order. Content fetched this way still parses and
// delivers under the original identifier.
func (o *Orchestrator) fetchAlternative(ctx context.Context, ident core.DocumentIdentifier, choices *fetch.MultipleChoicesError) (*core.RawContent, error) {
	for _, alt := range choices.Alternatives {
		content, err := o.source.FetchDocument(ctx, alt)
		if err == nil {
			o.logger.Debug("resolved ambiguous URL",
				"ident", ident.String(), "via", alt.String())
			return content, nil
		}
	}
	return nil, fmt.Errorf("no usable alternative among %d for %s", len(choices.Alternatives), ident.String())
}

// classifyDeliveryError separates downstream unavailability, which
// stays retryable across runs, from content rejections.
func classifyDeliveryError(err error) core.Outcome {
	var unavailable *deliver.DownstreamUnavailableError
	if errors.As(err, &unavailable) {
		return core.OutcomeFailedRetryable
	}
	return core.OutcomeFailedPermanent
}

// isTransportError reports whether a fetch error came from the
// transport rather than a classified response.
func isTransportError(err error) bool {
	var status *fetch.StatusError
	var notFound *fetch.NotFoundError
	var choices *fetch.MultipleChoicesError
	if errors.As(err, &status) || errors.As(err, &notFound) || errors.As(err, &choices) {
		return false
	}
	return true
}
