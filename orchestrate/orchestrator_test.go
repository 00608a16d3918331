package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/openlexica/legisport/core"
	"github.com/openlexica/legisport/deliver"
	"github.com/openlexica/legisport/fetch"
	"github.com/openlexica/legisport/resolver"
	badgerstore "github.com/openlexica/legisport/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validXML = `<Legislation>
  <Metadata><title>Test Act</title></Metadata>
  <Body>
    <P1group><Title>General</Title>
      <P1><Pnumber>1</Pnumber><P1para><Text>Some provision text.</Text></P1para></P1>
    </P1group>
  </Body>
</Legislation>`

const scanOnlyDocXML = `<Legislation>
  <Metadata><title>Old Act</title></Metadata>
</Legislation>`

func calIdent(year, number int) core.DocumentIdentifier {
	return core.DocumentIdentifier{Type: "ukpga", Scheme: core.SchemeCalendar, Year: year, Number: number}
}

// fakeEnum yields a fixed candidate list.
type fakeEnum struct {
	idents []core.DocumentIdentifier
	err    error
}

func (f *fakeEnum) ForEach(ctx context.Context, req resolver.Request, fn func(core.DocumentIdentifier) error) error {
	if f.err != nil {
		return f.err
	}
	for _, ident := range f.idents {
		if err := fn(ident); err != nil {
			return err
		}
	}
	return nil
}

// fakeSource serves canned content and errors per identifier.
type fakeSource struct {
	mu      sync.Mutex
	docs    map[string]string // ident -> XML body
	errs    map[string]error  // ident -> fetch error
	pdfs    map[string]string // ident -> pdf URL
	fetches map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		docs:    make(map[string]string),
		errs:    make(map[string]error),
		pdfs:    make(map[string]string),
		fetches: make(map[string]int),
	}
}

func (f *fakeSource) FetchDocument(ctx context.Context, ident core.DocumentIdentifier) (*core.RawContent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := ident.String()
	f.fetches[key]++

	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	body, ok := f.docs[key]
	if !ok {
		return nil, &fetch.NotFoundError{URL: key}
	}
	return &core.RawContent{URL: key, Body: []byte(body), MediaType: "application/xml", Origin: core.OriginLive}, nil
}

func (f *fakeSource) ProbePDF(ctx context.Context, ident core.DocumentIdentifier) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if url, ok := f.pdfs[ident.String()]; ok {
		return url, nil
	}
	return "", &fetch.NotFoundError{URL: ident.String() + "/data.pdf"}
}

func (f *fakeSource) fetchCount(ident core.DocumentIdentifier) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[ident.String()]
}

// fakeDeliverer records delivered records and injects per-ident errors.
type fakeDeliverer struct {
	mu        sync.Mutex
	delivered map[string][]core.Record
	failWith  map[string]error // ident -> delivery error
}

func newFakeDeliverer() *fakeDeliverer {
	return &fakeDeliverer{
		delivered: make(map[string][]core.Record),
		failWith:  make(map[string]error),
	}
}

func (f *fakeDeliverer) Deliver(ctx context.Context, records []core.Record) (*core.BatchUploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(records) == 0 {
		return &core.BatchUploadResult{}, nil
	}
	key := records[0].Identifier().String()
	if err, ok := f.failWith[key]; ok {
		return nil, err
	}
	f.delivered[key] = append(f.delivered[key], records...)
	return &core.BatchUploadResult{Inserted: len(records)}, nil
}

func (f *fakeDeliverer) DeliverCrossRefs(ctx context.Context, refs []core.CrossReference) (*core.BatchUploadResult, error) {
	return &core.BatchUploadResult{Inserted: len(refs)}, nil
}

func (f *fakeDeliverer) recordsFor(ident core.DocumentIdentifier) []core.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.delivered[ident.String()]
}

func newTestOrchestrator(t *testing.T, enum Enumerator, source DocumentSource, d RecordDeliverer) (*Orchestrator, *badgerstore.CheckpointRepository) {
	t.Helper()
	ckpt, _, backend, err := badgerstore.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	o, err := New(enum, source, d, ckpt, WithPoolSize(2), WithProgressWriter(io.Discard))
	require.NoError(t, err)
	t.Cleanup(o.Release)
	return o, ckpt
}

func TestRun_HappyPath(t *testing.T) {
	source := newFakeSource()
	var idents []core.DocumentIdentifier
	for i := 1; i <= 3; i++ {
		ident := calIdent(2020, i)
		idents = append(idents, ident)
		source.docs[ident.String()] = validXML
	}
	d := newFakeDeliverer()
	o, ckpt := newTestOrchestrator(t, &fakeEnum{idents: idents}, source, d)

	summary, err := o.Run(context.Background(), []resolver.Request{{Type: "ukpga", Year: 2020}})
	require.NoError(t, err)
	require.Len(t, summary.Combos, 1)

	combo := summary.Combos[0]
	assert.Equal(t, 3, combo.Candidates)
	assert.Equal(t, 3, combo.Done)
	assert.Zero(t, combo.FailedPermanent)

	// Each document delivered both the document record and its provision
	assert.Len(t, d.recordsFor(idents[0]), 2)

	complete, err := ckpt.IsComplete(context.Background(), "ukpga", 2020)
	require.NoError(t, err)
	assert.True(t, complete)
}

func TestRun_LimitStopsDispatching(t *testing.T) {
	source := newFakeSource()
	var idents []core.DocumentIdentifier
	for i := 1; i <= 5; i++ {
		ident := calIdent(2020, i)
		idents = append(idents, ident)
		source.docs[ident.String()] = validXML
	}
	d := newFakeDeliverer()

	ckpt, _, backend, err := badgerstore.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	o, err := New(&fakeEnum{idents: idents}, source, d, ckpt,
		WithPoolSize(2), WithLimit(2), WithProgressWriter(io.Discard))
	require.NoError(t, err)
	defer o.Release()

	ctx := context.Background()
	req := []resolver.Request{{Type: "ukpga", Year: 2020}}

	summary, err := o.Run(ctx, req)
	require.NoError(t, err)
	require.Len(t, summary.Combos, 1)
	assert.Equal(t, 2, summary.Combos[0].Done, "limit caps dispatched identifiers")

	complete, err := ckpt.IsComplete(ctx, "ukpga", 2020)
	require.NoError(t, err)
	assert.False(t, complete, "capped run leaves the combination incomplete")

	// Subsequent capped runs resume past the already-checkpointed
	// identifiers until the combination completes.
	for i := 0; i < 2; i++ {
		_, err = o.Run(ctx, req)
		require.NoError(t, err)
	}
	complete, err = ckpt.IsComplete(ctx, "ukpga", 2020)
	require.NoError(t, err)
	assert.True(t, complete)
	for _, ident := range idents {
		assert.Equal(t, 1, source.fetchCount(ident), "each identifier fetched exactly once across runs")
	}
}

func TestRun_SkipsCompleteCombination(t *testing.T) {
	source := newFakeSource()
	ident := calIdent(2020, 1)
	source.docs[ident.String()] = validXML
	d := newFakeDeliverer()
	o, _ := newTestOrchestrator(t, &fakeEnum{idents: []core.DocumentIdentifier{ident}}, source, d)

	ctx := context.Background()
	req := []resolver.Request{{Type: "ukpga", Year: 2020}}

	_, err := o.Run(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, source.fetchCount(ident))

	// Second run must not touch the source at all
	summary, err := o.Run(ctx, req)
	require.NoError(t, err)
	assert.True(t, summary.Combos[0].SkippedComplete)
	assert.Equal(t, 1, source.fetchCount(ident))
}

func TestRun_FallbackOn404WithScan(t *testing.T) {
	// A 404 with a PDF companion yields a fallback marker with the
	// scan URL, not a permanent failure.
	ident := core.DocumentIdentifier{
		Type: "ukpga", Scheme: core.SchemeRegnal, Year: 1801,
		Monarch: "Geo3", RegnalYear: "41", Number: 12,
	}
	source := newFakeSource()
	source.pdfs[ident.String()] = "https://example.com/ukpga/Geo3/41/12/data.pdf"
	d := newFakeDeliverer()
	o, _ := newTestOrchestrator(t, &fakeEnum{idents: []core.DocumentIdentifier{ident}}, source, d)

	summary, err := o.Run(context.Background(), []resolver.Request{{Type: "ukpga", Year: 1801}})
	require.NoError(t, err)

	combo := summary.Combos[0]
	assert.Equal(t, 1, combo.Fallback)
	assert.Zero(t, combo.FailedPermanent)

	records := d.recordsFor(ident)
	require.Len(t, records, 1)
	marker, ok := records[0].(*core.FallbackMarker)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/ukpga/Geo3/41/12/data.pdf", marker.PDFURL)
}

func TestRun_PermanentOn404WithoutScan(t *testing.T) {
	ident := calIdent(2020, 9)
	source := newFakeSource() // neither XML nor PDF
	d := newFakeDeliverer()
	o, _ := newTestOrchestrator(t, &fakeEnum{idents: []core.DocumentIdentifier{ident}}, source, d)

	summary, err := o.Run(context.Background(), []resolver.Request{{Type: "ukpga", Year: 2020}})
	require.NoError(t, err)

	combo := summary.Combos[0]
	assert.Equal(t, 1, combo.FailedPermanent)
	require.Len(t, combo.PermanentFailures, 1)
	assert.Equal(t, ident.String(), combo.PermanentFailures[0].Ident)
}

func TestRun_StructuralFailureDoesNotAbortRun(t *testing.T) {
	good := calIdent(2020, 1)
	bad := calIdent(2020, 2)
	source := newFakeSource()
	source.docs[good.String()] = validXML
	source.docs[bad.String()] = "<Legislation><broken"
	d := newFakeDeliverer()
	o, _ := newTestOrchestrator(t, &fakeEnum{idents: []core.DocumentIdentifier{good, bad}}, source, d)

	summary, err := o.Run(context.Background(), []resolver.Request{{Type: "ukpga", Year: 2020}})
	require.NoError(t, err, "per-identifier failures must not abort the run")

	combo := summary.Combos[0]
	assert.Equal(t, 1, combo.Done)
	assert.Equal(t, 1, combo.FailedPermanent)
	require.Len(t, combo.PermanentFailures, 1)
	assert.Equal(t, bad.String(), combo.PermanentFailures[0].Ident)
}

func TestRun_DownstreamUnavailableStaysRetryable(t *testing.T) {
	ok := calIdent(2020, 1)
	stuck := calIdent(2020, 2)
	source := newFakeSource()
	source.docs[ok.String()] = validXML
	source.docs[stuck.String()] = validXML

	d := newFakeDeliverer()
	d.failWith[stuck.String()] = &deliver.DownstreamUnavailableError{Err: errors.New("connection refused")}

	enum := &fakeEnum{idents: []core.DocumentIdentifier{ok, stuck}}
	o, ckpt := newTestOrchestrator(t, enum, source, d)

	ctx := context.Background()
	req := []resolver.Request{{Type: "ukpga", Year: 2020}}

	summary, err := o.Run(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Combos[0].Done)
	assert.Equal(t, 1, summary.Combos[0].FailedRetryable)

	complete, err := ckpt.IsComplete(ctx, "ukpga", 2020)
	require.NoError(t, err)
	assert.False(t, complete, "retryable identifiers must block completion")

	// Store recovers; the next run reprocesses only the stuck identifier
	d.mu.Lock()
	delete(d.failWith, stuck.String())
	d.mu.Unlock()

	summary, err = o.Run(ctx, req)
	require.NoError(t, err)
	combo := summary.Combos[0]
	assert.Equal(t, 1, combo.Done)
	assert.Equal(t, 1, combo.Skipped)

	assert.Equal(t, 1, source.fetchCount(ok), "completed identifier must not be refetched")
	assert.Equal(t, 2, source.fetchCount(stuck))

	complete, err = ckpt.IsComplete(ctx, "ukpga", 2020)
	require.NoError(t, err)
	assert.True(t, complete)
}

func TestRun_TransientFetchExhaustsBudget(t *testing.T) {
	ident := calIdent(2020, 5)
	source := newFakeSource()
	source.errs[ident.String()] = &fetch.StatusError{URL: ident.String(), Status: 503, Transient: true}
	d := newFakeDeliverer()

	ckptRepo, _, backend, err := badgerstore.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	o, err := New(&fakeEnum{idents: []core.DocumentIdentifier{ident}}, source, d, ckptRepo,
		WithPoolSize(1), WithAttemptBudget(3), WithProgressWriter(io.Discard))
	require.NoError(t, err)
	defer o.Release()

	summary, err := o.Run(context.Background(), []resolver.Request{{Type: "ukpga", Year: 2020}})
	require.NoError(t, err)

	combo := summary.Combos[0]
	assert.Equal(t, 1, combo.FailedPermanent)
	assert.Contains(t, combo.PermanentFailures[0].Reason, "retry budget exhausted")
	assert.Equal(t, 3, source.fetchCount(ident))
}

func TestRun_MultipleChoicesResolvedViaAlternative(t *testing.T) {
	ident := calIdent(1981, 35)
	alt := core.DocumentIdentifier{Type: "ukla", Scheme: core.SchemeCalendar, Year: 1981, Number: 35}

	source := newFakeSource()
	source.errs[ident.String()] = &fetch.MultipleChoicesError{
		URL:          ident.String(),
		Alternatives: []core.DocumentIdentifier{alt},
	}
	source.docs[alt.String()] = validXML

	d := newFakeDeliverer()
	o, _ := newTestOrchestrator(t, &fakeEnum{idents: []core.DocumentIdentifier{ident}}, source, d)

	summary, err := o.Run(context.Background(), []resolver.Request{{Type: "ukpga", Year: 1981}})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Combos[0].Done)

	// Content came from the alternative but is recorded under the
	// original identifier.
	records := d.recordsFor(ident)
	require.NotEmpty(t, records)
	assert.Equal(t, ident, records[0].Identifier())
}

func TestRun_EnumerationFailureIsFatal(t *testing.T) {
	enum := &fakeEnum{err: fmt.Errorf("%w: bad entry", core.ErrMalformedIdentifier)}
	o, _ := newTestOrchestrator(t, enum, newFakeSource(), newFakeDeliverer())

	_, err := o.Run(context.Background(), []resolver.Request{{Type: "ukpga", Year: 2020}})
	assert.ErrorIs(t, err, core.ErrMalformedIdentifier)
}
