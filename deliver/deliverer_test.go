package deliver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openlexica/legisport/ai"
	"github.com/openlexica/legisport/ai/mock"
	"github.com/openlexica/legisport/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords(t *testing.T, count int) []core.Record {
	t.Helper()
	ident := core.DocumentIdentifier{Type: "ukpga", Scheme: core.SchemeCalendar, Year: 2020, Number: 7}

	records := []core.Record{
		&core.ParsedDocument{
			Ident: ident,
			Unit:  core.KindDocument,
			Title: "Test Act 2020",
			Text:  "An Act about testing.",
		},
	}
	for i := 1; i < count; i++ {
		records = append(records, &core.ParsedDocument{
			Ident: ident,
			Unit:  core.KindProvision,
			Path:  fmt.Sprintf("section %d", i),
			Text:  fmt.Sprintf("Provision text %d.", i),
		})
	}
	return records
}

func newTestDeliverer(t *testing.T, store UpsertStore, opts ...Option) *Deliverer {
	t.Helper()
	opts = append([]Option{WithRetry(3, time.Millisecond)}, opts...)
	d, err := NewDeliverer(store, opts...)
	require.NoError(t, err)
	t.Cleanup(d.Release)
	return d
}

func TestDeliver_InsertsAllRecords(t *testing.T) {
	store := NewMemoryStore()
	embedder := mock.NewMockEmbedder()
	d := newTestDeliverer(t, store, WithEmbedder(embedder))

	records := sampleRecords(t, 5)
	result, err := d.Deliver(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Inserted)
	assert.Equal(t, 0, result.AlreadyPresent)
	assert.Equal(t, 5, store.Len())
}

func TestDeliver_Idempotent(t *testing.T) {
	store := NewMemoryStore()
	d := newTestDeliverer(t, store, WithEmbedder(mock.NewMockEmbedder()))

	records := sampleRecords(t, 4)
	ctx := context.Background()

	first, err := d.Deliver(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 4, first.Inserted)

	// Redelivery of the same records must overwrite, not duplicate
	second, err := d.Deliver(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 4, second.AlreadyPresent)
	assert.Equal(t, 4, store.Len())
}

func TestDeliver_VectorsAreNormalized(t *testing.T) {
	store := NewMemoryStore()
	d := newTestDeliverer(t, store, WithEmbedder(mock.NewMockEmbedder()))

	records := sampleRecords(t, 2)
	_, err := d.Deliver(context.Background(), records)
	require.NoError(t, err)

	item, ok := store.Get(records[0].RecordID())
	require.True(t, ok)
	require.NotEmpty(t, item.Vector)

	var sum float64
	for _, x := range item.Vector {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sum, 1e-5, "delivered vectors must be unit length")
}

func TestDeliver_FallbackSkipsEmbedding(t *testing.T) {
	store := NewMemoryStore()
	embedder := mock.NewMockEmbedder()
	d := newTestDeliverer(t, store, WithEmbedder(embedder))

	marker := &core.FallbackMarker{
		Ident: core.DocumentIdentifier{
			Type: "ukpga", Scheme: core.SchemeRegnal, Year: 1801,
			Monarch: "Geo3", RegnalYear: "41", Number: 12,
		},
		Title:  "Taxation Act 1801",
		PDFURL: "https://example.com/data.pdf",
	}

	result, err := d.Deliver(context.Background(), []core.Record{marker})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)
	assert.Zero(t, embedder.CallCount(), "records without text must not reach the embedder")

	item, ok := store.Get(marker.RecordID())
	require.True(t, ok)
	assert.Nil(t, item.Vector)
	assert.Equal(t, "fallback", item.Payload["kind"])
}

func TestDeliver_NoEmbedderDeliversVectorless(t *testing.T) {
	store := NewMemoryStore()
	d := newTestDeliverer(t, store)

	records := sampleRecords(t, 3)
	result, err := d.Deliver(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Inserted)

	item, _ := store.Get(records[0].RecordID())
	assert.Nil(t, item.Vector)
}

func TestDeliver_RateLimitRetried(t *testing.T) {
	store := NewMemoryStore()
	embedder := mock.NewMockEmbedder()

	var calls atomic.Int32
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if calls.Add(1) == 1 {
			return nil, &ai.RateLimitError{
				RetryAfterHint: time.Millisecond,
				Err:            errors.New("429"),
			}
		}
		vectors := make([][]float32, len(texts))
		for i := range texts {
			vectors[i] = []float32{1, 0, 0}
		}
		return vectors, nil
	}

	d := newTestDeliverer(t, store, WithEmbedder(embedder), WithPoolSize(1))

	result, err := d.Deliver(context.Background(), sampleRecords(t, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestDeliver_DownstreamUnavailableSurfaces(t *testing.T) {
	store := NewMemoryStore()
	store.FailNext = errors.New("connection refused")
	d := newTestDeliverer(t, store, WithRetry(1, time.Millisecond), WithPoolSize(1))

	_, err := d.Deliver(context.Background(), sampleRecords(t, 2))

	var unavailable *DownstreamUnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestDeliverCrossRefs_Idempotent(t *testing.T) {
	store := NewMemoryStore()
	d := newTestDeliverer(t, store)

	refs := []core.CrossReference{
		{
			From:       core.DocumentIdentifier{Type: "ukpga", Scheme: core.SchemeCalendar, Year: 2020, Number: 7},
			SourcePath: "section 2",
			Citation:   "the Nurses Act 1997",
			TargetURI:  "http://www.legislation.gov.uk/id/ukpga/1997/24",
		},
	}
	ctx := context.Background()

	first, err := d.DeliverCrossRefs(ctx, refs)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Inserted)

	second, err := d.DeliverCrossRefs(ctx, refs)
	require.NoError(t, err)
	assert.Equal(t, 1, second.AlreadyPresent)
	assert.Equal(t, 1, store.Len())
}

func TestNewDeliverer_RequiresStore(t *testing.T) {
	_, err := NewDeliverer(nil)
	assert.ErrorIs(t, err, ErrStoreRequired)
}

func TestNormalizeVector_Zero(t *testing.T) {
	v := []float32{0, 0, 0}
	assert.Equal(t, []float32{0, 0, 0}, NormalizeVector(v))

	v = NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)
	assert.False(t, math.IsNaN(float64(v[0])))
}
