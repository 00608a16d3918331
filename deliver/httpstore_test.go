package deliver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openlexica/legisport/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStore_UpsertBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req upsertRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Items, 2)
		assert.Equal(t, "document", req.Items[0].Payload["kind"])

		json.NewEncoder(w).Encode(upsertResponse{Inserted: 1, AlreadyPresent: 1})
	}))
	defer server.Close()

	store := NewHTTPStore(server.URL, "key", nil)
	items := []UpsertItem{
		{ID: 1, Payload: map[string]any{"kind": "document"}},
		{ID: 2, Payload: map[string]any{"kind": "provision"}, Vector: []float32{1, 0}},
	}

	result, err := store.UpsertBatch(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, &core.BatchUploadResult{Inserted: 1, AlreadyPresent: 1}, result)
}

func TestHTTPStore_UnavailableOn5xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	store := NewHTTPStore(server.URL, "", nil)
	_, err := store.UpsertBatch(context.Background(), []UpsertItem{{ID: 1}})

	var unavailable *DownstreamUnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestHTTPStore_RejectionIsHardFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad payload", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	store := NewHTTPStore(server.URL, "", nil)
	_, err := store.UpsertBatch(context.Background(), []UpsertItem{{ID: 1}})

	require.Error(t, err)
	var unavailable *DownstreamUnavailableError
	assert.False(t, errors.As(err, &unavailable), "4xx must not be classified as unavailable")
}
