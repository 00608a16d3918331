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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/openlexica/legisport/core"
)

// HTTPStore delivers batches to a document store over a JSON upsert
// endpoint. The endpoint must treat item IDs as primary keys so
// redelivery overwrites rather than duplicates.
type HTTPStore struct {
	http     *http.Client
	endpoint string
	apiKey   string
	logger   *slog.Logger
}

var _ UpsertStore = (*HTTPStore)(nil)

// NewHTTPStore creates a store client for a batch upsert endpoint.
// apiKey may be empty for unauthenticated stores.
func NewHTTPStore(endpoint, apiKey string, logger *slog.Logger) *HTTPStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPStore{
		http:     &http.Client{Timeout: 120 * time.Second},
		endpoint: endpoint,
		apiKey:   apiKey,
		logger:   logger.With("component", "deliver-http"),
	}
}

type upsertRequest struct {
	Items []UpsertItem `json:"items"`
}

type upsertResponse struct {
	Inserted       int `json:"inserted"`
	AlreadyPresent int `json:"already_present"`
}

// UpsertBatch posts one batch. Connection failures, 429 and 5xx are
// reported as DownstreamUnavailableError; other statuses are hard
// failures.
func (s *HTTPStore) UpsertBatch(ctx context.Context, items []UpsertItem) (*core.BatchUploadResult, error) {
	payload, err := json.Marshal(upsertRequest{Items: items})
	if err != nil {
		return nil, fmt.Errorf("encoding batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, &DownstreamUnavailableError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &DownstreamUnavailableError{Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var decoded upsertResponse
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, fmt.Errorf("decoding upsert response: %w", err)
		}
		return &core.BatchUploadResult{
			Inserted:       decoded.Inserted,
			AlreadyPresent: decoded.AlreadyPresent,
		}, nil

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &DownstreamUnavailableError{
			Err: fmt.Errorf("status %d from %s", resp.StatusCode, s.endpoint),
		}

	default:
		return nil, fmt.Errorf("upsert rejected with status %d: %s", resp.StatusCode, body)
	}
}

// Close releases nothing; connections are pooled by the HTTP client.
func (s *HTTPStore) Close() error {
	return nil
}
