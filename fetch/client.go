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


// Package fetch retrieves raw document content from the source site,
// with an on-disk cache, a global rate ceiling and retry with backoff
// for transient failures.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/openlexica/legisport/core"
	"github.com/openlexica/legisport/retry"
	"github.com/openlexica/legisport/storage"
	"golang.org/x/time/rate"
)

const (
	defaultMaxAttempts = 4
	defaultBaseDelay   = 500 * time.Millisecond
	defaultCacheTTL    = 24 * time.Hour
	defaultRateLimit   = 4 // requests per second against the source
	defaultUserAgent   = "legisport/1.0"

	// maxBodySize caps response bodies; the largest consolidated acts
	// run to a few tens of MB of XML.
	maxBodySize = 64 << 20
)

// Client fetches content from the source site. All network access in
// the pipeline funnels through one Client so the rate ceiling is
// global regardless of worker count.
type Client struct {
	http        *http.Client
	cache       storage.FetchCacheRepository
	limiter     *rate.Limiter
	baseURL     string
	maxAttempts int
	baseDelay   time.Duration
	cacheTTL    time.Duration
	userAgent   string
	logger      *slog.Logger
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithCache sets the persistent response cache. Without one the client
// always goes to the network.
func WithCache(cache storage.FetchCacheRepository) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithCacheTTL sets how long cached responses are served before a
// refetch. Zero keeps entries forever.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.cacheTTL = ttl
	}
}

// WithRateLimit sets the global request ceiling in requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithMaxAttempts sets the retry budget for transient failures.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		c.maxAttempts = n
	}
}

// WithBaseDelay sets the initial backoff delay.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = d
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a fetch client for a source base URL.
func NewClient(baseURL string, logger *slog.Logger, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		http:        &http.Client{Timeout: 60 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(defaultRateLimit), 1),
		baseURL:     baseURL,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		cacheTTL:    defaultCacheTTL,
		userAgent:   defaultUserAgent,
		logger:      logger.With("component", "fetch"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// DocumentURL returns the machine-readable content URL for an identifier.
func (c *Client) DocumentURL(ident core.DocumentIdentifier) string {
	return c.baseURL + "/" + ident.String() + "/data.xml"
}

// PDFURL returns the companion scan URL for an identifier, under the
// document's /pdfs/ path. The file name carries the calendar year even
// for regnal identifiers.
func (c *Client) PDFURL(ident core.DocumentIdentifier) string {
	return fmt.Sprintf("%s/%s/pdfs/%s_%d%04d_en.pdf",
		c.baseURL, ident.String(), ident.Type, ident.Year, ident.Number)
}

// FetchDocument retrieves the machine-readable content for one
// identifier, from the cache when fresh. A 404 returns *NotFoundError
// without retrying; a 300 returns *MultipleChoicesError carrying the
// listed alternatives.
func (c *Client) FetchDocument(ctx context.Context, ident core.DocumentIdentifier) (*core.RawContent, error) {
	return c.Get(ctx, c.DocumentURL(ident))
}

// Get retrieves one URL with caching, rate limiting and retry. It also
// serves the resolver as its feed source.
func (c *Client) Get(ctx context.Context, url string) (*core.RawContent, error) {
	if c.cache != nil {
		cached, err := c.cache.GetResponse(ctx, url)
		if err == nil {
			c.logger.Debug("cache hit", "url", url)
			return &core.RawContent{
				URL:       cached.URL,
				Body:      cached.Body,
				MediaType: cached.MediaType,
				FetchedAt: cached.FetchedAt,
				Origin:    core.OriginCache,
			}, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}

	content, err := c.fetchLive(ctx, url)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		putErr := c.cache.PutResponse(ctx, &core.CachedResponse{
			URL:       content.URL,
			Status:    http.StatusOK,
			MediaType: content.MediaType,
			Body:      content.Body,
			FetchedAt: content.FetchedAt,
		}, c.cacheTTL)
		if putErr != nil {
			// A cache write failure degrades to uncached operation.
			c.logger.Warn("failed to cache response", "url", url, "error", putErr)
		}
	}

	return content, nil
}

// fetchLive performs the network retrieval with the retry budget.
func (c *Client) fetchLive(ctx context.Context, url string) (*core.RawContent, error) {
	var content *core.RawContent

	err := retry.WithBackoff(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return &retry.Permanent{Err: err}
		}

		got, err := c.doRequest(ctx, url)
		if err != nil {
			return err
		}
		content = got
		return nil
	}, c.maxAttempts, c.baseDelay)

	if err != nil {
		return nil, err
	}
	return content, nil
}

// doRequest performs a single HTTP GET and classifies the response.
func (c *Client) doRequest(ctx context.Context, url string) (*core.RawContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &retry.Permanent{Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport errors (timeouts, resets) are transient.
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return &core.RawContent{
			URL:       url,
			Body:      body,
			MediaType: mediaType(resp),
			FetchedAt: time.Now().UTC(),
			Origin:    core.OriginLive,
		}, nil

	case resp.StatusCode == http.StatusNotFound:
		return nil, &retry.Permanent{Err: &NotFoundError{URL: url}}

	case resp.StatusCode == http.StatusMultipleChoices:
		alts := parseChoices(body)
		c.logger.Debug("ambiguous document URL", "url", url, "alternatives", len(alts))
		return nil, &retry.Permanent{Err: &MultipleChoicesError{URL: url, Alternatives: alts}}

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &StatusError{
			URL:            url,
			Status:         resp.StatusCode,
			Transient:      true,
			RetryAfterHint: retryAfter(resp),
		}

	default:
		return nil, &retry.Permanent{Err: &StatusError{URL: url, Status: resp.StatusCode}}
	}
}

// mediaType extracts the bare media type from the Content-Type header.
func mediaType(resp *http.Response) string {
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ct
	}
	return mt
}

// retryAfter parses the Retry-After header (seconds form only).
func retryAfter(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
