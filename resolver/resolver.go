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


package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/openlexica/legisport/core"
)

// FeedSource retrieves one listing feed page. The fetch layer's client
// satisfies this; tests substitute a fake.
type FeedSource interface {
	Get(ctx context.Context, url string) (*core.RawContent, error)
}

// Request describes one (type, calendar year) combination to resolve.
type Request struct {
	Type core.DocType
	Year int

	// Filter, when non-empty, restricts yielded identifiers to this
	// document type. Listing feeds for a broad category can carry
	// entries of several sub-types.
	Filter core.DocType
}

// Resolver maps (document type, year) combinations to candidate
// document identifiers. Discovery is feed-based in both epochs since
// numbering gaps are common and unpredictable; identifiers are never
// guessed from index ranges.
type Resolver struct {
	source  FeedSource
	baseURL string
	logger  *slog.Logger
}

// New creates a Resolver over a feed source.
func New(source FeedSource, baseURL string, logger *slog.Logger) (*Resolver, error) {
	if source == nil {
		return nil, ErrFeedSourceRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		source:  source,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger.With("component", "resolver"),
	}, nil
}

// ForEach enumerates candidate identifiers for a combination in
// feed order, deduplicated, calling fn for each. Modern years use the
// calendar listing; earlier years enumerate every overlapping regnal
// year and merge the results. Enumeration stops on the first error
// from fn.
//
// Malformed entries and unknown monarch codes fail the enumeration
// loudly: a silent skip would corrupt checkpoint completeness.
func (r *Resolver) ForEach(ctx context.Context, req Request, fn func(core.DocumentIdentifier) error) error {
	if err := core.ValidateDocType(req.Type); err != nil {
		return err
	}
	if req.Year < EarliestYear {
		return fmt.Errorf("%w: %d predates the corpus", core.ErrInvalidYear, req.Year)
	}

	var pages []string
	if req.Year >= core.ReformYear {
		pages = append(pages, fmt.Sprintf("%s/%s/%d/data.feed", r.baseURL, req.Type, req.Year))
	} else {
		refs, err := RegnalYearsFor(req.Year)
		if err != nil {
			return err
		}
		r.logger.Debug("resolved regnal years", "year", req.Year, "count", len(refs))
		for _, ref := range refs {
			pages = append(pages, fmt.Sprintf("%s/%s/%s/%d/data.feed", r.baseURL, req.Type, ref.Monarch, ref.Year))
		}
	}

	seen := make(map[string]struct{})
	for _, page := range pages {
		if err := r.walkFeed(ctx, page, req, seen, fn); err != nil {
			return err
		}
	}

	r.logger.Info("resolution finished", "type", req.Type, "year", req.Year, "candidates", len(seen))
	return nil
}

// Resolve collects the full candidate list for a combination.
func (r *Resolver) Resolve(ctx context.Context, req Request) ([]core.DocumentIdentifier, error) {
	var idents []core.DocumentIdentifier
	err := r.ForEach(ctx, req, func(ident core.DocumentIdentifier) error {
		idents = append(idents, ident)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return idents, nil
}

// walkFeed paginates one listing feed, yielding each entry's identifier.
func (r *Resolver) walkFeed(ctx context.Context, page string, req Request, seen map[string]struct{}, fn func(core.DocumentIdentifier) error) error {
	for page != "" {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		raw, err := r.source.Get(ctx, page)
		if err != nil {
			return fmt.Errorf("listing %s: %w", page, err)
		}

		feed, err := parseFeed(raw.Body)
		if err != nil {
			return fmt.Errorf("listing %s: %w", page, err)
		}

		for _, entry := range feed.Entries {
			ident, err := r.entryIdentifier(entry, req.Year)
			if err != nil {
				return fmt.Errorf("listing %s: %w", page, err)
			}

			if req.Filter != "" && ident.Type != req.Filter {
				continue
			}

			key := ident.String()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			if err := fn(ident); err != nil {
				return err
			}
		}

		page, err = feed.nextPage(page)
		if err != nil {
			return err
		}
	}
	return nil
}

// entryIdentifier parses one feed entry's id into an identifier. Regnal
// identifiers are stamped with the requested calendar year so both
// epochs checkpoint under the same (type, calendar year) key.
func (r *Resolver) entryIdentifier(entry atomEntry, calendarYear int) (core.DocumentIdentifier, error) {
	u, err := url.Parse(entry.ID)
	if err != nil {
		return core.DocumentIdentifier{}, fmt.Errorf("%w: entry id %q", core.ErrMalformedIdentifier, entry.ID)
	}

	ident, err := core.ParseIdentifierPath(u.Path)
	if err != nil {
		return core.DocumentIdentifier{}, err
	}

	if ident.Scheme == core.SchemeRegnal {
		if !KnownMonarch(ident.Monarch) {
			return core.DocumentIdentifier{}, fmt.Errorf("%w: %q in entry %q", core.ErrUnknownMonarch, ident.Monarch, entry.ID)
		}
		ident.Year = calendarYear
	}

	return ident, nil
}
