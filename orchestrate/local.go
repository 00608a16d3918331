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


package orchestrate

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/openlexica/legisport/core"
	"github.com/openlexica/legisport/fetch"
	"github.com/openlexica/legisport/resolver"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// LocalSource serves documents from a directory mirroring the source
// site layout: {dir}/{type}/{year}/{number}/data.xml for modern
// documents, {dir}/{type}/{monarch}/{regnalYear}/{number}/data.xml for
// historical ones, with an optional data.pdf beside each. It
// implements both Enumerator and DocumentSource, so a full pipeline
// run can work from an offline snapshot.
type LocalSource struct {
	dir    string
	logger *slog.Logger
}

var (
	_ Enumerator     = (*LocalSource)(nil)
	_ DocumentSource = (*LocalSource)(nil)
)

// NewLocalSource creates a source over a snapshot directory.
func NewLocalSource(dir string, logger *slog.Logger) *LocalSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalSource{
		dir:    dir,
		logger: logger.With("component", "local-source"),
	}
}

// ForEach enumerates snapshot documents matching the request, in
// identifier path order.
func (s *LocalSource) ForEach(ctx context.Context, req resolver.Request, fn func(core.DocumentIdentifier) error) error {
	if err := core.ValidateDocType(req.Type); err != nil {
		return err
	}

	// Pre-compute which regnal years overlap the requested calendar
	// year, for historical snapshots.
	regnal := make(map[string]bool)
	if req.Year < core.ReformYear {
		refs, err := resolver.RegnalYearsFor(req.Year)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			regnal[fmt.Sprintf("%s/%d", ref.Monarch, ref.Year)] = true
		}
	}

	root := filepath.Join(s.dir, string(req.Type))
	var idents []core.DocumentIdentifier

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil // no snapshot for this type
			}
			return err
		}
		if d.IsDir() || d.Name() != "data.xml" {
			return nil
		}

		rel, err := filepath.Rel(s.dir, filepath.Dir(path))
		if err != nil {
			return err
		}
		ident, err := core.ParseIdentifierPath(filepath.ToSlash(rel))
		if err != nil {
			// Malformed snapshot paths fail loudly, like feed entries.
			return err
		}

		switch ident.Scheme {
		case core.SchemeCalendar:
			if ident.Year != req.Year {
				return nil
			}
		case core.SchemeRegnal:
			// Session-spanning labels like "41-42" match on either side.
			matched := false
			for _, part := range strings.Split(ident.RegnalYear, "-") {
				if regnal[ident.Monarch+"/"+part] {
					matched = true
					break
				}
			}
			if !matched {
				return nil
			}
			ident.Year = req.Year
		}
		if req.Filter != "" && ident.Type != req.Filter {
			return nil
		}

		idents = append(idents, ident)
		return nil
	})
	if err != nil {
		return err
	}

	sort.Slice(idents, func(i, j int) bool {
		return idents[i].String() < idents[j].String()
	})

	s.logger.Info("snapshot resolution finished",
		"type", req.Type, "year", req.Year, "candidates", len(idents))

	for _, ident := range idents {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(ident); err != nil {
			return err
		}
	}
	return nil
}

// FetchDocument reads the snapshot file for an identifier. A missing
// file reports *fetch.NotFoundError so the fallback probe applies to
// snapshots exactly as it does to the live site.
func (s *LocalSource) FetchDocument(ctx context.Context, ident core.DocumentIdentifier) (*core.RawContent, error) {
	path := filepath.Join(s.dir, filepath.FromSlash(ident.String()), "data.xml")

	body, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &fetch.NotFoundError{URL: path}
		}
		return nil, err
	}

	return &core.RawContent{
		URL:       path,
		Body:      body,
		MediaType: "application/xml",
		FetchedAt: time.Now().UTC(),
		Origin:    core.OriginLive,
	}, nil
}

// ProbePDF checks for a scan under the document's pdfs/ companion
// directory, mirroring the source site layout.
func (s *LocalSource) ProbePDF(ctx context.Context, ident core.DocumentIdentifier) (string, error) {
	name := fmt.Sprintf("%s_%d%04d_en.pdf", ident.Type, ident.Year, ident.Number)
	path := filepath.Join(s.dir, filepath.FromSlash(ident.String()), "pdfs", name)

	body, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &fetch.NotFoundError{URL: path}
		}
		return "", err
	}
	if err := api.Validate(bytes.NewReader(body), nil); err != nil {
		return "", fetch.ErrNotPDF
	}
	return path, nil
}
