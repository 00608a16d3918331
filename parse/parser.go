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


// Package parse turns raw document markup into typed records: one
// whole-document record plus one record per provision, or a fallback
// marker when the source holds only a scan.
package parse

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/openlexica/legisport/core"
)

// Result is the full output of parsing one document.
type Result struct {
	// Records holds the deliverable records: the document record
	// followed by its provisions, or a single fallback marker.
	Records []core.Record
	// CrossRefs holds citations extracted from the text, as a
	// secondary output stream.
	CrossRefs []core.CrossReference
	// Fallback is non-nil when the document exists only as a scan.
	// The marker also appears in Records.
	Fallback *core.FallbackMarker
}

// Parse decodes raw content for an identifier. Malformed markup and
// missing titles return *StructuralParseError; a well-formed document
// with no machine-readable body produces a fallback result, not an
// error.
func Parse(content *core.RawContent, ident core.DocumentIdentifier) (*Result, error) {
	var doc legislation
	if err := xml.Unmarshal(content.Body, &doc); err != nil {
		return nil, &StructuralParseError{
			Ident:  ident.String(),
			Detail: "markup does not decode",
			Err:    err,
		}
	}

	title := normalizeSpace(doc.Metadata.Title)
	if title == "" {
		return nil, &StructuralParseError{
			Ident:  ident.String(),
			Detail: "metadata carries no title",
		}
	}

	body := doc.body()
	hasSchedules := doc.Schedules != nil && len(doc.Schedules.Schedules) > 0
	if body.empty() && !hasSchedules {
		marker := &core.FallbackMarker{
			Ident:     ident,
			Title:     title,
			PDFURL:    doc.Metadata.pdfAlternative(),
			FetchedAt: content.FetchedAt,
		}
		return &Result{
			Records:  []core.Record{marker},
			Fallback: marker,
		}, nil
	}

	b := &builder{
		ident:     ident,
		sourceURL: content.URL,
		status:    doc.Metadata.Status.Value,
		enactedOn: parseDate(doc.Metadata.EnactmentDate.Date),
	}
	if body != nil {
		b.extent = body.Extent
	}

	// Whole-document record: title plus any introductory text.
	var docText strings.Builder
	docText.WriteString(title)
	if body != nil {
		for _, run := range body.IntroTexts {
			if run.Text != "" {
				docText.WriteString("\n")
				docText.WriteString(run.Text)
			}
			b.collectCitations("", run)
		}
	}
	b.add(core.KindDocument, title, "", docText.String())

	if body != nil {
		label := provisionLabel(ident.Type)
		for _, part := range body.Parts {
			prefix := pathSegment(part.Number.Text)
			for _, group := range part.P1groups {
				b.addGroup(group, prefix, label)
			}
		}
		for _, group := range body.P1groups {
			b.addGroup(group, "", label)
		}
	}

	if doc.Schedules != nil {
		for i, sched := range doc.Schedules.Schedules {
			prefix := pathSegment(sched.Number.Text)
			if prefix == "" {
				prefix = fmt.Sprintf("schedule %d", i+1)
			}
			for _, group := range sched.P1groups {
				b.addGroup(group, prefix, "paragraph")
			}
			for j, para := range sched.Paras {
				b.addProvision(para, "", prefix, "paragraph", j+1)
			}
		}
	}

	return &Result{Records: b.records, CrossRefs: b.crossRefs}, nil
}

// builder accumulates records and cross-references during one parse.
type builder struct {
	ident     core.DocumentIdentifier
	sourceURL string
	status    string
	extent    string
	enactedOn time.Time

	records   []core.Record
	crossRefs []core.CrossReference
}

func (b *builder) add(unit core.RecordKind, title, path, text string) {
	b.records = append(b.records, &core.ParsedDocument{
		Ident:     b.ident,
		Unit:      unit,
		Title:     title,
		Path:      path,
		Text:      text,
		EnactedOn: b.enactedOn,
		Extent:    b.extent,
		Status:    b.status,
		SourceURL: b.sourceURL,
	})
}

// addGroup emits one provision record per P1 in a group.
func (b *builder) addGroup(group p1group, prefix, label string) {
	for i, prov := range group.P1s {
		b.addProvision(prov, group.Title.Text, prefix, label, i+1)
	}
}

// addProvision emits a single provision record with its structural
// path, flattening nested numbered paragraphs into the text.
func (b *builder) addProvision(prov p1, groupTitle, prefix, label string, ordinal int) {
	number := prov.Pnumber.Text
	if number == "" {
		number = fmt.Sprintf("%d", ordinal)
	}
	path := fmt.Sprintf("%s %s", label, number)
	if prefix != "" {
		path = prefix + "/" + path
	}

	var text strings.Builder
	if groupTitle != "" {
		text.WriteString(groupTitle)
	}
	appendRun := func(run textRun) {
		if run.Text != "" {
			if text.Len() > 0 {
				text.WriteString("\n")
			}
			text.WriteString(run.Text)
		}
		b.collectCitations(path, run)
	}

	for _, para := range prov.Paras {
		for _, run := range para.Texts {
			appendRun(run)
		}
		for _, sub := range para.P2s {
			for _, subPara := range sub.Paras {
				for _, run := range subPara.Texts {
					appendRun(run)
				}
				for _, subSub := range subPara.P3s {
					for _, subSubPara := range subSub.Paras {
						for _, run := range subSubPara.Texts {
							appendRun(run)
						}
					}
				}
			}
		}
	}

	b.add(core.KindProvision, groupTitle, path, text.String())
}

func (b *builder) collectCitations(path string, run textRun) {
	for _, cite := range run.Citations {
		b.crossRefs = append(b.crossRefs, core.CrossReference{
			From:       b.ident,
			SourcePath: path,
			Citation:   cite.Text,
			TargetURI:  cite.URI,
		})
	}
}

// provisionLabel names the numbered unit for a document type: acts
// have sections, instruments have regulations.
func provisionLabel(docType core.DocType) string {
	if docType.Class() == core.ClassSecondary {
		return "regulation"
	}
	return "section"
}

// pathSegment lowercases a heading number like "Part 2" for use in
// structural paths.
func pathSegment(s string) string {
	return strings.ToLower(normalizeSpace(s))
}

// parseDate parses the attribute date form, returning zero on failure.
func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}
