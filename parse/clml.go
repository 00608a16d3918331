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


package parse

import (
	"encoding/xml"
	"strings"
)

// Document markup structures. Field tags use local names only; the
// source mixes several namespaces (dc, ukm, plus the default) and the
// decoder matches local names across all of them.

type legislation struct {
	XMLName   xml.Name   `xml:"Legislation"`
	Metadata  metadata   `xml:"Metadata"`
	Primary   *docBody   `xml:"Primary"`
	Secondary *docBody   `xml:"Secondary"`
	Body      *docBody   `xml:"Body"`
	Schedules *schedules `xml:"Schedules"`
}

// body returns whichever body container the document carries, or nil.
func (l *legislation) body() *docBody {
	switch {
	case l.Primary != nil:
		return l.Primary
	case l.Secondary != nil:
		return l.Secondary
	default:
		return l.Body
	}
}

type metadata struct {
	// Title is the dc:title. Always present on well-formed documents,
	// including scan-only ones.
	Title         string        `xml:"title"`
	DocumentMain  valueAttr     `xml:"PrimaryMetadata>DocumentClassification>DocumentMainType"`
	Status        valueAttr     `xml:"PrimaryMetadata>DocumentClassification>DocumentStatus"`
	EnactmentDate dateAttr      `xml:"PrimaryMetadata>EnactmentDate"`
	Alternatives  []alternative `xml:"Alternatives>Alternative"`
}

type valueAttr struct {
	Value string `xml:"Value,attr"`
}

type dateAttr struct {
	Date string `xml:"Date,attr"`
}

type alternative struct {
	URI       string `xml:"URI,attr"`
	MediaType string `xml:"MediaType,attr"`
}

// pdfAlternative returns the URI of the scan alternative, if any.
func (m *metadata) pdfAlternative() string {
	for _, alt := range m.Alternatives {
		if alt.MediaType == "" || strings.Contains(alt.MediaType, "pdf") ||
			strings.HasSuffix(alt.URI, ".pdf") {
			return alt.URI
		}
	}
	return ""
}

type docBody struct {
	IntroTexts []textRun `xml:"IntroductoryText>P>Text"`
	Parts      []part    `xml:"Part"`
	// P1groups holds top-level provisions of documents without parts.
	P1groups []p1group `xml:"P1group"`
	Extent   string    `xml:"RestrictExtent,attr"`
}

// empty reports whether the body carries no content at all.
// Introductory text counts: a document may consist of nothing else.
func (b *docBody) empty() bool {
	if b == nil {
		return true
	}
	for _, intro := range b.IntroTexts {
		if intro.Text != "" {
			return false
		}
	}
	return len(b.Parts) == 0 && len(b.P1groups) == 0
}

type part struct {
	Number   textRun   `xml:"Number"`
	Title    textRun   `xml:"Title"`
	P1groups []p1group `xml:"P1group"`
}

type p1group struct {
	Title textRun `xml:"Title"`
	P1s   []p1    `xml:"P1"`
}

type p1 struct {
	ID      string   `xml:"id,attr"`
	Pnumber textRun  `xml:"Pnumber"`
	Paras   []p1para `xml:"P1para"`
}

type p1para struct {
	Texts []textRun `xml:"Text"`
	P2s   []p2      `xml:"P2"`
}

type p2 struct {
	Pnumber textRun  `xml:"Pnumber"`
	Paras   []p2para `xml:"P2para"`
}

type p2para struct {
	Texts []textRun `xml:"Text"`
	P3s   []p3      `xml:"P3"`
}

type p3 struct {
	Pnumber textRun  `xml:"Pnumber"`
	Paras   []p3para `xml:"P3para"`
}

type p3para struct {
	Texts []textRun `xml:"Text"`
}

type schedules struct {
	Schedules []schedule `xml:"Schedule"`
}

type schedule struct {
	Number   textRun   `xml:"Number"`
	Title    textRun   `xml:"TitleBlock>Title"`
	P1groups []p1group `xml:"ScheduleBody>P1group"`
	Paras    []p1      `xml:"ScheduleBody>P1"`
}

// citation is an inline reference to another document.
type citation struct {
	URI   string
	Class string
	Text  string
}

// textRun is the mixed-content payload of a Text (or heading) element.
// Inline markup is flattened to plain text; Citation elements are
// additionally collected so cross-references survive flattening.
type textRun struct {
	Text      string
	Citations []citation
}

// UnmarshalXML flattens the element's subtree into Text and captures
// Citation/CitationSub elements along the way.
func (t *textRun) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var text strings.Builder
	var citeText strings.Builder
	var citeURI, citeClass string
	citeDepth := 0
	depth := 1

	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			depth++
			if citeDepth == 0 && (el.Name.Local == "Citation" || el.Name.Local == "CitationSub") {
				citeDepth = depth
				citeURI = attrValue(el, "URI")
				citeClass = attrValue(el, "Class")
				citeText.Reset()
			}
		case xml.EndElement:
			if citeDepth != 0 && depth == citeDepth {
				t.Citations = append(t.Citations, citation{
					URI:   citeURI,
					Class: citeClass,
					Text:  normalizeSpace(citeText.String()),
				})
				citeDepth = 0
			}
			depth--
			if depth == 0 {
				t.Text = normalizeSpace(text.String())
				return nil
			}
		case xml.CharData:
			text.Write(el)
			if citeDepth != 0 {
				citeText.Write(el)
			}
		}
	}
}

func attrValue(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// normalizeSpace collapses runs of whitespace to single spaces.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
