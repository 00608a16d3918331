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


package fetch

import (
	"bytes"
	"strings"

	"github.com/openlexica/legisport/core"
	"golang.org/x/net/html"
)

// parseChoices extracts candidate identifiers from an HTTP 300
// ambiguity page. The page body is HTML listing the concrete versions
// as links; anchors whose href parses as an identifier path are kept,
// in listing order, deduplicated.
func parseChoices(body []byte) []core.DocumentIdentifier {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var idents []core.DocumentIdentifier
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				ident, err := identFromHref(attr.Val)
				if err != nil {
					continue
				}
				key := ident.String()
				if !seen[key] {
					seen[key] = true
					idents = append(idents, ident)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return idents
}

// identFromHref parses an anchor target into an identifier, stripping
// scheme, host and known suffixes.
func identFromHref(href string) (core.DocumentIdentifier, error) {
	path := href
	if idx := strings.Index(path, "://"); idx >= 0 {
		path = path[idx+3:]
		if slash := strings.Index(path, "/"); slash >= 0 {
			path = path[slash:]
		} else {
			path = ""
		}
	}
	if idx := strings.IndexAny(path, "?#"); idx >= 0 {
		path = path[:idx]
	}
	path = strings.TrimSuffix(path, "/data.xml")
	path = strings.TrimSuffix(path, "/contents")

	return core.ParseIdentifierPath(path)
}
