package resolver

import (
	"encoding/xml"
	"fmt"
	"net/url"
)

// atomFeed is the subset of the source's Atom listing feed the
// resolver consumes: entry ids and the pagination link.
type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Links   []atomLink  `xml:"link"`
	Entries []atomEntry `xml:"entry"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

type atomEntry struct {
	ID    string     `xml:"id"`
	Title string     `xml:"title"`
	Links []atomLink `xml:"link"`
}

// parseFeed decodes a listing feed page.
func parseFeed(body []byte) (*atomFeed, error) {
	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadFeed, err)
	}
	return &feed, nil
}

// nextPage returns the absolute URL of the feed's next page, or ""
// when this is the last page.
func (f *atomFeed) nextPage(current string) (string, error) {
	for _, l := range f.Links {
		if l.Rel != "next" || l.Href == "" {
			continue
		}
		base, err := url.Parse(current)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrBadFeed, err)
		}
		ref, err := url.Parse(l.Href)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrBadFeed, err)
		}
		return base.ResolveReference(ref).String(), nil
	}
	return "", nil
}
