// Package sources holds the per-site adapters that turn external job
// boards into candidate streams.
package sources

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// parseDocument builds a goquery document from a fetched body.
func parseDocument(body []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

// firstText returns the trimmed text of the first selector that matches,
// or "" when none do. Sites change markup often, so every field has a
// selector fallback chain.
func firstText(doc *goquery.Document, selectors ...string) string {
	for _, selector := range selectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			if text := strings.TrimSpace(sel.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

// collectLinks gathers unique absolute hrefs matched by any selector,
// keeping only those whose path contains the given marker.
func collectLinks(doc *goquery.Document, base *url.URL, marker string, selectors ...string) []string {
	seen := make(map[string]struct{})
	var links []string
	for _, selector := range selectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			href, ok := sel.Attr("href")
			if !ok {
				return
			}
			ref, err := url.Parse(href)
			if err != nil {
				return
			}
			abs := base.ResolveReference(ref)
			if marker != "" && !strings.Contains(abs.Path, marker) {
				return
			}
			// Listing hrefs carry tracking query state; identity is the path.
			abs.RawQuery = ""
			abs.Fragment = ""
			link := abs.String()
			if _, dup := seen[link]; dup {
				return
			}
			seen[link] = struct{}{}
			links = append(links, link)
		})
	}
	return links
}
