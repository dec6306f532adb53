package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/sitelens/urlutil"
)

// ExtractLinks parses the rendered HTML and returns the normalized absolute
// URLs of every anchor, deduplicated in document order. Anchors that
// normalize to nothing (mailto:, tel:, javascript:, bare fragments) are
// dropped.
func ExtractLinks(rawHTML, sourceURL string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists {
			return
		}
		abs := urlutil.Normalize(sourceURL, href)
		if abs == "" {
			return
		}
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links
}
