package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/baxromumarov/job-harvester/internal/urlutil"
)

const (
	anchorSelector    = `a[href*="/jobs/"]`
	dataSelector      = `[data-testid*="listing"], [data-testid*="job"], [data-href]`
	containerSelector = `article, [class*="listing"], [class*="card"], [class*="item"]`
)

// DiscoverLinks collects posting URLs from a listing document. Three patterns
// are scanned in order: posting-shaped anchors, elements carrying a data
// attribute, and the first posting anchor of card-like containers. Results are
// canonical, de-duplicated and in discovery order.
func DiscoverLinks(doc *goquery.Document, base *url.URL) []string {
	if doc == nil {
		return nil
	}
	c := newLinkCollector(base)

	doc.Find(anchorSelector).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		c.add(href)
	})

	doc.Find(dataSelector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("data-href")
		if !ok || strings.TrimSpace(href) == "" {
			href, _ = s.Find("a[href]").First().Attr("href")
		}
		c.add(href)
	})

	doc.Find(containerSelector).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Find(anchorSelector).First().Attr("href")
		c.add(href)
	})

	return c.links
}

type linkCollector struct {
	base  *url.URL
	seen  map[string]struct{}
	links []string
}

func newLinkCollector(base *url.URL) *linkCollector {
	return &linkCollector{base: base, seen: make(map[string]struct{})}
}

// add resolves href and keeps it when it is a new posting URL.
func (c *linkCollector) add(href string) bool {
	abs := urlutil.Resolve(c.base, href)
	if abs == "" || urlutil.IsExcluded(abs) {
		return false
	}
	key, ok := urlutil.CanonicalDetail(abs)
	if !ok {
		return false
	}
	if _, dup := c.seen[key]; dup {
		return false
	}
	c.seen[key] = struct{}{}
	c.links = append(c.links, key)
	return true
}
