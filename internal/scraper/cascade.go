package scraper

import (
	"log/slog"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/baxromumarov/job-harvester/internal/content"
	"github.com/baxromumarov/job-harvester/internal/record"
	"github.com/baxromumarov/job-harvester/internal/urlutil"
)

// Kind identifies where a page payload came from.
type Kind string

const (
	InterceptedAPI Kind = "intercepted_api"
	EmbeddedJSON   Kind = "embedded_json"
	JSONLD         Kind = "json_ld"
	HTML           Kind = "html"
)

// Source is one payload available for a page. JSON is set for the JSON kinds,
// Doc for HTML.
type Source struct {
	Kind Kind
	JSON any
	Doc  *goquery.Document
}

// Candidate is a posting discovered on a listing page. Seed carries fields the
// listing already knew about the posting, if any.
type Candidate struct {
	URL  string
	Seed *record.Fields
}

type ListingResult struct {
	Candidates []Candidate
	Source     Kind
	Exhausted  bool
}

// ListingExtractor turns one source into candidates. It must not fail: a
// source it cannot read yields nil.
type ListingExtractor func(base *url.URL, src Source) []Candidate

// Cascade tries listing sources in Order and stops at the first kind that
// yields candidates.
type Cascade struct {
	Order      []Kind
	Extractors map[Kind]ListingExtractor
	Logger     *slog.Logger
}

func NewCascade() *Cascade {
	return &Cascade{
		Order: []Kind{InterceptedAPI, EmbeddedJSON, JSONLD, HTML},
		Extractors: map[Kind]ListingExtractor{
			InterceptedAPI: refsFromPayload,
			EmbeddedJSON:   refsFromPayload,
			JSONLD:         postingsFromJSONLD,
			HTML:           linksFromHTML,
		},
		Logger: slog.Default(),
	}
}

// ResolveListing picks the candidates of a listing page. Sources of the same
// kind are combined; kinds are never mixed.
func (c *Cascade) ResolveListing(pageURL string, page int, sources []Source) ListingResult {
	base, _ := url.Parse(pageURL)
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	for _, kind := range c.Order {
		extract, ok := c.Extractors[kind]
		if !ok {
			continue
		}
		var found []Candidate
		seen := make(map[string]struct{})
		for _, src := range sources {
			if src.Kind != kind {
				continue
			}
			for _, cand := range extract(base, src) {
				if _, dup := seen[cand.URL]; dup {
					continue
				}
				seen[cand.URL] = struct{}{}
				found = append(found, cand)
			}
		}
		if len(found) > 0 {
			logger.Debug("listing source selected", "url", pageURL, "page", page, "source", string(kind), "count", len(found))
			return ListingResult{Candidates: found, Source: kind}
		}
	}

	logger.Warn("no records found", "url", pageURL, "page", page)
	return ListingResult{Exhausted: true}
}

// SourcesFromPage builds the sources available for a fetched page: every
// intercepted JSON payload, the embedded app state, each JSON-LD script and
// the document itself.
func SourcesFromPage(doc *goquery.Document, intercepted []any) []Source {
	sources := make([]Source, 0, len(intercepted)+3)
	for _, payload := range intercepted {
		if payload != nil {
			sources = append(sources, Source{Kind: InterceptedAPI, JSON: payload})
		}
	}
	if doc == nil {
		return sources
	}
	if state, ok := content.EmbeddedState(doc); ok {
		sources = append(sources, Source{Kind: EmbeddedJSON, JSON: state})
	}
	for _, payload := range content.JSONLDPayloads(doc) {
		sources = append(sources, Source{Kind: JSONLD, JSON: payload})
	}
	return append(sources, Source{Kind: HTML, Doc: doc})
}

// refsFromPayload prefers an item's own detail URL and falls back to one
// built from its id when the URL is missing or points elsewhere.
func refsFromPayload(base *url.URL, src Source) []Candidate {
	var out []Candidate
	for _, ref := range content.ListingRefs(src.JSON) {
		key, ok := urlutil.CanonicalDetail(urlutil.Resolve(base, ref.URL))
		if !ok {
			key, ok = urlutil.CanonicalDetail(urlutil.DetailURLFromListing(base, ref.CategorySlug, ref.ID))
		}
		if ok {
			out = append(out, Candidate{URL: key})
		}
	}
	return out
}

// postingsFromJSONLD reads postings that link to their own page, plus
// ItemList entries.
func postingsFromJSONLD(base *url.URL, src Source) []Candidate {
	var out []Candidate
	for _, posting := range content.JobPostings(src.JSON) {
		href, _ := posting["url"].(string)
		key, ok := urlutil.CanonicalDetail(urlutil.Resolve(base, href))
		if !ok {
			continue
		}
		seed := content.FieldsFromJobPosting(posting)
		out = append(out, Candidate{URL: key, Seed: &seed})
	}
	for _, href := range itemListURLs(src.JSON) {
		if key, ok := urlutil.CanonicalDetail(urlutil.Resolve(base, href)); ok {
			out = append(out, Candidate{URL: key})
		}
	}
	return out
}

func itemListURLs(payload any) []string {
	var out []string
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case []any:
			for _, item := range t {
				walk(item)
			}
		case map[string]any:
			if graph, ok := t["@graph"]; ok {
				walk(graph)
			}
			if t["@type"] != "ItemList" {
				return
			}
			elems, _ := t["itemListElement"].([]any)
			for _, e := range elems {
				m, ok := e.(map[string]any)
				if !ok {
					continue
				}
				if s, ok := m["url"].(string); ok {
					out = append(out, s)
				} else if item, ok := m["item"].(map[string]any); ok {
					if s, ok := item["url"].(string); ok {
						out = append(out, s)
					}
				}
			}
		}
	}
	walk(payload)
	return out
}

func linksFromHTML(base *url.URL, src Source) []Candidate {
	links := DiscoverLinks(src.Doc, base)
	out := make([]Candidate, 0, len(links))
	for _, link := range links {
		out = append(out, Candidate{URL: link})
	}
	return out
}
