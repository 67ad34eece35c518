package crawl

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/baxromumarov/job-harvester/internal/urlutil"
)

// Rule names reported in a Decision.
const (
	RuleBudget    = "budget"
	RuleMaxPages  = "max_pages"
	RuleRelNext   = "rel_next"
	RuleNextText  = "next_text"
	RulePageParam = "page_param"
	RuleSelfLoop  = "self_loop"
	// RuleAssumeNext governs pages that yielded nothing and offered no next
	// link: they are followed only while page < AssumeNextUntil.
	RuleAssumeNext = "assume_next"
)

// nextText matches the whole anchor label, so "Nextcare" or "Sales > Retail"
// are not pagination.
var nextText = regexp.MustCompile(`(?i)^(?:next(?:\s+page)?\s*[›»>→]*|[›»>→]+)$`)

// Paginator decides whether a listing chain continues and where.
type Paginator struct {
	PageParam string
	// AssumeNextUntil enables RuleAssumeNext when positive. Zero means a page
	// parameter increment is always attempted.
	AssumeNextUntil int
}

// PageContext describes the listing page just processed.
type PageContext struct {
	URL  string
	Page int
	// Doc may be nil when the page could not be fetched.
	Doc *goquery.Document
	// Found is how many candidates the page yielded.
	Found int
}

type Decision struct {
	Next      string
	Exhausted bool
	Rule      string
}

// Next applies the stop conditions and then the next-page rules in order:
// rel=next, next-looking anchor text, page parameter increment.
func (p Paginator) Next(snap Snapshot, pc PageContext) Decision {
	if snap.Target != Unbounded && snap.Saved+snap.Reserved >= snap.Target {
		return Decision{Exhausted: true, Rule: RuleBudget}
	}
	if pc.Page >= snap.MaxPages {
		return Decision{Exhausted: true, Rule: RuleMaxPages}
	}

	base, err := url.Parse(pc.URL)
	if err != nil {
		return Decision{Exhausted: true, Rule: RuleSelfLoop}
	}

	if next, rule := explicitNext(pc.Doc, base); next != "" {
		return p.guard(pc.URL, next, rule)
	}

	if p.AssumeNextUntil > 0 && pc.Found == 0 && pc.Page >= p.AssumeNextUntil {
		return Decision{Exhausted: true, Rule: RuleAssumeNext}
	}
	param := p.PageParam
	if param == "" {
		param = urlutil.PageParam
	}
	q := base.Query()
	q.Set(param, strconv.Itoa(pc.Page+1))
	u := *base
	u.RawQuery = q.Encode()
	rule := RulePageParam
	if p.AssumeNextUntil > 0 && pc.Found == 0 {
		rule = RuleAssumeNext
	}
	return p.guard(pc.URL, u.String(), rule)
}

func (p Paginator) guard(current, next, rule string) Decision {
	if sameURL(current, next) {
		return Decision{Exhausted: true, Rule: RuleSelfLoop}
	}
	return Decision{Next: next, Rule: rule}
}

func explicitNext(doc *goquery.Document, base *url.URL) (string, string) {
	if doc == nil {
		return "", ""
	}
	if href, ok := doc.Find(`a[rel="next"], link[rel="next"]`).First().Attr("href"); ok {
		if next := urlutil.Resolve(base, href); next != "" {
			return next, RuleRelNext
		}
	}

	var next string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		label := strings.Join(strings.Fields(s.Text()), " ")
		if label == "" {
			label, _ = s.Attr("aria-label")
			label = strings.TrimSpace(label)
		}
		if !nextText.MatchString(label) {
			return true
		}
		href, _ := s.Attr("href")
		next = urlutil.Resolve(base, href)
		return next == ""
	})
	if next != "" {
		return next, RuleNextText
	}
	return "", ""
}

func sameURL(a, b string) bool {
	ua, errA := url.Parse(a)
	ub, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return a == b
	}
	ua.Fragment, ub.Fragment = "", ""
	ua.Host, ub.Host = strings.ToLower(ua.Host), strings.ToLower(ub.Host)
	ua.Path, ub.Path = strings.TrimSuffix(ua.Path, "/"), strings.TrimSuffix(ub.Path, "/")
	ua.RawQuery, ub.RawQuery = ua.Query().Encode(), ub.Query().Encode()
	return ua.String() == ub.String()
}
