package urlutil

import (
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
)

const (
	PageTypeListing = "listing"
	PageTypeDetail  = "detail"
	PageTypeOther   = "other"
)

// PageParam is the query parameter the site paginates listings with.
const PageParam = "page"

// detailPath matches /jobs/{slug}/{id} and /jobs/{id} with a numeric id.
var detailPath = regexp.MustCompile(`/jobs/(?:[^/?#]+/)?\d+/?$`)

var skippedSchemes = []string{"mailto:", "tel:", "javascript:", "data:"}

// Site describes the classifieds host, e.g. region "dubai" on "dubizzle.com".
type Site struct {
	Region string
	Domain string
}

// BaseURL returns https://{region}.{domain}.
func (s Site) BaseURL() string {
	domain := strings.Trim(strings.ToLower(s.Domain), "./")
	if domain == "" {
		domain = "dubizzle.com"
	}
	region := strings.Trim(strings.ToLower(s.Region), ". ")
	if region == "" {
		return "https://" + domain
	}
	return "https://" + region + "." + domain
}

// Resolve turns href into an absolute URL against base. It returns "" for
// hrefs that cannot point at a page.
func Resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	lower := strings.ToLower(href)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	if u.Host == "" {
		return ""
	}
	return u.String()
}

// ResolveString is Resolve with a string base.
func ResolveString(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return Resolve(nil, href)
	}
	return Resolve(b, href)
}

// IsDetailPath reports whether p looks like a single posting path.
func IsDetailPath(p string) bool {
	return detailPath.MatchString(p)
}

// IsExcluded reports whether raw is a search or already-paginated URL.
func IsExcluded(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return true
	}
	for _, seg := range splitPath(u.Path) {
		if seg == "search" {
			return true
		}
	}
	return u.Query().Has(PageParam)
}

// CanonicalDetail returns the natural key for a posting URL: lower-cased host,
// no query, no fragment, no trailing slash. ok is false for non-detail URLs.
func CanonicalDetail(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	if IsExcluded(raw) || !IsDetailPath(u.Path) {
		return "", false
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	u.Host = strings.ToLower(u.Host)
	u.Path = normalizePath(u.Path)
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil
	return u.String(), true
}

// DetailURLFromListing builds a posting URL from an API listing id.
func DetailURLFromListing(base *url.URL, categorySlug, id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	slug := Slug(categorySlug)
	if slug == "" {
		slug = "jobs"
	}
	return Resolve(base, "/jobs/"+url.PathEscape(slug)+"/"+url.PathEscape(id))
}

// BuildStartURL builds the first listing page for a keyword/category search.
func BuildStartURL(site Site, keyword, category string) string {
	p := "/jobs/"
	if slug := Slug(category); slug != "" {
		p += slug + "/"
	}
	u, err := url.Parse(site.BaseURL() + p)
	if err != nil {
		return ""
	}
	if kw := strings.TrimSpace(keyword); kw != "" {
		q := u.Query()
		q.Set("keywords", kw)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// SetPage clones raw and sets its page query parameter.
func SetPage(raw string, page int) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(PageParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Slug lower-cases s and replaces whitespace runs with dashes.
func Slug(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "-")
}

// DetectPageType labels a user supplied URL.
func DetectPageType(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return PageTypeOther
	}
	if IsDetailPath(u.Path) {
		return PageTypeDetail
	}
	for _, seg := range splitPath(u.Path) {
		if seg == "jobs" {
			return PageTypeListing
		}
	}
	return PageTypeOther
}

// Host returns the lower-cased host of raw without a www. prefix.
func Host(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	clean := path.Clean(p)
	if clean == "." {
		return "/"
	}
	return clean
}

func splitPath(p string) []string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, "/")
	for i := range parts {
		parts[i] = strings.ToLower(parts[i])
	}
	return parts
}
