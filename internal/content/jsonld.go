package content

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/baxromumarov/job-harvester/internal/record"
)

// JSONLDPayloads decodes every application/ld+json script in doc. Scripts that
// fail to parse are skipped.
func JSONLDPayloads(doc *goquery.Document) []any {
	if doc == nil {
		return nil
	}
	var out []any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		if payload, ok := DecodeJSON([]byte(s.Text())); ok {
			out = append(out, payload)
		}
	})
	return out
}

// JobPostings collects JobPosting objects from a JSON-LD payload, descending
// into arrays and @graph containers.
func JobPostings(payload any) []map[string]any {
	var out []map[string]any
	collectJobPostings(payload, &out)
	return out
}

func collectJobPostings(payload any, out *[]map[string]any) {
	switch t := payload.(type) {
	case map[string]any:
		if isJobPostingType(t["@type"]) || isJobPostingType(t["type"]) {
			*out = append(*out, t)
			return
		}
		if graph, ok := t["@graph"].([]any); ok {
			for _, item := range graph {
				collectJobPostings(item, out)
			}
		}
	case []any:
		for _, item := range t {
			collectJobPostings(item, out)
		}
	}
}

func isJobPostingType(t any) bool {
	switch v := t.(type) {
	case string:
		return v == "JobPosting"
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == "JobPosting" {
				return true
			}
		}
	}
	return false
}

// FieldsFromJobPosting maps a schema.org JobPosting onto record fields.
// Anything absent stays nil.
func FieldsFromJobPosting(m map[string]any) record.Fields {
	var f record.Fields
	if s, ok := firstScalar(m, "title", "name"); ok {
		f.Title = record.Str(record.CollapseSpace(s))
	}
	f.Company = record.Str(organizationName(m["hiringOrganization"]))
	f.Location = record.Str(locality(m["jobLocation"]))
	f.Salary = record.Str(salary(m["baseSalary"]))
	f.JobType = record.Str(employmentType(m["employmentType"]))
	if s, ok := scalar(m["datePosted"]); ok {
		f.DatePosted = record.Str(s)
	}
	if desc, ok := m["description"].(string); ok && strings.TrimSpace(desc) != "" {
		f.DescriptionHTML = &desc
	}
	return f
}

func organizationName(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		s, _ := firstScalar(t, "name")
		return s
	case []any:
		for _, item := range t {
			if s := organizationName(item); s != "" {
				return s
			}
		}
	}
	return ""
}

func locality(v any) string {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s := locality(item); s != "" {
				return s
			}
		}
	case map[string]any:
		addr, ok := t["address"]
		if !ok {
			addr = t
		}
		if s, ok := addr.(string); ok {
			return s
		}
		if am, ok := asObject(addr); ok {
			s, _ := firstScalar(am, "addressLocality", "addressRegion")
			return s
		}
	}
	return ""
}

func salary(v any) string {
	switch t := v.(type) {
	case string, float64:
		s, _ := scalar(t)
		return s
	case map[string]any:
		if s, ok := scalar(t["value"]); ok {
			return s
		}
		if qv, ok := asObject(t["value"]); ok {
			if s, ok := firstScalar(qv, "value", "minValue"); ok {
				return s
			}
		}
		s, _ := scalar(t["minValue"])
		return s
	}
	return ""
}

func employmentType(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := scalar(item); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}
