package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/baxromumarov/job-harvester/internal/record"
)

type Field string

const (
	FieldTitle       Field = "title"
	FieldCompany     Field = "company"
	FieldLocation    Field = "location"
	FieldSalary      Field = "salary"
	FieldJobType     Field = "job_type"
	FieldDatePosted  Field = "date_posted"
	FieldDescription Field = "description_html"
)

type Mode int

const (
	// ModeText takes the whitespace-collapsed text of the element.
	ModeText Mode = iota
	// ModeAttr takes the value of Rule.Attr.
	ModeAttr
	// ModeHTML takes the raw inner HTML.
	ModeHTML
	// ModeTitleSplit takes the text before the first "|".
	ModeTitleSplit
)

// Rule selects one element and reads one value from it. Last picks the final
// match instead of the first.
type Rule struct {
	Selector string
	Attr     string
	Mode     Mode
	Last     bool
}

// FieldRules lists, per field, the selectors tried in order. The first rule
// producing a non-empty value wins.
var FieldRules = map[Field][]Rule{
	FieldTitle: {
		{Selector: "h1"},
		{Selector: `[class*="title"]`},
		{Selector: "title", Mode: ModeTitleSplit},
	},
	FieldCompany: {
		{Selector: `[class*="contact"]`},
		{Selector: `[class*="company"]`},
		{Selector: `[class*="agent"]`},
		{Selector: `[itemprop="hiringOrganization"]`},
	},
	FieldDescription: {
		{Selector: `[class*="description"]`, Mode: ModeHTML},
		{Selector: "article", Mode: ModeHTML},
		{Selector: `[class*="content"]`, Mode: ModeHTML},
	},
	FieldLocation: {
		{Selector: `[class*="location"]`},
		{Selector: `[class*="breadcrumb"] a`, Last: true},
		{Selector: `[itemprop="jobLocation"]`},
	},
	FieldSalary: {
		{Selector: `[class*="salary"]`},
		{Selector: `[class*="price"]`},
		{Selector: `[itemprop="baseSalary"]`},
	},
	FieldJobType: {
		{Selector: `[class*="employment"]`},
		{Selector: `[class*="job-type"]`},
		{Selector: `[itemprop="employmentType"]`},
	},
	FieldDatePosted: {
		{Selector: `[class*="date"]`},
		{Selector: "time[datetime]", Mode: ModeAttr, Attr: "datetime"},
		{Selector: `[itemprop="datePosted"]`, Mode: ModeAttr, Attr: "content"},
	},
}

// ExtractField runs the rules for field against doc and returns the first
// non-empty value, or nil.
func ExtractField(doc *goquery.Document, field Field) *string {
	if doc == nil {
		return nil
	}
	for _, rule := range FieldRules[field] {
		if v, ok := rule.Apply(doc.Selection); ok {
			return v
		}
	}
	return nil
}

func (r Rule) Apply(root *goquery.Selection) (*string, bool) {
	sel := root.Find(r.Selector)
	if sel.Length() == 0 {
		return nil, false
	}
	if r.Last {
		sel = sel.Last()
	} else {
		sel = sel.First()
	}

	switch r.Mode {
	case ModeAttr:
		v, _ := sel.Attr(r.Attr)
		p := record.Str(record.CollapseSpace(v))
		return p, p != nil
	case ModeHTML:
		raw, err := sel.Html()
		if err != nil || strings.TrimSpace(raw) == "" {
			return nil, false
		}
		raw = strings.TrimSpace(raw)
		return &raw, true
	case ModeTitleSplit:
		head, _, _ := strings.Cut(sel.Text(), "|")
		p := record.Str(record.CollapseSpace(head))
		return p, p != nil
	default:
		p := record.Str(record.CollapseSpace(sel.Text()))
		return p, p != nil
	}
}

// fillFromHTML runs the field rules only for fields that are still unknown.
func fillFromHTML(doc *goquery.Document, f record.Fields) record.Fields {
	fill := func(dst **string, field Field) {
		if *dst == nil {
			*dst = ExtractField(doc, field)
		}
	}
	fill(&f.Title, FieldTitle)
	fill(&f.Company, FieldCompany)
	fill(&f.DescriptionHTML, FieldDescription)
	fill(&f.Location, FieldLocation)
	fill(&f.Salary, FieldSalary)
	fill(&f.JobType, FieldJobType)
	fill(&f.DatePosted, FieldDatePosted)
	return f
}
