package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/baxromumarov/job-harvester/internal/content"
	"github.com/baxromumarov/job-harvester/internal/record"
)

type DetailOptions struct {
	// Region is the configured emirate, used when the page names no location.
	Region   string
	Category string
	// Seed holds fields already known from the listing page.
	Seed *record.Fields
}

// ResolveDetail merges what a posting page offers into a record. Earlier
// sources keep their fields: JSON-LD, then HTML rules, then the listing seed,
// then the configured category and region. ok reports whether the record is
// valid.
func ResolveDetail(pageURL string, doc *goquery.Document, opts DetailOptions) (record.JobRecord, bool) {
	f := jsonLDFields(doc)
	f = fillFromHTML(doc, f)
	if opts.Seed != nil {
		f = f.Merge(*opts.Seed)
	}
	f = f.Merge(record.Fields{
		Category: record.Str(opts.Category),
		Location: record.Str(regionName(opts.Region)),
	})

	rec := record.New(pageURL, f)
	return rec, rec.Valid()
}

// jsonLDFields maps the first JobPosting found on the page.
func jsonLDFields(doc *goquery.Document) record.Fields {
	for _, payload := range content.JSONLDPayloads(doc) {
		if postings := content.JobPostings(payload); len(postings) > 0 {
			return content.FieldsFromJobPosting(postings[0])
		}
	}
	return record.Fields{}
}

func regionName(region string) string {
	region = strings.TrimSpace(strings.ReplaceAll(region, "-", " "))
	if region == "" {
		return ""
	}
	return cases.Title(language.English).String(region)
}
