package content

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/job-harvester/internal/record"
)

func mustDecode(t *testing.T, raw string) any {
	t.Helper()
	v, ok := DecodeJSON([]byte(raw))
	require.True(t, ok, "decode %s", raw)
	return v
}

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func ids(items []map[string]any) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		out = append(out, item["id"])
	}
	return out
}

func TestProbeListingsSupportedShapes(t *testing.T) {
	tests := map[string]string{
		"listings":                 `{"listings":[{"id":1},{"id":2}]}`,
		"results":                  `{"results":[{"id":1},{"id":2}]}`,
		"data.listings":            `{"data":{"listings":[{"id":1},{"id":2}]}}`,
		"data.results":             `{"data":{"results":[{"id":1},{"id":2}]}}`,
		"props.pageProps.listings": `{"props":{"pageProps":{"listings":[{"id":1},{"id":2}]}}}`,
		"pageProps.listings":       `{"pageProps":{"listings":[{"id":1},{"id":2}]}}`,
		"hits":                     `{"hits":[{"id":1},{"id":2}]}`,
		"root array":               `[{"id":1},{"id":2}]`,
		"empty probe skipped":      `{"listings":[],"results":[{"id":1},{"id":2}]}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			got := ProbeListings(mustDecode(t, raw))
			assert.Equal(t, []any{float64(1), float64(2)}, ids(got), "source order is kept")
		})
	}
}

func TestProbeListingsUnknownShape(t *testing.T) {
	for _, raw := range []string{
		`{"foo":{"bar":1}}`,
		`{"listings":"nope"}`,
		`{"listings":{"id":1}}`,
		`[1,2,3]`,
		`"text"`,
		`42`,
	} {
		got := ProbeListings(mustDecode(t, raw))
		assert.NotNil(t, got, raw)
		assert.Empty(t, got, raw)
	}
	assert.Empty(t, ProbeListings(nil))
}

func TestDecodeJSONMalformed(t *testing.T) {
	for _, raw := range []string{``, `   `, `{"a":`, `<html>`, `null`} {
		_, ok := DecodeJSON([]byte(raw))
		assert.False(t, ok, raw)
	}
}

func TestListingRefs(t *testing.T) {
	payload := mustDecode(t, `{"results":[
		{"id": 1001, "categorySlug": "driving"},
		{"externalID": "abc", "category": {"slug": "sales"}},
		{"listing_id": "7", "category": "Hospitality"},
		{"absolute_url": "https://dubai.dubizzle.com/jobs/it/9"},
		{"title": "no id"}
	]}`)

	want := []ListingRef{
		{ID: "1001", CategorySlug: "driving"},
		{ID: "abc", CategorySlug: "sales"},
		{ID: "7", CategorySlug: "Hospitality"},
		{URL: "https://dubai.dubizzle.com/jobs/it/9"},
	}
	if diff := cmp.Diff(want, ListingRefs(payload)); diff != "" {
		t.Fatalf("ListingRefs mismatch (-want +got):\n%s", diff)
	}
}

func TestJobPostingsWalksGraphAndArrays(t *testing.T) {
	payload := mustDecode(t, `[
		{"@type": "Organization", "name": "Acme"},
		{"@graph": [
			{"@type": ["Thing", "JobPosting"], "title": "A"},
			{"@type": "BreadcrumbList"}
		]},
		{"type": "JobPosting", "title": "B"}
	]`)

	got := JobPostings(payload)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0]["title"])
	assert.Equal(t, "B", got[1]["title"])
	assert.Empty(t, JobPostings(mustDecode(t, `{"@type":"WebPage"}`)))
}

func TestFieldsFromJobPosting(t *testing.T) {
	posting := mustDecode(t, `{
		"@type": "JobPosting",
		"name": "Heavy  Truck Driver",
		"hiringOrganization": {"@type": "Organization", "name": "Acme"},
		"jobLocation": [{"address": {"addressRegion": "Dubai"}}],
		"baseSalary": {"@type": "MonetaryAmount", "value": {"@type": "QuantitativeValue", "minValue": 3000, "maxValue": 4000}},
		"employmentType": ["FULL_TIME", "CONTRACTOR"],
		"datePosted": "2024-05-01",
		"description": "<p>Drive <b>trucks</b></p>"
	}`).(map[string]any)

	want := record.Fields{
		Title:           record.Str("Heavy Truck Driver"),
		Company:         record.Str("Acme"),
		Location:        record.Str("Dubai"),
		Salary:          record.Str("3000"),
		JobType:         record.Str("FULL_TIME, CONTRACTOR"),
		DatePosted:      record.Str("2024-05-01"),
		DescriptionHTML: record.Str("<p>Drive <b>trucks</b></p>"),
	}
	if diff := cmp.Diff(want, FieldsFromJobPosting(posting)); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestFieldsFromJobPostingMissingStaysNil(t *testing.T) {
	posting := mustDecode(t, `{"@type":"JobPosting","title":"Driver","hiringOrganization":{"name":"Acme"},"description":"  "}`).(map[string]any)

	f := FieldsFromJobPosting(posting)
	assert.Equal(t, "Driver", record.Value(f.Title))
	assert.Equal(t, "Acme", record.Value(f.Company))
	assert.Nil(t, f.Location)
	assert.Nil(t, f.Salary)
	assert.Nil(t, f.JobType)
	assert.Nil(t, f.DatePosted)
	assert.Nil(t, f.DescriptionHTML)
	assert.Nil(t, f.Category)
}

func TestFieldsFromJobPostingScalarSalary(t *testing.T) {
	posting := mustDecode(t, `{"title":"X","baseSalary":{"value":"AED 5,000"},"jobLocation":{"address":{"addressLocality":"Deira","addressRegion":"Dubai"}},"hiringOrganization":"Acme LLC"}`).(map[string]any)

	f := FieldsFromJobPosting(posting)
	assert.Equal(t, "AED 5,000", record.Value(f.Salary))
	assert.Equal(t, "Deira", record.Value(f.Location))
	assert.Equal(t, "Acme LLC", record.Value(f.Company))
}

func TestJSONLDPayloadsSkipsBrokenScripts(t *testing.T) {
	doc := mustDoc(t, `<html><head>
		<script type="application/ld+json">{"@type":"JobPosting","title":"Driver"}</script>
		<script type="application/ld+json">{ broken</script>
		<script type="application/ld+json">[{"@type":"JobPosting","title":"Cook"}]</script>
	</head></html>`)

	payloads := JSONLDPayloads(doc)
	require.Len(t, payloads, 2)
	var titles []any
	for _, p := range payloads {
		for _, jp := range JobPostings(p) {
			titles = append(titles, jp["title"])
		}
	}
	assert.Equal(t, []any{"Driver", "Cook"}, titles)
}

func TestEmbeddedStateNextData(t *testing.T) {
	doc := mustDoc(t, `<html><body>
		<script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{"listings":[{"id":5}]}}}</script>
	</body></html>`)

	state, ok := EmbeddedState(doc)
	require.True(t, ok)
	assert.Equal(t, []any{float64(5)}, ids(ProbeListings(state)))
}

func TestEmbeddedStateWindowAssignment(t *testing.T) {
	doc := mustDoc(t, `<html><body>
		<script>var x = {};</script>
		<script>window.__INITIAL_STATE__ = {"listings":[{"id":8,"note":"brace } in \"string\""}]}; window.other = {};</script>
	</body></html>`)

	state, ok := EmbeddedState(doc)
	require.True(t, ok)
	items := ProbeListings(state)
	require.Len(t, items, 1)
	assert.Equal(t, `brace } in "string"`, items[0]["note"])
}

func TestEmbeddedStateAbsentOrMalformed(t *testing.T) {
	_, ok := EmbeddedState(mustDoc(t, `<html><body><p>plain</p></body></html>`))
	assert.False(t, ok)

	_, ok = EmbeddedState(mustDoc(t, `<html><body><script>window.__APP_STATE__ = {"a": [1, 2</script></body></html>`))
	assert.False(t, ok)

	_, ok = EmbeddedState(nil)
	assert.False(t, ok)
}
