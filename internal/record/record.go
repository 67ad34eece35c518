package record

import "strings"

// Fields holds the canonical job attributes. A nil field means "unknown",
// which is kept distinct from an empty value.
type Fields struct {
	Title           *string `json:"title"`
	Company         *string `json:"company"`
	Category        *string `json:"category"`
	Location        *string `json:"location"`
	Salary          *string `json:"salary"`
	JobType         *string `json:"job_type"`
	DatePosted      *string `json:"date_posted"`
	DescriptionHTML *string `json:"description_html"`
}

// Merge fills every nil field of f from later. Fields already set on f win.
func (f Fields) Merge(later Fields) Fields {
	f.Title = first(f.Title, later.Title)
	f.Company = first(f.Company, later.Company)
	f.Category = first(f.Category, later.Category)
	f.Location = first(f.Location, later.Location)
	f.Salary = first(f.Salary, later.Salary)
	f.JobType = first(f.JobType, later.JobType)
	f.DatePosted = first(f.DatePosted, later.DatePosted)
	f.DescriptionHTML = first(f.DescriptionHTML, later.DescriptionHTML)
	return f
}

// IsZero reports whether no field is known.
func (f Fields) IsZero() bool {
	return f == Fields{}
}

func first(a, b *string) *string {
	if a != nil {
		return a
	}
	return b
}

// JobRecord is the normalized output row. It is built once by New and
// never mutated afterwards.
type JobRecord struct {
	Fields
	DescriptionText *string `json:"description_text"`
	URL             string  `json:"url"`
}

// New builds a record for url, deriving the plain-text description.
func New(url string, f Fields) JobRecord {
	rec := JobRecord{Fields: f, URL: url}
	if f.DescriptionHTML != nil {
		rec.DescriptionText = Str(PlainText(*f.DescriptionHTML))
	}
	return rec
}

// Valid reports whether the record may be persisted: it needs a non-blank title.
func (r JobRecord) Valid() bool {
	return r.Title != nil && strings.TrimSpace(*r.Title) != ""
}

// LinkRecord is emitted instead of a JobRecord when details are not collected.
type LinkRecord struct {
	URL string `json:"url"`
}

// Str returns a pointer to the trimmed value, or nil when nothing is left.
func Str(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Value dereferences p, returning "" for nil.
func Value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
