package content

import "strings"

// listingProbes are the container paths searched for a listings array, in
// order. The empty path stands for the payload itself. Support a new response
// shape by appending here.
var listingProbes = []string{
	"listings",
	"results",
	"data.listings",
	"data.results",
	"props.pageProps.listings",
	"pageProps.listings",
	"hits",
	"",
}

// ListingRef is the part of an API listing item needed to schedule its detail page.
type ListingRef struct {
	ID           string
	CategorySlug string
	URL          string
}

// ProbeListings returns the object items of the first probe path that resolves
// to a non-empty array. Unknown shapes yield an empty slice.
func ProbeListings(payload any) []map[string]any {
	for _, path := range listingProbes {
		v, ok := Lookup(payload, path)
		if !ok {
			continue
		}
		arr, ok := v.([]any)
		if !ok || len(arr) == 0 {
			continue
		}
		if items := objects(arr); len(items) > 0 {
			return items
		}
	}
	return []map[string]any{}
}

// ListingRefs maps the probed items to refs, skipping items that carry neither
// an id nor a URL.
func ListingRefs(payload any) []ListingRef {
	items := ProbeListings(payload)
	refs := make([]ListingRef, 0, len(items))
	for _, item := range items {
		ref := ListingRef{}
		ref.ID, _ = firstScalar(item, "id", "externalID", "listing_id")
		ref.URL, _ = firstScalar(item, "absolute_url", "url")
		ref.CategorySlug = categorySlug(item)
		if ref.ID == "" && ref.URL == "" {
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}

func categorySlug(item map[string]any) string {
	if s, ok := firstScalar(item, "categorySlug", "category_slug"); ok {
		return s
	}
	switch c := item["category"].(type) {
	case string:
		return strings.TrimSpace(c)
	case map[string]any:
		s, _ := firstScalar(c, "slug", "name")
		return s
	}
	return ""
}
