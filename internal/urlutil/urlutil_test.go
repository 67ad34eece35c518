package urlutil

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	base, err := url.Parse("https://dubai.dubizzle.com/jobs/driving/?keywords=driver")
	require.NoError(t, err)

	tests := []struct {
		href string
		want string
	}{
		{"/jobs/driving/1001", "https://dubai.dubizzle.com/jobs/driving/1001"},
		{"1002", "https://dubai.dubizzle.com/jobs/driving/1002"},
		{"https://abudhabi.dubizzle.com/jobs/x/5", "https://abudhabi.dubizzle.com/jobs/x/5"},
		{"//dubai.dubizzle.com/jobs/x/6", "https://dubai.dubizzle.com/jobs/x/6"},
		{"mailto:hr@example.com", ""},
		{"tel:+971", ""},
		{"javascript:void(0)", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Resolve(base, tt.href), tt.href)
	}
}

func TestResolveWithoutBase(t *testing.T) {
	assert.Equal(t, "", Resolve(nil, "/jobs/a/1"))
	assert.Equal(t, "https://x.com/jobs/a/1", Resolve(nil, "https://x.com/jobs/a/1"))
}

func TestCanonicalDetail(t *testing.T) {
	a, ok := CanonicalDetail("https://Dubai.Dubizzle.com/jobs/driving/1001?ref=x#top")
	require.True(t, ok)
	b, ok := CanonicalDetail("https://dubai.dubizzle.com/jobs/driving/1001/")
	require.True(t, ok)

	assert.Equal(t, "https://dubai.dubizzle.com/jobs/driving/1001", a)
	assert.Equal(t, a, b)

	for _, raw := range []string{
		"https://dubai.dubizzle.com/jobs/search?page=2",
		"https://dubai.dubizzle.com/jobs/driving/",
		"https://dubai.dubizzle.com/jobs/driving/1001?page=3",
		"https://dubai.dubizzle.com/motors/used-cars/1001",
		"/jobs/driving/1001",
	} {
		_, ok := CanonicalDetail(raw)
		assert.False(t, ok, raw)
	}
}

func TestIsDetailPath(t *testing.T) {
	assert.True(t, IsDetailPath("/jobs/driving/1001"))
	assert.True(t, IsDetailPath("/jobs/1001"))
	assert.True(t, IsDetailPath("/en/jobs/sales/42/"))
	assert.False(t, IsDetailPath("/jobs/driving/"))
	assert.False(t, IsDetailPath("/jobs/driving/abc"))
	assert.False(t, IsDetailPath("/jobs/driving/1001/apply"))
}

func TestIsExcluded(t *testing.T) {
	assert.True(t, IsExcluded("https://x.com/jobs/search?page=2"))
	assert.True(t, IsExcluded("https://x.com/jobs/driving/?page=2"))
	assert.False(t, IsExcluded("https://x.com/jobs/driving/1001?ref=x"))
}

func TestBuildStartURL(t *testing.T) {
	site := Site{Region: "Dubai", Domain: "dubizzle.com"}

	assert.Equal(t, "https://dubai.dubizzle.com/jobs/driving/?keywords=truck+driver",
		BuildStartURL(site, " truck driver ", "Driving"))
	assert.Equal(t, "https://dubai.dubizzle.com/jobs/",
		BuildStartURL(site, "", ""))
	assert.Equal(t, "https://dubai.dubizzle.com/jobs/sales-business-development/",
		BuildStartURL(site, "", "Sales Business Development"))
	assert.Equal(t, "https://dubizzle.com/jobs/", BuildStartURL(Site{}, "", ""))
}

func TestDetailURLFromListing(t *testing.T) {
	base, _ := url.Parse("https://dubai.dubizzle.com/jobs/")

	assert.Equal(t, "https://dubai.dubizzle.com/jobs/driving/77", DetailURLFromListing(base, "driving", "77"))
	assert.Equal(t, "https://dubai.dubizzle.com/jobs/jobs/77", DetailURLFromListing(base, "", "77"))
	assert.Equal(t, "", DetailURLFromListing(base, "driving", " "))
}

func TestSetPage(t *testing.T) {
	next, err := SetPage("https://dubai.dubizzle.com/jobs/?keywords=driver", 2)
	require.NoError(t, err)
	assert.Equal(t, "https://dubai.dubizzle.com/jobs/?keywords=driver&page=2", next)

	next, err = SetPage("https://dubai.dubizzle.com/jobs/?page=2", 3)
	require.NoError(t, err)
	assert.Equal(t, "https://dubai.dubizzle.com/jobs/?page=3", next)
}

func TestDetectPageType(t *testing.T) {
	assert.Equal(t, PageTypeDetail, DetectPageType("https://dubai.dubizzle.com/jobs/driving/1001"))
	assert.Equal(t, PageTypeListing, DetectPageType("https://dubai.dubizzle.com/jobs/driving/"))
	assert.Equal(t, PageTypeOther, DetectPageType("https://dubai.dubizzle.com/motors/"))
	assert.Equal(t, PageTypeOther, DetectPageType("not a url"))
}

func TestHost(t *testing.T) {
	assert.Equal(t, "dubizzle.com", Host("https://WWW.dubizzle.com/jobs/"))
	assert.Equal(t, "dubai.dubizzle.com", Host("https://dubai.dubizzle.com:443/jobs/"))
}
