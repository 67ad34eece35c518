package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/baxromumarov/job-harvester/internal/crawl"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HARVEST_CONFIG", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Budget(100), cfg.Limits.TargetCount)
	assert.Equal(t, 20, cfg.Limits.MaxPages)
	assert.True(t, cfg.Limits.CollectDetails)
	assert.Equal(t, 5, cfg.Fetch.Concurrency)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Empty(t, cfg.Logging.Format, "each binary picks its own log format")
}

func TestLoadFileLocalAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "harvest.yaml", `
site:
  region: abudhabi
search:
  keyword: driver
  category: Driving
limits:
  target_count: 50
  max_pages: 0
  collect_details: true
fetch:
  timeout: 10s
  render:
    capture_delay: 3
`)
	writeFile(t, dir, "harvest.local.yaml", `
search:
  keyword: chef
limits:
  target_count: unlimited
  collect_details: false
`)
	t.Setenv("DATABASE_URL", "postgres://db/harvest")
	t.Setenv("PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "abudhabi", cfg.Site.Region)
	assert.Equal(t, "dubizzle.com", cfg.Site.Domain, "defaults survive a partial file")
	assert.Equal(t, "chef", cfg.Search.Keyword)
	assert.Equal(t, "Driving", cfg.Search.Category)
	assert.True(t, cfg.Limits.TargetCount.Unbounded(), "local overlay lifts the limit")
	assert.Equal(t, 1, cfg.Limits.MaxPages)
	assert.False(t, cfg.Limits.CollectDetails, "local overlay can switch details off")
	assert.Equal(t, 10*time.Second, cfg.Fetch.Timeout.Duration)
	assert.Equal(t, 3*time.Second, cfg.Fetch.Render.CaptureDelay.Duration)
	assert.Equal(t, "postgres://db/harvest", cfg.Store.DatabaseURL)
	assert.Equal(t, "9090", cfg.Server.Port)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.yaml", "limits:\n  target: 5\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadLocalFiniteTarget(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "harvest.yaml", "limits:\n  target_count: unlimited\n")
	writeFile(t, dir, "harvest.local.yaml", "limits:\n  target_count: 0\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Budget(1), cfg.Limits.TargetCount)
	assert.Equal(t, 1, cfg.Limits.TargetCount.Limit())
}

func TestBudgetValues(t *testing.T) {
	for in, want := range map[string]Budget{
		"25":        25,
		"2.7":       2,
		"unlimited": Unlimited,
		".inf":      Unlimited,
		"+Inf":      Unlimited,
		"-3":        1,
		"0":         1,
		"-inf":      1,
	} {
		var b Budget
		require.NoError(t, b.Set(in), in)
		assert.Equal(t, want, b, in)
	}

	var b Budget
	assert.Error(t, b.Set("lots"))
	assert.Error(t, b.Set(""))
	assert.Error(t, b.Set("nan"))

	assert.Equal(t, crawl.Unbounded, Unlimited.Limit())
	assert.Equal(t, 1, Budget(0).Limit(), "unset budget collects one record")
	assert.Equal(t, 7, Budget(7).Limit())

	var wrapped struct {
		N Budget `yaml:"n"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("n: unlimited"), &wrapped))
	assert.True(t, wrapped.N.Unbounded())
	assert.Equal(t, "unlimited", wrapped.N.String())

	require.NoError(t, yaml.Unmarshal([]byte("n: 0"), &wrapped))
	assert.False(t, wrapped.N.Unbounded(), "zero is a finite target")
	assert.Equal(t, "1", wrapped.N.String())
}

func TestStartRequests(t *testing.T) {
	cfg := Default()
	cfg.Search = SearchConfig{Keyword: "driver", Category: "Driving"}

	reqs := cfg.StartRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, crawl.PageRequest{
		URL:        "https://dubai.dubizzle.com/jobs/driving/?keywords=driver",
		Label:      crawl.LabelListing,
		PageNumber: 1,
	}, reqs[0])

	cfg.Search = SearchConfig{
		StartURL:  "https://dubai.dubizzle.com/jobs/",
		StartURLs: []string{"https://dubai.dubizzle.com/jobs/driving/123", " "},
	}
	reqs = cfg.StartRequests()
	require.Len(t, reqs, 2)
	assert.Equal(t, crawl.LabelListing, reqs[0].Label)
	assert.Equal(t, crawl.LabelDetail, reqs[1].Label)
}

func TestValidateRejectsForeignStartURL(t *testing.T) {
	cfg := Default()
	cfg.Search.StartURLs = []string{"https://example.com/about"}
	assert.Error(t, cfg.Validate())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggingConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "url", "https://x")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"url":"https://x"`)

	buf.Reset()
	NewLogger(LoggingConfig{Level: "debug", Format: "text"}, &buf).Debug("console")
	assert.Contains(t, buf.String(), "console")

	buf.Reset()
	NewLogger(LoggingConfig{}, &buf).Info("unset")
	assert.Contains(t, buf.String(), `"msg":"unset"`, "unset format logs JSON")
}
