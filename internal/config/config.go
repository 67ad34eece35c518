package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/baxromumarov/job-harvester/internal/crawl"
	"github.com/baxromumarov/job-harvester/internal/httpx"
	"github.com/baxromumarov/job-harvester/internal/urlutil"
)

// Config captures everything a harvest run or the server needs.
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Search  SearchConfig  `yaml:"search"`
	Limits  LimitsConfig  `yaml:"limits"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
	Server  ServerConfig  `yaml:"server"`
}

type SiteConfig struct {
	Region string `yaml:"region"`
	Domain string `yaml:"domain"`
}

// SearchConfig selects what to crawl. Explicit start URLs win over the
// keyword/category search.
type SearchConfig struct {
	Keyword   string   `yaml:"keyword"`
	Category  string   `yaml:"category"`
	StartURL  string   `yaml:"start_url"`
	StartURLs []string `yaml:"start_urls"`
}

type LimitsConfig struct {
	TargetCount    Budget `yaml:"target_count"`
	MaxPages       int    `yaml:"max_pages"`
	CollectDetails bool   `yaml:"collect_details"`
	// AssumeNextUntil keeps paging past empty listing pages up to this page
	// number. Zero disables it.
	AssumeNextUntil int `yaml:"assume_next_until"`
}

type FetchConfig struct {
	UserAgents    []string     `yaml:"user_agents"`
	Timeout       Duration     `yaml:"timeout"`
	Concurrency   int          `yaml:"concurrency"`
	RespectRobots bool         `yaml:"respect_robots"`
	RateInterval  Duration     `yaml:"rate_interval"`
	RateBurst     int          `yaml:"rate_burst"`
	StickyAfter   int          `yaml:"sticky_after"`
	Render        RenderConfig `yaml:"render"`
}

// RenderConfig controls the headless browser strategy.
type RenderConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Listings     bool     `yaml:"listings"`
	Timeout      Duration `yaml:"timeout"`
	WaitSelector string   `yaml:"wait_selector"`
	CaptureDelay Duration `yaml:"capture_delay"`
	Headful      bool     `yaml:"headful"`
	Sessions     int      `yaml:"sessions"`
	MaxPayloads  int      `yaml:"max_payloads"`
}

type StoreConfig struct {
	DatabaseURL string `yaml:"database_url"`
	OutputPath  string `yaml:"output_path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	// Format is "text" or "json". Empty leaves the choice to the binary.
	Format string `yaml:"format"`
}

type ServerConfig struct {
	Port            string   `yaml:"port"`
	CrawlInterval   Duration `yaml:"crawl_interval"`
	CleanupInterval Duration `yaml:"cleanup_interval"`
	Retention       Duration `yaml:"retention"`
}

// Default returns the configuration used when no file overrides a value.
func Default() Config {
	return Config{
		Site: SiteConfig{Region: "dubai", Domain: "dubizzle.com"},
		Limits: LimitsConfig{
			TargetCount:    100,
			MaxPages:       20,
			CollectDetails: true,
		},
		Fetch: FetchConfig{
			UserAgents:   httpx.DefaultUserAgents,
			Timeout:      DurationFrom(30 * time.Second),
			Concurrency:  5,
			RateInterval: DurationFrom(time.Second),
			RateBurst:    2,
			StickyAfter:  2,
			Render: RenderConfig{
				Timeout:      DurationFrom(60 * time.Second),
				WaitSelector: "body",
				CaptureDelay: DurationFrom(2 * time.Second),
				Sessions:     2,
				MaxPayloads:  50,
			},
		},
		Logging: LoggingConfig{Level: "info"},
		Server: ServerConfig{
			Port:            "8080",
			CrawlInterval:   DurationFrom(6 * time.Hour),
			CleanupInterval: DurationFrom(24 * time.Hour),
			Retention:       DurationFrom(30 * 24 * time.Hour),
		},
	}
}

// Load reads path on top of the defaults, decodes an optional
// <name>.local.<ext> over the result and applies environment overrides.
// Each file only touches the keys it names, so an overlay can set false.
// An empty path falls back to HARVEST_CONFIG; no file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("HARVEST_CONFIG")
	}
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
		local := localPath(path)
		switch err := decodeFile(local, &cfg); {
		case err == nil:
			slog.Info("merged config with local overrides", "local", local)
		case !errors.Is(err, os.ErrNotExist):
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config failed: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config %s failed: %w", path, err)
	}
	return nil
}

func localPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Store.DatabaseURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
}

// Validate clamps values with a floor and rejects the ones that cannot work.
func (c *Config) Validate() error {
	if c.Limits.TargetCount == 0 {
		c.Limits.TargetCount = 1
	}
	if c.Limits.MaxPages < 1 {
		c.Limits.MaxPages = 1
	}
	if c.Fetch.Concurrency < 1 {
		c.Fetch.Concurrency = 1
	}
	if c.Limits.AssumeNextUntil < 0 {
		return fmt.Errorf("assume_next_until must not be negative")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	for _, raw := range c.Search.allStartURLs() {
		if urlutil.DetectPageType(raw) == urlutil.PageTypeOther {
			return fmt.Errorf("start url %q is not a jobs listing or posting", raw)
		}
	}
	return nil
}

func (s SearchConfig) allStartURLs() []string {
	var out []string
	if u := strings.TrimSpace(s.StartURL); u != "" {
		out = append(out, u)
	}
	for _, u := range s.StartURLs {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// StartRequests returns the labelled start requests. Without explicit start
// URLs one listing request is built from the site and search terms.
func (c Config) StartRequests() []crawl.PageRequest {
	urls := c.Search.allStartURLs()
	if len(urls) == 0 {
		site := urlutil.Site{Region: c.Site.Region, Domain: c.Site.Domain}
		urls = []string{urlutil.BuildStartURL(site, c.Search.Keyword, c.Search.Category)}
	}

	reqs := make([]crawl.PageRequest, 0, len(urls))
	for _, u := range urls {
		label := crawl.LabelListing
		if urlutil.DetectPageType(u) == urlutil.PageTypeDetail {
			label = crawl.LabelDetail
		}
		reqs = append(reqs, crawl.PageRequest{URL: u, Label: label, PageNumber: 1})
	}
	return reqs
}

func (c Config) FetcherOptions() httpx.FetcherOptions {
	return httpx.FetcherOptions{
		UserAgents:    c.Fetch.UserAgents,
		Timeout:       c.Fetch.Timeout.Duration,
		RespectRobots: c.Fetch.RespectRobots,
		Per:           c.Fetch.RateInterval.Duration,
		Burst:         c.Fetch.RateBurst,
	}
}

func (c Config) RenderOptions() httpx.RenderOptions {
	ua := ""
	if len(c.Fetch.UserAgents) > 0 {
		ua = c.Fetch.UserAgents[0]
	}
	return httpx.RenderOptions{
		Timeout:            c.Fetch.Render.Timeout.Duration,
		WaitForSelector:    c.Fetch.Render.WaitSelector,
		CaptureDelay:       c.Fetch.Render.CaptureDelay.Duration,
		UserAgent:          ua,
		DisableHeadless:    c.Fetch.Render.Headful,
		ConcurrentSessions: c.Fetch.Render.Sessions,
		MaxPayloads:        c.Fetch.Render.MaxPayloads,
	}
}
