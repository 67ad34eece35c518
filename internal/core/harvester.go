package core

import (
	"context"
	"log/slog"

	"github.com/baxromumarov/job-harvester/internal/config"
	"github.com/baxromumarov/job-harvester/internal/crawl"
	"github.com/baxromumarov/job-harvester/internal/httpx"
	"github.com/baxromumarov/job-harvester/internal/scraper"
)

// Harvester turns a configuration into crawl runs. The fetchers and the
// strategy selector are shared between runs so a host that keeps blocking
// starts on the browser strategy next time.
type Harvester struct {
	cfg      config.Config
	fetcher  crawl.Fetcher
	renderer crawl.Renderer
	gate     crawl.Gate
	selector *httpx.Selector
	logger   *slog.Logger
}

func NewHarvester(cfg config.Config, logger *slog.Logger) *Harvester {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Harvester{
		cfg:      cfg,
		fetcher:  httpx.NewCollyFetcher(cfg.FetcherOptions()),
		selector: httpx.NewSelector(cfg.Fetch.StickyAfter),
		logger:   logger,
	}
	if cfg.Fetch.Render.Enabled {
		ro := cfg.RenderOptions()
		h.renderer = httpx.NewChromeRenderer(ro, logger)
		h.gate = httpx.NewPoliteGate(ro.UserAgent, cfg.Fetch.RespectRobots, cfg.Fetch.RateInterval.Duration, cfg.Fetch.RateBurst)
	}
	return h
}

// Run executes one crawl into sink.
func (h *Harvester) Run(ctx context.Context, runID string, sink crawl.Sink) (crawl.Summary, error) {
	cfg := h.cfg
	logger := h.logger.With("run_id", runID)
	starts := cfg.StartRequests()
	logger.Info("starting crawl",
		"starts", len(starts),
		"target", cfg.Limits.TargetCount.String(),
		"max_pages", cfg.Limits.MaxPages,
		"collect_details", cfg.Limits.CollectDetails,
	)

	engine := crawl.NewEngine(crawl.Options{
		Starts:         starts,
		CollectDetails: cfg.Limits.CollectDetails,
		Region:         cfg.Site.Region,
		Category:       cfg.Search.Category,
		Concurrency:    cfg.Fetch.Concurrency,
		RenderListings: cfg.Fetch.Render.Enabled && cfg.Fetch.Render.Listings,
	}, crawl.Deps{
		State:     crawl.NewState(cfg.Limits.TargetCount.Limit(), cfg.Limits.MaxPages),
		Paginator: crawl.Paginator{AssumeNextUntil: cfg.Limits.AssumeNextUntil},
		Cascade:   scraper.NewCascade(),
		Fetcher:   h.fetcher,
		Renderer:  h.renderer,
		Gate:      h.gate,
		Selector:  h.selector,
		Sink:      sink,
		Logger:    logger,
	})
	return engine.Run(ctx)
}
