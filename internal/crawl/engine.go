package crawl

import (
	"bytes"
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/baxromumarov/job-harvester/internal/httpx"
	"github.com/baxromumarov/job-harvester/internal/observability"
	"github.com/baxromumarov/job-harvester/internal/record"
	"github.com/baxromumarov/job-harvester/internal/scraper"
	"github.com/baxromumarov/job-harvester/internal/urlutil"
)

type Label string

const (
	LabelListing Label = "listing"
	LabelDetail  Label = "detail"
)

// PageRequest is one unit of fetch work. PageNumber is the listing page a
// detail request came from and only feeds logging.
type PageRequest struct {
	URL        string
	Label      Label
	PageNumber int
	Seed       *record.Fields
}

// Fetcher performs the lightweight fetch.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) httpx.FetchResult
}

// Renderer performs the browser fetch.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (httpx.Rendered, error)
}

// Gate throttles fetches that bypass the Fetcher's own politeness.
type Gate interface {
	Wait(ctx context.Context, rawURL string) error
}

// Sink receives the run's output.
type Sink interface {
	SaveJob(ctx context.Context, rec record.JobRecord) error
	SaveLink(ctx context.Context, link record.LinkRecord) error
}

type Options struct {
	Starts         []PageRequest
	CollectDetails bool
	Region         string
	Category       string
	Concurrency    int
	// RenderListings fetches every listing page with the Renderer so that
	// intercepted API responses are available to the cascade.
	RenderListings bool
}

type Deps struct {
	State     *State
	Paginator Paginator
	Cascade   *scraper.Cascade
	Fetcher   Fetcher
	Renderer  Renderer
	Gate      Gate
	Selector  *httpx.Selector
	Sink      Sink
	Logger    *slog.Logger
}

type Summary struct {
	Saved   int `json:"saved"`
	Dropped int `json:"dropped"`
	Pages   int `json:"pages"`
	Blocked int `json:"blocked"`
	Failed  int `json:"failed"`
}

type Engine struct {
	opts Options
	Deps

	blocked atomic.Int64
	failed  atomic.Int64
}

func NewEngine(opts Options, deps Deps) *Engine {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 5
	}
	if deps.State == nil {
		deps.State = NewState(Unbounded, 1)
	}
	if deps.Cascade == nil {
		deps.Cascade = scraper.NewCascade()
	}
	if deps.Selector == nil {
		deps.Selector = httpx.NewSelector(0)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Engine{opts: opts, Deps: deps}
}

// Run walks every start request until its chain is exhausted or the record
// budget is spent. Fetch and extraction problems are logged and skipped; only
// context cancellation ends a run early.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	for _, req := range e.opts.Starts {
		if ctx.Err() != nil {
			break
		}
		if e.budgetSpent() {
			break
		}
		switch req.Label {
		case LabelDetail:
			e.runDetailStart(ctx, req)
		default:
			e.runChain(ctx, req)
		}
	}

	snap := e.State.Snapshot()
	sum := Summary{
		Saved:   snap.Saved,
		Dropped: snap.Dropped,
		Pages:   snap.Pages,
		Blocked: int(e.blocked.Load()),
		Failed:  int(e.failed.Load()),
	}
	observability.ObserveCrawlDuration("engine", time.Since(start).Seconds())
	e.Logger.Info("scraping complete",
		"saved", sum.Saved,
		"dropped", sum.Dropped,
		"pages", sum.Pages,
		"blocked", sum.Blocked,
		"failed", sum.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return sum, ctx.Err()
}

func (e *Engine) budgetSpent() bool {
	return e.State.Snapshot().Remaining() == 0
}

func (e *Engine) runChain(ctx context.Context, req PageRequest) {
	if req.PageNumber < 1 {
		req.PageNumber = 1
	}
	req.Label = LabelListing

	for ctx.Err() == nil && !e.budgetSpent() {
		logger := e.Logger.With("url", req.URL, "page", req.PageNumber)
		e.State.VisitPage()

		doc, payloads, ok := e.fetch(ctx, req)
		found := 0
		if ok {
			observability.IncPagesCrawled("listing")
			res := e.Cascade.ResolveListing(req.URL, req.PageNumber, scraper.SourcesFromPage(doc, payloads))
			observability.IncSourceDecision(string(res.Source))
			found = len(res.Candidates)
			if found > 0 {
				logger.Info("listing page resolved", "source", string(res.Source), "candidates", found)
				e.schedule(ctx, req, res.Candidates)
			}
		}

		dec := e.Paginator.Next(e.State.Snapshot(), PageContext{
			URL:   req.URL,
			Page:  req.PageNumber,
			Doc:   doc,
			Found: found,
		})
		if dec.Exhausted {
			logger.Info("pagination exhausted", "rule", dec.Rule)
			return
		}
		logger.Debug("next listing page", "rule", dec.Rule, "next", dec.Next)
		req = PageRequest{URL: dec.Next, Label: LabelListing, PageNumber: req.PageNumber + 1}
	}
}

// schedule de-duplicates candidates across the run and either saves them as
// links or fetches their detail pages within the remaining budget.
func (e *Engine) schedule(ctx context.Context, from PageRequest, cands []scraper.Candidate) {
	if !e.opts.CollectDetails {
		e.saveLinks(ctx, cands)
		return
	}

	granted := e.State.Reserve(len(cands))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)

	used := 0
	for _, cand := range cands {
		if used == granted {
			break
		}
		if !e.State.MarkSeen(cand.URL) {
			continue
		}
		used++
		req := PageRequest{URL: cand.URL, Label: LabelDetail, PageNumber: from.PageNumber, Seed: cand.Seed}
		g.Go(func() error {
			e.processDetail(gctx, req)
			return nil
		})
	}
	for i := used; i < granted; i++ {
		e.State.Release()
	}
	_ = g.Wait()
}

func (e *Engine) saveLinks(ctx context.Context, cands []scraper.Candidate) {
	for _, cand := range cands {
		if !e.State.MarkSeen(cand.URL) {
			continue
		}
		if !e.State.TryAccept() {
			return
		}
		if err := e.Sink.SaveLink(ctx, record.LinkRecord{URL: cand.URL}); err != nil {
			e.State.Unaccept()
			observability.IncError(observability.ClassifyStoreError(err), "sink")
			e.Logger.Error("save link failed", "url", cand.URL, "error", err)
			continue
		}
		observability.IncRecordsSaved()
	}
}

func (e *Engine) runDetailStart(ctx context.Context, req PageRequest) {
	key, ok := urlutil.CanonicalDetail(req.URL)
	if !ok {
		key = req.URL
	}
	if !e.opts.CollectDetails {
		e.saveLinks(ctx, []scraper.Candidate{{URL: key}})
		return
	}
	if !e.State.MarkSeen(key) || e.State.Reserve(1) == 0 {
		return
	}
	req.URL = key
	req.Label = LabelDetail
	e.processDetail(ctx, req)
}

// processDetail settles exactly one reservation.
func (e *Engine) processDetail(ctx context.Context, req PageRequest) {
	logger := e.Logger.With("url", req.URL, "page", req.PageNumber)

	doc, _, ok := e.fetch(ctx, req)
	if !ok {
		e.State.Release()
		return
	}
	observability.IncPagesCrawled("detail")

	rec, valid := scraper.ResolveDetail(req.URL, doc, scraper.DetailOptions{
		Region:   e.opts.Region,
		Category: e.opts.Category,
		Seed:     req.Seed,
	})
	if !valid {
		e.State.Drop()
		observability.IncRecordsDropped()
		logger.Warn("dropping record without title")
		return
	}
	if err := e.Sink.SaveJob(ctx, rec); err != nil {
		e.State.Release()
		observability.IncError(observability.ClassifyStoreError(err), "sink")
		logger.Error("save job failed", "error", err)
		return
	}
	e.State.Commit()
	observability.IncRecordsSaved()
	logger.Debug("job saved", "title", record.Value(rec.Title))
}

// fetch returns the parsed page plus any intercepted payloads. It starts with
// the strategy the selector picks for the host and escalates blocked light
// fetches to the renderer.
func (e *Engine) fetch(ctx context.Context, req PageRequest) (*goquery.Document, []any, bool) {
	logger := e.Logger.With("url", req.URL, "page", req.PageNumber, "label", string(req.Label))
	host := urlutil.Host(req.URL)

	strategy := e.Selector.Initial(host)
	if req.Label == LabelListing && e.opts.RenderListings {
		strategy = httpx.StrategyBrowser
	}
	if e.Renderer == nil {
		strategy = httpx.StrategyLight
	}
	if e.Fetcher == nil {
		strategy = httpx.StrategyBrowser
	}

	if strategy == httpx.StrategyLight {
		res := e.Fetcher.Get(ctx, req.URL)
		a := httpx.Assess(res)
		switch a.Verdict {
		case httpx.VerdictOK:
			return e.parse(logger, a.Body, nil)
		case httpx.VerdictFailed:
			e.failed.Add(1)
			observability.IncError(observability.ClassifyAssessment(res, a), string(req.Label))
			logger.Warn("fetch failed, skipping", "reason", a.Reason)
			return nil, nil, false
		}

		e.blocked.Add(1)
		observability.IncBlocked()
		escalate := e.Selector.Record(host, httpx.StrategyLight, a)
		if !escalate || e.Renderer == nil {
			logger.Warn("blocked, no heavier strategy available", "reason", a.Reason)
			return nil, nil, false
		}
		observability.IncEscalation()
		logger.Info("blocked, escalating to browser", "reason", a.Reason)
	}

	if e.Renderer == nil {
		return nil, nil, false
	}
	if e.Gate != nil {
		if err := e.Gate.Wait(ctx, req.URL); err != nil {
			e.failed.Add(1)
			observability.IncError(observability.ClassifyFetchError(err), string(req.Label))
			logger.Warn("render skipped", "error", err)
			return nil, nil, false
		}
	}
	rendered, err := e.Renderer.Render(ctx, req.URL)
	if err != nil {
		e.failed.Add(1)
		observability.IncError(observability.ClassifyFetchError(err), string(req.Label))
		logger.Warn("render failed, skipping", "error", err)
		return nil, nil, false
	}
	a := httpx.Assess(rendered.Result)
	switch a.Verdict {
	case httpx.VerdictOK:
		return e.parse(logger, a.Body, rendered.Payloads)
	case httpx.VerdictBlocked:
		e.blocked.Add(1)
		observability.IncBlocked()
		e.Selector.Record(host, httpx.StrategyBrowser, a)
		logger.Warn("blocked in browser, skipping", "reason", a.Reason)
	default:
		e.failed.Add(1)
		observability.IncError(observability.ClassifyAssessment(rendered.Result, a), string(req.Label))
		logger.Warn("render failed, skipping", "reason", a.Reason)
	}
	return nil, nil, false
}

func (e *Engine) parse(logger *slog.Logger, body []byte, payloads []any) (*goquery.Document, []any, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		observability.IncError(observability.ErrorParsing, "parse")
		logger.Warn("html parse failed", "error", err)
		if len(payloads) == 0 {
			return nil, nil, false
		}
	}
	return doc, payloads, true
}
