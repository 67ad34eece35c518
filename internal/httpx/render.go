package httpx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/baxromumarov/job-harvester/internal/content"
)

// RenderOptions configures the headless browser fetch.
type RenderOptions struct {
	Timeout            time.Duration
	WaitForSelector    string
	CaptureDelay       time.Duration
	UserAgent          string
	MaxBodyBytes       int64
	DisableHeadless    bool
	ConcurrentSessions int
	// MaxPayloads caps how many intercepted JSON responses are kept per page.
	MaxPayloads int
}

// Rendered is a browser fetch: the final DOM plus every JSON XHR/fetch
// response observed while the page loaded.
type Rendered struct {
	Result   FetchResult
	Payloads []any
}

// ChromeRenderer executes headless Chrome sessions using chromedp.
type ChromeRenderer struct {
	opts      RenderOptions
	semaphore chan struct{}
	logger    *slog.Logger
}

func NewChromeRenderer(opts RenderOptions, logger *slog.Logger) *ChromeRenderer {
	if opts.Timeout <= 0 {
		opts.Timeout = 45 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 * 1024 * 1024
	}
	if opts.ConcurrentSessions <= 0 {
		opts.ConcurrentSessions = 1
	}
	if opts.MaxPayloads <= 0 {
		opts.MaxPayloads = 32
	}
	if opts.CaptureDelay <= 0 {
		opts.CaptureDelay = 1500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChromeRenderer{
		opts:      opts,
		semaphore: make(chan struct{}, opts.ConcurrentSessions),
		logger:    logger,
	}
}

// Render navigates to rawURL, waits for the DOM and the capture delay, and
// returns the outer HTML with the intercepted JSON payloads.
func (r *ChromeRenderer) Render(parentCtx context.Context, rawURL string) (Rendered, error) {
	logger := r.logger.With("url", rawURL, "strategy", StrategyBrowser.String())

	select {
	case r.semaphore <- struct{}{}:
		defer func() { <-r.semaphore }()
	case <-parentCtx.Done():
		return Rendered{}, parentCtx.Err()
	}

	ctx, cancel := context.WithTimeout(parentCtx, r.opts.Timeout)
	defer cancel()

	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !r.opts.DisableHeadless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	)
	if ua := strings.TrimSpace(r.opts.UserAgent); ua != "" {
		execOpts = append(execOpts, chromedp.UserAgent(ua))
	} else {
		execOpts = append(execOpts, chromedp.UserAgent(DefaultUserAgents[0]))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, execOpts...)
	defer allocCancel()

	chromeCtx, chromeCancel := chromedp.NewContext(allocCtx)
	defer chromeCancel()

	capture := newInterceptor(r.opts.MaxPayloads)
	chromedp.ListenTarget(chromeCtx, func(ev any) {
		capture.handle(chromeCtx, ev)
	})

	start := time.Now()
	var html string
	actions := []chromedp.Action{
		network.Enable(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if sel := strings.TrimSpace(r.opts.WaitForSelector); sel != "" {
		actions = append(actions, chromedp.WaitReady(sel, chromedp.ByQuery))
	}
	actions = append(actions,
		chromedp.Sleep(r.opts.CaptureDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	if err := chromedp.Run(chromeCtx, actions...); err != nil {
		logger.Error("chromedp run failed", "error", err)
		return Rendered{}, &FetchError{Err: fmt.Errorf("chromedp run: %w", err)}
	}

	payloads := capture.wait()
	if int64(len(html)) > r.opts.MaxBodyBytes {
		html = html[:r.opts.MaxBodyBytes]
	}

	status := capture.documentStatus()
	logger.Debug("chromedp render complete",
		"latency_ms", time.Since(start).Milliseconds(),
		"status", status,
		"html_bytes", len(html),
		"payloads", len(payloads),
	)
	return Rendered{
		Result:   FetchResult{URL: rawURL, Status: status, Body: []byte(html)},
		Payloads: payloads,
	}, nil
}

// interceptor collects JSON bodies of XHR and fetch responses. Payloads keep
// the order in which their responses finished loading.
type interceptor struct {
	limit int
	body  func(ctx context.Context, id network.RequestID) ([]byte, error)

	mu      sync.Mutex
	wg      sync.WaitGroup
	pending map[network.RequestID]struct{}
	slots   []any
	docSeen bool
	docCode int
	closed  bool
}

func newInterceptor(limit int) *interceptor {
	return &interceptor{
		limit:   limit,
		body:    responseBody,
		pending: make(map[network.RequestID]struct{}),
	}
}

func responseBody(ctx context.Context, id network.RequestID) ([]byte, error) {
	c := chromedp.FromContext(ctx)
	if c == nil || c.Target == nil {
		return nil, errors.New("no browser target")
	}
	return network.GetResponseBody(id).Do(cdp.WithExecutor(ctx, c.Target))
}

func (in *interceptor) handle(ctx context.Context, ev any) {
	switch e := ev.(type) {
	case *network.EventResponseReceived:
		if e.Response == nil {
			return
		}
		in.mu.Lock()
		defer in.mu.Unlock()
		if e.Type == network.ResourceTypeDocument && !in.docSeen {
			in.docSeen = true
			in.docCode = int(e.Response.Status)
			return
		}
		if e.Type != network.ResourceTypeXHR && e.Type != network.ResourceTypeFetch {
			return
		}
		if !strings.Contains(strings.ToLower(e.Response.MimeType), "json") {
			return
		}
		in.pending[e.RequestID] = struct{}{}

	case *network.EventLoadingFinished:
		in.mu.Lock()
		_, ok := in.pending[e.RequestID]
		delete(in.pending, e.RequestID)
		if !ok || in.closed {
			in.mu.Unlock()
			return
		}
		slot := len(in.slots)
		in.slots = append(in.slots, nil)
		in.wg.Add(1)
		in.mu.Unlock()
		// listeners must not block; fetch the body from a separate goroutine
		go func(id network.RequestID) {
			defer in.wg.Done()
			body, err := in.body(ctx, id)
			if err != nil {
				return
			}
			payload, ok := content.DecodeJSON(body)
			if !ok {
				return
			}
			in.mu.Lock()
			in.slots[slot] = payload
			in.mu.Unlock()
		}(e.RequestID)
	}
}

// wait stops collection and returns up to limit payloads in load order.
func (in *interceptor) wait() []any {
	in.mu.Lock()
	in.closed = true
	in.mu.Unlock()
	in.wg.Wait()
	in.mu.Lock()
	defer in.mu.Unlock()
	var out []any
	for _, payload := range in.slots {
		if payload == nil {
			continue
		}
		if len(out) == in.limit {
			break
		}
		out = append(out, payload)
	}
	return out
}

func (in *interceptor) documentStatus() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.docSeen || in.docCode == 0 {
		return 200
	}
	return in.docCode
}
