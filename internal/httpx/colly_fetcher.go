package httpx

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"
)

// DefaultUserAgents is the rotation used when none is configured.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// CollyFetcher wraps Colly for polite HTML fetching with per-host rate limits
// and retry with backoff on 429 and 5xx.
type CollyFetcher struct {
	userAgents    []string
	timeout       time.Duration
	respectRobots bool
	retries       int
	mu            sync.Mutex
	defaultRate   rate.Limit
	defaultBurst  int
	hosts         map[string]*hostPolicy
}

type hostPolicy struct {
	limiter     *rate.Limiter
	nextAllowed time.Time
	mu          sync.Mutex
}

type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch error (status %d)", e.Status)
	}
	return fmt.Sprintf("fetch error (status %d): %v", e.Status, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type FetcherOptions struct {
	UserAgents    []string
	Timeout       time.Duration
	RespectRobots bool
	// Per and Burst set the default per-host rate.
	Per   time.Duration
	Burst int
}

func NewCollyFetcher(opts FetcherOptions) *CollyFetcher {
	uas := make([]string, 0, len(opts.UserAgents))
	for _, ua := range opts.UserAgents {
		if ua = strings.TrimSpace(ua); ua != "" {
			uas = append(uas, ua)
		}
	}
	if len(uas) == 0 {
		uas = DefaultUserAgents
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Per <= 0 {
		opts.Per = time.Second
	}
	if opts.Burst <= 0 {
		opts.Burst = 2
	}
	return &CollyFetcher{
		userAgents:    uas,
		timeout:       opts.Timeout,
		respectRobots: opts.RespectRobots,
		retries:       3,
		defaultRate:   rate.Every(opts.Per),
		defaultBurst:  opts.Burst,
		hosts:         make(map[string]*hostPolicy),
	}
}

func (f *CollyFetcher) SetHostLimit(host string, per time.Duration, burst int) {
	if host == "" || per <= 0 || burst <= 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := normalizeHost(host)
	policy := f.getOrCreatePolicyLocked(key)
	policy.mu.Lock()
	policy.limiter = rate.NewLimiter(rate.Every(per), burst)
	policy.mu.Unlock()
}

// Get fetches rawURL. Transport errors and error statuses are reported in
// FetchResult.Err as a *FetchError; the body of an error response is kept.
func (f *CollyFetcher) Get(ctx context.Context, rawURL string) FetchResult {
	target, err := normalizeURL(rawURL)
	if err != nil {
		return FetchResult{URL: rawURL, Err: err}
	}
	host := hostKey(target)

	var res FetchResult
	for attempt := 0; attempt < f.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return FetchResult{URL: target, Err: err}
		}
		if err := f.waitForHost(ctx, host); err != nil {
			return FetchResult{URL: target, Err: err}
		}
		res = f.fetchOnce(ctx, target)
		if res.Err == nil {
			return res
		}
		// a challenge page will not go away on retry
		if Assess(res).Verdict == VerdictBlocked {
			return res
		}
		if !shouldBackoff(res.Status) {
			return res
		}
		f.applyBackoff(host, attempt)
	}

	if res.Err == nil {
		res.Err = errors.New("colly fetch failed")
	}
	return res
}

func (f *CollyFetcher) fetchOnce(ctx context.Context, target string) FetchResult {
	c := f.newCollector()

	res := FetchResult{URL: target}
	var reqErr error
	c.OnResponse(func(r *colly.Response) {
		res.Status = r.StatusCode
		res.Body = append([]byte(nil), r.Body...)
		if r.Headers != nil {
			res.Header = r.Headers.Clone()
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			res.Status = r.StatusCode
			if len(r.Body) > 0 {
				res.Body = append([]byte(nil), r.Body...)
			}
		}
		reqErr = err
	})

	collyCtx := colly.NewContext()
	collyCtx.Put("ctx", ctx)

	if err := c.Request(http.MethodGet, target, nil, collyCtx, nil); err != nil {
		res.Err = &FetchError{Status: res.Status, Err: err}
		return res
	}
	if reqErr != nil {
		res.Err = &FetchError{Status: res.Status, Err: reqErr}
		return res
	}
	if res.Status >= http.StatusBadRequest {
		res.Err = &FetchError{Status: res.Status, Err: fmt.Errorf("status %d", res.Status)}
		return res
	}
	if res.Status == 0 {
		res.Status = http.StatusOK
	}
	return res
}

func (f *CollyFetcher) newCollector() *colly.Collector {
	c := colly.NewCollector()
	c.IgnoreRobotsTxt = !f.respectRobots
	c.ParseHTTPErrorResponse = true
	c.SetRequestTimeout(f.timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", f.userAgent())
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")

		ctx := context.Background()
		if v := r.Ctx.GetAny("ctx"); v != nil {
			if reqCtx, ok := v.(context.Context); ok {
				ctx = reqCtx
			}
		}
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	return c
}

func (f *CollyFetcher) userAgent() string {
	return f.userAgents[rand.IntN(len(f.userAgents))]
}

func (f *CollyFetcher) waitForHost(ctx context.Context, host string) error {
	policy := f.hostPolicy(host)
	if err := policy.waitBackoff(ctx); err != nil {
		return err
	}
	return policy.limiter.Wait(ctx)
}

func (f *CollyFetcher) hostPolicy(host string) *hostPolicy {
	key := normalizeHost(host)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getOrCreatePolicyLocked(key)
}

func (f *CollyFetcher) getOrCreatePolicyLocked(host string) *hostPolicy {
	if host == "" {
		host = "default"
	}
	if policy, ok := f.hosts[host]; ok {
		return policy
	}
	policy := &hostPolicy{
		limiter: rate.NewLimiter(f.defaultRate, f.defaultBurst),
	}
	f.hosts[host] = policy
	return policy
}

func (f *CollyFetcher) applyBackoff(host string, attempt int) {
	if attempt < 0 {
		attempt = 0
	}
	policy := f.hostPolicy(host)
	delay := time.Duration(500*(1<<attempt)) * time.Millisecond
	policy.mu.Lock()
	next := time.Now().Add(delay)
	if next.After(policy.nextAllowed) {
		policy.nextAllowed = next
	}
	policy.mu.Unlock()
}

func normalizeURL(rawURL string) (string, error) {
	if rawURL == "" {
		return "", errors.New("empty url")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	return u.String(), nil
}

func normalizeHost(host string) string {
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	return host
}

func hostKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "default"
	}
	return normalizeHost(u.Hostname())
}

func shouldBackoff(status int) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	if status >= 500 && status <= 599 {
		return true
	}
	return false
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *hostPolicy) waitBackoff(ctx context.Context) error {
	for {
		p.mu.Lock()
		next := p.nextAllowed
		p.mu.Unlock()
		now := time.Now()
		if !now.Before(next) {
			return nil
		}
		if err := sleepWithContext(ctx, next.Sub(now)); err != nil {
			return err
		}
	}
}
