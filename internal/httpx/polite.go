package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"
)

var ErrDisallowed = errors.New("blocked by robots.txt")

// PoliteGate enforces per-host rate limits and robots.txt rules for fetches
// that do not go through Colly, such as browser renders.
type PoliteGate struct {
	client        *http.Client
	ua            string
	respectRobots bool
	per           time.Duration
	burst         int
	limiters      map[string]*rate.Limiter
	robotsCache   map[string]*robotstxt.RobotsData
	mu            sync.Mutex
}

func NewPoliteGate(userAgent string, respectRobots bool, per time.Duration, burst int) *PoliteGate {
	if per <= 0 {
		per = time.Second
	}
	if burst <= 0 {
		burst = 2
	}
	return &PoliteGate{
		client:        &http.Client{Timeout: 15 * time.Second},
		ua:            userAgent,
		respectRobots: respectRobots,
		per:           per,
		burst:         burst,
		limiters:      map[string]*rate.Limiter{},
		robotsCache:   map[string]*robotstxt.RobotsData{},
	}
}

func (p *PoliteGate) limiterFor(host string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.limiters[host]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Every(p.per), p.burst)
	p.limiters[host] = l
	return l
}

func (p *PoliteGate) robotsFor(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	host := u.Hostname()
	p.mu.Lock()
	if data, ok := p.robotsCache[host]; ok {
		p.mu.Unlock()
		return data, nil
	}
	p.mu.Unlock()

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	if p.ua != "" {
		req.Header.Set("User-Agent", p.ua)
	}

	if err := p.limiterFor(host).Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.robotsCache[host] = data
	p.mu.Unlock()
	return data, nil
}

// Wait blocks until rawURL may be fetched. It returns ErrDisallowed when
// robots.txt forbids the path.
func (p *PoliteGate) Wait(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	if !p.Allowed(ctx, u) {
		return fmt.Errorf("%w: %s", ErrDisallowed, u)
	}
	return p.limiterFor(u.Hostname()).Wait(ctx)
}

// Allowed reports whether robots.txt permits fetching u.
func (p *PoliteGate) Allowed(ctx context.Context, u *url.URL) bool {
	if !p.respectRobots {
		return true
	}
	data, err := p.robotsFor(ctx, u)
	if err != nil {
		return true // fail open to avoid blocking everything
	}
	ua := p.ua
	if ua == "" {
		ua = "*"
	}
	group := data.FindGroup(ua)
	if group == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}
