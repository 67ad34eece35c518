package httpx

import (
	"bytes"
	"fmt"
	"net/http"
	"sync"
)

// FetchResult is what one fetch attempt produced. Body is kept for error
// statuses too, since challenge pages usually arrive as 403s.
type FetchResult struct {
	URL    string
	Status int
	Body   []byte
	Header http.Header
	Err    error
}

type Verdict int

const (
	VerdictOK Verdict = iota
	VerdictBlocked
	VerdictFailed
)

func (v Verdict) String() string {
	switch v {
	case VerdictOK:
		return "ok"
	case VerdictBlocked:
		return "blocked"
	default:
		return "failed"
	}
}

// Assessment classifies a FetchResult. Body is set only for VerdictOK and
// Reason only for VerdictFailed and VerdictBlocked.
type Assessment struct {
	Verdict Verdict
	Body    []byte
	Reason  string
}

type challengeMarker struct {
	name  string
	parts [][]byte
}

// challengeMarkers match, case-insensitively, when every part occurs in the body.
var challengeMarkers = []challengeMarker{
	{name: "incapsula", parts: [][]byte{[]byte("_incapsula_resource")}},
	{name: "incapsula", parts: [][]byte{[]byte("incapsula incident")}},
	{name: "cloudflare", parts: [][]byte{[]byte("cf-chl-")}},
	{name: "cloudflare", parts: [][]byte{[]byte("challenge-platform")}},
	{name: "captcha", parts: [][]byte{[]byte("g-recaptcha"), []byte("verify you are human")}},
}

// Assess decides whether a fetch result can be parsed, was blocked by an
// anti-bot challenge, or failed. Blocked is checked before the status code.
func Assess(res FetchResult) Assessment {
	if marker, ok := challenge(res); ok {
		return Assessment{Verdict: VerdictBlocked, Reason: marker}
	}
	if res.Err != nil {
		return Assessment{Verdict: VerdictFailed, Reason: res.Err.Error()}
	}
	if res.Status >= http.StatusBadRequest {
		return Assessment{Verdict: VerdictFailed, Reason: fmt.Sprintf("status %d", res.Status)}
	}
	if len(bytes.TrimSpace(res.Body)) == 0 {
		return Assessment{Verdict: VerdictFailed, Reason: "empty body"}
	}
	return Assessment{Verdict: VerdictOK, Body: res.Body}
}

func challenge(res FetchResult) (string, bool) {
	lower := bytes.ToLower(res.Body)
	for _, m := range challengeMarkers {
		hit := true
		for _, part := range m.parts {
			if !bytes.Contains(lower, part) {
				hit = false
				break
			}
		}
		if hit {
			return m.name, true
		}
	}
	// The Incapsula header rides on every proxied response; only an error
	// status alongside it means a challenge.
	if res.Header != nil && res.Header.Get("X-Iinfo") != "" && res.Status >= http.StatusBadRequest {
		return "incapsula", true
	}
	return "", false
}

type Strategy int

const (
	// StrategyLight is a plain HTTP fetch.
	StrategyLight Strategy = iota
	// StrategyBrowser is a fully rendered fetch.
	StrategyBrowser
)

func (s Strategy) String() string {
	if s == StrategyBrowser {
		return "browser"
	}
	return "light"
}

// Selector remembers, per host, how often the light strategy was blocked.
// Once a host reaches StickyAfter blocks it starts on the browser strategy.
type Selector struct {
	StickyAfter int

	mu      sync.Mutex
	blocked map[string]int
}

func NewSelector(stickyAfter int) *Selector {
	return &Selector{StickyAfter: stickyAfter, blocked: make(map[string]int)}
}

// Initial returns the strategy to try first for host.
func (s *Selector) Initial(host string) Strategy {
	if s.StickyAfter <= 0 {
		return StrategyLight
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blocked[normalizeHost(host)] >= s.StickyAfter {
		return StrategyBrowser
	}
	return StrategyLight
}

// Record notes the outcome of a fetch made with used and reports whether the
// caller should retry with the browser strategy. Failed results never
// escalate; they follow the fetcher's own retry policy.
func (s *Selector) Record(host string, used Strategy, a Assessment) bool {
	if a.Verdict != VerdictBlocked || used == StrategyBrowser {
		return false
	}
	s.mu.Lock()
	if s.blocked == nil {
		s.blocked = make(map[string]int)
	}
	s.blocked[normalizeHost(host)]++
	s.mu.Unlock()
	return true
}
