package observability

import (
	"sync"
	"sync/atomic"
)

type StatsSnapshot struct {
	PagesCrawled      uint64            `json:"pages_crawled"`
	RecordsSaved      uint64            `json:"records_saved"`
	RecordsDropped    uint64            `json:"records_dropped"`
	BlockedFetches    uint64            `json:"blocked_fetches"`
	Escalations       uint64            `json:"escalations"`
	ErrorsTotal       uint64            `json:"errors_total"`
	CrawlSecondsAvg   float64           `json:"crawl_seconds_avg"`
	SourceDecisions   map[string]uint64 `json:"source_decisions,omitempty"`
	ErrorsByType      map[string]uint64 `json:"errors_by_type,omitempty"`
	ErrorsByComponent map[string]uint64 `json:"errors_by_component,omitempty"`
}

var (
	pagesCrawled   uint64
	recordsSaved   uint64
	recordsDropped uint64
	blockedFetches uint64
	escalations    uint64
	errorsTotal    uint64

	crawlCount uint64
	crawlNanos uint64

	statsMu           sync.Mutex
	sourceDecisions   = map[string]uint64{}
	errorsByType      = map[string]uint64{}
	errorsByComponent = map[string]uint64{}
)

func IncPagesCrawled(_ string) {
	atomic.AddUint64(&pagesCrawled, 1)
}

func IncRecordsSaved() {
	atomic.AddUint64(&recordsSaved, 1)
}

func IncRecordsDropped() {
	atomic.AddUint64(&recordsDropped, 1)
}

func IncBlocked() {
	atomic.AddUint64(&blockedFetches, 1)
}

func IncEscalation() {
	atomic.AddUint64(&escalations, 1)
}

// IncSourceDecision counts which cascade source served a listing page.
func IncSourceDecision(result string) {
	if result == "" {
		result = "none"
	}
	statsMu.Lock()
	sourceDecisions[result]++
	statsMu.Unlock()
}

func ObserveCrawlDuration(_ string, seconds float64) {
	if seconds <= 0 {
		return
	}
	atomic.AddUint64(&crawlCount, 1)
	atomic.AddUint64(&crawlNanos, uint64(seconds*1e9))
}

func IncError(errType, component string) {
	if errType == "" {
		errType = "unknown"
	}
	if component == "" {
		component = "unknown"
	}
	atomic.AddUint64(&errorsTotal, 1)
	statsMu.Lock()
	errorsByType[errType]++
	errorsByComponent[component]++
	statsMu.Unlock()
}

func Snapshot() StatsSnapshot {
	statsMu.Lock()
	sourceCopy := copyMap(sourceDecisions)
	errorsTypeCopy := copyMap(errorsByType)
	errorsComponentCopy := copyMap(errorsByComponent)
	statsMu.Unlock()

	count := atomic.LoadUint64(&crawlCount)
	avg := 0.0
	if count > 0 {
		avg = float64(atomic.LoadUint64(&crawlNanos)) / float64(count) / 1e9
	}

	return StatsSnapshot{
		PagesCrawled:      atomic.LoadUint64(&pagesCrawled),
		RecordsSaved:      atomic.LoadUint64(&recordsSaved),
		RecordsDropped:    atomic.LoadUint64(&recordsDropped),
		BlockedFetches:    atomic.LoadUint64(&blockedFetches),
		Escalations:       atomic.LoadUint64(&escalations),
		ErrorsTotal:       atomic.LoadUint64(&errorsTotal),
		CrawlSecondsAvg:   avg,
		SourceDecisions:   sourceCopy,
		ErrorsByType:      errorsTypeCopy,
		ErrorsByComponent: errorsComponentCopy,
	}
}

func copyMap(src map[string]uint64) map[string]uint64 {
	if len(src) == 0 {
		return map[string]uint64{}
	}
	out := make(map[string]uint64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
