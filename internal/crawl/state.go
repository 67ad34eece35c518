package crawl

import (
	"math"
	"sync"
)

// Unbounded is the target used when no record limit applies.
const Unbounded = math.MaxInt

// State is the single owner of the run's counters and the global seen set.
// Every method is serialized, so a check and the update it guards happen
// atomically.
type State struct {
	mu       sync.Mutex
	target   int
	maxPages int
	saved    int
	reserved int
	dropped  int
	pages    int
	seen     map[string]struct{}
}

// Snapshot is a consistent copy of the counters.
type Snapshot struct {
	Saved    int
	Reserved int
	Dropped  int
	Target   int
	Pages    int
	MaxPages int
}

// Remaining is the budget not yet saved or reserved.
func (s Snapshot) Remaining() int {
	if s.Target == Unbounded {
		return Unbounded
	}
	return max(0, s.Target-s.Saved-s.Reserved)
}

// NewState returns a state for target records over at most maxPages listing
// pages. Pass Unbounded for no record limit; any other target and maxPages
// have a floor of one.
func NewState(target, maxPages int) *State {
	if target < 1 {
		target = 1
	}
	if maxPages < 1 {
		maxPages = 1
	}
	return &State{target: target, maxPages: maxPages, seen: make(map[string]struct{})}
}

// Reserve claims up to n slots of the remaining budget and returns how many
// were granted. Each granted slot ends in Commit or Release.
func (s *State) Reserve(n int) int {
	if n <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	granted := min(n, s.remainingLocked())
	s.reserved += granted
	return granted
}

// Commit turns one reservation into a saved record.
func (s *State) Commit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reserved > 0 {
		s.reserved--
	}
	s.saved++
}

// Release returns one reservation to the budget.
func (s *State) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reserved > 0 {
		s.reserved--
	}
}

// Drop returns one reservation and counts the record as dropped.
func (s *State) Drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reserved > 0 {
		s.reserved--
	}
	s.dropped++
}

// TryAccept saves one record if the budget allows it.
func (s *State) TryAccept() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remainingLocked() <= 0 {
		return false
	}
	s.saved++
	return true
}

// Unaccept reverses a TryAccept whose record could not be stored.
func (s *State) Unaccept() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved > 0 {
		s.saved--
	}
}

// MarkSeen records url and reports whether it was new for this run.
func (s *State) MarkSeen(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[url]; ok {
		return false
	}
	s.seen[url] = struct{}{}
	return true
}

// VisitPage counts one processed listing page and returns the new total.
func (s *State) VisitPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages++
	return s.pages
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Saved:    s.saved,
		Reserved: s.reserved,
		Dropped:  s.dropped,
		Target:   s.target,
		Pages:    s.pages,
		MaxPages: s.maxPages,
	}
}

// Done reports whether the record target has been reached.
func (s *State) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target != Unbounded && s.saved >= s.target
}

func (s *State) remainingLocked() int {
	if s.target == Unbounded {
		return Unbounded
	}
	return max(0, s.target-s.saved-s.reserved)
}
