package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/baxromumarov/job-harvester/internal/crawl"
)

var (
	ErrRunInProgress = errors.New("a crawl is already running")
	ErrClosed        = errors.New("run manager is shut down")
)

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

type Run struct {
	ID         string         `json:"id"`
	Status     RunStatus      `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Summary    *crawl.Summary `json:"summary,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Runner executes one crawl.
type Runner interface {
	Run(ctx context.Context, runID string) (crawl.Summary, error)
}

type RunnerFunc func(ctx context.Context, runID string) (crawl.Summary, error)

func (f RunnerFunc) Run(ctx context.Context, runID string) (crawl.Summary, error) {
	return f(ctx, runID)
}

const keepRuns = 50

// RunManager starts crawls in the background, one at a time, and remembers
// the most recent ones.
type RunManager struct {
	base   context.Context
	runner Runner
	logger *slog.Logger

	mu     sync.Mutex
	runs   map[string]*Run
	order  []string
	active string
	closed bool
	wg     sync.WaitGroup
}

// NewRunManager runs crawls under base, so they outlive the request that
// started them but stop with the process.
func NewRunManager(base context.Context, runner Runner, logger *slog.Logger) *RunManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunManager{
		base:   base,
		runner: runner,
		logger: logger,
		runs:   make(map[string]*Run),
	}
}

func (m *RunManager) Start() (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Run{}, ErrClosed
	}
	if m.active != "" {
		return Run{}, ErrRunInProgress
	}

	run := &Run{ID: uuid.NewString(), Status: RunRunning, StartedAt: time.Now().UTC()}
	m.runs[run.ID] = run
	m.order = append(m.order, run.ID)
	m.active = run.ID
	m.evictLocked()

	m.wg.Add(1)
	go m.execute(run.ID)
	return *run, nil
}

func (m *RunManager) execute(id string) {
	defer m.wg.Done()
	start := time.Now()
	summary, err := m.runner.Run(m.base, id)

	m.mu.Lock()
	defer m.mu.Unlock()
	run := m.runs[id]
	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.Summary = &summary
	if err != nil {
		run.Status = RunFailed
		run.Error = err.Error()
		m.logger.Error("crawl run failed", "run_id", id, "error", err)
	} else {
		run.Status = RunSucceeded
		m.logger.Info("crawl run finished", "run_id", id, "saved", summary.Saved, "duration_ms", time.Since(start).Milliseconds())
	}
	m.active = ""
}

// evictLocked forgets the oldest finished runs beyond keepRuns.
func (m *RunManager) evictLocked() {
	for len(m.order) > keepRuns {
		oldest := m.order[0]
		if oldest == m.active {
			return
		}
		delete(m.runs, oldest)
		m.order = m.order[1:]
	}
}

func (m *RunManager) Get(id string) (Run, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return Run{}, false
	}
	return *run, true
}

// List returns the remembered runs, newest first.
func (m *RunManager) List() []Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Run, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		out = append(out, *m.runs[m.order[i]])
	}
	return out
}

// Shutdown refuses new runs and waits for the active one to return.
func (m *RunManager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.wg.Wait()
}
