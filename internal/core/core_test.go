package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/job-harvester/internal/config"
	"github.com/baxromumarov/job-harvester/internal/crawl"
	"github.com/baxromumarov/job-harvester/internal/record"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// blockingRunner returns once release is closed.
type blockingRunner struct {
	started chan string
	release chan struct{}
	err     error
}

func (b *blockingRunner) Run(_ context.Context, runID string) (crawl.Summary, error) {
	b.started <- runID
	<-b.release
	return crawl.Summary{Saved: 3, Pages: 1}, b.err
}

func waitStatus(t *testing.T, m *RunManager, id string, want RunStatus) Run {
	t.Helper()
	var run Run
	require.Eventually(t, func() bool {
		run, _ = m.Get(id)
		return run.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return run
}

func TestRunManagerSingleActiveRun(t *testing.T) {
	runner := &blockingRunner{started: make(chan string, 1), release: make(chan struct{})}
	m := NewRunManager(context.Background(), runner, quietLogger())

	run, err := m.Start()
	require.NoError(t, err)
	assert.Equal(t, RunRunning, run.Status)
	assert.Equal(t, run.ID, <-runner.started)

	_, err = m.Start()
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(runner.release)
	done := waitStatus(t, m, run.ID, RunSucceeded)
	require.NotNil(t, done.Summary)
	assert.Equal(t, 3, done.Summary.Saved)
	assert.NotNil(t, done.FinishedAt)

	second, err := m.Start()
	require.NoError(t, err)
	assert.NotEqual(t, run.ID, second.ID)
	<-runner.started
	m.Shutdown()

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")
}

func TestRunManagerRecordsFailure(t *testing.T) {
	runner := &blockingRunner{started: make(chan string, 1), release: make(chan struct{}), err: errors.New("boom")}
	close(runner.release)
	m := NewRunManager(context.Background(), runner, quietLogger())

	run, err := m.Start()
	require.NoError(t, err)
	failed := waitStatus(t, m, run.ID, RunFailed)
	assert.Equal(t, "boom", failed.Error)

	_, ok := m.Get("missing")
	assert.False(t, ok)

	m.Shutdown()
	_, err = m.Start()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRunManagerEvictsOldRuns(t *testing.T) {
	runner := RunnerFunc(func(context.Context, string) (crawl.Summary, error) {
		return crawl.Summary{}, nil
	})
	m := NewRunManager(context.Background(), runner, quietLogger())

	var first string
	for i := 0; i < keepRuns+5; i++ {
		var run Run
		require.Eventually(t, func() bool {
			var err error
			run, err = m.Start()
			return err == nil
		}, time.Second, time.Millisecond)
		if i == 0 {
			first = run.ID
		}
	}
	m.Shutdown()

	assert.Len(t, m.List(), keepRuns)
	_, ok := m.Get(first)
	assert.False(t, ok)
}

type fakeRetainer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeRetainer) DeleteOldJobs(_ context.Context, olderThan time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return 4, f.err
}

func TestRetentionCleanup(t *testing.T) {
	store := &fakeRetainer{}
	svc := NewRetentionService(store, time.Hour, 24*time.Hour, quietLogger())
	assert.Equal(t, int64(4), svc.cleanup(context.Background()))

	store.err = errors.New("db down")
	assert.Zero(t, svc.cleanup(context.Background()))
	assert.Equal(t, 2, store.calls)
}

func TestRetentionStartRunsImmediately(t *testing.T) {
	store := &fakeRetainer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	NewRetentionService(store, time.Hour, time.Hour, quietLogger()).Start(ctx)
	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.calls == 1
	}, time.Second, 5*time.Millisecond)
}

func TestIngestionStartsRunAndSkipsWhileBusy(t *testing.T) {
	runner := &blockingRunner{started: make(chan string, 1), release: make(chan struct{})}
	m := NewRunManager(context.Background(), runner, quietLogger())
	svc := NewIngestionService(m, time.Hour, quietLogger())

	svc.scrapeOnce()
	<-runner.started
	svc.scrapeOnce()
	assert.Len(t, m.List(), 1)

	close(runner.release)
	m.Shutdown()
}

type memorySink struct {
	mu   sync.Mutex
	jobs []record.JobRecord
}

func (m *memorySink) SaveJob(_ context.Context, rec record.JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, rec)
	return nil
}

func (m *memorySink) SaveLink(context.Context, record.LinkRecord) error { return nil }

func TestHarvesterRunAgainstLocalSite(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/jobs/driving/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/jobs/driving/" {
			w.Write([]byte(`<html><body>
				<a href="/jobs/driving/1">Driver</a>
				<a href="/jobs/driving/2">Courier</a>
			</body></html>`))
			return
		}
		w.Write([]byte(`<html><head><script type="application/ld+json">
			{"@type":"JobPosting","title":"Heavy Driver","hiringOrganization":{"name":"Acme"}}
		</script></head><body><h1>ignored</h1></body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := config.Default()
	cfg.Search = config.SearchConfig{StartURLs: []string{srv.URL + "/jobs/driving/"}, Category: "Driving"}
	cfg.Limits.MaxPages = 1
	cfg.Fetch.RateInterval = config.DurationFrom(time.Millisecond)
	cfg.Fetch.RateBurst = 10

	sink := &memorySink{}
	sum, err := NewHarvester(cfg, quietLogger()).Run(context.Background(), "run-1", sink)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Saved)
	require.Len(t, sink.jobs, 2)
	for _, job := range sink.jobs {
		assert.Equal(t, "Heavy Driver", record.Value(job.Title))
		assert.Equal(t, "Acme", record.Value(job.Company))
		assert.Equal(t, "Driving", record.Value(job.Category))
		assert.Equal(t, "Dubai", record.Value(job.Location), "location falls back to the region")
	}
}
