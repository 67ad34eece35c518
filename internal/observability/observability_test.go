package observability

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/baxromumarov/job-harvester/internal/httpx"
)

func TestClassifyFetchError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ErrorUnknown},
		{fmt.Errorf("wrapped: %w", httpx.ErrDisallowed), ErrorDisallowed},
		{&httpx.FetchError{Status: 429}, ErrorRateLimit},
		{&httpx.FetchError{Status: 403}, ErrorBlocked},
		{&httpx.FetchError{Status: 502, Err: errors.New("bad gateway")}, ErrorNetwork},
		{context.DeadlineExceeded, ErrorNetwork},
		{errors.New("odd"), ErrorUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyFetchError(tt.err), "%v", tt.err)
	}
}

func TestClassifyAssessment(t *testing.T) {
	assert.Equal(t, ErrorBlocked, ClassifyAssessment(httpx.FetchResult{}, httpx.Assessment{Verdict: httpx.VerdictBlocked}))
	assert.Equal(t, ErrorRateLimit, ClassifyAssessment(httpx.FetchResult{Status: 429}, httpx.Assessment{Verdict: httpx.VerdictFailed}))
	assert.Equal(t, ErrorNetwork, ClassifyAssessment(httpx.FetchResult{Status: 500}, httpx.Assessment{Verdict: httpx.VerdictFailed}))
}

func TestClassifyStoreError(t *testing.T) {
	assert.Equal(t, ErrorStore, ClassifyStoreError(errors.New("connection refused")))
	assert.Equal(t, ErrorParsing, ClassifyStoreError(errors.New("json: marshal failed")))
}

func TestSnapshotCounts(t *testing.T) {
	before := Snapshot()

	IncRecordsSaved()
	IncBlocked()
	IncSourceDecision("")
	IncSourceDecision("json_ld")
	IncError("", "sink")
	ObserveCrawlDuration("engine", 2)

	after := Snapshot()
	assert.Equal(t, before.RecordsSaved+1, after.RecordsSaved)
	assert.Equal(t, before.BlockedFetches+1, after.BlockedFetches)
	assert.Equal(t, before.SourceDecisions["none"]+1, after.SourceDecisions["none"])
	assert.Equal(t, before.SourceDecisions["json_ld"]+1, after.SourceDecisions["json_ld"])
	assert.Equal(t, before.ErrorsByType["unknown"]+1, after.ErrorsByType["unknown"])
	assert.Equal(t, before.ErrorsByComponent["sink"]+1, after.ErrorsByComponent["sink"])
	assert.Greater(t, after.CrawlSecondsAvg, 0.0)
}
