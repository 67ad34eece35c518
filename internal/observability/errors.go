package observability

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/baxromumarov/job-harvester/internal/httpx"
)

const (
	ErrorNetwork    = "network"
	ErrorParsing    = "parsing"
	ErrorBlocked    = "blocked"
	ErrorRateLimit  = "rate_limit"
	ErrorDisallowed = "robots"
	ErrorStore      = "store"
	ErrorUnknown    = "unknown"
)

func ClassifyFetchError(err error) string {
	if err == nil {
		return ErrorUnknown
	}
	if errors.Is(err, httpx.ErrDisallowed) {
		return ErrorDisallowed
	}
	var fe *httpx.FetchError
	if errors.As(err, &fe) {
		switch {
		case fe.Status == http.StatusTooManyRequests:
			return ErrorRateLimit
		case fe.Status == http.StatusForbidden:
			return ErrorBlocked
		default:
			return ErrorNetwork
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorNetwork
	}
	return ErrorUnknown
}

// ClassifyAssessment maps a non-OK fetch verdict to an error kind.
func ClassifyAssessment(res httpx.FetchResult, a httpx.Assessment) string {
	switch a.Verdict {
	case httpx.VerdictBlocked:
		return ErrorBlocked
	case httpx.VerdictFailed:
		if res.Err != nil {
			return ClassifyFetchError(res.Err)
		}
		if res.Status == http.StatusTooManyRequests {
			return ErrorRateLimit
		}
		return ErrorNetwork
	}
	return ErrorUnknown
}

func ClassifyStoreError(err error) string {
	if err == nil {
		return ErrorUnknown
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "marshal") || strings.Contains(msg, "invalid character") {
		return ErrorParsing
	}
	return ErrorStore
}
