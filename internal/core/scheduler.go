package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/baxromumarov/job-harvester/internal/observability"
)

// Retainer deletes stored jobs not refreshed within a window.
type Retainer interface {
	DeleteOldJobs(ctx context.Context, olderThan time.Duration) (int64, error)
}

// RetentionService prunes stale jobs on an interval.
type RetentionService struct {
	store     Retainer
	interval  time.Duration
	retention time.Duration
	logger    *slog.Logger
}

func NewRetentionService(store Retainer, interval, retention time.Duration, logger *slog.Logger) *RetentionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionService{store: store, interval: interval, retention: retention, logger: logger}
}

func (s *RetentionService) Start(ctx context.Context) {
	if s.interval <= 0 || s.retention <= 0 {
		return
	}
	go s.runRetentionPolicy(ctx)
}

func (s *RetentionService) runRetentionPolicy(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.cleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup(ctx)
		}
	}
}

func (s *RetentionService) cleanup(ctx context.Context) int64 {
	count, err := s.store.DeleteOldJobs(ctx, s.retention)
	if err != nil {
		observability.IncError(observability.ClassifyStoreError(err), "retention")
		s.logger.Error("retention cleanup failed", "error", err)
		return 0
	}
	if count > 0 {
		s.logger.Info("retention cleanup removed expired jobs", "deleted", count)
	}
	return count
}
