package core

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// IngestionService triggers a crawl on a fixed interval.
type IngestionService struct {
	runs     *RunManager
	interval time.Duration
	logger   *slog.Logger
}

func NewIngestionService(runs *RunManager, interval time.Duration, logger *slog.Logger) *IngestionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestionService{runs: runs, interval: interval, logger: logger}
}

// Start launches the loop. A non-positive interval disables scheduled crawls.
func (s *IngestionService) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("scheduled crawls disabled")
		return
	}
	go s.scrapeLoop(ctx)
}

func (s *IngestionService) scrapeLoop(ctx context.Context) {
	s.scrapeOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scrapeOnce()
		}
	}
}

func (s *IngestionService) scrapeOnce() {
	run, err := s.runs.Start()
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.logger.Info("scheduled crawl skipped, previous run still active")
	case err != nil:
		s.logger.Warn("scheduled crawl not started", "error", err)
	default:
		s.logger.Info("scheduled crawl started", "run_id", run.ID)
	}
}
