// Package mailer runs background delivery of queued email notifications.
package mailer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/buildwise/backend/internal/model"
)

const (
	defaultConcurrency = 5
	defaultBatchSize   = 50
)

// Deliverer lists and delivers pending notifications.
type Deliverer interface {
	ListPending(ctx context.Context, limit int) ([]*model.EmailNotification, error)
	Deliver(ctx context.Context, n *model.EmailNotification) error
}

// CycleResult summarizes one RunOnce pass.
type CycleResult struct {
	Pending int
	Skipped int
	Sent    int
	Failed  int
}

// Scheduler periodically delivers pending notifications with bounded concurrency.
type Scheduler struct {
	deliverer      Deliverer
	logger         *slog.Logger
	maxConcurrency int
	batchSize      int
	now            func() time.Time
}

// NewScheduler creates a Scheduler. Non-positive concurrency or batch size use the defaults (5 and 50).
func NewScheduler(deliverer Deliverer, logger *slog.Logger, maxConcurrency, batchSize int) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = defaultConcurrency
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Scheduler{
		deliverer:      deliverer,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		batchSize:      batchSize,
		now:            time.Now,
	}
}

// Start runs a pass immediately and then on every tick until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("email scheduler started",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	s.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("email scheduler stopped")
			return
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

func (s *Scheduler) runLogged(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("email delivery cycle failed",
			slog.String("error", err.Error()),
		)
	}
}

// RunOnce delivers every pending notification whose backoff has elapsed.
func (s *Scheduler) RunOnce(ctx context.Context) (*CycleResult, error) {
	start := time.Now()

	pending, err := s.deliverer.ListPending(ctx, s.batchSize)
	if err != nil {
		return nil, err
	}

	result := &CycleResult{Pending: len(pending)}
	if len(pending) == 0 {
		s.logger.Debug("no pending email notifications")
		return result, nil
	}

	now := s.now()
	var sent, failed atomic.Int64
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	var cycleErr error
dispatch:
	for _, n := range pending {
		if !IsDue(n, now) {
			result.Skipped++
			continue
		}

		if cycleErr = ctx.Err(); cycleErr != nil {
			break
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			cycleErr = ctx.Err()
			break dispatch
		}

		wg.Add(1)
		go func(n *model.EmailNotification) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := s.deliverer.Deliver(ctx, n); err != nil {
				failed.Add(1)
				s.logger.Warn("email delivery attempt failed",
					slog.String("notification_id", n.ID),
					slog.Int("attempt", n.RetryCount+1),
					slog.String("error", err.Error()),
				)
				return
			}
			sent.Add(1)
		}(n)
	}

	wg.Wait()
	result.Sent = int(sent.Load())
	result.Failed = int(failed.Load())
	if cycleErr != nil {
		return result, cycleErr
	}

	s.logger.Info("email delivery cycle complete",
		slog.Int("pending", result.Pending),
		slog.Int("skipped", result.Skipped),
		slog.Int("sent", result.Sent),
		slog.Int("failed", result.Failed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return result, nil
}
