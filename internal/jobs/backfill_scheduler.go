// internal/jobs/backfill_scheduler.go
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/bookshop-backend/internal/services"
)

const backfillRunTimeout = 10 * time.Minute

// Backfiller issues download links for paid orders that are missing them.
type Backfiller interface {
	BackfillMissingEntitlements(ctx context.Context) (*services.BackfillReport, error)
}

// BackfillScheduler runs the entitlement backfill on a cron schedule.
type BackfillScheduler struct {
	backfiller Backfiller
	schedule   string
	cron       *cron.Cron
	logger     *logrus.Entry
	mu         sync.Mutex
	running    bool
}

func NewBackfillScheduler(backfiller Backfiller, schedule string) *BackfillScheduler {
	logger := logrus.WithField("component", "entitlement_backfill")
	return &BackfillScheduler{
		backfiller: backfiller,
		schedule:   schedule,
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger)))),
		logger:     logger,
	}
}

// Start schedules the job. An empty schedule leaves the scheduler disabled.
func (s *BackfillScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("backfill scheduler already running")
	}
	if s.schedule == "" {
		s.logger.Info("Entitlement backfill disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.RunNow); err != nil {
		return fmt.Errorf("invalid backfill schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.running = true

	s.logger.WithField("schedule", s.schedule).Info("Entitlement backfill scheduler started")
	return nil
}

// Stop returns a context that is done once a running job has finished.
func (s *BackfillScheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	s.running = false
	s.logger.Info("Stopping entitlement backfill scheduler")
	return s.cron.Stop()
}

func (s *BackfillScheduler) RunNow() {
	ctx, cancel := context.WithTimeout(context.Background(), backfillRunTimeout)
	defer cancel()

	report, err := s.backfiller.BackfillMissingEntitlements(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Entitlement backfill failed")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"scanned": report.Scanned,
		"issued":  report.Issued,
		"skipped": report.Skipped,
		"failed":  report.Failed,
	}).Debug("Entitlement backfill run completed")
}
