package stores

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RetentionSweeper periodically deletes interaction records older than
// a configured age. It runs on a cron schedule in the background and
// never blocks request handling.
type RetentionSweeper struct {
	store    InteractionStore
	maxAge   time.Duration
	schedule string
	logger   *zap.SugaredLogger
	cron     *cron.Cron
}

// NewRetentionSweeper builds a sweeper. schedule is a standard cron
// expression ("0 3 * * *" = daily at 03:00).
func NewRetentionSweeper(store InteractionStore, maxAge time.Duration, schedule string, logger *zap.SugaredLogger) *RetentionSweeper {
	return &RetentionSweeper{
		store:    store,
		maxAge:   maxAge,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the sweep with the scheduler and begins running it.
func (s *RetentionSweeper) Start() error {
	if s.maxAge <= 0 {
		return fmt.Errorf("retention max age must be positive, got %v", s.maxAge)
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Infof("retention sweeper started: schedule=%q maxAge=%v", s.schedule, s.maxAge)
	return nil
}

// Stop halts the scheduler. Safe to call on a never-started sweeper.
func (s *RetentionSweeper) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *RetentionSweeper) sweep() {
	cutoff := time.Now().UTC().Add(-s.maxAge)
	deleted, err := s.store.DeleteOlderThan(cutoff)
	if err != nil {
		s.logger.Errorf("retention sweep failed: %v", err)
		return
	}
	if deleted > 0 {
		s.logger.Infof("retention sweep removed %d record(s) older than %s", deleted, cutoff.Format(time.RFC3339))
	}
}
