package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionSweeper runs the retention policy on a schedule.
type RetentionSweeper struct {
	store    Store
	policy   RetentionPolicy
	schedule string
	cron     *cron.Cron
	onResult func(deleted int64, err error)
}

// NewRetentionSweeper creates a sweeper applying policy against store on
// the given cron schedule (e.g. "0 3 * * *" for 03:00 daily). onResult
// is invoked after every sweep and may be nil.
func NewRetentionSweeper(store Store, policy RetentionPolicy, schedule string, onResult func(deleted int64, err error)) (*RetentionSweeper, error) {
	if schedule == "" {
		schedule = "0 3 * * *"
	}
	if policy.RetentionDays <= 0 {
		return nil, fmt.Errorf("retention days must be positive, got %d", policy.RetentionDays)
	}
	return &RetentionSweeper{
		store:    store,
		policy:   policy,
		schedule: schedule,
		onResult: onResult,
	}, nil
}

// Start schedules the sweep. It returns once the job is registered.
func (s *RetentionSweeper) Start() error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		s.SweepOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule retention sweep: %w", err)
	}
	s.cron.Start()
	return nil
}

// SweepOnce applies the retention policy immediately.
func (s *RetentionSweeper) SweepOnce(ctx context.Context) (int64, error) {
	deleted, err := s.store.Cleanup(ctx, s.policy)
	if s.onResult != nil {
		s.onResult(deleted, err)
	}
	return deleted, err
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *RetentionSweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}
