package dashboard

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Refresher runs one bulk refresh.
type Refresher interface {
	RefreshAll(ctx context.Context) (*RunSummary, error)
}

// Scheduler triggers a bulk refresh once a day at a fixed UTC hour.
type Scheduler struct {
	refresher Refresher
	hourUTC   int
	now       func() time.Time
	after     func(d time.Duration) <-chan time.Time
}

type SchedulerOption func(*Scheduler)

func WithSchedulerClock(now func() time.Time, after func(time.Duration) <-chan time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.now = now
		s.after = after
	}
}

func NewScheduler(refresher Refresher, hourUTC int, opts ...SchedulerOption) *Scheduler {
	if hourUTC < 0 || hourUTC > 23 {
		hourUTC = 2
	}
	s := &Scheduler{
		refresher: refresher,
		hourUTC:   hourUTC,
		now:       time.Now,
		after:     time.After,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextRun returns the first scheduled time strictly after now.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run blocks until ctx is cancelled, refreshing at each scheduled time.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		next := s.NextRun(s.now())
		log.Info().Time("next_run", next).Msg("dashboard refresh scheduled")
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler stopped")
			return
		case <-s.after(next.Sub(s.now())):
		}
		if _, err := s.refresher.RefreshAll(ctx); err != nil {
			log.Err(err).Msg("scheduled refresh failed")
		}
	}
}
