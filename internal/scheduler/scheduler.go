// Package scheduler selects catalog rows to probe and computes each
// resource's next_check_at after every probe.
package scheduler

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/opendata-ops/hydracrawl/internal/config"
	"github.com/opendata-ops/hydracrawl/internal/model"
)

// Store is the subset of store.Store the scheduler depends on.
type Store interface {
	SelectBatch(ctx context.Context, limit int) ([]*model.Resource, error)
	SetNextCheck(ctx context.Context, id uuid.UUID, next time.Time) error
}

// Scheduler selects batches of eligible resources and computes their next
// check time, per spec §4.1.
type Scheduler struct {
	store Store
	cfg   *config.Config

	// streaks tracks the consecutive HAS_NOT_CHANGED count per resource for
	// the exponential-backoff branch, and the consecutive-failure count for
	// the short-retry branch. Held in memory: losing it on restart merely
	// resets backoff to the base interval, which is safe.
	notChangedStreak map[uuid.UUID]int
	failureStreak    map[uuid.UUID]int
}

func New(store Store, cfg *config.Config) *Scheduler {
	return &Scheduler{
		store:            store,
		cfg:              cfg,
		notChangedStreak: make(map[uuid.UUID]int),
		failureStreak:    make(map[uuid.UUID]int),
	}
}

// SelectBatch returns up to limit eligible resources to probe next.
func (s *Scheduler) SelectBatch(ctx context.Context, limit int) ([]*model.Resource, error) {
	return s.store.SelectBatch(ctx, limit)
}

// ScheduleNext computes and persists next_check_at for a resource after a
// probe completes, per the formulas in spec §4.1.
func (s *Scheduler) ScheduleNext(ctx context.Context, id uuid.UUID, changed model.Change,
	transportFailure bool, lastModifiedAt *time.Time) (time.Time, error) {
	now := time.Now().UTC()
	var next time.Time

	switch {
	case transportFailure:
		s.notChangedStreak[id] = 0
		n := s.failureStreak[id] + 1
		s.failureStreak[id] = n
		if n > s.cfg.MaxConsecutiveFailures {
			next = now.Add(s.cfg.CheckIntervalBase)
		} else {
			next = now.Add(s.cfg.FailureRetryInterval)
		}

	case lastModifiedAt != nil:
		s.failureStreak[id] = 0
		s.notChangedStreak[id] = 0
		age := now.Sub(*lastModifiedAt)
		if age < 0 {
			age = 0
		}
		interval := time.Duration(float64(age) * 0.5)
		next = now.Add(clamp(interval, s.cfg.CheckIntervalMin, s.cfg.CheckIntervalMax))

	case changed == model.HasNotChanged:
		s.failureStreak[id] = 0
		streak := s.notChangedStreak[id] + 1
		s.notChangedStreak[id] = streak
		interval := time.Duration(float64(s.cfg.CheckIntervalBase) * math.Pow(2, float64(streak)))
		next = now.Add(clamp(interval, s.cfg.CheckIntervalMin, s.cfg.CheckIntervalMax))

	default: // HasChanged or NoGuess: reset backoff, recheck at the base interval
		s.failureStreak[id] = 0
		s.notChangedStreak[id] = 0
		next = now.Add(clamp(s.cfg.CheckIntervalBase, s.cfg.CheckIntervalMin, s.cfg.CheckIntervalMax))
	}

	if err := s.store.SetNextCheck(ctx, id, next); err != nil {
		return time.Time{}, fmt.Errorf("scheduler: set next check for %s: %w", id, err)
	}
	return next, nil
}

func clamp(d, min, max time.Duration) time.Duration {
	if min > 0 && d < min {
		return min
	}
	if max > 0 && d > max {
		return max
	}
	return d
}
