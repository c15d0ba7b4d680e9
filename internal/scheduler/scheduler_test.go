package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/opendata-ops/hydracrawl/internal/config"
	"github.com/opendata-ops/hydracrawl/internal/model"
)

type fakeStore struct {
	next map[uuid.UUID]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{next: make(map[uuid.UUID]time.Time)}
}

func (f *fakeStore) SelectBatch(ctx context.Context, limit int) ([]*model.Resource, error) {
	return nil, nil
}

func (f *fakeStore) SetNextCheck(ctx context.Context, id uuid.UUID, next time.Time) error {
	f.next[id] = next
	return nil
}

func testCfg() *config.Config {
	return &config.Config{
		CheckIntervalBase:      time.Hour,
		CheckIntervalMin:       time.Minute,
		CheckIntervalMax:       30 * 24 * time.Hour,
		FailureRetryInterval:   time.Minute,
		MaxConsecutiveFailures: 3,
	}
}

func TestScheduleNext_transportFailureShortRetry(t *testing.T) {
	fs := newFakeStore()
	s := New(fs, testCfg())
	id := uuid.New()

	before := time.Now().UTC()
	next, err := s.ScheduleNext(context.Background(), id, model.NoGuess, true, nil)
	if err != nil {
		t.Fatalf("ScheduleNext: %v", err)
	}
	if next.Sub(before) > 2*time.Minute {
		t.Fatalf("expected short retry interval, got next-before = %v", next.Sub(before))
	}
}

func TestScheduleNext_transportFailureEscalatesToBase(t *testing.T) {
	fs := newFakeStore()
	s := New(fs, testCfg())
	id := uuid.New()

	var last time.Time
	for i := 0; i < 5; i++ {
		n, err := s.ScheduleNext(context.Background(), id, model.NoGuess, true, nil)
		if err != nil {
			t.Fatalf("ScheduleNext: %v", err)
		}
		last = n
	}
	before := time.Now().UTC()
	if last.Sub(before) < 30*time.Minute {
		t.Fatalf("expected escalation to base interval after repeated failures, got %v", last.Sub(before))
	}
}

func TestScheduleNext_reliableLastModifiedHalvesAge(t *testing.T) {
	fs := newFakeStore()
	cfg := testCfg()
	cfg.CheckIntervalMax = 365 * 24 * time.Hour
	s := New(fs, cfg)
	id := uuid.New()

	lm := time.Now().UTC().Add(-10 * 24 * time.Hour)
	before := time.Now().UTC()
	next, err := s.ScheduleNext(context.Background(), id, model.HasChanged, false, &lm)
	if err != nil {
		t.Fatalf("ScheduleNext: %v", err)
	}
	got := next.Sub(before)
	want := 5 * 24 * time.Hour
	if got < want-time.Hour || got > want+time.Hour {
		t.Fatalf("expected ~half-age interval (%v), got %v", want, got)
	}
}

func TestScheduleNext_notChangedBacksOffExponentially(t *testing.T) {
	fs := newFakeStore()
	cfg := testCfg()
	cfg.CheckIntervalMax = 30 * 24 * time.Hour
	s := New(fs, cfg)
	id := uuid.New()

	var prev time.Duration
	for i := 0; i < 3; i++ {
		before := time.Now().UTC()
		next, err := s.ScheduleNext(context.Background(), id, model.HasNotChanged, false, nil)
		if err != nil {
			t.Fatalf("ScheduleNext: %v", err)
		}
		got := next.Sub(before)
		if i > 0 && got <= prev {
			t.Fatalf("expected increasing interval on repeated HAS_NOT_CHANGED, got %v after %v", got, prev)
		}
		prev = got
	}
}

func TestScheduleNext_changedResetsBackoff(t *testing.T) {
	fs := newFakeStore()
	s := New(fs, testCfg())
	id := uuid.New()

	for i := 0; i < 3; i++ {
		if _, err := s.ScheduleNext(context.Background(), id, model.HasNotChanged, false, nil); err != nil {
			t.Fatalf("ScheduleNext: %v", err)
		}
	}
	if s.notChangedStreak[id] == 0 {
		t.Fatal("expected nonzero streak before reset")
	}

	before := time.Now().UTC()
	next, err := s.ScheduleNext(context.Background(), id, model.HasChanged, false, nil)
	if err != nil {
		t.Fatalf("ScheduleNext: %v", err)
	}
	if s.notChangedStreak[id] != 0 {
		t.Fatalf("expected streak reset after HAS_CHANGED, got %d", s.notChangedStreak[id])
	}
	got := next.Sub(before)
	if got < 59*time.Minute || got > 61*time.Minute {
		t.Fatalf("expected reset to base interval (~1h), got %v", got)
	}
}

func TestClamp(t *testing.T) {
	if got := clamp(30*time.Second, time.Minute, time.Hour); got != time.Minute {
		t.Fatalf("clamp floor = %v", got)
	}
	if got := clamp(2*time.Hour, time.Minute, time.Hour); got != time.Hour {
		t.Fatalf("clamp ceiling = %v", got)
	}
	if got := clamp(30*time.Minute, time.Minute, time.Hour); got != 30*time.Minute {
		t.Fatalf("clamp passthrough = %v", got)
	}
}
