package alerts

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"mercator-hq/saturn/pkg/retention/ledger"
	"mercator-hq/saturn/pkg/retention/storage"
)

func newTestScheduler(schedule string) *Scheduler {
	store := storage.NewMemoryStore()
	led := ledger.New(store, slog.Default())
	sw := NewSweeper(store, led, nil, nil, nil, nil)
	return NewScheduler(sw, schedule)
}

func TestSchedulerEmptyScheduleIsNoop(t *testing.T) {
	s := newTestScheduler("")
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.IsRunning() {
		t.Error("scheduler should not run without a schedule")
	}
}

func TestSchedulerRejectsInvalidCron(t *testing.T) {
	s := newTestScheduler("not a cron line")
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s := newTestScheduler("0 6 * * *")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !s.IsRunning() {
		t.Fatal("scheduler should be running")
	}

	next := s.NextRun()
	if next == nil || !next.After(time.Now()) {
		t.Errorf("next run = %v, want a future time", next)
	}

	s.Stop()
	if s.IsRunning() {
		t.Error("scheduler should stop")
	}
}
