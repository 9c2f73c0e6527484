package scheduler

import (
	"testing"
	"time"
)

func TestComputeNextRunEvery(t *testing.T) {
	now := time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC)
	j := &Job{ScheduleKind: KindEvery, ScheduleValue: "60000", LastRunAt: now}
	next, err := ComputeNextRun(j, now)
	if err != nil {
		t.Fatalf("compute next run: %v", err)
	}
	want := now.Add(60 * time.Second)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestComputeNextRunEveryNoLastRun(t *testing.T) {
	now := time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC)
	j := &Job{ScheduleKind: KindEvery, ScheduleValue: "60000"}
	next, err := ComputeNextRun(j, now)
	if err != nil {
		t.Fatalf("compute next run: %v", err)
	}
	if next.Sub(now) != 60*time.Second {
		t.Fatalf("expected next run 60s from now when no prior run, got delta %v", next.Sub(now))
	}
}

func TestComputeNextRunAtPastReturnsZero(t *testing.T) {
	now := time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC)
	j := &Job{ScheduleKind: KindAt, ScheduleValue: now.Add(-time.Hour).Format(time.RFC3339)}
	next, err := ComputeNextRun(j, now)
	if err != nil {
		t.Fatalf("compute next run: %v", err)
	}
	if !next.IsZero() {
		t.Fatalf("expected zero time for past at-schedule, got %v", next)
	}
}

func TestComputeNextRunAtFuture(t *testing.T) {
	now := time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC)
	target := now.Add(2 * time.Hour)
	j := &Job{ScheduleKind: KindAt, ScheduleValue: target.Format(time.RFC3339)}
	next, err := ComputeNextRun(j, now)
	if err != nil {
		t.Fatalf("compute next run: %v", err)
	}
	if !next.Equal(target) {
		t.Fatalf("next = %v, want %v", next, target)
	}
}

func TestComputeNextRunCron(t *testing.T) {
	now := time.Date(2026, 2, 15, 23, 59, 0, 0, time.UTC)
	j := &Job{ScheduleKind: KindCron, ScheduleValue: "0 0 * * *"}
	next, err := ComputeNextRun(j, now)
	if err != nil {
		t.Fatalf("compute next run: %v", err)
	}
	want := time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestComputeNextRunUnknownKind(t *testing.T) {
	j := &Job{ScheduleKind: "bogus", ScheduleValue: "x"}
	if _, err := ComputeNextRun(j, time.Now()); err == nil {
		t.Fatal("expected error for unknown schedule kind")
	}
}

func TestBackoffForEscalates(t *testing.T) {
	cases := []struct {
		errs int
		want time.Duration
	}{
		{0, 0},
		{1, 30 * time.Second},
		{2, 60 * time.Second},
		{3, 5 * time.Minute},
		{4, 15 * time.Minute},
		{5, 60 * time.Minute},
		{100, 60 * time.Minute}, // clamps at the last window
	}
	for _, tc := range cases {
		got := BackoffFor(tc.errs)
		if got != tc.want {
			t.Errorf("BackoffFor(%d) = %v, want %v", tc.errs, got, tc.want)
		}
	}
}
