package scheduler

import (
	"fmt"
	"log/slog"
	"time"
)

// ScheduleKind selects how a Job's ScheduleValue is interpreted.
type ScheduleKind string

const (
	KindAt    ScheduleKind = "at"    // ScheduleValue is an RFC3339 timestamp; fires once.
	KindEvery ScheduleKind = "every" // ScheduleValue is an integer millisecond interval.
	KindCron  ScheduleKind = "cron"  // ScheduleValue is a 5-field cron expression.
)

// LastStatus records the outcome of a job's most recent run.
type LastStatus string

const (
	StatusUnknown LastStatus = ""
	StatusOK      LastStatus = "ok"
	StatusError   LastStatus = "error"
)

// Job is a durable, named schedule entry. Registering a job with a name
// that already exists replaces it (upsert-by-name).
type Job struct {
	ID                string
	Name              string
	ScheduleKind      ScheduleKind
	ScheduleValue     string
	Timezone          string // IANA name; empty means time.Local
	Task              string
	Enabled           bool
	LastRunAt         time.Time
	NextRunAt         time.Time
	LastStatus        LastStatus
	LastError         string
	ConsecutiveErrors int
	CreatedAt         time.Time
}

// BackoffWindows is indexed by min(consecutiveErrors-1, 4).
var BackoffWindows = []time.Duration{
	30 * time.Second,
	60 * time.Second,
	5 * time.Minute,
	15 * time.Minute,
	60 * time.Minute,
}

// BackoffFor returns the minimum interval that must elapse since lastRunAt
// before a job with the given consecutive-error count may fire again.
func BackoffFor(consecutiveErrors int) time.Duration {
	if consecutiveErrors <= 0 {
		return 0
	}
	idx := consecutiveErrors - 1
	if idx >= len(BackoffWindows) {
		idx = len(BackoffWindows) - 1
	}
	return BackoffWindows[idx]
}

// ComputeNextRun derives NextRunAt from the job's schedule kind and value,
// relative to now. For "at" jobs already in the past, it returns the zero
// time (the job never fires and callers should treat that as terminal).
func ComputeNextRun(j *Job, now time.Time) (time.Time, error) {
	loc := time.Local
	if j.Timezone != "" {
		l, err := time.LoadLocation(j.Timezone)
		if err != nil {
			return time.Time{}, fmt.Errorf("scheduler: loading timezone %q: %w", j.Timezone, err)
		}
		loc = l
	}

	switch j.ScheduleKind {
	case KindAt:
		t, err := time.ParseInLocation(time.RFC3339, j.ScheduleValue, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("scheduler: parsing at-schedule %q: %w", j.ScheduleValue, err)
		}
		if t.Before(now) {
			return time.Time{}, nil
		}
		return t, nil

	case KindEvery:
		var ms int64
		if _, err := fmt.Sscanf(j.ScheduleValue, "%d", &ms); err != nil || ms <= 0 {
			return time.Time{}, fmt.Errorf("scheduler: invalid every-schedule %q", j.ScheduleValue)
		}
		base := j.LastRunAt
		if base.IsZero() || now.After(base) {
			base = now
		}
		return base.Add(time.Duration(ms) * time.Millisecond), nil

	case KindCron:
		expr, err := ParseCron(j.ScheduleValue)
		if err != nil {
			slog.Warn("scheduler: invalid cron schedule, job persists with no next run", "job", j.Name, "schedule", j.ScheduleValue, "error", err)
			return time.Time{}, nil
		}
		return expr.Next(now.In(loc)), nil

	default:
		return time.Time{}, fmt.Errorf("scheduler: unknown schedule kind %q", j.ScheduleKind)
	}
}

// Run is one append-only record of a job's firing.
type Run struct {
	ID         int64
	JobID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Success    bool
	ErrorText  string
}
