package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wtokarzewski/janus-agent/internal/bus"
	"github.com/wtokarzewski/janus-agent/internal/store"
)

// TickInterval is the fixed scan period for the scheduler loop: every 60
// seconds while running, scan all enabled jobs.
const TickInterval = 60 * time.Second

// Scheduler owns the durable job and run tables and fires due jobs onto
// the message bus as system-origin inbound messages.
type Scheduler struct {
	store *store.Store
	bus   *bus.MessageBus
}

// New creates a Scheduler backed by st. If st is nil, the scheduler is
// disabled: Run blocks until ctx is done without ever ticking, and CRUD
// methods return ErrDisabled,
// matching spec's "on persistence-open failure, scheduler disables
// durable scheduling" fallback.
func New(st *store.Store, b *bus.MessageBus) *Scheduler {
	return &Scheduler{store: st, bus: b}
}

// Enabled reports whether the scheduler has a working persistence layer.
func (s *Scheduler) Enabled() bool { return s.store != nil }

// ErrDisabled is returned by CRUD methods when the scheduler has no store.
var ErrDisabled = fmt.Errorf("scheduler: durable scheduling disabled (no persistence layer)")

// UpsertJob validates the schedule, computes NextRunAt, and persists the
// job (insert or replace-by-name).
func (s *Scheduler) UpsertJob(ctx context.Context, j *Job) error {
	if s.store == nil {
		return ErrDisabled
	}
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	next, err := ComputeNextRun(j, time.Now())
	if err != nil {
		return err
	}
	j.NextRunAt = next

	row := &store.CronJobRow{
		ID:            j.ID,
		Name:          j.Name,
		ScheduleKind:  string(j.ScheduleKind),
		ScheduleExpr:  j.ScheduleValue,
		Payload:       j.Task,
		Enabled:       j.Enabled,
		NextRunAt:     sql.NullTime{Time: next, Valid: !next.IsZero()},
	}
	return s.store.UpsertCronJob(ctx, row)
}

// DeleteJob removes a job and, via foreign key cascade, its run history.
func (s *Scheduler) DeleteJob(ctx context.Context, id string) error {
	if s.store == nil {
		return ErrDisabled
	}
	return s.store.DeleteCronJob(ctx, id)
}

// ListJobs returns every persisted job.
func (s *Scheduler) ListJobs(ctx context.Context) ([]Job, error) {
	if s.store == nil {
		return nil, ErrDisabled
	}
	rows, err := s.store.ListCronJobs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Job, 0, len(rows))
	for _, r := range rows {
		out = append(out, jobFromRow(r))
	}
	return out, nil
}

func jobFromRow(r store.CronJobRow) Job {
	j := Job{
		ID:                r.ID,
		Name:              r.Name,
		ScheduleKind:      ScheduleKind(r.ScheduleKind),
		ScheduleValue:     r.ScheduleExpr,
		Task:              r.Payload,
		Enabled:           r.Enabled,
		ConsecutiveErrors: r.ConsecutiveErrors,
		CreatedAt:         r.CreatedAt,
	}
	if r.NextRunAt.Valid {
		j.NextRunAt = r.NextRunAt.Time
	}
	if r.LastRunAt.Valid {
		j.LastRunAt = r.LastRunAt.Time
	}
	return j
}

// Run starts the tick loop and blocks until ctx is done. Stop is achieved
// solely by cancelling ctx and is idempotent.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.store == nil {
		slog.Info("scheduler: disabled, not starting tick loop")
		<-ctx.Done()
		return ctx.Err()
	}

	slog.Info("scheduler: started", "tick", TickInterval)
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler: stopped")
			return nil
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	rows, err := s.store.ListEnabledCronJobs(ctx)
	if err != nil {
		slog.Error("scheduler: listing jobs failed", "error", err)
		return
	}
	for _, row := range rows {
		job := jobFromRow(row)
		if job.NextRunAt.IsZero() || job.NextRunAt.After(now) {
			continue
		}
		if job.ConsecutiveErrors > 0 {
			window := BackoffFor(job.ConsecutiveErrors)
			if !job.LastRunAt.IsZero() && now.Sub(job.LastRunAt) < window {
				continue
			}
		}
		s.fire(ctx, &job, now)
	}
}

func (s *Scheduler) fire(ctx context.Context, job *Job, now time.Time) {
	started := now
	content := fmt.Sprintf("[Cron job: %s]\n\n%s", job.Name, job.Task)

	err := s.bus.PublishInbound(ctx, &bus.InboundMessage{
		ID:        uuid.NewString(),
		Channel:   "system",
		ChatID:    "cron:" + job.ID,
		Content:   content,
		Author:    "scheduler",
		Timestamp: started,
	})

	finished := time.Now()
	run := &store.Run{StartedAt: started, FinishedAt: finished}
	consecutiveErrors := 0
	if err != nil {
		run.Success = false
		run.ErrorText = err.Error()
		consecutiveErrors = job.ConsecutiveErrors + 1
		slog.Error("scheduler: firing job failed", "job", job.Name, "error", err)
	} else {
		run.Success = true
	}

	job.LastRunAt = started
	next, nerr := ComputeNextRun(job, finished)
	if nerr != nil {
		slog.Error("scheduler: computing next run failed", "job", job.Name, "error", nerr)
	}

	nextRunAt := sql.NullTime{Time: next, Valid: !next.IsZero()}
	if err := s.store.RecordRun(ctx, job.ID, run, nextRunAt, consecutiveErrors); err != nil {
		slog.Error("scheduler: recording run failed", "job", job.Name, "error", err)
	}
}
