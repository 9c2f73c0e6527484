package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CronJobRow mirrors the cron_jobs table. It is a plain data-transfer
// struct: schedule interpretation lives in the scheduler package, which
// owns ScheduleKind and the backoff policy.
type CronJobRow struct {
	ID                string
	Name              string
	ScheduleKind      string
	ScheduleExpr      string
	Payload           string
	Enabled           bool
	NextRunAt         sql.NullTime
	LastRunAt         sql.NullTime
	ConsecutiveErrors int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// UpsertCronJob inserts a job or replaces the existing one with the same
// name, per spec's upsert-by-name semantics.
func (s *Store) UpsertCronJob(ctx context.Context, j *CronJobRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cron_jobs (id, name, schedule_kind, schedule_expr, payload, enabled, next_run_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			schedule_kind = excluded.schedule_kind,
			schedule_expr = excluded.schedule_expr,
			payload = excluded.payload,
			enabled = excluded.enabled,
			next_run_at = excluded.next_run_at,
			updated_at = CURRENT_TIMESTAMP
	`, j.ID, j.Name, j.ScheduleKind, j.ScheduleExpr, j.Payload, j.Enabled, j.NextRunAt)
	if err != nil {
		return fmt.Errorf("store: upserting cron job %s: %w", j.Name, err)
	}
	return nil
}

// DeleteCronJob removes a job by id; cron_runs rows cascade via the
// foreign key.
func (s *Store) DeleteCronJob(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cron_jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: deleting cron job %s: %w", id, err)
	}
	return nil
}

// ListEnabledCronJobs returns every enabled job, for the scheduler tick.
func (s *Store) ListEnabledCronJobs(ctx context.Context) ([]CronJobRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, schedule_kind, schedule_expr, payload, enabled, next_run_at, last_run_at, consecutive_errors, created_at, updated_at
		FROM cron_jobs WHERE enabled = 1
	`)
	if err != nil {
		return nil, fmt.Errorf("store: listing enabled cron jobs: %w", err)
	}
	defer rows.Close()

	var out []CronJobRow
	for rows.Next() {
		var j CronJobRow
		if err := rows.Scan(&j.ID, &j.Name, &j.ScheduleKind, &j.ScheduleExpr, &j.Payload, &j.Enabled, &j.NextRunAt, &j.LastRunAt, &j.ConsecutiveErrors, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scanning cron job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// ListCronJobs returns every job regardless of enabled state.
func (s *Store) ListCronJobs(ctx context.Context) ([]CronJobRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, schedule_kind, schedule_expr, payload, enabled, next_run_at, last_run_at, consecutive_errors, created_at, updated_at
		FROM cron_jobs ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("store: listing cron jobs: %w", err)
	}
	defer rows.Close()

	var out []CronJobRow
	for rows.Next() {
		var j CronJobRow
		if err := rows.Scan(&j.ID, &j.Name, &j.ScheduleKind, &j.ScheduleExpr, &j.Payload, &j.Enabled, &j.NextRunAt, &j.LastRunAt, &j.ConsecutiveErrors, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scanning cron job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// RecordRun updates the job's run bookkeeping and appends a cron_runs row
// atomically, matching spec's "atomic transaction combining the
// update-job and insert-run statements" requirement.
func (s *Store) RecordRun(ctx context.Context, jobID string, run *Run, nextRunAt sql.NullTime, consecutiveErrors int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: beginning run transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE cron_jobs SET last_run_at = ?, next_run_at = ?, consecutive_errors = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, run.StartedAt, nextRunAt, consecutiveErrors, jobID)
	if err != nil {
		return fmt.Errorf("store: updating job after run: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cron_runs (job_id, started_at, finished_at, success, error_text)
		VALUES (?, ?, ?, ?, ?)
	`, jobID, run.StartedAt, run.FinishedAt, run.Success, run.ErrorText)
	if err != nil {
		return fmt.Errorf("store: inserting run: %w", err)
	}

	return tx.Commit()
}

// Run is a completed job execution, mirroring scheduler.Run without an
// import cycle back into the scheduler package.
type Run struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Success    bool
	ErrorText  string
}

// ListRuns returns the most recent runs for a job, newest first, capped
// at limit.
func (s *Store) ListRuns(ctx context.Context, jobID string, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT started_at, finished_at, success, error_text
		FROM cron_runs WHERE job_id = ? ORDER BY started_at DESC LIMIT ?
	`, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: listing runs for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.StartedAt, &finished, &r.Success, &r.ErrorText); err != nil {
			return nil, fmt.Errorf("store: scanning run: %w", err)
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
