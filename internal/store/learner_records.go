package store

import (
	"context"
	"fmt"
	"time"
)

// LearnerRecord is one row of the append-only execution log the learner
// package ranks by similarity when recommending an approach.
type LearnerRecord struct {
	ID          string
	TaskSummary string
	Tokens      string // comma-joined tokens, precomputed for cheap overlap scoring
	ToolsUsed   string // comma-joined tool names
	Outcome     string // "success" | "error" | "max_iterations"
	Lesson      string
	DurationMS  int64
	Iterations  int
	ToolCalls   int
	TokenUsage  int
	CreatedAt   time.Time
}

// InsertLearnerRecord appends one execution record. The log is append-only:
// there is no update or delete path, so past outcomes are never silently
// revised.
func (s *Store) InsertLearnerRecord(ctx context.Context, r *LearnerRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO learner_records (id, task_summary, tokens, tools_used, outcome, lesson, duration_ms, iterations, tool_calls, token_usage)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.TaskSummary, r.Tokens, r.ToolsUsed, r.Outcome, r.Lesson, r.DurationMS, r.Iterations, r.ToolCalls, r.TokenUsage)
	if err != nil {
		return fmt.Errorf("store: inserting learner record: %w", err)
	}
	return nil
}

// AllLearnerRecords returns every record, most recent first, for the
// learner's in-process similarity ranking.
func (s *Store) AllLearnerRecords(ctx context.Context) ([]LearnerRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_summary, tokens, tools_used, outcome, lesson, duration_ms, iterations, tool_calls, token_usage, created_at
		FROM learner_records
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("store: listing learner records: %w", err)
	}
	defer rows.Close()

	var out []LearnerRecord
	for rows.Next() {
		var r LearnerRecord
		if err := rows.Scan(&r.ID, &r.TaskSummary, &r.Tokens, &r.ToolsUsed, &r.Outcome, &r.Lesson, &r.DurationMS, &r.Iterations, &r.ToolCalls, &r.TokenUsage, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scanning learner record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
