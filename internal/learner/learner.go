// Package learner keeps an append-only log of agent-loop executions and
// ranks past runs by task similarity to recommend an approach for a new
// one.
package learner

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wtokarzewski/janus-agent/internal/store"
)

// Outcome is the closed set of execution results a record can carry.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeError        Outcome = "error"
	OutcomeMaxIterations Outcome = "max_iterations"
)

// ExecutionRecord is one completed agent-loop run.
type ExecutionRecord struct {
	TaskExcerpt string
	Duration    time.Duration
	Iterations  int
	ToolCalls   int
	TokenUsage  int
	Outcome     Outcome
	Lesson      string
	ToolsUsed   []string
	Timestamp   time.Time
}

// Learner wraps the store's append-only learner_records table.
type Learner struct {
	store *store.Store
}

// New builds a Learner over st. st may be nil, in which case Record is a
// no-op and Similar/Recommend always report no data — mirroring the
// graceful degradation used across the persistence layer when the
// database failed to open.
func New(st *store.Store) *Learner {
	return &Learner{store: st}
}

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// tokenize extracts lowercased alphanumeric tokens of length > 2.
func tokenize(text string) []string {
	words := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := words[:0]
	for _, w := range words {
		if len(w) > 2 {
			out = append(out, w)
		}
	}
	return out
}

// Record appends one execution to the log.
func (l *Learner) Record(ctx context.Context, r ExecutionRecord) error {
	if l.store == nil {
		return nil
	}
	tokens := tokenize(r.TaskExcerpt)
	row := &store.LearnerRecord{
		ID:          uuid.NewString(),
		TaskSummary: r.TaskExcerpt,
		Tokens:      strings.Join(tokens, ","),
		ToolsUsed:   strings.Join(r.ToolsUsed, ","),
		Outcome:     string(r.Outcome),
		Lesson:      r.Lesson,
		DurationMS:  r.Duration.Milliseconds(),
		Iterations:  r.Iterations,
		ToolCalls:   r.ToolCalls,
		TokenUsage:  r.TokenUsage,
	}
	if err := l.store.InsertLearnerRecord(ctx, row); err != nil {
		return fmt.Errorf("learner: recording execution: %w", err)
	}
	return nil
}

// scored pairs a stored record with its token-overlap score against a query.
type scored struct {
	record     store.LearnerRecord
	overlap    int
	createdAt  time.Time
}

// Similar ranks every stored record by token overlap against task,
// descending, breaking ties by recency, and returns the top n.
func (l *Learner) Similar(ctx context.Context, task string, n int) ([]store.LearnerRecord, error) {
	if l.store == nil {
		return nil, nil
	}
	queryTokens := tokenize(task)
	all, err := l.store.AllLearnerRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("learner: listing records: %w", err)
	}
	if len(queryTokens) == 0 || len(all) == 0 {
		return nil, nil
	}

	querySet := make(map[string]bool, len(queryTokens))
	for _, t := range queryTokens {
		querySet[t] = true
	}

	ranked := make([]scored, 0, len(all))
	for _, r := range all {
		overlap := 0
		if r.Tokens != "" {
			for _, t := range strings.Split(r.Tokens, ",") {
				if querySet[t] {
					overlap++
				}
			}
		}
		ranked = append(ranked, scored{record: r, overlap: overlap, createdAt: r.CreatedAt})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].overlap != ranked[j].overlap {
			return ranked[i].overlap > ranked[j].overlap
		}
		return ranked[i].createdAt.After(ranked[j].createdAt)
	})

	if n <= 0 {
		n = 10
	}
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]store.LearnerRecord, len(ranked))
	for i, s := range ranked {
		out[i] = s.record
	}
	return out, nil
}

// Recommendation aggregates the top similar records into guidance for a new
// attempt at a similar task.
type Recommendation struct {
	AvgDurationMS  float64
	AvgIterations  float64
	AvgToolCalls   float64
	SuccessRate    float64
	SampleSize     int
	Warnings       []string
}

// Recommend returns a Recommendation over the top-10 records most similar
// to task, or nil if there are no records or task yields no tokens with no
// records at all to fall back on.
func (l *Learner) Recommend(ctx context.Context, task string) (*Recommendation, error) {
	similar, err := l.Similar(ctx, task, 10)
	if err != nil {
		return nil, err
	}
	if len(similar) == 0 {
		return nil, nil
	}

	var totalDuration, totalIterations, totalToolCalls float64
	successes := 0
	for _, r := range similar {
		totalDuration += float64(r.DurationMS)
		totalIterations += float64(r.Iterations)
		totalToolCalls += float64(r.ToolCalls)
		if r.Outcome == string(OutcomeSuccess) {
			successes++
		}
	}
	n := float64(len(similar))
	rec := &Recommendation{
		AvgDurationMS: totalDuration / n,
		AvgIterations: round1(totalIterations / n),
		AvgToolCalls:  round1(totalToolCalls / n),
		SuccessRate:   round2(float64(successes) / n),
		SampleSize:    len(similar),
	}
	if rec.AvgIterations > 3 {
		rec.Warnings = append(rec.Warnings, "consider breaking into smaller steps")
	}
	if rec.SuccessRate < 0.7 {
		rec.Warnings = append(rec.Warnings, "low success rate — be careful")
	}
	return rec, nil
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
