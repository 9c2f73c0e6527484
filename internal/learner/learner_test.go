package learner

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/wtokarzewski/janus-agent/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "learner.db"))
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestRecordThenSimilarFindsOverlappingTask(t *testing.T) {
	st := newTestStore(t)
	l := New(st)
	ctx := context.Background()

	if err := l.Record(ctx, ExecutionRecord{
		TaskExcerpt: "deploy the staging cluster to kubernetes",
		Duration:    2 * time.Second,
		Iterations:  2,
		ToolCalls:   3,
		Outcome:     OutcomeSuccess,
	}); err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if err := l.Record(ctx, ExecutionRecord{
		TaskExcerpt: "write a haiku about autumn leaves",
		Duration:    time.Second,
		Iterations:  1,
		Outcome:     OutcomeSuccess,
	}); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	similar, err := l.Similar(ctx, "deploy the production cluster to kubernetes", 10)
	if err != nil {
		t.Fatalf("Similar() error: %v", err)
	}
	if len(similar) == 0 || similar[0].TaskSummary != "deploy the staging cluster to kubernetes" {
		t.Fatalf("expected the kubernetes task to rank first, got %+v", similar)
	}
}

func TestSimilarBreaksTiesByRecency(t *testing.T) {
	st := newTestStore(t)
	l := New(st)
	ctx := context.Background()

	if err := l.Record(ctx, ExecutionRecord{TaskExcerpt: "review pull request", Outcome: OutcomeSuccess}); err != nil {
		t.Fatal(err)
	}
	if err := l.Record(ctx, ExecutionRecord{TaskExcerpt: "review pull request again", Outcome: OutcomeSuccess}); err != nil {
		t.Fatal(err)
	}

	similar, err := l.Similar(ctx, "please review pull request", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(similar) != 2 {
		t.Fatalf("expected both records to match, got %d", len(similar))
	}
	if similar[0].TaskSummary != "review pull request again" {
		t.Errorf("expected the more recent record to rank first on a tie, got %q", similar[0].TaskSummary)
	}
}

func TestRecommendReturnsNilWithNoRecords(t *testing.T) {
	st := newTestStore(t)
	l := New(st)

	rec, err := l.Recommend(context.Background(), "do anything")
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Errorf("expected nil recommendation with no records, got %+v", rec)
	}
}

func TestRecommendAggregatesAcrossSimilarRecords(t *testing.T) {
	st := newTestStore(t)
	l := New(st)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		outcome := OutcomeSuccess
		if i == 2 {
			outcome = OutcomeError
		}
		if err := l.Record(ctx, ExecutionRecord{
			TaskExcerpt: "migrate the postgres database schema",
			Duration:    time.Duration(i+1) * time.Second,
			Iterations:  4,
			ToolCalls:   2,
			Outcome:     outcome,
		}); err != nil {
			t.Fatal(err)
		}
	}

	rec, err := l.Recommend(ctx, "migrate the postgres database schema again")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil {
		t.Fatal("expected a recommendation")
	}
	if rec.SampleSize != 3 {
		t.Errorf("expected sample size 3, got %d", rec.SampleSize)
	}
	if rec.AvgIterations != 4.0 {
		t.Errorf("expected avg iterations 4.0, got %v", rec.AvgIterations)
	}
	wantSuccessRate := round2(2.0 / 3.0)
	if rec.SuccessRate != wantSuccessRate {
		t.Errorf("expected success rate %v, got %v", wantSuccessRate, rec.SuccessRate)
	}

	foundBreakDown, foundLowSuccess := false, false
	for _, w := range rec.Warnings {
		if w == "consider breaking into smaller steps" {
			foundBreakDown = true
		}
		if w == "low success rate — be careful" {
			foundLowSuccess = true
		}
	}
	if !foundBreakDown {
		t.Errorf("expected a break-down-into-smaller-steps warning for avg iterations > 3, got %v", rec.Warnings)
	}
	if !foundLowSuccess {
		t.Errorf("expected a low-success-rate warning, got %v", rec.Warnings)
	}
}

func TestRecordNoOpWithNilStore(t *testing.T) {
	l := New(nil)
	if err := l.Record(context.Background(), ExecutionRecord{TaskExcerpt: "anything"}); err != nil {
		t.Errorf("expected Record with a nil store to be a no-op, got error: %v", err)
	}
	rec, err := l.Recommend(context.Background(), "anything")
	if err != nil || rec != nil {
		t.Errorf("expected Recommend with a nil store to return (nil, nil), got (%v, %v)", rec, err)
	}
}
