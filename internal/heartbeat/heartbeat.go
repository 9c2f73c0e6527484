// Package heartbeat loads a workspace's HEARTBEAT.md file and registers
// its tasks as durable scheduler jobs, upserted by name so re-reading the
// file after an edit updates existing jobs instead of duplicating them.
package heartbeat

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wtokarzewski/janus-agent/internal/scheduler"
)

// jobPrefix namespaces heartbeat-derived job names so they never collide
// with jobs created through some other producer (a future cron CLI, a
// tool call from the agent loop itself).
const jobPrefix = "heartbeat:"

// Task is one parsed HEARTBEAT.md entry: a level-2 heading naming the
// task, plus its schedule and body.
type Task struct {
	Name          string
	ScheduleKind  scheduler.ScheduleKind
	ScheduleValue string
	Body          string
}

// JobName returns the durable scheduler.Job name this task upserts as.
func (t Task) JobName() string { return jobPrefix + t.Name }

// ParseFile reads and parses path. A missing file is not an error — it
// returns a nil slice, matching the rest of the workspace's optional-file
// conventions (AGENTS.md, JANUS.md).
func ParseFile(path string) ([]Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("heartbeat: reading %s: %w", path, err)
	}
	return Parse(string(data)), nil
}

// Parse extracts tasks from HEARTBEAT.md content. Level-2 headings
// (## name) start a new task; "- schedule: ..." and "- task: ..." bullet
// lines fill it in. A task whose schedule line is missing or doesn't
// match either recognized form (every <N><m|h|d>, or a 5-field cron
// expression) is skipped with a warning rather than failing the whole
// file.
func Parse(content string) []Task {
	var tasks []Task
	var name, scheduleRaw, body string
	have := false

	flush := func() {
		if !have {
			return
		}
		if t, ok := resolveSchedule(name, scheduleRaw); ok {
			t.Body = strings.TrimSpace(body)
			tasks = append(tasks, t)
		}
		name, scheduleRaw, body = "", "", ""
		have = false
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if heading, ok := strings.CutPrefix(trimmed, "## "); ok {
			flush()
			name = strings.TrimSpace(heading)
			have = name != ""
			continue
		}
		if !have {
			continue
		}
		if v, ok := bulletValue(trimmed, "schedule:"); ok {
			scheduleRaw = v
			continue
		}
		if v, ok := bulletValue(trimmed, "task:"); ok {
			body = v
		}
	}
	flush()
	return tasks
}

// bulletValue matches a "- <key> <value>" markdown bullet line and
// returns its value.
func bulletValue(line, key string) (string, bool) {
	rest, ok := strings.CutPrefix(line, "-")
	if !ok {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	v, ok := strings.CutPrefix(rest, key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// resolveSchedule maps a raw "- schedule:" value onto a scheduler
// ScheduleKind, logging and skipping the task if unrecognized.
func resolveSchedule(name, raw string) (Task, bool) {
	if v, ok := parseEvery(raw); ok {
		return Task{Name: name, ScheduleKind: scheduler.KindEvery, ScheduleValue: v}, true
	}
	if isCronExpr(raw) {
		return Task{Name: name, ScheduleKind: scheduler.KindCron, ScheduleValue: raw}, true
	}
	slog.Warn("heartbeat: unrecognized schedule, skipping task", "task", name, "schedule", raw)
	return Task{}, false
}

// parseEvery matches "every <N><m|h|d>" and returns the equivalent
// millisecond interval as the string scheduler.KindEvery expects.
func parseEvery(raw string) (string, bool) {
	fields := strings.Fields(raw)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "every") {
		return "", false
	}
	spec := fields[1]
	if spec == "" {
		return "", false
	}
	unit := spec[len(spec)-1]
	n, err := strconv.ParseInt(spec[:len(spec)-1], 10, 64)
	if err != nil || n <= 0 {
		return "", false
	}
	var ms int64
	switch unit {
	case 'm', 'M':
		ms = n * 60_000
	case 'h', 'H':
		ms = n * 3_600_000
	case 'd', 'D':
		ms = n * 86_400_000
	default:
		return "", false
	}
	return strconv.FormatInt(ms, 10), true
}

// isCronExpr reports whether raw is a valid 5-field cron expression, as
// scheduler.ParseCron accepts it; five words that are not cron fields
// (e.g. "whenever I feel like it") do not count.
func isCronExpr(raw string) bool {
	_, err := scheduler.ParseCron(raw)
	return err == nil
}

// Sync parses path and upserts every recognized task as a scheduler job,
// returning the number of jobs upserted. Watch calls it once at startup
// and again on every tick, so edits to HEARTBEAT.md are picked up without
// a restart.
func Sync(ctx context.Context, sched *scheduler.Scheduler, path string) (int, error) {
	tasks, err := ParseFile(path)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range tasks {
		job := &scheduler.Job{
			Name:          t.JobName(),
			ScheduleKind:  t.ScheduleKind,
			ScheduleValue: t.ScheduleValue,
			Task:          t.Body,
			Enabled:       true,
		}
		if err := sched.UpsertJob(ctx, job); err != nil {
			slog.Error("heartbeat: upserting job failed", "task", t.Name, "error", err)
			continue
		}
		n++
	}
	return n, nil
}

// Watch re-syncs path on the given interval until ctx is cancelled, so
// edits to HEARTBEAT.md take effect without restarting the process. It
// runs an initial sync before entering the loop and logs (rather than
// returns) sync errors, since a transient read failure shouldn't stop
// future ticks from trying again.
func Watch(ctx context.Context, sched *scheduler.Scheduler, path string, interval time.Duration) {
	sync := func() {
		n, err := Sync(ctx, sched, path)
		if err != nil {
			slog.Error("heartbeat: sync failed", "path", path, "error", err)
			return
		}
		if n > 0 {
			slog.Info("heartbeat: synced tasks", "path", path, "count", n)
		}
	}

	sync()

	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sync()
		}
	}
}
