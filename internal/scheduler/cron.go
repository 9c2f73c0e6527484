// Package scheduler runs durable jobs — one-shot, fixed-interval, and cron
// — against the message bus, persisting job state and run history so a
// process restart never silently drops or duplicates a scheduled run.
package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// fieldSet is a bitmask of the values a single cron field allows. All five
// standard fields (minute 0-59 is the widest) fit comfortably in a uint64,
// so membership is a shift-and-mask instead of a linear scan.
type fieldSet uint64

func (s fieldSet) has(v int) bool { return s&(1<<uint(v)) != 0 }

func fullRange(min, max int) fieldSet {
	var s fieldSet
	for v := min; v <= max; v++ {
		s |= 1 << uint(v)
	}
	return s
}

// CronExpr is a parsed 5-field cron expression: minute, hour,
// day-of-month, month, day-of-week.
type CronExpr struct {
	minute, hour, dom, month, dow fieldSet
}

// cronFieldSpec describes one of the five positions a cron expression's
// fields occupy: its bounds, and where it lands in the parsed CronExpr.
type cronFieldSpec struct {
	label    string
	min, max int
}

var cronFields = [5]cronFieldSpec{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 6},
}

// ParseCron parses a standard 5-field cron expression. Supports *, */N,
// N, N-M, N-M/S, and comma-separated combinations of the above.
func ParseCron(expr string) (*CronExpr, error) {
	tokens := strings.Fields(expr)
	if len(tokens) != len(cronFields) {
		return nil, fmt.Errorf("cron: expected %d fields, got %d", len(cronFields), len(tokens))
	}

	sets := make([]fieldSet, len(cronFields))
	for i, spec := range cronFields {
		s, err := parseCronField(tokens[i], spec.min, spec.max)
		if err != nil {
			return nil, fmt.Errorf("cron: %s: %w", spec.label, err)
		}
		sets[i] = s
	}

	return &CronExpr{minute: sets[0], hour: sets[1], dom: sets[2], month: sets[3], dow: sets[4]}, nil
}

// Matches reports whether t falls within the expression's minute.
func (c *CronExpr) Matches(t time.Time) bool {
	return c.minute.has(t.Minute()) &&
		c.hour.has(t.Hour()) &&
		c.dom.has(t.Day()) &&
		c.month.has(int(t.Month())) &&
		c.dow.has(int(t.Weekday()))
}

// Next returns the first time strictly after t that matches, searching up
// to two years ahead. It returns the zero Time if none is found in that
// window, which callers treat as "this schedule never fires again."
func (c *CronExpr) Next(t time.Time) time.Time {
	const searchWindow = 2 * 365 * 24 * time.Hour
	deadline := t.Add(searchWindow)

	candidate := t.Truncate(time.Minute).Add(time.Minute)
	for candidate.Before(deadline) {
		if advanced, ok := c.advance(candidate); ok {
			candidate = advanced
			continue
		}
		return candidate
	}
	return time.Time{}
}

// advance moves candidate forward to the next boundary worth re-checking
// when it fails to match at the coarsest mismatched unit, and reports
// whether it changed anything (false means candidate already matches).
func (c *CronExpr) advance(candidate time.Time) (time.Time, bool) {
	loc := candidate.Location()
	if !c.month.has(int(candidate.Month())) {
		y, m := candidate.Year(), candidate.Month()+1
		if m > 12 {
			y, m = y+1, 1
		}
		return time.Date(y, m, 1, 0, 0, 0, 0, loc), true
	}
	if !c.dom.has(candidate.Day()) || !c.dow.has(int(candidate.Weekday())) {
		return time.Date(candidate.Year(), candidate.Month(), candidate.Day()+1, 0, 0, 0, 0, loc), true
	}
	if !c.hour.has(candidate.Hour()) {
		return time.Date(candidate.Year(), candidate.Month(), candidate.Day(), candidate.Hour()+1, 0, 0, 0, loc), true
	}
	if !c.minute.has(candidate.Minute()) {
		return candidate.Add(time.Minute), true
	}
	return candidate, false
}

// parseCronField turns one comma-separated cron field into the set of
// values it allows.
func parseCronField(field string, min, max int) (fieldSet, error) {
	if field == "*" {
		return fullRange(min, max), nil
	}
	var set fieldSet
	for _, item := range strings.Split(field, ",") {
		lo, hi, step, err := parseCronItem(item, min, max)
		if err != nil {
			return 0, err
		}
		for v := lo; v <= hi; v += step {
			set |= 1 << uint(v)
		}
	}
	if set == 0 {
		return 0, fmt.Errorf("empty field %q", field)
	}
	return set, nil
}

// parseCronItem parses one comma-delimited item — a literal, a range
// (N-M), or either form with a /step suffix — into an inclusive
// [lo, hi] bound plus a step, bounds-checked against [min, max].
func parseCronItem(item string, min, max int) (lo, hi, step int, err error) {
	body, stepStr, hasStep := strings.Cut(item, "/")
	step = 1
	if hasStep {
		step, err = strconv.Atoi(stepStr)
		if err != nil || step <= 0 {
			return 0, 0, 0, fmt.Errorf("invalid step in %q", item)
		}
	}

	if body == "*" {
		return min, max, step, nil
	}

	if rangeLo, rangeHi, isRange := strings.Cut(body, "-"); isRange {
		lo, err = strconv.Atoi(rangeLo)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid range start %q", rangeLo)
		}
		hi, err = strconv.Atoi(rangeHi)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid range end %q", rangeHi)
		}
		if lo < min || hi > max || lo > hi {
			return 0, 0, 0, fmt.Errorf("range %d-%d out of bounds [%d,%d]", lo, hi, min, max)
		}
		return lo, hi, step, nil
	}

	if hasStep {
		return 0, 0, 0, fmt.Errorf("step without range or wildcard in %q", item)
	}
	v, err := strconv.Atoi(body)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid value %q", body)
	}
	if v < min || v > max {
		return 0, 0, 0, fmt.Errorf("value %d out of bounds [%d,%d]", v, min, max)
	}
	return v, v, 1, nil
}
