// Package schedule parses five-field cron expressions and computes the next
// matching minute. Fields accept "*", lists ("1,15"), ranges ("1-5") and
// steps ("*/15", "0-30/10").
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cron is a parsed "minute hour day-of-month month day-of-week" expression.
type Cron struct {
	expr   string
	fields [5]field
}

type field struct {
	any  bool
	hits map[int]bool
}

func (f field) matches(v int) bool {
	return f.any || f.hits[v]
}

var bounds = [5][2]int{
	{0, 59}, // minute
	{0, 23}, // hour
	{1, 31}, // day of month
	{1, 12}, // month
	{0, 6},  // day of week, Sunday = 0
}

var names = [5]string{"minute", "hour", "day-of-month", "month", "day-of-week"}

// Parse validates expr.
func Parse(expr string) (Cron, error) {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return Cron{}, fmt.Errorf("schedule: cron expression must have 5 fields, got %d", len(parts))
	}
	c := Cron{expr: expr}
	for i, p := range parts {
		f, err := parseField(p, bounds[i][0], bounds[i][1])
		if err != nil {
			return Cron{}, fmt.Errorf("schedule: %s field: %w", names[i], err)
		}
		c.fields[i] = f
	}
	return c, nil
}

func parseField(s string, lo, hi int) (field, error) {
	if s == "*" {
		return field{any: true}, nil
	}
	f := field{hits: make(map[int]bool)}
	for _, term := range strings.Split(s, ",") {
		step := 1
		if base, st, ok := strings.Cut(term, "/"); ok {
			n, err := strconv.Atoi(st)
			if err != nil || n <= 0 {
				return field{}, fmt.Errorf("invalid step %q", st)
			}
			step, term = n, base
		}

		from, to := lo, hi
		switch {
		case term == "*":
		case strings.Contains(term, "-"):
			a, b, _ := strings.Cut(term, "-")
			var err error
			if from, err = strconv.Atoi(a); err != nil {
				return field{}, fmt.Errorf("invalid value %q", a)
			}
			if to, err = strconv.Atoi(b); err != nil {
				return field{}, fmt.Errorf("invalid value %q", b)
			}
		default:
			v, err := strconv.Atoi(term)
			if err != nil {
				return field{}, fmt.Errorf("invalid value %q", term)
			}
			from, to = v, v
		}
		if from < lo || to > hi || from > to {
			return field{}, fmt.Errorf("%d-%d outside %d-%d", from, to, lo, hi)
		}
		for v := from; v <= to; v += step {
			f.hits[v] = true
		}
	}
	return f, nil
}

// String returns the source expression.
func (c Cron) String() string { return c.expr }

// Next returns the first matching minute strictly after t. The search is
// bounded to one year.
func (c Cron) Next(t time.Time) (time.Time, error) {
	candidate := t.Truncate(time.Minute).Add(time.Minute)
	limit := t.Add(366 * 24 * time.Hour)
	for candidate.Before(limit) {
		if c.matches(candidate) {
			return candidate, nil
		}
		candidate = candidate.Add(time.Minute)
	}
	return time.Time{}, fmt.Errorf("schedule: no time matches %q within one year", c.expr)
}

func (c Cron) matches(t time.Time) bool {
	return c.fields[0].matches(t.Minute()) &&
		c.fields[1].matches(t.Hour()) &&
		c.fields[2].matches(t.Day()) &&
		c.fields[3].matches(int(t.Month())) &&
		c.fields[4].matches(int(t.Weekday()))
}
