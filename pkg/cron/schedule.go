package cron

import (
	"fmt"
	"time"
)

// scanYears bounds the forward scan in Next. Four years covers every
// leap-day combination a satisfiable expression can require.
const scanYears = 4

// ScheduleError reports an expression with no reachable run time within the
// scan bound (e.g. "0 0 30 2 *").
type ScheduleError struct {
	Expr  string
	After time.Time
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("cron: no run time for %q within %d years of %s", e.Expr, scanYears, e.After.Format(time.RFC3339))
}

// Next returns the first instant strictly after the given time that matches
// the expression, evaluated in loc (UTC when nil) and returned UTC-normalized.
// Cron resolution is one minute; the candidate starts at the next whole
// minute. Day-of-month and day-of-week combine with OR when both are
// restricted, per standard cron convention.
func (e *Expression) Next(after time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	// Zone offsets are whole minutes, so minute truncation stays aligned
	// with the local calendar.
	t := after.In(loc).Truncate(time.Minute).Add(time.Minute)
	limit := after.AddDate(scanYears, 0, 0)

	for !t.After(limit) {
		if !e.month.Contains(int(t.Month())) {
			t = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, 1, 0)
			continue
		}
		if !e.dayMatches(t) {
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
			continue
		}
		if !e.hour.Contains(t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc).Add(time.Hour)
			continue
		}
		if !e.minute.Contains(t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}
		return t.UTC(), nil
	}

	return time.Time{}, &ScheduleError{Expr: e.source, After: after}
}

// dayMatches applies the day-of-month/day-of-week combination rule: OR when
// both fields are restricted, otherwise only the restricted one is enforced.
func (e *Expression) dayMatches(t time.Time) bool {
	domOK := e.dom.Contains(t.Day())
	dowOK := e.dow.Contains(int(t.Weekday()))

	switch {
	case e.dom.Restricted() && e.dow.Restricted():
		return domOK || dowOK
	case e.dom.Restricted():
		return domOK
	case e.dow.Restricted():
		return dowOK
	}
	return true
}

// MinInterval returns the expression's minimum repeat interval: the circular
// minimum gap of the finest restricted field, falling through minute, hour,
// then day-of-month. An expression with no restricted field at those
// positions repeats every minute.
func (e *Expression) MinInterval() time.Duration {
	switch {
	case e.minute.Restricted():
		return time.Duration(e.minute.minGap()) * time.Minute
	case e.hour.Restricted():
		return time.Duration(e.hour.minGap()) * time.Hour
	case e.dom.Restricted():
		return time.Duration(e.dom.minGap()) * 24 * time.Hour
	}
	return time.Minute
}
