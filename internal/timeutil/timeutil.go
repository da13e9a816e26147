package timeutil

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidPeriod = errors.New("invalid period")

const (
	PeriodThisMonth = "this_month"
	PeriodLastMonth = "last_month"
)

const day = 24 * time.Hour

// Window represents a normalized [start, end) reporting window anchored to a location.
type Window struct {
	period string
	start  time.Time
	end    time.Time
	loc    *time.Location
}

// EnsureLocation returns UTC when loc is nil.
func EnsureLocation(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

// NewWindow constructs a window for rolling periods ("7d", "24h") or calendar
// months ("this_month", "last_month").
func NewWindow(period string, now time.Time, loc *time.Location) (Window, error) {
	loc = EnsureLocation(loc)
	now = now.In(loc)
	p := normalizePeriod(period)
	switch p {
	case PeriodThisMonth:
		start := MonthStart(now, loc)
		return Window{period: p, start: start, end: start.AddDate(0, 1, 0), loc: loc}, nil
	case PeriodLastMonth:
		end := MonthStart(now, loc)
		return Window{period: p, start: end.AddDate(0, -1, 0), end: end, loc: loc}, nil
	}
	dur, err := durationFromPeriod(p)
	if err != nil {
		return Window{}, err
	}
	return Window{period: p, start: now.Add(-dur), end: now, loc: loc}, nil
}

// NewWindowFromRange constructs a window covering the provided [start, end) bounds.
func NewWindowFromRange(start, end time.Time, loc *time.Location, label string) (Window, error) {
	loc = EnsureLocation(loc)
	start = start.In(loc)
	end = end.In(loc)
	if !end.After(start) {
		return Window{}, ErrInvalidPeriod
	}
	p := normalizePeriod(label)
	if p == "" {
		p = "custom"
	}
	return Window{period: p, start: start, end: end, loc: loc}, nil
}

// Period returns the normalized period string (e.g., "7d").
func (w Window) Period() string { return w.period }

// Start returns the inclusive start of the window.
func (w Window) Start() time.Time { return w.start }

// End returns the exclusive end of the window.
func (w Window) End() time.Time { return w.end }

// Location returns the reporting timezone for the window.
func (w Window) Location() *time.Location { return EnsureLocation(w.loc) }

// Duration returns the window length.
func (w Window) Duration() time.Duration { return w.end.Sub(w.start) }

// Days is the window length in days, rounded up.
func (w Window) Days() int {
	if w.end.Before(w.start) {
		return 0
	}
	return int(math.Ceil(float64(w.Duration()) / float64(day)))
}

// FirstDay is the calendar date holding the window start.
func (w Window) FirstDay() time.Time { return TruncateToDay(w.start, w.Location()) }

// LastDay is the calendar date holding the last instant of the window.
func (w Window) LastDay() time.Time {
	return TruncateToDay(w.end.Add(-time.Nanosecond), w.Location())
}

// Contains reports whether the timestamp falls within [start, end).
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.start) && ts.Before(w.end)
}

// ClampStart moves the start forward to earliest when the window reaches further back.
func (w Window) ClampStart(earliest time.Time) Window {
	if earliest.After(w.start) {
		w.start = earliest.In(w.Location())
		if w.start.After(w.end) {
			w.start = w.end
		}
	}
	return w
}

// TruncateToDay normalizes the timestamp to midnight in the provided zone.
func TruncateToDay(t time.Time, loc *time.Location) time.Time {
	loc = EnsureLocation(loc)
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// MonthStart returns midnight on the first day of t's month.
func MonthStart(t time.Time, loc *time.Location) time.Time {
	loc = EnsureLocation(loc)
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}

// DaysInRange lists every calendar date from first to last inclusive.
func DaysInRange(first, last time.Time) []time.Time {
	if last.Before(first) {
		return nil
	}
	var days []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func durationFromPeriod(p string) (time.Duration, error) {
	if len(p) < 2 {
		return 0, ErrInvalidPeriod
	}
	unit := p[len(p)-1]
	value, err := strconv.Atoi(p[:len(p)-1])
	if err != nil || value <= 0 {
		return 0, ErrInvalidPeriod
	}
	switch unit {
	case 'd':
		return time.Duration(value) * day, nil
	case 'h':
		return time.Duration(value) * time.Hour, nil
	default:
		return 0, ErrInvalidPeriod
	}
}

func normalizePeriod(period string) string {
	return strings.ToLower(strings.TrimSpace(period))
}
