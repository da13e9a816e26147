package timeutil

import (
	"errors"
	"testing"
	"time"
)

func TestNewWindowDays(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	now := time.Date(2024, time.November, 7, 12, 0, 0, 0, time.UTC)
	win, err := NewWindow("7d", now, loc)
	if err != nil {
		t.Fatalf("new window: %v", err)
	}
	if got := win.Period(); got != "7d" {
		t.Fatalf("unexpected period %s", got)
	}
	if !win.End().Equal(now.In(loc)) {
		t.Fatalf("unexpected end %v", win.End())
	}
	if !win.Start().Equal(win.End().Add(-7 * 24 * time.Hour)) {
		t.Fatalf("unexpected start %v", win.Start())
	}
	if win.Days() != 7 {
		t.Fatalf("expected 7 days, got %d", win.Days())
	}
}

func TestNewWindowHours(t *testing.T) {
	now := time.Date(2024, 1, 2, 15, 30, 0, 0, time.UTC)
	win, err := NewWindow("24h", now, time.UTC)
	if err != nil {
		t.Fatalf("new window: %v", err)
	}
	if win.Duration() != 24*time.Hour {
		t.Fatalf("unexpected duration %v", win.Duration())
	}
	if !win.Contains(now.Add(-12 * time.Hour)) {
		t.Fatalf("expected timestamp within window")
	}
	if win.Contains(now.Add(-25 * time.Hour)) {
		t.Fatalf("timestamp should be outside window")
	}
}

func TestCalendarMonthWindows(t *testing.T) {
	now := time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)

	this, err := NewWindow("this_month", now, time.UTC)
	if err != nil {
		t.Fatalf("this_month: %v", err)
	}
	if !this.Start().Equal(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %v", this.Start())
	}
	if this.Days() != 31 {
		t.Fatalf("expected 31 days, got %d", this.Days())
	}
	if !this.LastDay().Equal(time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected last day %v", this.LastDay())
	}

	last, err := NewWindow("LAST_MONTH", now, time.UTC)
	if err != nil {
		t.Fatalf("last_month: %v", err)
	}
	if !last.FirstDay().Equal(time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected first day %v", last.FirstDay())
	}
	if last.Days() != 29 {
		t.Fatalf("expected leap february, got %d days", last.Days())
	}
}

func TestClampStart(t *testing.T) {
	now := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	win, _ := NewWindow("90d", now, time.UTC)
	clamped := win.ClampStart(now.AddDate(0, 0, -30))
	if clamped.Days() != 30 {
		t.Fatalf("expected 30 days after clamp, got %d", clamped.Days())
	}
	untouched := win.ClampStart(now.AddDate(-1, 0, 0))
	if !untouched.Start().Equal(win.Start()) {
		t.Fatalf("clamp should not extend the window")
	}
}

func TestDaysInRange(t *testing.T) {
	first := time.Date(2024, 2, 27, 0, 0, 0, 0, time.UTC)
	last := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	days := DaysInRange(first, last)
	if len(days) != 5 {
		t.Fatalf("expected 5 days, got %d", len(days))
	}
	if DaysInRange(last, first) != nil {
		t.Fatalf("expected nil for inverted range")
	}
}

func TestNewWindowInvalid(t *testing.T) {
	if _, err := NewWindow("bad", time.Now(), time.UTC); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod")
	}
}
