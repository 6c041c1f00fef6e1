package calendar

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"
)

func TestDayIdentity(t *testing.T) {
	loc := mustLoad(t, "America/New_York")
	cal := NewGregorian(loc)

	morning := time.Date(2026, time.March, 10, 6, 0, 0, 0, loc)
	night := time.Date(2026, time.March, 10, 23, 59, 0, 0, loc)
	if cal.StartOfDay(morning) != cal.StartOfDay(night) {
		t.Error("Expected instants on the same day to normalize to the same Day")
	}

	markers := map[Day]bool{cal.StartOfDay(morning): true}
	if !markers[NewDay(2026, time.March, 10)] {
		t.Error("Expected Day to work as a map key")
	}

	mid := NewDay(2026, time.March, 10).In(loc)
	if mid.Hour() != 0 || mid.Minute() != 0 || mid.Location() != loc {
		t.Errorf("Expected midnight in %s, got %s", loc, mid)
	}
}

func TestAddDaysAcrossDST(t *testing.T) {
	loc := mustLoad(t, "America/New_York")
	cal := NewGregorian(loc)

	// US clocks spring forward on 2026-03-08.
	start := NewDay(2026, time.March, 7)
	for n, want := range map[int]Day{
		1:  NewDay(2026, time.March, 8),
		2:  NewDay(2026, time.March, 9),
		25: NewDay(2026, time.April, 1),
		-7: NewDay(2026, time.February, 28),
	} {
		got, err := cal.AddDays(start, n)
		if err != nil {
			t.Fatalf("AddDays(%s, %d): %v", start, n, err)
		}
		if got != want {
			t.Errorf("AddDays(%s, %d) = %s, want %s", start, n, got, want)
		}
	}
}

func TestAddDaysInvalid(t *testing.T) {
	cal := NewGregorian(time.UTC)

	if _, err := cal.AddDays(Day{}, 1); !errors.Is(err, ErrInvalidCalendarState) {
		t.Errorf("zero Day: expected ErrInvalidCalendarState, got %v", err)
	}
	if _, err := cal.AddDays(Day{Year: 2026, Month: time.February, Day: 30}, 1); !errors.Is(err, ErrInvalidCalendarState) {
		t.Errorf("Feb 30: expected ErrInvalidCalendarState, got %v", err)
	}
	if _, err := cal.AddDays(NewDay(9999, time.December, 31), 2); !errors.Is(err, ErrInvalidCalendarState) {
		t.Errorf("past year 9999: expected ErrInvalidCalendarState, got %v", err)
	}
	for _, n := range []int{math.MaxInt, math.MinInt} {
		if _, err := cal.AddDays(NewDay(2026, time.March, 10), n); !errors.Is(err, ErrInvalidCalendarState) {
			t.Errorf("AddDays(%d): expected ErrInvalidCalendarState, got %v", n, err)
		}
	}
}

func TestWeekday(t *testing.T) {
	cal := NewGregorian(time.UTC)
	if wd := cal.Weekday(NewDay(2026, time.February, 1)); wd != time.Sunday {
		t.Errorf("2026-02-01 should be Sunday, got %s", wd)
	}
	if wd := cal.Weekday(NewDay(2026, time.March, 10)); wd != time.Tuesday {
		t.Errorf("2026-03-10 should be Tuesday, got %s", wd)
	}
}

func TestDaysIn(t *testing.T) {
	cases := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2026, time.February, 28},
		{2024, time.February, 29},
		{1900, time.February, 28},
		{2000, time.February, 29},
		{2026, time.April, 30},
		{2026, time.December, 31},
	}
	for _, c := range cases {
		if got := DaysIn(c.year, c.month); got != c.want {
			t.Errorf("DaysIn(%d, %s) = %d, want %d", c.year, c.month, got, c.want)
		}
	}
}

func TestDayText(t *testing.T) {
	d, err := ParseDay("2026-03-10")
	if err != nil {
		t.Fatal(err)
	}
	if d != NewDay(2026, time.March, 10) {
		t.Errorf("ParseDay = %v", d)
	}
	if _, err := ParseDay("2026-13-01"); err == nil {
		t.Error("Expected error for month 13")
	}

	b, err := json.Marshal(map[Day][]string{d: {"✓"}})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"2026-03-10":["✓"]}` {
		t.Errorf("unexpected JSON %s", b)
	}

	var back map[Day][]string
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if len(back[d]) != 1 {
		t.Errorf("Expected tag after JSON decode, got %v", back)
	}
}

func TestParseWeekday(t *testing.T) {
	for in, want := range map[string]time.Weekday{
		"sunday":   time.Sunday,
		"Monday":   time.Monday,
		"sat":      time.Saturday,
		" friday ": time.Friday,
	} {
		got, err := ParseWeekday(in)
		if err != nil || got != want {
			t.Errorf("ParseWeekday(%q) = %s, %v", in, got, err)
		}
	}
	if _, err := ParseWeekday("funday"); err == nil {
		t.Error("Expected error for unknown weekday")
	}
}

func TestWeekdayFromNumber(t *testing.T) {
	if wd, _ := WeekdayFromNumber(1); wd != time.Sunday {
		t.Errorf("1 should be Sunday, got %s", wd)
	}
	if wd, _ := WeekdayFromNumber(7); wd != time.Saturday {
		t.Errorf("7 should be Saturday, got %s", wd)
	}
	if _, err := WeekdayFromNumber(0); err == nil {
		t.Error("Expected error for 0")
	}
}
