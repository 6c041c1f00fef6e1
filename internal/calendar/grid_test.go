package calendar

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestBuildMonthGridFebruary2026(t *testing.T) {
	cal := NewGregorian(time.UTC)
	ref := time.Date(2026, time.February, 17, 15, 30, 0, 0, time.UTC)

	g, err := BuildMonthGrid(ref, cal, time.Sunday)
	if err != nil {
		t.Fatalf("BuildMonthGrid: %v", err)
	}
	if g.Offset != 0 {
		t.Errorf("Expected offset 0, got %d", g.Offset)
	}
	if len(g.Cells) != 28 {
		t.Errorf("Expected 28 cells, got %d", len(g.Cells))
	}
	if want := DayCell(NewDay(2026, time.February, 1)); g.Cells[0] != want {
		t.Errorf("Expected first cell %v, got %v", want, g.Cells[0])
	}
	if g.Month != NewDay(2026, time.February, 1) {
		t.Errorf("Expected month start 2026-02-01, got %s", g.Month)
	}
}

func TestBuildMonthGridMondayStart(t *testing.T) {
	cal := NewGregorian(time.UTC)
	ref := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)

	g, err := BuildMonthGrid(ref, cal, time.Monday)
	if err != nil {
		t.Fatalf("BuildMonthGrid: %v", err)
	}
	// Feb 1 2026 is a Sunday, the last column of a Monday-first week.
	if g.Offset != 6 {
		t.Errorf("Expected offset 6, got %d", g.Offset)
	}
	if len(g.Cells) != 34 {
		t.Errorf("Expected 34 cells, got %d", len(g.Cells))
	}
	for i := 0; i < 6; i++ {
		if !g.Cells[i].Blank {
			t.Errorf("Expected blank at %d, got %v", i, g.Cells[i])
		}
	}
}

func TestBuildMonthGridInvariants(t *testing.T) {
	locs := []*time.Location{time.UTC, mustLoad(t, "America/New_York"), mustLoad(t, "Asia/Seoul")}

	for _, loc := range locs {
		cal := NewGregorian(loc)
		for year := 2023; year <= 2028; year++ {
			for month := time.January; month <= time.December; month++ {
				ref := time.Date(year, month, 15, 12, 0, 0, 0, loc)
				for first := time.Sunday; first <= time.Saturday; first++ {
					g, err := BuildMonthGrid(ref, cal, first)
					if err != nil {
						t.Fatalf("%s %d-%02d first=%s: %v", loc, year, month, first, err)
					}
					checkGrid(t, g, year, month, first, cal)
				}
			}
		}
	}
}

func checkGrid(t *testing.T, g Grid, year int, month time.Month, first time.Weekday, cal Calendar) {
	t.Helper()

	days := DaysIn(year, month)
	if g.Offset < 0 || g.Offset > 6 {
		t.Errorf("%d-%02d: offset %d out of range", year, month, g.Offset)
	}
	if len(g.Cells) != g.Offset+days {
		t.Errorf("%d-%02d: len %d, want %d", year, month, len(g.Cells), g.Offset+days)
	}

	firstDay := g.Cells[g.Offset]
	if firstDay.Blank {
		t.Fatalf("%d-%02d: cell at offset is blank", year, month)
	}
	if got := time.Weekday((int(first) + g.Offset) % 7); got != cal.Weekday(firstDay.Date) {
		t.Errorf("%d-%02d: first day in column of %s, actual weekday %s", year, month, got, cal.Weekday(firstDay.Date))
	}

	for i, d := range g.Days() {
		want := NewDay(year, month, i+1)
		if d != want {
			t.Errorf("%d-%02d: day %d is %s, want %s", year, month, i, d, want)
		}
	}
	if n := len(g.Days()); n != days {
		t.Errorf("%d-%02d: %d day cells, want %d", year, month, n, days)
	}
}

func TestBuildMonthGridDeterministic(t *testing.T) {
	cal := NewGregorian(time.UTC)
	ref := time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)

	a, err := BuildMonthGrid(ref, cal, time.Wednesday)
	if err != nil {
		t.Fatal(err)
	}
	b, err := BuildMonthGrid(ref, cal, time.Wednesday)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("Expected identical grids for identical inputs")
	}
}

func TestBuildMonthGridUsesCalendarLocation(t *testing.T) {
	seoul := mustLoad(t, "Asia/Seoul")
	cal := NewGregorian(seoul)
	// 2026-02-28 20:00 UTC is already March 1 in Seoul.
	ref := time.Date(2026, time.February, 28, 20, 0, 0, 0, time.UTC)

	g, err := BuildMonthGrid(ref, cal, time.Sunday)
	if err != nil {
		t.Fatal(err)
	}
	if g.Month != NewDay(2026, time.March, 1) {
		t.Errorf("Expected March grid, got %s", g.Month)
	}
}

func TestBuildMonthGridBounds(t *testing.T) {
	cal := NewGregorian(time.UTC)

	g, err := BuildMonthGrid(time.Date(9999, time.December, 1, 0, 0, 0, 0, time.UTC), cal, time.Sunday)
	if err != nil {
		t.Fatalf("December 9999 should build: %v", err)
	}
	if n := len(g.Days()); n != 31 {
		t.Errorf("Expected 31 days, got %d", n)
	}

	_, err = BuildMonthGrid(time.Date(10000, time.January, 1, 0, 0, 0, 0, time.UTC), cal, time.Sunday)
	if !errors.Is(err, ErrInvalidCalendarState) {
		t.Errorf("Expected ErrInvalidCalendarState, got %v", err)
	}
}

type brokenCalendar struct {
	*Gregorian
	failMonth bool
}

func (b brokenCalendar) MonthInterval(t time.Time) (Day, Day, error) {
	if b.failMonth {
		return Day{}, Day{}, errors.New("no month here")
	}
	return b.Gregorian.MonthInterval(t)
}

func (b brokenCalendar) AddDays(d Day, n int) (Day, error) {
	if d.Day == 10 {
		return Day{}, errors.New("cannot step")
	}
	return b.Gregorian.AddDays(d, n)
}

func TestBuildMonthGridCalendarFailures(t *testing.T) {
	ref := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	_, err := BuildMonthGrid(ref, brokenCalendar{Gregorian: NewGregorian(time.UTC), failMonth: true}, time.Sunday)
	if !errors.Is(err, ErrInvalidCalendarState) {
		t.Errorf("month failure: expected ErrInvalidCalendarState, got %v", err)
	}

	_, err = BuildMonthGrid(ref, brokenCalendar{Gregorian: NewGregorian(time.UTC)}, time.Sunday)
	if !errors.Is(err, ErrInvalidCalendarState) {
		t.Errorf("step failure: expected ErrInvalidCalendarState, got %v", err)
	}

	if _, err := BuildMonthGrid(ref, nil, time.Sunday); err == nil {
		t.Error("Expected error for nil calendar")
	}
	if _, err := BuildMonthGrid(ref, NewGregorian(time.UTC), time.Weekday(7)); err == nil {
		t.Error("Expected error for invalid first weekday")
	}
}

func TestWeekdayOrder(t *testing.T) {
	got := WeekdayOrder(time.Thursday)
	want := []time.Weekday{time.Thursday, time.Friday, time.Saturday, time.Sunday, time.Monday, time.Tuesday, time.Wednesday}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("WeekdayOrder(Thursday) = %v, want %v", got, want)
	}
}

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Skipf("timezone %s unavailable: %v", name, err)
	}
	return loc
}
