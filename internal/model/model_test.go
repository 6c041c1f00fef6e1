package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"cyclical/internal/calendar"
	"cyclical/internal/marker"
)

func TestBuildMonthView(t *testing.T) {
	cal := calendar.NewGregorian(time.UTC)
	store := marker.NewStore(cal)
	if _, err := store.Propagate(calendar.NewDay(2026, time.March, 10), marker.DefaultDayCount, marker.DefaultTag); err != nil {
		t.Fatal(err)
	}

	view, err := BuildMonthView(time.Date(2026, time.March, 20, 0, 0, 0, 0, time.UTC), store, ViewConfig{
		Calendar:     cal,
		FirstWeekday: time.Monday,
		Tag:          marker.DefaultTag,
		Now:          time.Date(2026, time.March, 12, 18, 0, 0, 0, time.UTC),
		Selected:     calendar.NewDay(2026, time.March, 3),
		Overlay: map[calendar.Day][]string{
			calendar.NewDay(2026, time.March, 17): {"St. Patrick's Day"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if view.Title != "March 2026" {
		t.Errorf("Expected title March 2026, got %q", view.Title)
	}
	if view.Prev != calendar.NewDay(2026, time.February, 1) || view.Next != calendar.NewDay(2026, time.April, 1) {
		t.Errorf("unexpected navigation: prev %s next %s", view.Prev, view.Next)
	}
	if strings.Join(view.Weekdays, " ") != "Mon Tue Wed Thu Fri Sat Sun" {
		t.Errorf("unexpected weekday header %v", view.Weekdays)
	}
	// March 1 2026 is a Sunday: six blanks in a Monday-first grid.
	if view.Offset != 6 || len(view.Cells) != 37 {
		t.Fatalf("Expected offset 6 and 37 cells, got %d and %d", view.Offset, len(view.Cells))
	}
	if !view.Cells[0].Blank || view.Cells[0].Selectable {
		t.Errorf("Blank cells must not be selectable: %+v", view.Cells[0])
	}

	cellFor := func(day int) Cell { return view.Cells[view.Offset+day-1] }

	if !cellFor(12).Today || cellFor(11).Today {
		t.Error("Expected only March 12 to be today")
	}
	for day := 1; day <= 31; day++ {
		want := day >= 10 && day <= 15
		if got := cellFor(day).Marked; got != want {
			t.Errorf("March %d: marked=%v, want %v", day, got, want)
		}
	}
	if !cellFor(3).Selected {
		t.Error("Expected March 3 selected")
	}
	if ev := cellFor(17).Events; len(ev) != 1 {
		t.Errorf("Expected overlay event on March 17, got %v", ev)
	}
	if cellFor(1).Weekday != "Sunday" {
		t.Errorf("Expected March 1 on Sunday, got %s", cellFor(1).Weekday)
	}

	weeks := view.Weeks()
	if len(weeks) != 6 || len(weeks[5]) != 7 {
		t.Errorf("Expected 6 full rows, got %d", len(weeks))
	}
}

func TestWeeksPadsLastRow(t *testing.T) {
	cal := calendar.NewGregorian(time.UTC)
	// March 2026 starts on a Sunday: 31 cells, five rows.
	view, err := BuildMonthView(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), nil, ViewConfig{
		Calendar:     cal,
		FirstWeekday: time.Sunday,
	})
	if err != nil {
		t.Fatal(err)
	}
	weeks := view.Weeks()
	if len(weeks) != 5 {
		t.Fatalf("Expected 5 rows, got %d", len(weeks))
	}
	last := weeks[4]
	if last[2].Date != calendar.NewDay(2026, time.March, 31) {
		t.Errorf("Expected March 31 in last row column 2, got %+v", last[2])
	}
	for _, c := range last[3:] {
		if !c.Blank || c.Selectable {
			t.Errorf("Expected trailing non-selectable blank, got %+v", c)
		}
	}
	if len(view.Cells) != 31 {
		t.Errorf("Weeks must not pad Cells, got %d", len(view.Cells))
	}
}

func TestMonthViewJSON(t *testing.T) {
	cal := calendar.NewGregorian(time.UTC)
	view, err := BuildMonthView(time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC), nil, ViewConfig{
		Calendar:     cal,
		FirstWeekday: time.Tuesday,
		Tag:          "✓",
		Now:          time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(view)
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	if !strings.Contains(s, `"month":"2026-02-01"`) {
		t.Errorf("Expected month in JSON: %s", s)
	}
	if !strings.Contains(s, `{"blank":true,"selectable":false}`) {
		t.Errorf("Expected compact blank cell in JSON: %s", s)
	}
}

func TestBuildMonthViewError(t *testing.T) {
	cal := calendar.NewGregorian(time.UTC)
	_, err := BuildMonthView(time.Date(10000, time.January, 1, 0, 0, 0, 0, time.UTC), nil, ViewConfig{Calendar: cal})
	if err == nil {
		t.Error("Expected error for an out-of-range month")
	}
}

func TestRenderText(t *testing.T) {
	cal := calendar.NewGregorian(time.UTC)
	store := marker.NewStore(cal)
	_, _ = store.Propagate(calendar.NewDay(2026, time.March, 10), marker.DefaultDayCount, marker.DefaultTag)

	view, err := BuildMonthView(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), store, ViewConfig{
		Calendar:     cal,
		FirstWeekday: time.Sunday,
		Tag:          marker.DefaultTag,
		Now:          time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSuffix(RenderText(view), "\n"), "\n")
	want := []string{
		"        March 2026",
		"Sun Mon Tue Wed Thu Fri Sat",
		"  1   2   3   4   5   6   7",
		"  8   9  10* 11* 12* 13* 14*",
		" 15*  16  17  18  19  20  21",
		" 22  23  24  25  26  27  28",
		" 29  30  31",
	}
	if len(lines) != len(want) {
		t.Fatalf("Expected %d lines, got %d:\n%s", len(want), len(lines), strings.Join(lines, "\n"))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}
