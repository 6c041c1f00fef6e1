// Package model builds the month view the UI renders: the grid plus the
// per-cell "is today" and "has marker" lookups, and the feed overlay.
package model

import (
	"time"

	"cyclical/internal/calendar"
	"cyclical/internal/marker"
)

// MarkerReader is the read side of marker.Store used for rendering.
type MarkerReader interface {
	HasMarker(day calendar.Day, tag string) bool
	Tags(day calendar.Day) []string
}

// Cell is one rendered grid slot. Blank cells carry no date and are never
// selectable.
type Cell struct {
	Blank      bool         `json:"blank"`
	Date       calendar.Day `json:"date,omitzero"`
	DayOfMonth int          `json:"day,omitempty"`
	Weekday    string       `json:"weekday,omitempty"`
	Today      bool         `json:"today,omitempty"`
	Marked     bool         `json:"marked,omitempty"`
	Selected   bool         `json:"selected,omitempty"`
	Selectable bool         `json:"selectable"`
	Tags       []string     `json:"tags,omitempty"`
	Events     []string     `json:"events,omitempty"`
}

// MonthView is everything one render pass needs.
type MonthView struct {
	Title        string       `json:"title"`
	Month        calendar.Day `json:"month"`
	Prev         calendar.Day `json:"prev"`
	Next         calendar.Day `json:"next"`
	FirstWeekday string       `json:"first_weekday"`
	Weekdays     []string     `json:"weekdays"`
	Offset       int          `json:"offset"`
	Tag          string       `json:"tag"`
	Cells        []Cell       `json:"cells"`
}

// ViewConfig parameterizes BuildMonthView.
type ViewConfig struct {
	Calendar     calendar.Calendar
	FirstWeekday time.Weekday
	Tag          string
	Now          time.Time
	// Selected highlights a day; zero means none.
	Selected calendar.Day
	// Overlay adds feed summaries per day; may be nil.
	Overlay map[calendar.Day][]string
}

// BuildMonthView builds the grid for the month containing ref and
// decorates each day cell.
func BuildMonthView(ref time.Time, markers MarkerReader, cfg ViewConfig) (MonthView, error) {
	grid, err := calendar.BuildMonthGrid(ref, cfg.Calendar, cfg.FirstWeekday)
	if err != nil {
		return MonthView{}, err
	}

	loc := cfg.Calendar.Location()
	today := cfg.Calendar.StartOfDay(cfg.Now)
	monthStart := grid.Month.In(loc)

	view := MonthView{
		Title:        monthStart.Format("January 2006"),
		Month:        grid.Month,
		Prev:         calendar.DayOf(monthStart.AddDate(0, -1, 0)),
		Next:         calendar.DayOf(monthStart.AddDate(0, 1, 0)),
		FirstWeekday: cfg.FirstWeekday.String(),
		Offset:       grid.Offset,
		Tag:          cfg.Tag,
		Cells:        make([]Cell, 0, len(grid.Cells)),
	}
	for _, wd := range calendar.WeekdayOrder(cfg.FirstWeekday) {
		view.Weekdays = append(view.Weekdays, wd.String()[:3])
	}

	for _, c := range grid.Cells {
		if c.Blank {
			view.Cells = append(view.Cells, Cell{Blank: true})
			continue
		}
		cell := Cell{
			Date:       c.Date,
			DayOfMonth: c.Date.Day,
			Weekday:    cfg.Calendar.Weekday(c.Date).String(),
			Today:      c.Date == today,
			Selected:   !cfg.Selected.IsZero() && c.Date == cfg.Selected,
			Selectable: true,
		}
		if markers != nil {
			cell.Marked = markers.HasMarker(c.Date, cfg.Tag)
			cell.Tags = markers.Tags(c.Date)
		}
		if cfg.Overlay != nil {
			cell.Events = cfg.Overlay[c.Date]
		}
		view.Cells = append(view.Cells, cell)
	}
	return view, nil
}

// Weeks returns the cells in rows of seven, padding the last row.
func (v MonthView) Weeks() [][]Cell {
	var weeks [][]Cell
	for i := 0; i < len(v.Cells); i += 7 {
		row := make([]Cell, 7)
		for j := range row {
			if i+j < len(v.Cells) {
				row[j] = v.Cells[i+j]
			} else {
				row[j] = Cell{Blank: true}
			}
		}
		weeks = append(weeks, row)
	}
	return weeks
}

var _ MarkerReader = (*marker.Store)(nil)
