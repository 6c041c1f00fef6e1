package calendar

import (
	"errors"
	"fmt"
	"time"
)

// Cell is one slot of a month grid: either a blank placeholder used for
// weekday alignment, or a calendar day.
type Cell struct {
	Date  Day
	Blank bool
}

func BlankCell() Cell {
	return Cell{Blank: true}
}

func DayCell(d Day) Cell {
	return Cell{Date: d}
}

// Grid is the ordered cell sequence for one month: Offset leading blanks
// followed by every day of the month. No trailing blanks are added, so
// len(Cells) ranges from 28 to 37.
type Grid struct {
	// Month is the first day of the month.
	Month        Day
	FirstWeekday time.Weekday
	Offset       int
	Cells        []Cell
}

// BuildMonthGrid returns the grid for the month containing ref.
func BuildMonthGrid(ref time.Time, cal Calendar, firstWeekday time.Weekday) (Grid, error) {
	if cal == nil {
		return Grid{}, errors.New("calendar: nil calendar")
	}
	if firstWeekday < time.Sunday || firstWeekday > time.Saturday {
		return Grid{}, fmt.Errorf("calendar: invalid first weekday %d", firstWeekday)
	}

	start, end, err := cal.MonthInterval(ref)
	if err != nil {
		return Grid{}, wrapState(err)
	}

	offset := (int(cal.Weekday(start)) - int(firstWeekday) + 7) % 7

	cells := make([]Cell, 0, offset+31)
	for i := 0; i < offset; i++ {
		cells = append(cells, BlankCell())
	}

	for d := start; d.Before(end); {
		cells = append(cells, DayCell(d))
		next, err := cal.AddDays(d, 1)
		if err != nil {
			return Grid{}, wrapState(err)
		}
		if !d.Before(next) {
			return Grid{}, fmt.Errorf("%w: day step from %s did not advance", ErrInvalidCalendarState, d)
		}
		d = next
	}

	return Grid{
		Month:        start,
		FirstWeekday: firstWeekday,
		Offset:       offset,
		Cells:        cells,
	}, nil
}

// Days returns the day cells' dates in order.
func (g Grid) Days() []Day {
	out := make([]Day, 0, len(g.Cells)-g.Offset)
	for _, c := range g.Cells {
		if !c.Blank {
			out = append(out, c.Date)
		}
	}
	return out
}

// WeekdayOrder lists the seven weekdays starting at first, i.e. the
// column headers of a grid.
func WeekdayOrder(first time.Weekday) []time.Weekday {
	out := make([]time.Weekday, 7)
	for i := range out {
		out[i] = time.Weekday((int(first) + i) % 7)
	}
	return out
}

func wrapState(err error) error {
	if errors.Is(err, ErrInvalidCalendarState) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrInvalidCalendarState, err)
}
