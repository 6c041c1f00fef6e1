// Package calendar computes month grids over a pluggable calendar
// definition. Gregorian is the implementation used by the app; the
// interface exists so grid and marker code never do raw 24h arithmetic.
package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidCalendarState is returned when the calendar cannot resolve a
// month interval or step to another day.
var ErrInvalidCalendarState = errors.New("calendar: invalid calendar state")

// Calendar defines month/day boundaries and weekday numbering.
type Calendar interface {
	Location() *time.Location
	// StartOfDay normalizes t to its Day in the calendar's location.
	StartOfDay(t time.Time) Day
	// MonthInterval returns the half-open range [start, end) of the month
	// containing t.
	MonthInterval(t time.Time) (start, end Day, err error)
	// AddDays steps n whole calendar days from d.
	AddDays(d Day, n int) (Day, error)
	Weekday(d Day) time.Weekday
}

// Supported year range of Gregorian; the YYYY text form cannot go further.
const (
	MinYear = 1
	MaxYear = 9999
)

var (
	lowerBound = Day{Year: MinYear, Month: time.January, Day: 1}
	// upperBound is the exclusive end of the last supported month. It is
	// reachable by AddDays so December 9999 can still be iterated.
	upperBound = Day{Year: MaxYear + 1, Month: time.January, Day: 1}
)

// maxDaySpan exceeds the distance between lowerBound and upperBound, so
// any larger step is out of range without computing it.
const maxDaySpan = (MaxYear + 1) * 366

// Gregorian is the proleptic Gregorian calendar in a fixed location.
type Gregorian struct {
	loc *time.Location
}

// NewGregorian returns a Gregorian calendar in loc (time.Local if nil).
func NewGregorian(loc *time.Location) *Gregorian {
	if loc == nil {
		loc = time.Local
	}
	return &Gregorian{loc: loc}
}

func (g *Gregorian) Location() *time.Location {
	return g.loc
}

func (g *Gregorian) StartOfDay(t time.Time) Day {
	return DayOf(t.In(g.loc))
}

func (g *Gregorian) MonthInterval(t time.Time) (Day, Day, error) {
	d := g.StartOfDay(t)
	if d.Before(lowerBound) || !d.Before(upperBound) {
		return Day{}, Day{}, fmt.Errorf("%w: month of %s out of range", ErrInvalidCalendarState, d)
	}
	start := Day{Year: d.Year, Month: d.Month, Day: 1}
	end := NewDay(d.Year, d.Month+1, 1)
	return start, end, nil
}

func (g *Gregorian) AddDays(d Day, n int) (Day, error) {
	if !valid(d) {
		return Day{}, fmt.Errorf("%w: %s is not a calendar day", ErrInvalidCalendarState, d)
	}
	if n > maxDaySpan || n < -maxDaySpan {
		return Day{}, fmt.Errorf("%w: %s + %d days out of range", ErrInvalidCalendarState, d, n)
	}
	next := NewDay(d.Year, d.Month, d.Day+n)
	if !inRange(next) {
		return Day{}, fmt.Errorf("%w: %s + %d days out of range", ErrInvalidCalendarState, d, n)
	}
	return next, nil
}

func (g *Gregorian) Weekday(d Day) time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC).Weekday()
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return NewDay(year, month+1, 0).Day
}

func inRange(d Day) bool {
	return !d.Before(lowerBound) && !upperBound.Before(d)
}

func valid(d Day) bool {
	if !inRange(d) || d.Month < time.January || d.Month > time.December {
		return false
	}
	return d.Day >= 1 && d.Day <= DaysIn(d.Year, d.Month)
}

// ParseWeekday accepts full or three-letter English weekday names.
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		full := strings.ToLower(wd.String())
		if name == full || name == full[:3] {
			return wd, nil
		}
	}
	return time.Sunday, fmt.Errorf("calendar: unknown weekday %q", s)
}

// WeekdayFromNumber converts the 1=Sunday..7=Saturday numbering to
// time.Weekday.
func WeekdayFromNumber(n int) (time.Weekday, error) {
	if n < 1 || n > 7 {
		return time.Sunday, fmt.Errorf("calendar: weekday number %d not in 1..7", n)
	}
	return time.Weekday(n - 1), nil
}
