package calendar

import (
	"fmt"
	"time"
)

// DateFormat is the text form of a Day, used in JSON, query strings and
// the HTML month page.
const DateFormat = "2006-01-02"

// Day is a single calendar day. Two Days are equal iff they name the same
// year, month and day, so Day is safe to use as a map key.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDay builds a Day, normalizing overflow the way time.Date does
// (e.g. March 32 becomes April 1).
func NewDay(year int, month time.Month, day int) Day {
	// Noon avoids DST gaps at midnight when normalizing.
	return DayOf(time.Date(year, month, day, 12, 0, 0, 0, time.UTC))
}

// DayOf returns the Day of t in t's own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

// ParseDay parses the YYYY-MM-DD form.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return Day{}, fmt.Errorf("calendar: parse day %q: %w", s, err)
	}
	return DayOf(t), nil
}

// In returns midnight of d in loc.
func (d Day) In(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Day) IsZero() bool {
	return d == Day{}
}

func (d Day) Before(o Day) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Day) UnmarshalText(b []byte) error {
	parsed, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
