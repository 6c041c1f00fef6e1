// Package marker holds the session's day markers: an in-memory mapping
// from calendar day to an ordered list of tags.
package marker

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"cyclical/internal/calendar"
)

const (
	// DefaultTag is the tag recorded when a user confirms a day.
	DefaultTag = "✓"
	// DefaultDayCount marks the selected day plus the five that follow.
	DefaultDayCount = 5
	// MaxDayCount bounds the configured and requested window to roughly
	// ten years. Propagate itself accepts any count the calendar can reach.
	MaxDayCount = 3660

	preallocDays = 366
)

var (
	ErrInvalidDayCount = errors.New("marker: day count must be >= 0")
	ErrEmptyTag        = errors.New("marker: tag is empty")
)

// Snapshot is a detached copy of the store contents.
type Snapshot map[calendar.Day][]string

// Store maps days to marker tags. Entries are only ever appended, through
// Propagate or Restore; nothing is removed for the life of the process.
type Store struct {
	cal calendar.Calendar

	mu   sync.RWMutex
	tags map[calendar.Day][]string
}

// NewStore returns an empty store that uses cal for day arithmetic.
func NewStore(cal calendar.Calendar) *Store {
	return &Store{
		cal:  cal,
		tags: make(map[calendar.Day][]string),
	}
}

// Propagate appends tag to start and to each of the dayCount days after
// it, i.e. offsets 0 through dayCount inclusive, and returns those days
// in order. Overlapping calls accumulate duplicate tags. Either every day
// is updated or none is.
func (s *Store) Propagate(start calendar.Day, dayCount int, tag string) ([]calendar.Day, error) {
	if dayCount < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDayCount, dayCount)
	}
	if tag == "" {
		return nil, ErrEmptyTag
	}

	// Resolve the far end first so an out-of-range count fails before
	// anything is allocated.
	if _, err := s.cal.AddDays(start, dayCount); err != nil {
		return nil, stateError(err)
	}

	days := make([]calendar.Day, 0, min(dayCount, preallocDays)+1)
	for offset := 0; offset <= dayCount; offset++ {
		d, err := s.cal.AddDays(start, offset)
		if err != nil {
			return nil, stateError(err)
		}
		days = append(days, d)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range days {
		s.tags[d] = append(s.tags[d], tag)
	}
	return days, nil
}

func stateError(err error) error {
	if errors.Is(err, calendar.ErrInvalidCalendarState) {
		return err
	}
	return fmt.Errorf("%w: %v", calendar.ErrInvalidCalendarState, err)
}

// HasMarker reports whether tag appears anywhere in day's list.
func (s *Store) HasMarker(day calendar.Day, tag string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tags[day] {
		if t == tag {
			return true
		}
	}
	return false
}

// Tags returns a copy of day's tags in insertion order.
func (s *Store) Tags(day calendar.Day) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.tags[day]
	if len(list) == 0 {
		return nil
	}
	return append([]string(nil), list...)
}

// Len returns the number of days carrying at least one tag.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tags)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(Snapshot, len(s.tags))
	for d, list := range s.tags {
		out[d] = append([]string(nil), list...)
	}
	return out
}

// Restore appends the snapshot's tags to the store. It is meant for
// loading persisted markers at startup.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for d, list := range snap {
		if len(list) == 0 {
			continue
		}
		s.tags[d] = append(s.tags[d], list...)
	}
}

// Days returns the sorted keys of snap.
func (snap Snapshot) Days() []calendar.Day {
	days := make([]calendar.Day, 0, len(snap))
	for d := range snap {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}
