// Package session tracks the single-screen selection flow: a user picks a
// day, is asked to confirm, and on "yes" the day is marked.
package session

import (
	"errors"
	"fmt"
	"sync"

	"cyclical/internal/calendar"
)

type State int

const (
	NoSelection State = iota
	DaySelected
	ConfirmationPending
)

func (s State) String() string {
	switch s {
	case NoSelection:
		return "no_selection"
	case DaySelected:
		return "day_selected"
	case ConfirmationPending:
		return "confirmation_pending"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var ErrInvalidTransition = errors.New("session: invalid transition")

// ApplyFunc is invoked with the selected day when a confirmation is
// accepted.
type ApplyFunc func(day calendar.Day) error

// Selection is the selection state machine. It carries no calendar logic
// of its own; accepting a confirmation hands the day to apply.
type Selection struct {
	apply ApplyFunc

	mu    sync.Mutex
	state State
	day   calendar.Day
}

func NewSelection(apply ApplyFunc) *Selection {
	return &Selection{apply: apply}
}

// Current returns the state and, unless NoSelection, the selected day.
func (s *Selection) Current() (State, calendar.Day) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.day
}

// Select picks a day. Re-selecting while DaySelected replaces the day; it
// is rejected while a confirmation is pending.
func (s *Selection) Select(day calendar.Day) error {
	if day.IsZero() {
		return fmt.Errorf("%w: no day to select", ErrInvalidTransition)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == ConfirmationPending {
		return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, "select", s.state)
	}
	s.state = DaySelected
	s.day = day
	return nil
}

func (s *Selection) RequestConfirmation() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != DaySelected {
		return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, "confirm", s.state)
	}
	s.state = ConfirmationPending
	return nil
}

// Resolve answers the pending confirmation. On accept the apply function
// runs; if it fails the confirmation stays pending so the user can retry
// or decline.
func (s *Selection) Resolve(accept bool) (calendar.Day, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ConfirmationPending {
		return calendar.Day{}, fmt.Errorf("%w: %s while %s", ErrInvalidTransition, "resolve", s.state)
	}
	day := s.day
	if accept && s.apply != nil {
		if err := s.apply(day); err != nil {
			return day, err
		}
	}
	s.state = NoSelection
	s.day = calendar.Day{}
	return day, nil
}

func (s *Selection) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = NoSelection
	s.day = calendar.Day{}
}
