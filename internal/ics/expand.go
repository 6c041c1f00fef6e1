package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	"cyclical/internal/calendar"
	appLog "cyclical/internal/log"
)

const defaultMaxOccurrencesPerEvent = 1000

// Overlay maps each day to the summaries of feed events covering it.
type Overlay map[calendar.Day][]string

// ExpandConfig bounds an expansion to the half-open day window [From, To).
type ExpandConfig struct {
	From calendar.Day
	To   calendar.Day
	// MaxOccurrencesPerEvent caps RRULE expansion; zero means the default.
	MaxOccurrencesPerEvent int
}

// occurrence is one concrete instance of a feed event.
type occurrence struct {
	summary string
	allDay  bool
	start   time.Time
	end     time.Time
}

// ExpandDays expands events (RRULE, EXDATE and RECURRENCE-ID overrides
// included) and returns the overlay for the window. All-day events keep
// their floating date; timed events are mapped through cal's location.
// The second result lists UIDs whose expansion hit the cap.
func ExpandDays(events []FeedEvent, cfg ExpandConfig, cal calendar.Calendar) (Overlay, []string, error) {
	if cal == nil {
		return nil, nil, errors.New("expand: nil calendar")
	}
	if cfg.To.Before(cfg.From) {
		return nil, nil, errors.New("expand: To is before From")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	loc := cal.Location()
	rangeStart := cfg.From.In(loc)
	rangeEnd := cfg.To.In(loc)

	bases := make(map[string][]FeedEvent)
	overrides := make(map[string][]FeedEvent)
	var order []string
	for _, ev := range events {
		if ev.IsOverride() {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		if _, seen := bases[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		bases[ev.UID] = append(bases[ev.UID], ev)
	}

	overlay := make(Overlay)
	var truncated []string
	for _, uid := range order {
		hitCap := false
		for _, ev := range bases[uid] {
			occs, capped := expandEvent(ev, overrides[uid], rangeStart, rangeEnd, cfg.MaxOccurrencesPerEvent)
			hitCap = hitCap || capped
			for _, o := range occs {
				overlay.add(o, cfg, cal)
			}
		}
		if hitCap {
			truncated = append(truncated, uid)
			appLog.Warn("expand: occurrences truncated", "uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
		}
	}
	return overlay, truncated, nil
}

func expandEvent(ev FeedEvent, overrides []FeedEvent, rangeStart, rangeEnd time.Time, limit int) ([]occurrence, bool) {
	dur := ev.End.Sub(ev.Start)

	if ev.RawRRule == "" {
		o := applyOverride(ev, overrides, ev.Start, ev.End)
		if !o.within(rangeStart, rangeEnd) {
			return nil, false
		}
		return []occurrence{o}, false
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the bounds so instances that started before the window but
	// still cover it are kept, and so floating all-day dates are not lost
	// to a zone offset. Overlay.add clips to the exact day window.
	after := rangeStart.Add(-dur - 24*time.Hour).In(ev.Start.Location())
	before := rangeEnd.Add(24 * time.Hour).In(ev.Start.Location())
	starts := set.Between(after, before, true)

	hitCap := false
	if len(starts) > limit {
		starts = starts[:limit]
		hitCap = true
	}

	out := make([]occurrence, 0, len(starts))
	for _, s := range starts {
		e := s.Add(dur)
		if ev.AllDay {
			// Keep whole-day spans even across DST shifts.
			days := int(dur.Hours()/24 + 0.5)
			if days < 1 {
				days = 1
			}
			e = s.AddDate(0, 0, days)
		}
		o := applyOverride(ev, overrides, s, e)
		if o.within(rangeStart, rangeEnd) {
			out = append(out, o)
		}
	}
	return out, hitCap
}

// applyOverride returns the occurrence starting at start, replaced by an
// override whose RECURRENCE-ID matches it.
func applyOverride(ev FeedEvent, overrides []FeedEvent, start, end time.Time) occurrence {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return occurrence{summary: ov.Summary, allDay: ov.AllDay, start: ov.Start, end: ov.End}
		}
	}
	return occurrence{summary: ev.Summary, allDay: ev.AllDay, start: start, end: end}
}

// add records o on every day it covers inside the window. A day gets each
// summary at most once.
func (ov Overlay) add(o occurrence, cfg ExpandConfig, cal calendar.Calendar) {
	var first, last calendar.Day
	if o.allDay {
		first = calendar.DayOf(o.start)
		last = calendar.DayOf(o.end)
		if !first.Before(last) {
			last = calendar.NewDay(first.Year, first.Month, first.Day+1)
		}
	} else {
		first = cal.StartOfDay(o.start)
		// end is exclusive; an instantaneous event still shows on its day.
		endInstant := o.end
		if endInstant.After(o.start) {
			endInstant = endInstant.Add(-time.Nanosecond)
		}
		lastIncl := cal.StartOfDay(endInstant)
		next, err := cal.AddDays(lastIncl, 1)
		if err != nil {
			return
		}
		last = next
	}

	if first.Before(cfg.From) {
		first = cfg.From
	}
	if cfg.To.Before(last) {
		last = cfg.To
	}
	for d := first; d.Before(last); {
		ov[d] = appendUnique(ov[d], o.summary)
		next, err := cal.AddDays(d, 1)
		if err != nil {
			return
		}
		d = next
	}
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

// within reports whether o may cover part of [start, end). All-day
// occurrences are floating dates, so they pass with a day of slack and are
// clipped later by day.
func (o occurrence) within(start, end time.Time) bool {
	if o.allDay {
		return overlaps(o.start, o.end, start.Add(-24*time.Hour), end.Add(24*time.Hour))
	}
	return overlaps(o.start, o.end, start, end)
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if !aEnd.After(aStart) {
		// Instantaneous events overlap if they fall inside the range.
		return !aStart.Before(bStart) && aStart.Before(bEnd)
	}
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
