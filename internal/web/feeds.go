package web

import (
	"context"
	"errors"
	"sync"
	"time"

	"cyclical/internal/calendar"
	"cyclical/internal/ics"
	appLog "cyclical/internal/log"
)

// feedWindowMonths is how far either side of the current month the overlay
// is expanded.
const feedWindowMonths = 12

// feedCache holds the last expanded feed overlay. Requests only read it;
// RefreshFeeds rebuilds it.
type feedCache struct {
	fetcher *ics.Fetcher

	mu      sync.RWMutex
	overlay ics.Overlay
	status  FeedStatus
}

func newFeedCache(f *ics.Fetcher) *feedCache {
	return &feedCache{fetcher: f}
}

func (c *feedCache) get() ics.Overlay {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.overlay
}

func (c *feedCache) lastStatus() FeedStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *feedCache) set(ov ics.Overlay, status FeedStatus) {
	c.mu.Lock()
	c.overlay = ov
	c.status = status
	c.mu.Unlock()
}

// FeedStatus describes the last overlay rebuild. It is the JSON body of
// GET /api/feeds and POST /api/feeds/refresh.
type FeedStatus struct {
	Feeds     int       `json:"feeds"`
	Days      int       `json:"days"`
	Truncated []string  `json:"truncated,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
	Errors    []string  `json:"errors,omitempty"`
}

// RefreshFeeds fetches every configured feed and rebuilds the overlay.
// A feed that fails without a cached copy is skipped; the error is
// returned joined with the others once the remaining feeds are applied.
func (s *Server) RefreshFeeds(ctx context.Context) (FeedStatus, error) {
	sources := make([]ics.Source, 0, len(s.cfg.Feeds))
	for _, f := range s.cfg.Feeds {
		sources = append(sources, ics.Source{ID: f.SourceID(), URL: f.URL})
	}
	if len(sources) == 0 {
		status := FeedStatus{UpdatedAt: s.now()}
		s.feeds.set(nil, status)
		return status, nil
	}

	results, errs := s.feeds.fetcher.FetchAll(ctx, sources)

	var events []ics.FeedEvent
	for _, res := range results {
		evs, err := ics.ParseFeed(res.Source.ID, res.Body)
		if err != nil {
			appLog.Error("feed parse failed", err, "source", res.Source.ID)
			errs = append(errs, err)
			continue
		}
		events = append(events, evs...)
	}

	ref := s.cal.StartOfDay(s.now())
	monthStart := calendar.NewDay(ref.Year, ref.Month, 1).In(s.cal.Location())
	overlay, truncated, err := ics.ExpandDays(events, ics.ExpandConfig{
		From: calendar.DayOf(monthStart.AddDate(0, -feedWindowMonths, 0)),
		To:   calendar.DayOf(monthStart.AddDate(0, feedWindowMonths+1, 0)),
	}, s.cal)
	if err != nil {
		s.metrics.feedRefreshes.WithLabelValues("error").Inc()
		return FeedStatus{}, err
	}

	status := FeedStatus{
		Feeds:     len(results),
		Days:      len(overlay),
		Truncated: truncated,
		UpdatedAt: s.now(),
	}
	for _, e := range errs {
		status.Errors = append(status.Errors, e.Error())
	}
	s.feeds.set(overlay, status)

	result := "ok"
	if len(errs) > 0 {
		result = "partial"
	}
	s.metrics.feedRefreshes.WithLabelValues(result).Inc()
	appLog.Info("feeds refreshed",
		"feeds", len(results),
		"events", len(events),
		"days", len(overlay),
		"truncated", len(truncated),
		"errors", len(errs),
	)
	return status, errors.Join(errs...)
}
