package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"cyclical/internal/calendar"
	"cyclical/internal/ics"
	appLog "cyclical/internal/log"
	"cyclical/internal/marker"
	"cyclical/internal/model"
	"cyclical/internal/session"
)

// monthView renders the month containing ref with the current selection
// and feed overlay.
func (s *Server) monthView(ref time.Time) (model.MonthView, error) {
	_, selected := s.selection.Current()
	overlay := s.feeds.get()
	return model.BuildMonthView(ref, s.store, model.ViewConfig{
		Calendar:     s.cal,
		FirstWeekday: s.cfg.FirstWeekday(),
		Tag:          s.cfg.Marker.Tag,
		Now:          s.now(),
		Selected:     selected,
		Overlay:      overlay,
	})
}

func (s *Server) handleCurrentMonth(w http.ResponseWriter, _ *http.Request) {
	view, err := s.monthView(s.now())
	if err != nil {
		writeStatusError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	year, _ := strconv.Atoi(vars["year"])
	month, _ := strconv.Atoi(vars["month"])
	if month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "month must be 1-12")
		return
	}

	ref := time.Date(year, time.Month(month), 1, 12, 0, 0, 0, s.cal.Location())
	view, err := s.monthView(ref)
	if err != nil {
		writeStatusError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// markersResponse is the JSON shape of GET /api/markers.
type markersResponse struct {
	Markers marker.Snapshot `json:"markers"`
}

func (s *Server) handleMarkers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, markersResponse{Markers: s.store.Snapshot()})
}

// propagateRequest is the body of POST /api/markers. Days and Tag fall
// back to the configured marker settings.
type propagateRequest struct {
	Date calendar.Day `json:"date"`
	Days *int         `json:"days,omitempty"`
	Tag  string       `json:"tag,omitempty"`
}

type propagateResponse struct {
	Start  calendar.Day   `json:"start"`
	Tag    string         `json:"tag"`
	Marked []calendar.Day `json:"marked"`
}

func (s *Server) handlePropagate(w http.ResponseWriter, r *http.Request) {
	var req propagateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Date.IsZero() {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	days := s.cfg.MarkerDays()
	if req.Days != nil {
		days = *req.Days
	}
	if days > marker.MaxDayCount {
		writeError(w, http.StatusBadRequest, "days must be <= "+strconv.Itoa(marker.MaxDayCount))
		return
	}
	tag := req.Tag
	if tag == "" {
		tag = s.cfg.Marker.Tag
	}

	marked, err := s.propagate(r.Context(), req.Date, days, tag)
	if err != nil {
		writeStatusError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, propagateResponse{Start: req.Date, Tag: tag, Marked: marked})
}

func (s *Server) handleMarkersICS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="markers.ics"`)
	if err := ics.EncodeMarkers(w, s.store.Snapshot(), ""); err != nil {
		appLog.Error("marker export failed", err)
	}
}

// selectionResponse is the JSON shape of every /api/selection endpoint.
type selectionResponse struct {
	State session.State `json:"state"`
	Date  calendar.Day  `json:"date,omitzero"`
}

func (s *Server) writeSelection(w http.ResponseWriter) {
	state, day := s.selection.Current()
	writeJSON(w, http.StatusOK, selectionResponse{State: state, Date: day})
}

func (s *Server) handleGetSelection(w http.ResponseWriter, _ *http.Request) {
	s.writeSelection(w)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date calendar.Day `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := s.selection.Select(req.Date); err != nil {
		writeStatusError(w, err)
		return
	}
	s.writeSelection(w)
}

func (s *Server) handleConfirm(w http.ResponseWriter, _ *http.Request) {
	if err := s.selection.RequestConfirmation(); err != nil {
		writeStatusError(w, err)
		return
	}
	s.writeSelection(w)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Accept *bool `json:"accept"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Accept == nil {
		writeError(w, http.StatusBadRequest, `body must be {"accept": true|false}`)
		return
	}
	if _, err := s.selection.Resolve(*req.Accept); err != nil {
		writeStatusError(w, err)
		return
	}
	s.writeSelection(w)
}

func (s *Server) handleCancelSelection(w http.ResponseWriter, _ *http.Request) {
	s.selection.Cancel()
	s.writeSelection(w)
}

func (s *Server) handleFeedStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.feeds.lastStatus())
}

func (s *Server) handleRefreshFeeds(w http.ResponseWriter, r *http.Request) {
	status, err := s.RefreshFeeds(r.Context())
	if err != nil && status.UpdatedAt.IsZero() {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, calendar.ErrInvalidCalendarState):
		return http.StatusUnprocessableEntity
	case errors.Is(err, marker.ErrInvalidDayCount), errors.Is(err, marker.ErrEmptyTag):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeStatusError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		appLog.Error("request failed", err)
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
