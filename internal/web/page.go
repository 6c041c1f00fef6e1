package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"cyclical/internal/calendar"
	appLog "cyclical/internal/log"
	"cyclical/internal/model"
	"cyclical/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

const monthParamLayout = "2006-01"

var pageTemplate = template.Must(template.New("calendar.html").Funcs(template.FuncMap{
	"monthParam": func(d calendar.Day) string {
		return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
	},
	"cellClass": func(c model.Cell) string {
		var classes []string
		if c.Today {
			classes = append(classes, "today")
		}
		if c.Marked {
			classes = append(classes, "marked")
		}
		if c.Selected {
			classes = append(classes, "selected")
		}
		return strings.Join(classes, " ")
	},
}).ParseFS(templateFS, "templates/calendar.html"))

type pageData struct {
	View     model.MonthView
	State    session.State
	Selected calendar.Day
	Pending  bool
	Days     int
}

// handleCalendarPage renders the month grid. ?month=YYYY-MM picks the
// month; otherwise the selected day's month, or the current one.
func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	state, selected := s.selection.Current()

	ref := s.now()
	if !selected.IsZero() {
		ref = selected.In(s.cal.Location())
	}
	if m := r.URL.Query().Get("month"); m != "" {
		t, err := time.ParseInLocation(monthParamLayout, m, s.cal.Location())
		if err != nil {
			http.Error(w, "month must be YYYY-MM", http.StatusBadRequest)
			return
		}
		ref = t
	}

	view, err := s.monthView(ref)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	var buf bytes.Buffer
	err = pageTemplate.Execute(&buf, pageData{
		View:     view,
		State:    state,
		Selected: selected,
		Pending:  state == session.ConfirmationPending,
		Days:     s.cfg.MarkerDays(),
	})
	if err != nil {
		appLog.Error("calendar template failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handlePageSelect is a tap on a day cell: select it and ask for
// confirmation right away.
func (s *Server) handlePageSelect(w http.ResponseWriter, r *http.Request) {
	day, err := calendar.ParseDay(r.PostFormValue("date"))
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	if err := s.selection.Select(day); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	if err := s.selection.RequestConfirmation(); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	redirectToMonth(w, r, day)
}

func (s *Server) handlePageResolve(w http.ResponseWriter, r *http.Request) {
	var accept bool
	switch r.PostFormValue("accept") {
	case "yes", "true":
		accept = true
	case "no", "false":
	default:
		http.Error(w, "accept must be yes or no", http.StatusBadRequest)
		return
	}

	day, err := s.selection.Resolve(accept)
	if err != nil {
		if errors.Is(err, session.ErrInvalidTransition) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		// Still pending; the page shows the prompt again.
		appLog.Warn("marker propagation failed", "date", day, "err", err)
	}
	redirectToMonth(w, r, day)
}

func (s *Server) handlePageCancel(w http.ResponseWriter, r *http.Request) {
	_, day := s.selection.Current()
	s.selection.Cancel()
	redirectToMonth(w, r, day)
}

func redirectToMonth(w http.ResponseWriter, r *http.Request, day calendar.Day) {
	target := "/calendar"
	if !day.IsZero() {
		target += fmt.Sprintf("?month=%04d-%02d", day.Year, int(day.Month))
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
