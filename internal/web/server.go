package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"cyclical/internal/calendar"
	"cyclical/internal/config"
	"cyclical/internal/ics"
	appLog "cyclical/internal/log"
	"cyclical/internal/marker"
	"cyclical/internal/session"
)

// Options wires a Server. Store and Calendar are required.
type Options struct {
	Config    *config.Config
	Calendar  calendar.Calendar
	Store     *marker.Store
	Persister marker.Persister
	// Fetcher is used for feed refreshes; nil builds one from CacheDir.
	Fetcher *ics.Fetcher
	// PreviewPath is the PNG served at /preview.png.
	PreviewPath string
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Server is the composition root's HTTP surface: JSON API, the HTML month
// page, metrics and the preview image.
type Server struct {
	cfg       *config.Config
	cal       calendar.Calendar
	store     *marker.Store
	persister marker.Persister
	selection *session.Selection
	feeds     *feedCache
	metrics   *metrics
	preview   string
	now       func() time.Time

	// saveMu orders snapshot+Save so the persisted file never goes
	// backwards.
	saveMu sync.Mutex

	router *mux.Router
}

// NewServer constructs a new Server.
func NewServer(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	persister := opts.Persister
	if persister == nil {
		persister = marker.Nop{}
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = ics.NewFetcher(cfg.CacheDir, nil)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		cfg:       cfg,
		cal:       opts.Calendar,
		store:     opts.Store,
		persister: persister,
		feeds:     newFeedCache(fetcher),
		preview:   opts.PreviewPath,
		now:       now,
		router:    mux.NewRouter(),
	}
	s.metrics = newMetrics(s.store)
	s.selection = session.NewSelection(s.applyMarker)
	s.registerRoutes()
	return s
}

// Handler returns the router wrapped with basic auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Run listens on cfg.Listen and serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+ln.Addr().String(), "basic_auth", s.basicAuthEnabled())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(s.metrics.middleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.handler()).Methods(http.MethodGet)
	r.HandleFunc("/preview.png", s.handlePreview).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/months/current", s.handleCurrentMonth).Methods(http.MethodGet)
	api.HandleFunc("/months/{year:[0-9]{1,4}}/{month:[0-9]{1,2}}", s.handleMonth).Methods(http.MethodGet)
	api.HandleFunc("/markers", s.handleMarkers).Methods(http.MethodGet)
	api.HandleFunc("/markers", s.handlePropagate).Methods(http.MethodPost)
	api.HandleFunc("/markers.ics", s.handleMarkersICS).Methods(http.MethodGet)
	api.HandleFunc("/selection", s.handleGetSelection).Methods(http.MethodGet)
	api.HandleFunc("/selection", s.handleSelect).Methods(http.MethodPost)
	api.HandleFunc("/selection", s.handleCancelSelection).Methods(http.MethodDelete)
	api.HandleFunc("/selection/confirm", s.handleConfirm).Methods(http.MethodPost)
	api.HandleFunc("/selection/resolve", s.handleResolve).Methods(http.MethodPost)
	api.HandleFunc("/feeds", s.handleFeedStatus).Methods(http.MethodGet)
	api.HandleFunc("/feeds/refresh", s.handleRefreshFeeds).Methods(http.MethodPost)

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/calendar", http.StatusFound)
	}).Methods(http.MethodGet)
	r.HandleFunc("/calendar", s.handleCalendarPage).Methods(http.MethodGet)
	r.HandleFunc("/calendar/select", s.handlePageSelect).Methods(http.MethodPost)
	r.HandleFunc("/calendar/resolve", s.handlePageResolve).Methods(http.MethodPost)
	r.HandleFunc("/calendar/cancel", s.handlePageCancel).Methods(http.MethodPost)
}

// applyMarker is the selection's accept action: propagate from the
// selected day with the configured window, then persist.
func (s *Server) applyMarker(day calendar.Day) error {
	_, err := s.propagate(context.Background(), day, s.cfg.MarkerDays(), s.cfg.Marker.Tag)
	return err
}

func (s *Server) propagate(ctx context.Context, day calendar.Day, days int, tag string) ([]calendar.Day, error) {
	marked, err := s.store.Propagate(day, days, tag)
	if err != nil {
		return nil, err
	}
	s.metrics.propagations.WithLabelValues(tag).Inc()
	appLog.Info("markers propagated", "start", day, "days", days, "tag", tag)

	s.persist(ctx)
	return marked, nil
}

// persist saves the current store contents. The snapshot is taken under
// saveMu, so the last Save to finish always holds the newest state.
func (s *Server) persist(ctx context.Context) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if err := s.persister.Save(ctx, s.store.Snapshot()); err != nil {
		// The in-memory store is still authoritative for the session.
		appLog.Error("marker persist failed", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.preview == "" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, s.preview)
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials are treated as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Cyclical", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
