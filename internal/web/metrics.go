package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cyclical/internal/marker"
)

// metrics lives on its own registry so each Server (and test) starts
// clean.
type metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	propagations  *prometheus.CounterVec
	feedRefreshes *prometheus.CounterVec
}

func newMetrics(store *marker.Store) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		propagations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cyclical_marker_propagations_total",
			Help: "Confirmed marker propagations",
		}, []string{"tag"}),
		feedRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cyclical_feed_refreshes_total",
			Help: "Feed overlay refreshes by result",
		}, []string{"result"}),
	}

	m.registry.MustRegister(m.requests, m.duration, m.propagations, m.feedRefreshes)
	if store != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "cyclical_marked_days",
			Help: "Days carrying at least one marker",
		}, func() float64 { return float64(store.Len()) }))
	}
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// middleware records request counts and latency labeled by route
// template, which keeps /api/months/{year}/{month} to one series.
func (m *metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(ww.status)).Inc()
		m.duration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
