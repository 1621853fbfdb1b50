package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	httpSubsystem = "http"

	RequestsCollectorName      = "requests_total"
	LatencyCollectorName       = "request_duration_seconds"
	UploadLatencyCollectorName = "upload_duration_seconds"
	uploadRoute                = "/api/v1/jobs"
	unmatchedRoute             = "unmatched"
	codeLabel                  = "code"
	methodLabel                = "method"
	routeLabel                 = "route"
)

var (
	// DefaultLatencyBuckets fit status polls and history reads.
	DefaultLatencyBuckets = []float64{.005, .025, .1, .25, .5, 1, 2.5, 5, 10}
	// uploadBuckets cover parsing a workbook and inserting up to a few hundred rows.
	uploadBuckets = []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60}
)

// Middleware counts API requests and times them by route pattern. Spreadsheet
// uploads are timed on their own histogram.
type Middleware struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	uploads  *prometheus.HistogramVec
}

// NewMiddleware returns a middleware whose request histogram uses buckets,
// or DefaultLatencyBuckets when buckets is empty.
func NewMiddleware(buckets []float64) *Middleware {
	if len(buckets) == 0 {
		buckets = DefaultLatencyBuckets
	}
	labels := []string{codeLabel, methodLabel, routeLabel}

	return &Middleware{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: slidesmith,
			Subsystem: httpSubsystem,
			Name:      RequestsCollectorName,
			Help:      "number of API requests by status code, method and route",
		}, labels),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: slidesmith,
			Subsystem: httpSubsystem,
			Name:      LatencyCollectorName,
			Help:      "time spent serving API requests by status code, method and route",
			Buckets:   buckets,
		}, labels),
		uploads: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: slidesmith,
			Subsystem: httpSubsystem,
			Name:      UploadLatencyCollectorName,
			Help:      "time spent accepting spreadsheet uploads by status code",
			Buckets:   uploadBuckets,
		}, []string{codeLabel}),
	}
}

// Handler returns a handler for the middleware pattern.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := unmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		code := strconv.Itoa(ww.Status())
		elapsed := time.Since(start).Seconds()

		m.requests.WithLabelValues(code, r.Method, route).Inc()
		if r.Method == http.MethodPost && route == uploadRoute {
			m.uploads.WithLabelValues(code).Observe(elapsed)
			return
		}
		m.latency.WithLabelValues(code, r.Method, route).Observe(elapsed)
	})
}

// Collectors returns collector for your own collector registry.
func (m *Middleware) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.requests, m.latency, m.uploads}
}

// Register adds the collectors to reg. Collectors already registered by an
// earlier router are reused so rebuilding the router does not panic.
func (m *Middleware) Register(reg prometheus.Registerer) error {
	var err error
	if m.requests, err = register(reg, m.requests); err != nil {
		return err
	}
	if m.latency, err = register(reg, m.latency); err != nil {
		return err
	}
	m.uploads, err = register(reg, m.uploads)
	return err
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, err
}
