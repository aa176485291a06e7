// Package metrics exports service metrics to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fithub/fithub-api/internal/domain"
)

const namespace = "fithub"

// Metrics records upload, toggle and HTTP metrics. It satisfies the
// uploader and reconciler observer interfaces.
type Metrics struct {
	uploadDuration *prometheus.HistogramVec
	uploadBytes    *prometheus.CounterVec
	toggleDuration *prometheus.HistogramVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	gatherer       prometheus.Gatherer
}

// New registers the collectors on reg. Collectors that are already
// registered are reused, so New may be called more than once per registry.
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		return nil, errors.New("metrics registry cannot be nil")
	}

	m := &Metrics{gatherer: reg}
	var err error

	if m.uploadDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "attach",
		Name:      "upload_duration_seconds",
		Help:      "Latency of single image uploads to object storage.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"kind", "outcome"})); err != nil {
		return nil, err
	}
	if m.uploadBytes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "attach",
		Name:      "uploaded_bytes_total",
		Help:      "Bytes successfully uploaded to object storage.",
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	if m.toggleDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "reconcile",
		Name:      "toggle_duration_seconds",
		Help:      "Latency of like, save and comment-like toggles.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"relation", "result"})); err != nil {
		return nil, err
	}
	if m.httpRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})); err != nil {
		return nil, err
	}
	if m.httpDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("failed to register collector: %w", err)
	}
	return c, nil
}

// ObserveUpload records one finished upload.
func (m *Metrics) ObserveUpload(kind domain.ContentKind, outcome string, bytes int, elapsed time.Duration) {
	m.uploadDuration.WithLabelValues(string(kind), outcome).Observe(elapsed.Seconds())
	if outcome == "success" {
		m.uploadBytes.WithLabelValues(string(kind)).Add(float64(bytes))
	}
}

// ObserveToggle records one finished toggle.
func (m *Metrics) ObserveToggle(relation domain.Relation, result string, elapsed time.Duration) {
	m.toggleDuration.WithLabelValues(string(relation), result).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency labelled by the matched
// chi route pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
