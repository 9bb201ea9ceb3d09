package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	domain "github.com/vendormart/api/internal/domain"
	"github.com/vendormart/api/internal/services"
)

const namespace = "vendormart"

// Registry owns the API's collectors. It satisfies services.Metrics for business counters.
type Registry struct {
	registry       *prometheus.Registry
	requests       *prometheus.CounterVec
	latencyMS      *prometheus.HistogramVec
	orderEvents    *prometheus.CounterVec
	stockMovements *prometheus.CounterVec
}

var _ services.Metrics = (*Registry)(nil)

// NewRegistry registers HTTP, business and Go runtime collectors on a private registry.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		latencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route", "method"}),
		orderEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "events_total",
			Help:      "Order lifecycle events by kind.",
		}, []string{"event"}),
		stockMovements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stock",
			Name:      "movements_total",
			Help:      "Stock adjustments by direction; applied=false marks replays.",
		}, []string{"direction", "applied"}),
	}
	reg.MustRegister(
		r.requests,
		r.latencyMS,
		r.orderEvents,
		r.stockMovements,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler exposes the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Registry) OrderEvent(event string) {
	r.orderEvents.WithLabelValues(event).Inc()
}

func (r *Registry) StockMovement(direction domain.StockDirection, applied bool) {
	r.stockMovements.WithLabelValues(string(direction), strconv.FormatBool(applied)).Inc()
}

// Middleware records request counts and latency labelled by the chi route pattern.
func (r *Registry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		route := "unmatched"
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		r.requests.WithLabelValues(route, req.Method, strconv.Itoa(status)).Inc()
		r.latencyMS.WithLabelValues(route, req.Method).Observe(float64(time.Since(start).Milliseconds()))
	})
}
