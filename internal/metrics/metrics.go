// Package metrics exposes Prometheus collectors for the HTTP API and checkout.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/example/petshop-checkout/internal/checkout"
	"github.com/example/petshop-checkout/internal/domain/order"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "petshop"

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServerMetrics(reg prometheus.Registerer, service string) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"route", "method", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"route", "method"})

	reg.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// Middleware records every request under its chi route pattern
func (m *ServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.Requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.LatencyMS.WithLabelValues(route, r.Method).Observe(float64(time.Since(start).Milliseconds()))
	})
}

// CheckoutMetrics counts checkout outcomes
type CheckoutMetrics struct {
	Completed *prometheus.CounterVec
	Failed    *prometheus.CounterVec
	Replayed  prometheus.Counter
	Revenue   prometheus.Counter
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	m := &CheckoutMetrics{
		Completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "completed_total",
			Help:      "Checkouts that produced an order and an invoice.",
		}, []string{"payment_method"}),
		Failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "failed_total",
			Help:      "Checkouts that stopped before Done, by the step that failed.",
		}, []string{"state"}),
		Replayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "replayed_total",
			Help:      "Checkouts answered from an idempotency record.",
		}),
		Revenue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "revenue_taka_total",
			Help:      "Sum of completed order totals in taka.",
		}),
	}
	reg.MustRegister(m.Completed, m.Failed, m.Replayed, m.Revenue)
	return m
}

func (m *CheckoutMetrics) CheckoutCompleted(method order.PaymentMethod, total int64) {
	m.Completed.WithLabelValues(string(method)).Inc()
	m.Revenue.Add(float64(total))
}

func (m *CheckoutMetrics) CheckoutFailed(state checkout.State) {
	m.Failed.WithLabelValues(string(state)).Inc()
}

func (m *CheckoutMetrics) CheckoutReplayed() {
	m.Replayed.Inc()
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
