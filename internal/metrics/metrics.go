// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector. All methods are safe on a nil receiver so
// callers can run without metrics.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	ordersPlaced  prometheus.Counter
	ordersFailed  *prometheus.CounterVec
	orderStatus   *prometheus.CounterVec
	reservations  *prometheus.CounterVec
	alertsRaised  prometheus.Counter
	alertsFailed  prometheus.Counter
	lowStockBooks prometheus.Gauge
	sweeps        *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests
// to avoid duplicate registration on the default registry.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "Duration of HTTP requests in ms",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600},
		}, []string{"method", "path"}),
		ordersPlaced: f.NewCounter(prometheus.CounterOpts{
			Name: "bookstock_orders_placed_total",
			Help: "Orders persisted by the placement pipeline",
		}),
		ordersFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bookstock_orders_failed_total",
			Help: "Order placements rejected, by reason",
		}, []string{"reason"}),
		orderStatus: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bookstock_order_status_changes_total",
			Help: "Order status updates, by target status",
		}, []string{"status"}),
		reservations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bookstock_stock_reservations_total",
			Help: "Stock reservation attempts, by outcome",
		}, []string{"outcome"}),
		alertsRaised: f.NewCounter(prometheus.CounterOpts{
			Name: "bookstock_low_stock_alerts_total",
			Help: "Low-stock alerts raised",
		}),
		alertsFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "bookstock_low_stock_alert_failures_total",
			Help: "Low-stock alerts whose notification failed",
		}),
		lowStockBooks: f.NewGauge(prometheus.GaugeOpts{
			Name: "bookstock_low_stock_books",
			Help: "Books in the low-stock band at the last sweep",
		}),
		sweeps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bookstock_alert_sweeps_total",
			Help: "Alert sweeps, by outcome",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(float64(d.Milliseconds()))
}

// OrderPlaced counts a persisted order.
func (m *Metrics) OrderPlaced() {
	if m == nil {
		return
	}
	m.ordersPlaced.Inc()
}

// OrderFailed counts a rejected placement.
func (m *Metrics) OrderFailed(reason string) {
	if m == nil {
		return
	}
	m.ordersFailed.WithLabelValues(reason).Inc()
}

// OrderStatusChanged counts a status update.
func (m *Metrics) OrderStatusChanged(status string) {
	if m == nil {
		return
	}
	m.orderStatus.WithLabelValues(status).Inc()
}

// Reservation counts a reservation attempt with outcome "ok",
// "insufficient" or "error".
func (m *Metrics) Reservation(outcome string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(outcome).Inc()
}

// AlertRaised counts a newly raised low-stock alert.
func (m *Metrics) AlertRaised() {
	if m == nil {
		return
	}
	m.alertsRaised.Inc()
}

// AlertFailed counts a raised alert whose notification failed.
func (m *Metrics) AlertFailed() {
	if m == nil {
		return
	}
	m.alertsFailed.Inc()
}

// Sweep records a finished sweep.
func (m *Metrics) Sweep(outcome string, lowStock int) {
	if m == nil {
		return
	}
	m.sweeps.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		m.lowStockBooks.Set(float64(lowStock))
	}
}
