package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type OrderMetrics struct {
	Outcomes  *prometheus.CounterVec
	LatencyMS prometheus.Histogram
}

// NewOrderMetrics registers orders_created_total and order_create_duration_ms,
// labelled with the emitting service.
func NewOrderMetrics(reg prometheus.Registerer, service string) *OrderMetrics {
	labels := prometheus.Labels{"service": service}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "orders_created_total",
		Help:        "Order creation attempts by outcome.",
		ConstLabels: labels,
	}, []string{"outcome"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "order_create_duration_ms",
		Help:        "Order creation latency in milliseconds.",
		Buckets:     []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		ConstLabels: labels,
	})

	reg.MustRegister(outcomes, latency)
	return &OrderMetrics{Outcomes: outcomes, LatencyMS: latency}
}

func (m *OrderMetrics) ObserveOrder(outcome string, elapsed time.Duration) {
	m.Outcomes.WithLabelValues(outcome).Inc()
	m.LatencyMS.Observe(float64(elapsed.Milliseconds()))
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
