package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// Verification outcomes.
const (
	OutcomeConfirmed = "confirmed"
	OutcomeMismatch  = "mismatch"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"
)

// Postal lookup outcomes.
const (
	LookupHit      = "hit"
	LookupCached   = "cached"
	LookupNotFound = "not_found"
	LookupDegraded = "degraded"
)

// CheckoutMetrics tracks order placement and payment reconciliation.
type CheckoutMetrics struct {
	ordersPlaced  prometheus.Counter
	orderValue    prometheus.Histogram
	verifications *prometheus.CounterVec
	postal        *prometheus.CounterVec
	gateway       *prometheus.HistogramVec
}

// NewCheckoutMetrics registers checkout metrics. A nil registerer yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	m := &CheckoutMetrics{
		ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Orders persisted as pending and handed to the gateway.",
		}),
		orderValue: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_total_rupees",
			Help:      "Order totals at placement, in rupees.",
			Buckets:   []float64{100, 500, 1000, 2500, 5000, 10000, 25000},
		}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_verifications_total",
			Help:      "Payment verification attempts by outcome.",
		}, []string{"outcome"}),
		postal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "postal_lookups_total",
			Help:      "Postal directory lookups by outcome.",
		}, []string{"outcome"}),
		gateway: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Latency of payment gateway calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	reg.MustRegister(m.ordersPlaced, m.orderValue, m.verifications, m.postal, m.gateway)
	return m
}

// OrderPlaced records a placed order and its total.
func (m *CheckoutMetrics) OrderPlaced(totalPaise int64) {
	if m == nil || m.ordersPlaced == nil {
		return
	}
	m.ordersPlaced.Inc()
	m.orderValue.Observe(float64(totalPaise) / 100)
}

// Verification records a payment verification outcome.
func (m *CheckoutMetrics) Verification(outcome string) {
	if m == nil || m.verifications == nil {
		return
	}
	m.verifications.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// PostalLookup records a postal directory outcome.
func (m *CheckoutMetrics) PostalLookup(outcome string) {
	if m == nil || m.postal == nil {
		return
	}
	m.postal.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveGateway records the latency of a gateway operation.
func (m *CheckoutMetrics) ObserveGateway(operation string, d time.Duration) {
	if m == nil || m.gateway == nil {
		return
	}
	m.gateway.WithLabelValues(normalizeLabel(operation)).Observe(d.Seconds())
}
