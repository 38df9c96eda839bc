package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "termlife"

// ConversationMetrics instruments the turn pipeline. All methods are nil-safe
// so callers never need to guard against a disabled registry.
type ConversationMetrics struct {
	turnsTotal       *prometheus.CounterVec
	turnDuration     *prometheus.HistogramVec
	decisionFailures *prometheus.CounterVec
	operationsTotal  *prometheus.CounterVec
	stateTransitions *prometheus.CounterVec
	quotesGenerated  prometheus.Counter
	activeSessions   prometheus.Gauge
}

// NewConversationMetrics registers conversation metrics on the given
// registerer. A nil registerer uses the default one.
func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &ConversationMetrics{
		turnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Processed conversation turns by ending state.",
		}, []string{"state"}),
		turnDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn processing latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"state"}),
		decisionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "decision_failures_total",
			Help:      "Model decision degradations by kind.",
		}, []string{"kind"}),
		operationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "operations_total",
			Help:      "Backend operations executed by name and outcome.",
		}, []string{"operation", "outcome"}),
		stateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "state_transitions_total",
			Help:      "Session state transitions by target state and trigger.",
		}, []string{"to_state", "trigger"}),
		quotesGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "quotes_generated_total",
			Help:      "Quote sets generated across all sessions.",
		}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "active_sessions",
			Help:      "Sessions currently held by the store.",
		}),
	}
}

func (m *ConversationMetrics) ObserveTurn(state string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(state).Inc()
	m.turnDuration.WithLabelValues(state).Observe(seconds)
}

func (m *ConversationMetrics) DecisionFailure(kind string) {
	if m == nil {
		return
	}
	m.decisionFailures.WithLabelValues(kind).Inc()
}

func (m *ConversationMetrics) Operation(name string, success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.operationsTotal.WithLabelValues(name, outcome).Inc()
}

func (m *ConversationMetrics) StateTransition(toState, trigger string) {
	if m == nil {
		return
	}
	m.stateTransitions.WithLabelValues(toState, trigger).Inc()
}

func (m *ConversationMetrics) QuoteGenerated() {
	if m == nil {
		return
	}
	m.quotesGenerated.Inc()
}

func (m *ConversationMetrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// PaymentMetrics instruments the payment simulator surface.
type PaymentMetrics struct {
	paymentsTotal  *prometheus.CounterVec
	paymentAmounts prometheus.Histogram
}

// NewPaymentMetrics registers payment metrics on the given registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PaymentMetrics{
		paymentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "payments_total",
			Help:      "Payment lifecycle events by status.",
		}, []string{"status"}),
		paymentAmounts: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "payment_amount_rupees",
			Help:      "Premium amounts submitted for payment.",
			Buckets:   prometheus.ExponentialBuckets(1000, 2.5, 10),
		}),
	}
}

func (m *PaymentMetrics) PaymentEvent(status string) {
	if m == nil {
		return
	}
	m.paymentsTotal.WithLabelValues(status).Inc()
}

func (m *PaymentMetrics) ObserveAmount(amount float64) {
	if m == nil {
		return
	}
	m.paymentAmounts.Observe(amount)
}
