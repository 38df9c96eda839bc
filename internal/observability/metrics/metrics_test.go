package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestConversationMetricsRecord(t *testing.T) {
	m := NewConversationMetrics(prometheus.NewRegistry())

	m.ObserveTurn("onboarding", 0.8)
	m.DecisionFailure("llm_unavailable")
	m.DecisionFailure("llm_unavailable")
	m.DecisionFailure("parse_fail")
	m.Operation("premium_calculation", true)
	m.Operation("premium_calculation", false)
	m.StateTransition("eligibility_check", "auto_transition")
	m.QuoteGenerated()
	m.SetActiveSessions(7)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.turnsTotal.WithLabelValues("onboarding")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.decisionFailures.WithLabelValues("llm_unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisionFailures.WithLabelValues("parse_fail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("premium_calculation", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("premium_calculation", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stateTransitions.WithLabelValues("eligibility_check", "auto_transition")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.quotesGenerated))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.activeSessions))
}

func TestPaymentMetricsRecord(t *testing.T) {
	m := NewPaymentMetrics(prometheus.NewRegistry())

	m.PaymentEvent("success")
	m.PaymentEvent("failed")
	m.ObserveAmount(12500)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.paymentsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.paymentsTotal.WithLabelValues("failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.paymentAmounts))
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var cm *ConversationMetrics
	cm.ObserveTurn("onboarding", 1)
	cm.DecisionFailure("parse_fail")
	cm.Operation("premium_calculation", true)
	cm.StateTransition("x", "manual")
	cm.QuoteGenerated()
	cm.SetActiveSessions(3)

	var pm *PaymentMetrics
	pm.PaymentEvent("success")
	pm.ObserveAmount(100)
}
