// Package metrics provides MetricsRecorder implementations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/ports"
)

// PrometheusRecorder records sign-transaction metrics using Prometheus.
type PrometheusRecorder struct {
	requestsCreatedTotal    *prometheus.CounterVec
	responsesProcessedTotal *prometheus.CounterVec
	stateClaimsTotal        *prometheus.CounterVec
	pendingTransactions     prometheus.Gauge
}

// NewPrometheusRecorder creates a recorder on the default Prometheus
// registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	return NewPrometheusRecorderWithRegistry(prometheus.DefaultRegisterer)
}

// NewPrometheusRecorderWithRegistry creates a recorder with a custom
// registry. Use this for testing.
func NewPrometheusRecorderWithRegistry(reg prometheus.Registerer) *PrometheusRecorder {
	requestsCreatedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signservice_requests_created_total",
		Help: "Total sign requests assembled",
	}, []string{"policy"})

	responsesProcessedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signservice_responses_processed_total",
		Help: "Total sign responses processed",
	}, []string{"policy", "outcome"})

	stateClaimsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signservice_state_claims_total",
		Help: "Total session state claim attempts",
	}, []string{"result"})

	pendingTransactions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "signservice_pending_transactions",
		Help: "Current number of cached pending transactions",
	})

	reg.MustRegister(
		requestsCreatedTotal,
		responsesProcessedTotal,
		stateClaimsTotal,
		pendingTransactions,
	)

	return &PrometheusRecorder{
		requestsCreatedTotal:    requestsCreatedTotal,
		responsesProcessedTotal: responsesProcessedTotal,
		stateClaimsTotal:        stateClaimsTotal,
		pendingTransactions:     pendingTransactions,
	}
}

// RecordRequestCreated records an assembled sign request.
func (p *PrometheusRecorder) RecordRequestCreated(policy string) {
	p.requestsCreatedTotal.WithLabelValues(policy).Inc()
}

// RecordResponseProcessed records a processed response with its outcome.
func (p *PrometheusRecorder) RecordResponseProcessed(policy, outcome string) {
	p.responsesProcessedTotal.WithLabelValues(policy, outcome).Inc()
}

// RecordStateClaimed records a session-state claim attempt.
func (p *PrometheusRecorder) RecordStateClaimed(found bool) {
	result := "miss"
	if found {
		result = "hit"
	}
	p.stateClaimsTotal.WithLabelValues(result).Inc()
}

// SetPendingTransactions sets the pending transaction gauge.
func (p *PrometheusRecorder) SetPendingTransactions(n int) {
	p.pendingTransactions.Set(float64(n))
}

var _ ports.MetricsRecorder = (*PrometheusRecorder)(nil)
