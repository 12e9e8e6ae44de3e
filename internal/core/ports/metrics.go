package ports

// Transaction outcomes recorded by the metrics recorder.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// MetricsRecorder is the port interface for recording sign-transaction
// metrics. Implementations are adapters (Prometheus for production,
// noop for disabled/testing).
type MetricsRecorder interface {
	// RecordRequestCreated records that a sign request was assembled
	// under the given policy.
	RecordRequestCreated(policy string)

	// RecordResponseProcessed records a processed response with its
	// outcome (OutcomeCompleted, OutcomeCancelled, OutcomeFailed).
	RecordResponseProcessed(policy, outcome string)

	// RecordStateClaimed records a session-state claim attempt.
	RecordStateClaimed(found bool)

	// SetPendingTransactions sets the current number of cached
	// transactions.
	SetPendingTransactions(n int)
}
