package metrics

import "github.com/idsec-solutions/signservice-integration-sub003/internal/core/ports"

// NoopRecorder is a no-op implementation for when metrics are disabled.
// All methods are safe to call and do nothing.
type NoopRecorder struct{}

// NewNoopRecorder creates a new no-op metrics recorder.
func NewNoopRecorder() *NoopRecorder {
	return &NoopRecorder{}
}

// RecordRequestCreated is a no-op.
func (n *NoopRecorder) RecordRequestCreated(policy string) {}

// RecordResponseProcessed is a no-op.
func (n *NoopRecorder) RecordResponseProcessed(policy, outcome string) {}

// RecordStateClaimed is a no-op.
func (n *NoopRecorder) RecordStateClaimed(found bool) {}

// SetPendingTransactions is a no-op.
func (n *NoopRecorder) SetPendingTransactions(count int) {}

var _ ports.MetricsRecorder = (*NoopRecorder)(nil)
