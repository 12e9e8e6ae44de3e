// Package signintegration implements the sign transaction pipeline for
// delegating document signing to a federated SAML signing service: sign
// request assembly with policy-scoped validation, per-document-type
// to-be-signed calculation, session-state tracking of the in-flight
// transaction, and validation/repackaging of the signing service's
// response.
package signintegration

import (
	"time"

	"go.uber.org/zap"

	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/ports"
)

// ProcessorOption is a functional option for configuring the request
// and response processors.
type ProcessorOption func(*processorOptions)

// Clock provides time functionality for testing.
type Clock interface {
	Now() time.Time
}

// RealClock uses the standard time package.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

type processorOptions struct {
	logger   *zap.Logger
	metrics  ports.MetricsRecorder
	codec    ports.StateCodec
	metadata ports.MetadataResolver
	clock    Clock
}

func applyOptions(opts []ProcessorOption) processorOptions {
	options := processorOptions{clock: RealClock{}}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// WithLogger returns an option that sets the processor's logger.
func WithLogger(logger *zap.Logger) ProcessorOption {
	return func(o *processorOptions) {
		o.logger = logger
	}
}

// WithMetricsRecorder returns an option that sets the metrics recorder.
func WithMetricsRecorder(recorder ports.MetricsRecorder) ProcessorOption {
	return func(o *processorOptions) {
		o.metrics = recorder
	}
}

// WithStateCodec returns an option that sets the codec used to produce
// the encoded sign request handed to the relying application. Without a
// codec the state is encoded as plain base64 JSON, carrying no
// integrity protection.
func WithStateCodec(codec ports.StateCodec) ProcessorOption {
	return func(o *processorOptions) {
		o.codec = codec
	}
}

// WithMetadataResolver returns an option that sets the trusted-metadata
// resolver. With a resolver configured, the request processor requires
// trusted encryption parameters for the sign message's display entity
// and the response processor requires trusted metadata for the asserting
// authentication service; resolution failure is a hard stop. Without one
// neither check is performed.
func WithMetadataResolver(resolver ports.MetadataResolver) ProcessorOption {
	return func(o *processorOptions) {
		o.metadata = resolver
	}
}

// WithClock returns an option that sets a custom clock. Used for
// testing assertion validity windows without sleeping.
func WithClock(clock Clock) ProcessorOption {
	return func(o *processorOptions) {
		o.clock = clock
	}
}
