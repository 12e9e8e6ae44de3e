package signintegration

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/idsec-solutions/signservice-integration-sub003/internal/adapters/driven/document"
	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/domain"
	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/ports"
	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/validation"
)

// SignRequestProcessor assembles sign requests: it validates the input
// against the policy, runs per-document pre-processing and to-be-signed
// calculation, and stores the pending transaction in the session cache.
type SignRequestProcessor struct {
	policies ports.PolicyRepository
	registry *document.Registry
	cache    ports.SessionCache[domain.SignatureSessionState]
	codec    ports.StateCodec
	metrics  ports.MetricsRecorder
	metadata ports.MetadataResolver
	logger   *zap.Logger
	clock    Clock
}

// SignRequestResult is the outcome of assembling a sign request.
type SignRequestResult struct {
	// ID is the generated transaction identifier. The response must
	// refer back to it.
	ID string

	// CorrelationID is the request's correlation identifier, generated
	// when the input carried none.
	CorrelationID string

	// State is the session state stored in the cache.
	State *domain.SignatureSessionState

	// EncodedSignRequest is the encoded outbound request for the relying
	// application to post to the signing service.
	EncodedSignRequest string

	// TbsCalculations holds the per-document calculation results in
	// request order.
	TbsCalculations []domain.TbsCalculationResult
}

// NewSignRequestProcessor creates a request processor.
func NewSignRequestProcessor(policies ports.PolicyRepository, registry *document.Registry, cache ports.SessionCache[domain.SignatureSessionState], opts ...ProcessorOption) *SignRequestProcessor {
	options := applyOptions(opts)
	return &SignRequestProcessor{
		policies: policies,
		registry: registry,
		cache:    cache,
		codec:    options.codec,
		metrics:  options.metrics,
		metadata: options.metadata,
		logger:   options.logger,
		clock:    options.clock,
	}
}

// Process validates the input and assembles the sign request. The
// validation phase is atomic: any single document's validation failure
// rejects the whole request before any state is stored.
func (p *SignRequestProcessor) Process(input *domain.SignRequestInput) (*SignRequestResult, error) {
	if input == nil {
		result := domain.NewValidationResult("signRequestInput")
		result.Reject("signRequestInput", "missing sign request input")
		return nil, domain.ValidationError(result)
	}
	policy, err := p.policies.Policy(input.Policy)
	if err != nil {
		if errors.Is(err, ports.ErrPolicyNotFound) {
			result := domain.NewValidationResult("signRequestInput")
			result.Reject("signRequestInput.policy", fmt.Sprintf("policy %q is not known", input.Policy))
			return nil, domain.ValidationError(result)
		}
		return nil, domain.InternalError("Policy lookup failed", err)
	}

	validator := &validation.SignRequestInputValidator{ProcessorCount: p.registry.Count}
	if err := validation.ValidateObject[*domain.SignRequestInput, *domain.PolicyConfiguration](validator, input, "signRequestInput", policy); err != nil {
		return nil, err
	}

	correlationID := input.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	transactionID := uuid.NewString()

	authnReqs := input.AuthnRequirements
	if authnReqs.AuthnServiceID == "" {
		authnReqs.AuthnServiceID = policy.DefaultAuthnServiceID
	}
	if authnReqs.AuthnContextRef == "" {
		authnReqs.AuthnContextRef = policy.DefaultAuthnContextRef
	}

	signMessage := input.SignMessage
	if signMessage != nil {
		message := *signMessage
		if message.DisplayEntity == "" {
			message.DisplayEntity = authnReqs.AuthnServiceID
		}
		// The message is encrypted for the display entity, so its
		// encryption parameters must be resolvable from trusted metadata.
		if p.metadata != nil {
			params, err := p.metadata.ResolveEncryptionParameters(message.DisplayEntity)
			if err != nil {
				return nil, err
			}
			if p.logger != nil {
				p.logger.Debug("resolved sign message encryption parameters",
					zap.String("correlation_id", correlationID),
					zap.String("display_entity", message.DisplayEntity),
					zap.String("data_encryption_algorithm", params.DataEncryptionAlgorithm),
					zap.String("key_transport_algorithm", params.KeyTransportAlgorithm),
				)
			}
		}
		signMessage = &message
	}

	processed := make([]domain.TbsDocument, 0, len(input.TbsDocuments))
	calculations := make([]domain.TbsCalculationResult, 0, len(input.TbsDocuments))
	for i, doc := range input.TbsDocuments {
		fieldName := domain.IndexPath("signRequestInput.tbsDocuments", i)
		processor, err := p.registry.Resolve(doc)
		if err != nil {
			return nil, err
		}
		prepared, err := processor.PreProcess(correlationID, doc, policy, fieldName)
		if err != nil {
			return nil, err
		}
		calculation, err := processor.CalculateToBeSigned(prepared, input.SignatureAlgorithm, policy)
		if err != nil {
			return nil, err
		}
		processed = append(processed, prepared)
		calculations = append(calculations, *calculation)
	}

	state := &domain.SignatureSessionState{
		ID:                      transactionID,
		OwnerID:                 input.SignRequesterID,
		CorrelationID:           correlationID,
		Policy:                  policy.Name,
		ExpectedReturnURL:       input.ReturnURL,
		SignatureAlgorithm:      input.SignatureAlgorithm,
		AuthnRequirements:       authnReqs,
		CertificateRequirements: input.CertificateRequirements,
		TbsDocuments:            processed,
		SignMessage:             signMessage,
		Extensions:              input.Extensions,
		Created:                 p.clock.Now(),
	}

	encoded, err := p.encodeState(state)
	if err != nil {
		return nil, domain.InternalError("Failed to encode sign request", err)
	}
	state.EncodedSignRequest = encoded

	p.cache.Put(transactionID, *state, input.SignRequesterID)

	if p.metrics != nil {
		p.metrics.RecordRequestCreated(policy.Name)
		p.metrics.SetPendingTransactions(p.cache.Len())
	}
	if p.logger != nil {
		p.logger.Info("assembled sign request",
			zap.String("correlation_id", correlationID),
			zap.String("transaction_id", transactionID),
			zap.String("policy", policy.Name),
			zap.Int("documents", len(processed)),
		)
	}

	return &SignRequestResult{
		ID:                 transactionID,
		CorrelationID:      correlationID,
		State:              state,
		EncodedSignRequest: encoded,
		TbsCalculations:    calculations,
	}, nil
}

func (p *SignRequestProcessor) encodeState(state *domain.SignatureSessionState) (string, error) {
	if p.codec != nil {
		return p.codec.Encode(state)
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(payload), nil
}
