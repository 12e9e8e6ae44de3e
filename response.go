package signintegration

import (
	"crypto/x509"
	"fmt"

	"github.com/crewjam/saml"
	"go.uber.org/zap"

	"github.com/idsec-solutions/signservice-integration-sub003/internal/adapters/driven/document"
	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/domain"
	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/ports"
)

// SignResponse is a decoded sign response from the signing service. The
// XML wire format is decoded by the transport layer; this processor
// receives the already-parsed protocol objects.
type SignResponse struct {
	// InResponseTo is the transaction identifier the response refers to.
	InResponseTo string

	// Status is the DSS protocol status.
	Status domain.DSSStatus

	// Assertion is the signer's authentication assertion. Required on
	// the success path.
	Assertion *saml.Assertion

	// SignerCertificate is the certificate issued for the signer.
	SignerCertificate *x509.Certificate

	// SignedDocuments are the signed documents, keyed back to the
	// request's documents by ID.
	SignedDocuments []domain.SignedDocument
}

// SignResponseProcessor validates sign responses against the cached
// session state and repackages them into signature results. Each
// response is processed exactly once - the state is claimed from the
// cache with claim-once semantics, so retries must be driven from the
// transport layer by re-running the whole transaction.
type SignResponseProcessor struct {
	entityID string
	policies ports.PolicyRepository
	registry *document.Registry
	cache    ports.SessionCache[domain.SignatureSessionState]
	metrics  ports.MetricsRecorder
	metadata ports.MetadataResolver
	logger   *zap.Logger
	clock    Clock
}

// NewSignResponseProcessor creates a response processor. entityID is
// this service's SAML entityID, checked against the assertion's
// audience restriction.
func NewSignResponseProcessor(entityID string, policies ports.PolicyRepository, registry *document.Registry, cache ports.SessionCache[domain.SignatureSessionState], opts ...ProcessorOption) *SignResponseProcessor {
	options := applyOptions(opts)
	return &SignResponseProcessor{
		entityID: entityID,
		policies: policies,
		registry: registry,
		cache:    cache,
		metrics:  options.metrics,
		metadata: options.metadata,
		logger:   options.logger,
		clock:    options.clock,
	}
}

// Process runs the response state machine. It returns a result in state
// Completed or Cancelled, or an error for the Failed terminal state.
// requesterID must match the owner recorded when the request was made.
func (p *SignResponseProcessor) Process(response *SignResponse, requesterID string) (*domain.SignatureResult, error) {
	result, policyName, err := p.process(response, requesterID)
	if p.metrics != nil {
		switch {
		case err != nil:
			p.metrics.RecordResponseProcessed(policyName, ports.OutcomeFailed)
		case result.State == domain.SignatureStateCancelled:
			p.metrics.RecordResponseProcessed(policyName, ports.OutcomeCancelled)
		default:
			p.metrics.RecordResponseProcessed(policyName, ports.OutcomeCompleted)
		}
	}
	return result, err
}

func (p *SignResponseProcessor) process(response *SignResponse, requesterID string) (*domain.SignatureResult, string, error) {
	// Retrieve. The claim removes the state, so a replay of the same
	// response finds nothing.
	state, found, err := p.cache.Claim(response.InResponseTo, requesterID)
	if err != nil {
		// Ownership violation - reported distinctly from "unknown", and
		// not counted as a claim miss.
		return nil, "", err
	}
	if p.metrics != nil {
		p.metrics.RecordStateClaimed(found)
		p.metrics.SetPendingTransactions(p.cache.Len())
	}
	if !found {
		return nil, "", domain.UnknownTransactionError(response.InResponseTo)
	}

	policy, err := p.policies.Policy(state.Policy)
	if err != nil {
		return nil, state.Policy, domain.StateError(
			fmt.Sprintf("Cached state refers to unknown policy %q", state.Policy), err)
	}

	logger := p.logger
	if logger != nil {
		logger = logger.With(
			zap.String("correlation_id", state.CorrelationID),
			zap.String("transaction_id", state.ID),
		)
	}

	// Status check. User cancellation is a normal outcome and short
	// circuits before any assertion or identity validation.
	if response.Status.UserCancel() {
		if logger != nil {
			logger.Info("signer cancelled the operation")
		}
		return &domain.SignatureResult{
			State:         domain.SignatureStateCancelled,
			ID:            state.ID,
			CorrelationID: state.CorrelationID,
			DSSStatus:     response.Status,
		}, state.Policy, nil
	}
	if !response.Status.Success() {
		if logger != nil {
			logger.Info("sign service reported error status",
				zap.String("major", response.Status.MajorCode),
				zap.String("minor", response.Status.MinorCode),
			)
		}
		return nil, state.Policy, domain.DSSError(response.Status)
	}

	// Assertion validation.
	assertionInfo, err := p.validateAssertion(response.Assertion, &state, policy)
	if err != nil {
		return nil, state.Policy, err
	}

	// Identity and certificate extraction against the original
	// requirements.
	if err := p.verifySignerIdentity(assertionInfo, response.SignerCertificate, &state); err != nil {
		return nil, state.Policy, err
	}

	// Per-document reconciliation. The session already assumed
	// completion, so the signed set is accepted in full or rejected in
	// full.
	signedDocs, err := p.reconcileDocuments(response, &state, policy)
	if err != nil {
		return nil, state.Policy, err
	}

	if logger != nil {
		logger.Info("sign transaction completed",
			zap.String("signer", assertionInfo.Subject),
			zap.Int("documents", len(signedDocs)),
		)
	}
	return &domain.SignatureResult{
		State:               domain.SignatureStateCompleted,
		ID:                  state.ID,
		CorrelationID:       state.CorrelationID,
		SignerAssertionInfo: assertionInfo,
		SignerCertificate:   response.SignerCertificate,
		SignedDocuments:     signedDocs,
		DSSStatus:           response.Status,
	}, state.Policy, nil
}

// validateAssertion checks the assertion's validity window, audience
// restriction and issuer, and extracts the signer identity.
func (p *SignResponseProcessor) validateAssertion(assertion *saml.Assertion, state *domain.SignatureSessionState, policy *domain.PolicyConfiguration) (*domain.SignerAssertionInfo, error) {
	if assertion == nil {
		return nil, domain.AssertionValidationError("Response carries no assertion", nil)
	}
	now := p.clock.Now()

	if assertion.Conditions == nil {
		return nil, domain.AssertionValidationError("Assertion carries no conditions", nil)
	}
	if now.Before(assertion.Conditions.NotBefore) {
		return nil, domain.AssertionValidationError(
			fmt.Sprintf("Assertion is not yet valid (not-before %s)", assertion.Conditions.NotBefore), nil)
	}
	if !now.Before(assertion.Conditions.NotOnOrAfter) {
		return nil, domain.AssertionValidationError(
			fmt.Sprintf("Assertion has expired (not-on-or-after %s)", assertion.Conditions.NotOnOrAfter), nil)
	}

	audienceOK := false
	for _, restriction := range assertion.Conditions.AudienceRestrictions {
		if restriction.Audience.Value == p.entityID {
			audienceOK = true
			break
		}
	}
	if !audienceOK {
		return nil, domain.AssertionValidationError(
			fmt.Sprintf("Assertion audience restriction does not include %q", p.entityID), nil)
	}

	// The expected issuer is the authentication service stated in the
	// request; policy defaults were already folded in at request time.
	expectedIssuer := state.AuthnRequirements.AuthnServiceID
	if expectedIssuer == "" {
		expectedIssuer = policy.DefaultAuthnServiceID
	}
	if assertion.Issuer.Value != expectedIssuer {
		return nil, domain.AssertionValidationError(
			fmt.Sprintf("Assertion issued by %q, expected %q", assertion.Issuer.Value, expectedIssuer), nil)
	}
	// The issuer must be a trusted authentication service: no metadata,
	// no acceptance.
	if p.metadata != nil {
		if _, err := p.metadata.ResolveMetadata(expectedIssuer, policy); err != nil {
			return nil, err
		}
	}

	info := &domain.SignerAssertionInfo{AuthnServiceID: assertion.Issuer.Value}
	if assertion.Subject != nil && assertion.Subject.NameID != nil {
		info.Subject = assertion.Subject.NameID.Value
	}
	for _, stmt := range assertion.AuthnStatements {
		if stmt.AuthnContext.AuthnContextClassRef != nil {
			info.AuthnContextRef = stmt.AuthnContext.AuthnContextClassRef.Value
			break
		}
	}
	for _, stmt := range assertion.AttributeStatements {
		for _, attr := range stmt.Attributes {
			if len(attr.Values) == 0 {
				continue
			}
			info.Attributes = append(info.Attributes, domain.SignerIdentityAttributeValue{
				Type:  domain.SignerIdentityAttributeSAML,
				Name:  attr.Name,
				Value: attr.Values[0].Value,
			})
		}
	}

	if state.AuthnRequirements.AuthnContextRef != "" && info.AuthnContextRef != state.AuthnRequirements.AuthnContextRef {
		return nil, domain.AssertionValidationError(
			fmt.Sprintf("Signer authenticated under context %q, request required %q",
				info.AuthnContextRef, state.AuthnRequirements.AuthnContextRef), nil)
	}
	return info, nil
}

// verifySignerIdentity checks the requested signer attributes against
// the assertion and the issued certificate against the certificate
// requirements. Failures are attributed to the specific unmet attribute.
func (p *SignResponseProcessor) verifySignerIdentity(info *domain.SignerAssertionInfo, cert *x509.Certificate, state *domain.SignatureSessionState) error {
	for _, required := range state.AuthnRequirements.RequestedSignerAttributes {
		value, asserted := info.Attribute(required.Name)
		if !asserted {
			return domain.AttributeMismatchError(required.Name, "attribute was not asserted for the signer")
		}
		if required.Value != "" && value != required.Value {
			return domain.AttributeMismatchError(required.Name,
				fmt.Sprintf("asserted value %q does not match required value %q", value, required.Value))
		}
	}

	if cert == nil {
		return domain.AssertionValidationError("Response carries no signer certificate", nil)
	}
	for _, mapping := range state.CertificateRequirements.AttributeMappings {
		if !mapping.Required {
			continue
		}
		expected := expectedCertificateValue(mapping, info)
		if expected == "" {
			return domain.AttributeMismatchError(mapping.DestinationName,
				"no source attribute or default value available for required certificate attribute")
		}
		if err := verifyCertificateAttribute(cert, mapping, expected); err != nil {
			return err
		}
	}
	return nil
}

// reconcileDocuments matches every signed document to its originating
// request document and dispatches to the processors for verification.
func (p *SignResponseProcessor) reconcileDocuments(response *SignResponse, state *domain.SignatureSessionState, policy *domain.PolicyConfiguration) ([]domain.SignedDocument, error) {
	byID := make(map[string]domain.TbsDocument, len(state.TbsDocuments))
	for _, doc := range state.TbsDocuments {
		byID[doc.ID] = doc
	}
	signedByID := make(map[string]domain.SignedDocument, len(response.SignedDocuments))
	for _, signed := range response.SignedDocuments {
		if _, ok := byID[signed.ID]; !ok {
			return nil, domain.DocumentIntegrityError(signed.ID,
				"response contains a signed document that was not part of the request", nil)
		}
		signedByID[signed.ID] = signed
	}

	// Results are returned in the original request order.
	verified := make([]domain.SignedDocument, 0, len(state.TbsDocuments))
	for _, original := range state.TbsDocuments {
		signed, ok := signedByID[original.ID]
		if !ok {
			return nil, domain.DocumentIntegrityError(original.ID,
				"response is missing a signed document for this request document", nil)
		}
		processor, err := p.registry.Resolve(original)
		if err != nil {
			return nil, err
		}
		verifiedDoc, err := processor.PostProcess(signed, state.CorrelationID, original,
			response.SignerCertificate, state.SignatureAlgorithm, policy)
		if err != nil {
			return nil, err
		}
		verified = append(verified, *verifiedDoc)
	}
	return verified, nil
}
