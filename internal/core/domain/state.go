package domain

import "time"

// SignatureSessionState is the persisted context for one in-flight sign
// transaction. It is created when a sign request is finalized and read
// exactly once, by the response processor, using the cache's claim-once
// semantics.
type SignatureSessionState struct {
	// ID is the transaction identifier the response refers back to.
	ID string

	// OwnerID is the actor the state belongs to. Empty means no
	// ownership restriction.
	OwnerID string

	// CorrelationID ties log entries for the transaction together.
	CorrelationID string

	// Policy names the policy configuration the request was processed
	// under.
	Policy string

	// ExpectedReturnURL is the return URL stated in the request.
	ExpectedReturnURL string

	// SignatureAlgorithm is the algorithm URI the documents are signed with.
	SignatureAlgorithm string

	// AuthnRequirements are the (policy-defaulted) authentication
	// requirements the response's assertion is validated against.
	AuthnRequirements AuthnRequirements

	// CertificateRequirements are validated against the issued signing
	// certificate.
	CertificateRequirements SigningCertificateRequirements

	// TbsDocuments is the validated, pre-processed document sequence in
	// request order.
	TbsDocuments []TbsDocument

	// SignMessage are the sign-message parameters, nil when none.
	SignMessage *SignMessageParameters

	// EncodedSignRequest is the encoded outbound request handed to the
	// relying application.
	EncodedSignRequest string

	// Extensions carries the request's opaque extension values.
	Extensions map[string]string

	// Created is when the state was assembled.
	Created time.Time
}
