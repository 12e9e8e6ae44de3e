package domain

import (
	"crypto"
	"crypto/x509"
)

// PolicyConfiguration is one named configuration scope. Policies are
// loaded once at startup and read-only thereafter; one policy is
// designated the default.
type PolicyConfiguration struct {
	// Name is the policy name requests refer to.
	Name string

	// Default marks this policy as the one selected when a request names
	// no policy.
	Default bool

	// DefaultAuthnServiceID is the authentication service used when the
	// request does not name one.
	DefaultAuthnServiceID string

	// DefaultAuthnContextRef is the authentication context class used
	// when the request does not name one.
	DefaultAuthnContextRef string

	// DefaultVisiblePdfSignatureRequirement is applied to PDF documents
	// that carry no visible-signature requirement of their own. Nil means
	// no visible signature by default.
	DefaultVisiblePdfSignatureRequirement *VisiblePdfSignatureRequirement

	// SignaturePolicyID is the signature policy identifier used for EPES
	// advanced signatures when the document requirement names none.
	SignaturePolicyID string

	// SigningCredential is the credential this service signs outbound
	// requests with.
	SigningCredential *SigningCredential

	// StateTTLSeconds bounds the lifetime of cached session state created
	// under this policy. Zero means the cache default applies.
	StateTTLSeconds int
}

// SigningCredential is a private key with its certificate.
type SigningCredential struct {
	// Name identifies the credential in logs.
	Name string

	PrivateKey  crypto.Signer
	Certificate *x509.Certificate
}

// EncryptionParameters is the trusted encryption material resolved for
// an authentication service from its metadata.
type EncryptionParameters struct {
	// Certificate holds the encryption certificate.
	Certificate *x509.Certificate

	// DataEncryptionAlgorithm and KeyTransportAlgorithm are the XML
	// encryption algorithm URIs the entity supports.
	DataEncryptionAlgorithm string
	KeyTransportAlgorithm   string
}

// ServiceMetadata is the trusted metadata descriptor resolved for an
// entity.
type ServiceMetadata struct {
	// EntityID is the SAML entityID the descriptor belongs to.
	EntityID string

	// SigningCertificates are the entity's trusted signing certificates.
	SigningCertificates []*x509.Certificate

	// EncryptionCertificates are the entity's encryption certificates.
	EncryptionCertificates []*x509.Certificate

	// Location is the service endpoint location, when published.
	Location string
}
