package domain

import "crypto/x509"

// SignatureState is the terminal state of a processed sign transaction.
type SignatureState string

const (
	// SignatureStateCompleted means the response validated and every
	// document was verified.
	SignatureStateCompleted SignatureState = "completed"

	// SignatureStateCancelled means the signer cancelled the operation.
	// This is a normal outcome, not an error.
	SignatureStateCancelled SignatureState = "cancelled"
)

// SignerAssertionInfo holds the signer identity extracted from the
// authentication assertion.
type SignerAssertionInfo struct {
	// Subject is the asserted NameID value.
	Subject string

	// AuthnServiceID is the entityID of the authentication service that
	// issued the assertion.
	AuthnServiceID string

	// AuthnContextRef is the authentication context class the signer
	// authenticated under.
	AuthnContextRef string

	// Attributes are the asserted signer identity attributes.
	Attributes []SignerIdentityAttributeValue
}

// Attribute returns the value of the named attribute and whether it was
// asserted.
func (i *SignerAssertionInfo) Attribute(name string) (string, bool) {
	for _, a := range i.Attributes {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// SignatureResult is the outcome of processing a sign response.
type SignatureResult struct {
	// State is SignatureStateCompleted or SignatureStateCancelled.
	State SignatureState

	// ID is the transaction identifier.
	ID string

	// CorrelationID is the transaction's correlation identifier.
	CorrelationID string

	// SignerAssertionInfo describes the signer. Nil for cancelled
	// transactions.
	SignerAssertionInfo *SignerAssertionInfo

	// SignerCertificate is the certificate issued for the signer. Nil
	// for cancelled transactions.
	SignerCertificate *x509.Certificate

	// SignedDocuments are the verified signed documents in the same
	// order as the original request. Empty for cancelled transactions.
	SignedDocuments []SignedDocument

	// DSSStatus is the protocol status the response carried.
	DSSStatus DSSStatus
}
