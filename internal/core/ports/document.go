// Package ports defines the interfaces the core depends on.
// Implementations are adapters.
package ports

import (
	"crypto/x509"

	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/domain"
)

// DocumentProcessor isolates all document-type-specific logic. One
// implementation exists per document type and the Supports predicates
// are mutually exclusive across implementations.
type DocumentProcessor interface {
	// Supports reports whether the processor handles the document's MIME
	// type. An unsupported type is not an error here, just false.
	Supports(doc domain.TbsDocument) bool

	// PreProcess applies policy defaults and performs type-specific
	// structural validation, returning the processed document. The
	// caller's document is not modified; fieldName is the validation
	// field path the document is reported under.
	PreProcess(correlationID string, doc domain.TbsDocument, policy *domain.PolicyConfiguration, fieldName string) (domain.TbsDocument, error)

	// CalculateToBeSigned computes the to-be-signed byte sequence and,
	// when requested, the advanced-signature object. Deterministic:
	// identical document, algorithm and policy give byte-identical output.
	CalculateToBeSigned(doc domain.TbsDocument, signatureAlgorithm string, policy *domain.PolicyConfiguration) (*domain.TbsCalculationResult, error)

	// PostProcess verifies a signed document returned by the signing
	// service and binds it back to the originating document. A digest
	// mismatch between the returned content and the request is an
	// integrity failure for this document.
	PostProcess(signed domain.SignedDocument, correlationID string, original domain.TbsDocument, signerCert *x509.Certificate, signatureAlgorithm string, policy *domain.PolicyConfiguration) (*domain.SignedDocument, error)
}
