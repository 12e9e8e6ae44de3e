// Package domain contains the core value types for the sign-service
// integration. Types here are plain data with no external dependencies -
// all protocol, crypto and storage concerns live behind ports.
package domain

// Document MIME types that drive document-processor selection.
const (
	DocumentTypeXML = "application/xml"
	DocumentTypePDF = "application/pdf"
)

// SignatureType identifies the kind of signature a processor produces.
const (
	SignatureTypeXML = "XML"
	SignatureTypePDF = "PDF"
)

// TbsDocument describes one document that is to be signed as part of a
// sign request. The ID must be unique within the request since signed
// documents are matched back by it.
type TbsDocument struct {
	// ID identifies the document within the request.
	ID string

	// MimeType selects the document processor (DocumentTypeXML, DocumentTypePDF).
	MimeType string

	// Content is the raw document content. Either Content or ContentReference
	// must be set; a reference is resolved through the content loader.
	Content []byte

	// ContentReference points at the document content (file path or
	// classpath-style reference) when Content is not supplied inline.
	ContentReference string

	// VisiblePdfSignatureRequirement holds PDF-specific placement
	// requirements for a visible signature. Only meaningful for PDF
	// documents; filled in from policy defaults during pre-processing.
	VisiblePdfSignatureRequirement *VisiblePdfSignatureRequirement

	// AdesRequirement, when set, requests an advanced (ETSI AdES)
	// signature for this document.
	AdesRequirement *EtsiAdesRequirement
}

// EtsiAdesRequirement describes an advanced-signature requirement.
type EtsiAdesRequirement struct {
	// AdesFormat is "BES" or "EPES". EPES includes a signature policy
	// identifier in the AdES object.
	AdesFormat string

	// SignaturePolicyID identifies the signature policy for EPES
	// signatures. When empty the policy configuration's identifier is used.
	SignaturePolicyID string
}

// AdES formats.
const (
	AdesFormatBES  = "BES"
	AdesFormatEPES = "EPES"
)

// VisiblePdfSignatureRequirement holds placement parameters for a visible
// PDF signature image. Rendering itself is an external concern; only the
// parameters are validated and corrected here.
type VisiblePdfSignatureRequirement struct {
	// TemplateImageRef references the signature image template.
	TemplateImageRef string

	// XPosition and YPosition place the image on the page (points from
	// the lower-left corner).
	XPosition int
	YPosition int

	// Scale is the image scale in percent relative to the template size,
	// in the range [-100, 0] where 0 means full size. Out-of-range values
	// are clamped during pre-processing, nil defaults to 0.
	Scale *int

	// Page is the zero-based page the image is placed on. Negative values
	// are clamped to 0 during pre-processing, nil defaults to 0.
	Page *int

	// SignerNameAttributes lists the signer attribute names whose values
	// make up the signer name rendered in the image.
	SignerNameAttributes []string

	// FieldValues carries additional template field values.
	FieldValues map[string]string
}

// MinVisiblePdfScale and MaxVisiblePdfScale bound the visible-signature
// image scale.
const (
	MinVisiblePdfScale = -100
	MaxVisiblePdfScale = 0
)

// TbsCalculationResult is the output of a document processor's
// to-be-signed calculation for one document.
type TbsCalculationResult struct {
	// SignatureType is the produced signature kind (SignatureTypeXML, ...).
	SignatureType string

	// ToBeSignedBytes is the exact byte sequence the signing service signs.
	ToBeSignedBytes []byte

	// AdesObjectID identifies the advanced-signature object, empty when no
	// AdES signature was requested.
	AdesObjectID string

	// AdesObjectBytes is the encoded advanced-signature object, nil when no
	// AdES signature was requested.
	AdesObjectBytes []byte
}

// SignedDocument is one signed document as returned by the signing
// service, before and after post-processing.
type SignedDocument struct {
	// ID matches the TbsDocument.ID of the originating document.
	ID string

	// MimeType is the document MIME type.
	MimeType string

	// Content is the signed document content. For XML documents the
	// signature is embedded; for PDF documents the signature is carried
	// detached in Signature.
	Content []byte

	// Signature is the raw signature value for detached-signature
	// document types (PDF). Empty for XML documents.
	Signature []byte
}
