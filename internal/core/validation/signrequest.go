package validation

import (
	"fmt"
	"strings"

	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/domain"
)

// SignRequestInputValidator validates a complete SignRequestInput
// against the active policy. All nested objects are validated in the
// same pass so a single call surfaces every violation.
type SignRequestInputValidator struct {
	// ProcessorCount reports how many document processors support a
	// document. When set, every document must resolve to exactly one.
	ProcessorCount func(doc domain.TbsDocument) int
}

// Validate implements Validator[*domain.SignRequestInput, *domain.PolicyConfiguration].
func (v *SignRequestInputValidator) Validate(input *domain.SignRequestInput, fieldPath string, policy *domain.PolicyConfiguration) *domain.ValidationResult {
	result := domain.NewValidationResult(fieldPath)
	if input == nil {
		result.Reject(fieldPath, "missing sign request input")
		return result
	}

	result.RejectIfEmpty(domain.FieldPath(fieldPath, "returnUrl"), input.ReturnURL, "missing return URL")
	result.RejectIfEmpty(domain.FieldPath(fieldPath, "destinationUrl"), input.DestinationURL, "missing destination URL")
	result.RejectIfEmpty(domain.FieldPath(fieldPath, "signatureAlgorithm"), input.SignatureAlgorithm, "missing signature algorithm")

	authnValidator := &AuthnRequirementsValidator{}
	result.Merge(authnValidator.Validate(&input.AuthnRequirements, domain.FieldPath(fieldPath, "authnRequirements"), policy))

	if input.SignMessage != nil {
		messageValidator := &SignMessageParametersValidator{}
		result.Merge(messageValidator.Validate(input.SignMessage, domain.FieldPath(fieldPath, "signMessageParameters"), policy))
	}

	docsPath := domain.FieldPath(fieldPath, "tbsDocuments")
	if len(input.TbsDocuments) == 0 {
		result.Reject(docsPath, "at least one document to sign is required")
		return result
	}
	docValidator := &TbsDocumentValidator{}
	seen := make(map[string]bool, len(input.TbsDocuments))
	for i := range input.TbsDocuments {
		doc := &input.TbsDocuments[i]
		docPath := domain.IndexPath(docsPath, i)
		result.Merge(docValidator.Validate(doc, docPath, policy))
		if doc.ID != "" {
			if seen[doc.ID] {
				result.Reject(domain.FieldPath(docPath, "id"),
					fmt.Sprintf("document ID %q is not unique within the request", doc.ID))
			}
			seen[doc.ID] = true
		}
		if v.ProcessorCount != nil && doc.MimeType != "" {
			switch n := v.ProcessorCount(*doc); n {
			case 1:
				// exactly one processor, as required
			case 0:
				result.Reject(domain.FieldPath(docPath, "mimeType"),
					fmt.Sprintf("no document processor supports MIME type %q", doc.MimeType))
			default:
				result.Reject(domain.FieldPath(docPath, "mimeType"),
					fmt.Sprintf("%d document processors support MIME type %q - processor predicates must be mutually exclusive", n, doc.MimeType))
			}
		}
	}
	return result
}

// AuthnRequirementsValidator validates authentication requirements. A
// field is valid if either the input supplies it or the policy supplies
// a default.
type AuthnRequirementsValidator struct{}

// Validate implements Validator[*domain.AuthnRequirements, *domain.PolicyConfiguration].
func (v *AuthnRequirementsValidator) Validate(reqs *domain.AuthnRequirements, fieldPath string, policy *domain.PolicyConfiguration) *domain.ValidationResult {
	result := domain.NewValidationResult(fieldPath)
	if reqs == nil {
		result.Reject(fieldPath, "missing authentication requirements")
		return result
	}
	if reqs.AuthnServiceID == "" && (policy == nil || policy.DefaultAuthnServiceID == "") {
		result.Reject(domain.FieldPath(fieldPath, "authnServiceID"),
			"no authentication service ID given in request and policy has no default")
	}
	if reqs.AuthnContextRef == "" && (policy == nil || policy.DefaultAuthnContextRef == "") {
		result.Reject(domain.FieldPath(fieldPath, "authnContextRef"),
			"no authentication context reference given in request and policy has no default")
	}
	attrsPath := domain.FieldPath(fieldPath, "requestedSignerAttributes")
	for i, attr := range reqs.RequestedSignerAttributes {
		attrPath := domain.IndexPath(attrsPath, i)
		if attr.Type != "" && attr.Type != domain.SignerIdentityAttributeSAML {
			result.Reject(domain.FieldPath(attrPath, "type"),
				fmt.Sprintf("unsupported attribute type %q", attr.Type))
		}
		result.RejectIfEmpty(domain.FieldPath(attrPath, "name"), attr.Name, "missing attribute name")
		result.RejectIfEmpty(domain.FieldPath(attrPath, "value"), attr.Value, "missing attribute value")
	}
	return result
}

// SignMessageParametersValidator validates sign-message parameters.
type SignMessageParametersValidator struct{}

var signMessageMimeTypes = map[string]bool{
	"":              true, // defaults to text
	"text":          true,
	"text/html":     true,
	"text/markdown": true,
}

// Validate implements Validator[*domain.SignMessageParameters, *domain.PolicyConfiguration].
func (v *SignMessageParametersValidator) Validate(params *domain.SignMessageParameters, fieldPath string, policy *domain.PolicyConfiguration) *domain.ValidationResult {
	result := domain.NewValidationResult(fieldPath)
	if params == nil {
		return result
	}
	result.RejectIfEmpty(domain.FieldPath(fieldPath, "body"), params.Body, "missing sign message body")
	if !signMessageMimeTypes[params.MimeType] {
		result.Reject(domain.FieldPath(fieldPath, "mimeType"),
			fmt.Sprintf("unsupported sign message MIME type %q", params.MimeType))
	}
	return result
}

// TbsDocumentValidator validates one to-be-signed document. Processor
// resolution and ID uniqueness are request-level checks handled by
// SignRequestInputValidator.
type TbsDocumentValidator struct{}

// Validate implements Validator[*domain.TbsDocument, *domain.PolicyConfiguration].
func (v *TbsDocumentValidator) Validate(doc *domain.TbsDocument, fieldPath string, policy *domain.PolicyConfiguration) *domain.ValidationResult {
	result := domain.NewValidationResult(fieldPath)
	if doc == nil {
		result.Reject(fieldPath, "missing document")
		return result
	}
	result.RejectIfEmpty(domain.FieldPath(fieldPath, "id"), doc.ID, "missing document ID")
	result.RejectIfEmpty(domain.FieldPath(fieldPath, "mimeType"), doc.MimeType, "missing document MIME type")
	if len(doc.Content) == 0 && doc.ContentReference == "" {
		result.Reject(domain.FieldPath(fieldPath, "content"),
			"document has neither content nor a content reference")
	}
	if doc.AdesRequirement != nil {
		adesPath := domain.FieldPath(fieldPath, "adesRequirement")
		switch doc.AdesRequirement.AdesFormat {
		case domain.AdesFormatBES:
			// no policy identifier needed
		case domain.AdesFormatEPES:
			if doc.AdesRequirement.SignaturePolicyID == "" && (policy == nil || policy.SignaturePolicyID == "") {
				result.Reject(domain.FieldPath(adesPath, "signaturePolicyId"),
					"EPES requires a signature policy ID from the request or the policy")
			}
		default:
			result.Reject(domain.FieldPath(adesPath, "adesFormat"),
				fmt.Sprintf("unsupported AdES format %q", doc.AdesRequirement.AdesFormat))
		}
	}
	if doc.VisiblePdfSignatureRequirement != nil {
		visiblePath := domain.FieldPath(fieldPath, "visiblePdfSignatureRequirement")
		if !strings.EqualFold(doc.MimeType, domain.DocumentTypePDF) {
			result.Reject(visiblePath, "visible signature requirements are only valid for PDF documents")
		}
		visibleValidator := &VisiblePdfSignatureRequirementValidator{}
		result.Merge(visibleValidator.Validate(doc.VisiblePdfSignatureRequirement, visiblePath, policy))
	}
	return result
}

// VisiblePdfSignatureRequirementValidator validates visible-signature
// placement parameters. Out-of-range scale and page values are not
// rejected here - they are clamped during pre-processing.
type VisiblePdfSignatureRequirementValidator struct{}

// Validate implements Validator[*domain.VisiblePdfSignatureRequirement, *domain.PolicyConfiguration].
func (v *VisiblePdfSignatureRequirementValidator) Validate(req *domain.VisiblePdfSignatureRequirement, fieldPath string, policy *domain.PolicyConfiguration) *domain.ValidationResult {
	result := domain.NewValidationResult(fieldPath)
	if req == nil {
		return result
	}
	result.RejectIfEmpty(domain.FieldPath(fieldPath, "templateImageRef"), req.TemplateImageRef,
		"missing signature image template reference")
	if req.XPosition < 0 {
		result.Reject(domain.FieldPath(fieldPath, "xPosition"), "position must not be negative")
	}
	if req.YPosition < 0 {
		result.Reject(domain.FieldPath(fieldPath, "yPosition"), "position must not be negative")
	}
	return result
}
