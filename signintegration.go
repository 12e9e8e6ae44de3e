package signintegration

import (
	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/domain"
	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/ports"
)

// Re-export the domain model types so callers can work against the root
// package only.
type (
	TbsDocument                    = domain.TbsDocument
	EtsiAdesRequirement            = domain.EtsiAdesRequirement
	VisiblePdfSignatureRequirement = domain.VisiblePdfSignatureRequirement
	TbsCalculationResult           = domain.TbsCalculationResult
	SignedDocument                 = domain.SignedDocument

	SignRequestInput               = domain.SignRequestInput
	AuthnRequirements              = domain.AuthnRequirements
	SignerIdentityAttributeValue   = domain.SignerIdentityAttributeValue
	SigningCertificateRequirements = domain.SigningCertificateRequirements
	CertificateAttributeMapping    = domain.CertificateAttributeMapping
	SignMessageParameters          = domain.SignMessageParameters

	SignatureSessionState = domain.SignatureSessionState
	SignatureState        = domain.SignatureState
	SignerAssertionInfo   = domain.SignerAssertionInfo
	SignatureResult       = domain.SignatureResult
	DSSStatus             = domain.DSSStatus

	PolicyConfiguration  = domain.PolicyConfiguration
	SigningCredential    = domain.SigningCredential
	EncryptionParameters = domain.EncryptionParameters
	ServiceMetadata      = domain.ServiceMetadata

	ValidationResult = domain.ValidationResult
)

// Document and signature type identifiers.
const (
	DocumentTypeXML = domain.DocumentTypeXML
	DocumentTypePDF = domain.DocumentTypePDF

	SignatureTypeXML = domain.SignatureTypeXML
	SignatureTypePDF = domain.SignatureTypePDF

	AdesFormatBES  = domain.AdesFormatBES
	AdesFormatEPES = domain.AdesFormatEPES

	SignatureStateCompleted = domain.SignatureStateCompleted
	SignatureStateCancelled = domain.SignatureStateCancelled
)

// Re-export the error model.
type (
	ErrorCode        = domain.ErrorCode
	SignServiceError = domain.SignServiceError
	ErrorBody        = domain.ErrorBody
)

const (
	ErrCodeValidationError    = domain.ErrCodeValidationError
	ErrCodeAccessDenied       = domain.ErrCodeAccessDenied
	ErrCodeDSSError           = domain.ErrCodeDSSError
	ErrCodeUserCancel         = domain.ErrCodeUserCancel
	ErrCodeUnknownTransaction = domain.ErrCodeUnknownTransaction
	ErrCodeDocumentIntegrity  = domain.ErrCodeDocumentIntegrity
	ErrCodeAssertionInvalid   = domain.ErrCodeAssertionInvalid
	ErrCodeAttributeMismatch  = domain.ErrCodeAttributeMismatch
	ErrCodeMetadataNotFound   = domain.ErrCodeMetadataNotFound
	ErrCodeInternalError      = domain.ErrCodeInternalError
	ErrCodeIOError            = domain.ErrCodeIOError
	ErrCodeStateError         = domain.ErrCodeStateError
)

// Re-export error constructors and the wire codec.
var (
	NewValidationError     = domain.ValidationError
	NewAccessDeniedError   = domain.AccessDeniedError
	NewUnknownTransaction  = domain.UnknownTransactionError
	NewDSSError            = domain.DSSError
	NewDocumentIntegrity   = domain.DocumentIntegrityError
	NewAssertionValidation = domain.AssertionValidationError
	NewAttributeMismatch   = domain.AttributeMismatchError
	NewMetadataError       = domain.MetadataError
	NewInternalError       = domain.InternalError

	NewErrorBody   = domain.NewErrorBody
	ParseErrorBody = domain.ParseErrorBody
)

// Re-export the driven ports so integrations can supply their own
// implementations without importing internal packages.
type (
	SessionCache     = ports.SessionCache[domain.SignatureSessionState]
	MetadataResolver = ports.MetadataResolver
	ContentLoader    = ports.ContentLoader
	PolicyRepository = ports.PolicyRepository
	MetricsRecorder  = ports.MetricsRecorder
	StateCodec       = ports.StateCodec
)

var (
	ErrMetadataNotFound  = ports.ErrMetadataNotFound
	ErrPolicyNotFound    = ports.ErrPolicyNotFound
	ErrInvalidStateToken = ports.ErrInvalidStateToken
)
