package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Category is the top level of the two-level error code attached to
// every user-visible failure. Categories are stable across process
// boundaries.
type Category string

const (
	CategoryInputValidation     Category = "input-validation"
	CategoryAccessDenied        Category = "access-denied"
	CategoryDSS                 Category = "dss"
	CategoryAssertionValidation Category = "assertion-validation"
	CategoryMetadata            Category = "metadata"
	CategoryInternal            Category = "internal"
)

// ErrorCode is a stable "category.code" pair.
type ErrorCode string

const (
	ErrCodeValidationError    ErrorCode = "input-validation.error"
	ErrCodeAccessDenied       ErrorCode = "access-denied.state"
	ErrCodeDSSError           ErrorCode = "dss.error"
	ErrCodeUserCancel         ErrorCode = "dss.user-cancel"
	ErrCodeUnknownTransaction ErrorCode = "dss.unknown-transaction"
	ErrCodeDocumentIntegrity  ErrorCode = "dss.document-integrity"
	ErrCodeAssertionInvalid   ErrorCode = "assertion-validation.error"
	ErrCodeAttributeMismatch  ErrorCode = "assertion-validation.attribute-mismatch"
	ErrCodeMetadataNotFound   ErrorCode = "metadata.not-found"
	ErrCodeInternalError      ErrorCode = "internal.error"
	ErrCodeIOError            ErrorCode = "internal.io-error"
	ErrCodeStateError         ErrorCode = "internal.state-error"
)

// String returns the error code as a string.
func (c ErrorCode) String() string {
	return string(c)
}

// Category returns the category part of the code. Codes without a
// category prefix fall back to CategoryInternal.
func (c ErrorCode) Category() Category {
	if i := strings.IndexByte(string(c), '.'); i > 0 {
		return Category(c[:i])
	}
	return CategoryInternal
}

// HTTPStatus returns the HTTP status class representative for this code.
// The exact numeric mapping used on the wire belongs to the transport
// binding; the category/status pairing itself is part of the contract.
func (c ErrorCode) HTTPStatus() int {
	switch c.Category() {
	case CategoryInputValidation, CategoryDSS:
		return http.StatusBadRequest
	case CategoryAccessDenied, CategoryAssertionValidation:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// SignServiceError is a categorized failure with enough structured data
// to reconstruct the same condition across a process boundary.
type SignServiceError struct {
	Code    ErrorCode
	Message string
	Cause   error

	// DSSStatus carries the protocol status verbatim for DSS failures.
	DSSStatus *DSSStatus

	// Validation carries the field-path rejection map for
	// input-validation failures.
	Validation *ValidationResult
}

// Error implements the error interface.
func (e *SignServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *SignServiceError) Unwrap() error {
	return e.Cause
}

// ValidationError creates an input-validation error from an aggregated
// result.
func ValidationError(result *ValidationResult) *SignServiceError {
	return &SignServiceError{
		Code:       ErrCodeValidationError,
		Message:    fmt.Sprintf("Validation of %s failed", result.Object),
		Validation: result,
	}
}

// AccessDeniedError creates an error for a session-state ownership
// mismatch. Deliberately distinct from "no such transaction".
func AccessDeniedError(id string) *SignServiceError {
	return &SignServiceError{
		Code:    ErrCodeAccessDenied,
		Message: fmt.Sprintf("Not authorized to access state %q", id),
	}
}

// UnknownTransactionError creates an error for a response that refers to
// an unknown or expired transaction.
func UnknownTransactionError(id string) *SignServiceError {
	return &SignServiceError{
		Code:    ErrCodeUnknownTransaction,
		Message: fmt.Sprintf("No state found for transaction %q - unknown or expired", id),
	}
}

// DSSError creates an error carrying a non-success protocol status.
func DSSError(status DSSStatus) *SignServiceError {
	msg := status.Message
	if msg == "" {
		msg = "Sign service reported error status"
	}
	return &SignServiceError{Code: ErrCodeDSSError, Message: msg, DSSStatus: &status}
}

// DocumentIntegrityError creates a protocol-level integrity error for
// one signed document, attributed by document identifier.
func DocumentIntegrityError(docID, message string, cause error) *SignServiceError {
	return &SignServiceError{
		Code:    ErrCodeDocumentIntegrity,
		Message: fmt.Sprintf("Document %q: %s", docID, message),
		Cause:   cause,
	}
}

// AssertionValidationError creates an assertion/identity validation
// error. Security relevant - never downgraded to a generic failure.
func AssertionValidationError(message string, cause error) *SignServiceError {
	return &SignServiceError{Code: ErrCodeAssertionInvalid, Message: message, Cause: cause}
}

// AttributeMismatchError creates an error for an unmet signer attribute
// requirement, attributed to the specific attribute.
func AttributeMismatchError(attributeName, message string) *SignServiceError {
	return &SignServiceError{
		Code:    ErrCodeAttributeMismatch,
		Message: fmt.Sprintf("Attribute %q: %s", attributeName, message),
	}
}

// MetadataError creates a metadata/resolution error. Fails closed.
func MetadataError(entityID string, cause error) *SignServiceError {
	return &SignServiceError{
		Code:    ErrCodeMetadataNotFound,
		Message: fmt.Sprintf("No trusted metadata available for %q", entityID),
		Cause:   cause,
	}
}

// InternalError creates a defensive internal error. Only the stable code
// and message reach the wire.
func InternalError(message string, cause error) *SignServiceError {
	return &SignServiceError{Code: ErrCodeInternalError, Message: message, Cause: cause}
}

// IOError creates an error for a failed content load.
func IOError(reference string, cause error) *SignServiceError {
	return &SignServiceError{
		Code:    ErrCodeIOError,
		Message: fmt.Sprintf("Failed to load content %q", reference),
		Cause:   cause,
	}
}

// StateError creates an error for malformed cached or serialized state.
func StateError(message string, cause error) *SignServiceError {
	return &SignServiceError{Code: ErrCodeStateError, Message: message, Cause: cause}
}

// ErrorBody is the stable cross-process wire format for failures.
type ErrorBody struct {
	ErrorCode       string               `json:"errorCode"`
	Message         string               `json:"message"`
	Status          int                  `json:"status"`
	DSSError        *DSSErrorBody        `json:"dssError,omitempty"`
	ValidationError *ValidationErrorBody `json:"validationError,omitempty"`
	ExceptionClass  string               `json:"exceptionClass,omitempty"`
}

// DSSErrorBody carries the protocol status codes verbatim.
type DSSErrorBody struct {
	MajorCode string `json:"majorCode"`
	MinorCode string `json:"minorCode"`
}

// ValidationErrorBody carries per-field validation details.
type ValidationErrorBody struct {
	Object  string            `json:"object"`
	Details map[string]string `json:"details,omitempty"`
}

// NewErrorBody builds the wire body for an error. Non-categorized errors
// are reported with the generic internal code; internal detail beyond
// the stable code and message never reaches the body.
func NewErrorBody(err error) *ErrorBody {
	var sse *SignServiceError
	if !errors.As(err, &sse) {
		return &ErrorBody{
			ErrorCode: ErrCodeInternalError.String(),
			Message:   "Internal error",
			Status:    http.StatusInternalServerError,
		}
	}
	body := &ErrorBody{
		ErrorCode: sse.Code.String(),
		Message:   sse.Message,
		Status:    sse.Code.HTTPStatus(),
	}
	if sse.DSSStatus != nil {
		body.DSSError = &DSSErrorBody{
			MajorCode: sse.DSSStatus.MajorCode,
			MinorCode: sse.DSSStatus.MinorCode,
		}
	}
	if sse.Validation != nil {
		body.ValidationError = &ValidationErrorBody{
			Object:  sse.Validation.Object,
			Details: sse.Validation.Errors(),
		}
	}
	return body
}

// ParseErrorBody reconstructs a categorized error from its wire body.
// A recognized user-cancel minor code maps to ErrCodeUserCancel, a
// present validationError reconstructs an input-validation failure with
// per-field details, and anything malformed fails closed as an internal
// error - never coerced to success.
func ParseErrorBody(data []byte) *SignServiceError {
	var body ErrorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return InternalError("Malformed error body", err)
	}
	if body.ErrorCode == "" {
		return InternalError("Malformed error body: missing errorCode", nil)
	}
	sse := &SignServiceError{Code: ErrorCode(body.ErrorCode), Message: body.Message}
	if body.DSSError != nil {
		sse.DSSStatus = &DSSStatus{
			MajorCode: body.DSSError.MajorCode,
			MinorCode: body.DSSError.MinorCode,
		}
		if sse.DSSStatus.UserCancel() {
			sse.Code = ErrCodeUserCancel
		}
	}
	if body.ValidationError != nil {
		result := NewValidationResult(body.ValidationError.Object)
		for path, reason := range body.ValidationError.Details {
			result.Reject(path, reason)
		}
		sse.Code = ErrCodeValidationError
		sse.Validation = result
	}
	return sse
}
