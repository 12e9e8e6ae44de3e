// Package validation provides the generic, policy-aware input
// validation framework. Validators are pure predicates that accumulate
// every violation of an object graph into one ValidationResult instead
// of failing fast.
package validation

import (
	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/domain"
)

// Validator validates objects of type T under a context/hint of type H
// (typically the active policy configuration).
type Validator[T any, H any] interface {
	// Validate checks obj and reports every violation under fieldPath.
	Validate(obj T, fieldPath string, hint H) *domain.ValidationResult
}

// ValidateObject runs the validator and converts a non-empty result into
// a single input-validation error carrying the full field-path detail
// map. objectName becomes the result's object name and top-level path.
func ValidateObject[T any, H any](v Validator[T, H], obj T, objectName string, hint H) error {
	result := v.Validate(obj, objectName, hint)
	if result.HasErrors() {
		result.Object = objectName
		return domain.ValidationError(result)
	}
	return nil
}
