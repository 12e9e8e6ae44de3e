package domain

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationResult maps dotted/indexed field paths to rejection reasons
// for one validated object graph. An empty result means the object is
// valid. Validators accumulate every violation instead of failing fast.
type ValidationResult struct {
	// Object names the validated object (the top-level field path).
	Object string

	errors map[string]string
}

// NewValidationResult creates an empty result for the named object.
func NewValidationResult(object string) *ValidationResult {
	return &ValidationResult{Object: object, errors: make(map[string]string)}
}

// Reject records a rejection for the given field path. A later rejection
// for the same path overwrites the earlier one.
func (r *ValidationResult) Reject(fieldPath, reason string) {
	if r.errors == nil {
		r.errors = make(map[string]string)
	}
	r.errors[fieldPath] = reason
}

// RejectIfEmpty records a rejection when value is empty.
func (r *ValidationResult) RejectIfEmpty(fieldPath, value, reason string) {
	if value == "" {
		r.Reject(fieldPath, reason)
	}
}

// Merge folds another result's rejections into this one. The other
// result's paths are used as-is; use FieldPath/IndexPath when building
// nested validators so paths already carry their prefix.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	for path, reason := range other.errors {
		r.Reject(path, reason)
	}
}

// HasErrors reports whether any rejection was recorded.
func (r *ValidationResult) HasErrors() bool {
	return r != nil && len(r.errors) > 0
}

// Errors returns a copy of the path-to-reason map.
func (r *ValidationResult) Errors() map[string]string {
	if r == nil {
		return nil
	}
	out := make(map[string]string, len(r.errors))
	for path, reason := range r.errors {
		out[path] = reason
	}
	return out
}

// String renders the rejections in stable path order.
func (r *ValidationResult) String() string {
	if !r.HasErrors() {
		return fmt.Sprintf("%s: valid", r.Object)
	}
	paths := make([]string, 0, len(r.errors))
	for path := range r.errors {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	var b strings.Builder
	for i, path := range paths {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %s", path, r.errors[path])
	}
	return b.String()
}

// FieldPath joins a parent path and a field name with a dot. An empty
// parent yields the field name unchanged.
func FieldPath(parent, field string) string {
	if parent == "" {
		return field
	}
	return parent + "." + field
}

// IndexPath appends a sequence index to a field path.
func IndexPath(parent string, index int) string {
	return fmt.Sprintf("%s[%d]", parent, index)
}
