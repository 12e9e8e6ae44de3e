package document

import (
	"fmt"

	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/domain"
	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/ports"
)

// Registry maps a document to the single processor that supports it.
type Registry struct {
	processors []ports.DocumentProcessor
}

// NewRegistry creates a registry over the given processors.
func NewRegistry(processors ...ports.DocumentProcessor) *Registry {
	return &Registry{processors: processors}
}

// Count returns the number of processors that support the document.
// Used by request validation to enforce the exactly-one invariant.
func (r *Registry) Count(doc domain.TbsDocument) int {
	n := 0
	for _, p := range r.processors {
		if p.Supports(doc) {
			n++
		}
	}
	return n
}

// Resolve returns the processor for the document. More than one match
// is a wiring bug and reported as an internal error.
func (r *Registry) Resolve(doc domain.TbsDocument) (ports.DocumentProcessor, error) {
	var found ports.DocumentProcessor
	for _, p := range r.processors {
		if !p.Supports(doc) {
			continue
		}
		if found != nil {
			return nil, domain.InternalError(
				fmt.Sprintf("multiple document processors support MIME type %q", doc.MimeType), nil)
		}
		found = p
	}
	if found == nil {
		return nil, domain.InternalError(
			fmt.Sprintf("no document processor supports MIME type %q", doc.MimeType), nil)
	}
	return found, nil
}
