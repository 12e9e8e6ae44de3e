package document

import (
	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/domain"
	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/ports"
)

// cloneTbsDocument deep-copies a document so pre-processing never
// mutates the caller's object graph.
func cloneTbsDocument(doc domain.TbsDocument) domain.TbsDocument {
	out := doc
	if doc.Content != nil {
		out.Content = append([]byte(nil), doc.Content...)
	}
	if doc.VisiblePdfSignatureRequirement != nil {
		req := *doc.VisiblePdfSignatureRequirement
		if doc.VisiblePdfSignatureRequirement.Scale != nil {
			scale := *doc.VisiblePdfSignatureRequirement.Scale
			req.Scale = &scale
		}
		if doc.VisiblePdfSignatureRequirement.Page != nil {
			page := *doc.VisiblePdfSignatureRequirement.Page
			req.Page = &page
		}
		if doc.VisiblePdfSignatureRequirement.SignerNameAttributes != nil {
			req.SignerNameAttributes = append([]string(nil), doc.VisiblePdfSignatureRequirement.SignerNameAttributes...)
		}
		if doc.VisiblePdfSignatureRequirement.FieldValues != nil {
			req.FieldValues = make(map[string]string, len(doc.VisiblePdfSignatureRequirement.FieldValues))
			for k, v := range doc.VisiblePdfSignatureRequirement.FieldValues {
				req.FieldValues[k] = v
			}
		}
		out.VisiblePdfSignatureRequirement = &req
	}
	if doc.AdesRequirement != nil {
		ades := *doc.AdesRequirement
		out.AdesRequirement = &ades
	}
	return out
}

// resolveContent fills in Content from the content reference when the
// document carries no inline content.
func resolveContent(doc *domain.TbsDocument, loader ports.ContentLoader) error {
	if len(doc.Content) > 0 || doc.ContentReference == "" {
		return nil
	}
	if loader == nil {
		return domain.IOError(doc.ContentReference, nil)
	}
	content, err := loader.Load(doc.ContentReference)
	if err != nil {
		return domain.IOError(doc.ContentReference, err)
	}
	doc.Content = content
	return nil
}
