package document

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/domain"
	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/ports"
)

// CMS attribute OIDs.
var (
	oidData              = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}
	oidAttrContentType   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	oidAttrMessageDigest = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
	oidAttrSigPolicyID   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 15}
)

// cmsAttribute is a CMS Attribute (RFC 5652).
type cmsAttribute struct {
	Type   asn1.ObjectIdentifier
	Values []asn1.RawValue `asn1:"set"`
}

var pdfMagic = []byte("%PDF-")

// PDFProcessor handles PDF documents.
type PDFProcessor struct {
	loader ports.ContentLoader
	logger *zap.Logger
}

// NewPDFProcessor creates a PDF document processor.
func NewPDFProcessor(loader ports.ContentLoader, logger *zap.Logger) *PDFProcessor {
	return &PDFProcessor{loader: loader, logger: logger}
}

// Supports reports true for the PDF MIME type.
func (p *PDFProcessor) Supports(doc domain.TbsDocument) bool {
	return strings.ToLower(doc.MimeType) == domain.DocumentTypePDF
}

// PreProcess resolves the document content, applies the policy's default
// visible-signature requirement and corrects degenerate placement
// parameters. Out-of-range scale and page values denote recoverable
// requests: they are clamped and logged, not rejected.
func (p *PDFProcessor) PreProcess(correlationID string, doc domain.TbsDocument, policy *domain.PolicyConfiguration, fieldName string) (domain.TbsDocument, error) {
	processed := cloneTbsDocument(doc)
	if err := resolveContent(&processed, p.loader); err != nil {
		return domain.TbsDocument{}, err
	}
	if !bytes.HasPrefix(processed.Content, pdfMagic) {
		result := domain.NewValidationResult(fieldName)
		result.Reject(domain.FieldPath(fieldName, "content"), "document is not a PDF document")
		return domain.TbsDocument{}, domain.ValidationError(result)
	}

	if processed.VisiblePdfSignatureRequirement == nil && policy != nil && policy.DefaultVisiblePdfSignatureRequirement != nil {
		def := *policy.DefaultVisiblePdfSignatureRequirement
		processed.VisiblePdfSignatureRequirement = &def
	}
	if req := processed.VisiblePdfSignatureRequirement; req != nil {
		p.correctVisibleRequirement(correlationID, processed.ID, req)
	}
	return processed, nil
}

// correctVisibleRequirement clamps scale to [-100, 0] and page to >= 0,
// defaulting both to 0 when unset.
func (p *PDFProcessor) correctVisibleRequirement(correlationID, docID string, req *domain.VisiblePdfSignatureRequirement) {
	if req.Scale == nil {
		scale := 0
		req.Scale = &scale
	} else if *req.Scale < domain.MinVisiblePdfScale || *req.Scale > domain.MaxVisiblePdfScale {
		corrected := *req.Scale
		if corrected < domain.MinVisiblePdfScale {
			corrected = domain.MinVisiblePdfScale
		} else {
			corrected = domain.MaxVisiblePdfScale
		}
		if p.logger != nil {
			p.logger.Warn("corrected out-of-range visible signature scale",
				zap.String("correlation_id", correlationID),
				zap.String("document_id", docID),
				zap.Int("given", *req.Scale),
				zap.Int("corrected", corrected),
			)
		}
		*req.Scale = corrected
	}
	if req.Page == nil {
		page := 0
		req.Page = &page
	} else if *req.Page < 0 {
		if p.logger != nil {
			p.logger.Warn("corrected negative visible signature page",
				zap.String("correlation_id", correlationID),
				zap.String("document_id", docID),
				zap.Int("given", *req.Page),
			)
		}
		*req.Page = 0
	}
}

// CalculateToBeSigned digests the document and assembles the CMS signed
// attributes the signing service signs. No signing time is included so
// the output is byte-identical for identical inputs.
func (p *PDFProcessor) CalculateToBeSigned(doc domain.TbsDocument, signatureAlgorithm string, policy *domain.PolicyConfiguration) (*domain.TbsCalculationResult, error) {
	hash, _, err := hashForAlgorithm(signatureAlgorithm)
	if err != nil {
		result := domain.NewValidationResult("signatureAlgorithm")
		result.Reject("signatureAlgorithm", err.Error())
		return nil, domain.ValidationError(result)
	}
	digest := hashBytes(doc.Content, hash)

	calculation := &domain.TbsCalculationResult{SignatureType: domain.SignatureTypePDF}

	var adesAttrs []cmsAttribute
	if doc.AdesRequirement != nil {
		calculation.AdesObjectID = "pades-" + hex.EncodeToString(digest[:8])
		if doc.AdesRequirement.AdesFormat == domain.AdesFormatEPES {
			policyID := doc.AdesRequirement.SignaturePolicyID
			if policyID == "" && policy != nil {
				policyID = policy.SignaturePolicyID
			}
			policyAttr, err := signaturePolicyAttribute(policyID)
			if err != nil {
				return nil, domain.InternalError("Failed to encode signature policy attribute", err)
			}
			adesAttrs = append(adesAttrs, policyAttr)
		}
		adesBytes, err := asn1.MarshalWithParams(adesAttrs, "set")
		if err != nil {
			return nil, domain.InternalError("Failed to encode AdES object", err)
		}
		calculation.AdesObjectBytes = adesBytes
	}

	attrs := []cmsAttribute{
		{Type: oidAttrContentType, Values: []asn1.RawValue{rawOID(oidData)}},
		{Type: oidAttrMessageDigest, Values: []asn1.RawValue{rawOctetString(digest)}},
	}
	attrs = append(attrs, adesAttrs...)
	tbs, err := asn1.MarshalWithParams(attrs, "set")
	if err != nil {
		return nil, domain.InternalError("Failed to encode signed attributes", err)
	}
	calculation.ToBeSignedBytes = tbs
	return calculation, nil
}

// PostProcess verifies a signed PDF document: the returned content must
// carry the digest recorded in the request and the detached signature
// must verify over the recomputed signed attributes.
func (p *PDFProcessor) PostProcess(signed domain.SignedDocument, correlationID string, original domain.TbsDocument, signerCert *x509.Certificate, signatureAlgorithm string, policy *domain.PolicyConfiguration) (*domain.SignedDocument, error) {
	hash, _, err := hashForAlgorithm(signatureAlgorithm)
	if err != nil {
		return nil, domain.InternalError("Unsupported signature algorithm in cached state", err)
	}
	if !bytes.Equal(hashBytes(signed.Content, hash), hashBytes(original.Content, hash)) {
		return nil, domain.DocumentIntegrityError(signed.ID,
			"digest of signed document does not match the digest recorded in the request", nil)
	}
	if len(signed.Signature) == 0 {
		return nil, domain.DocumentIntegrityError(signed.ID, "signed document carries no signature", nil)
	}

	// Recompute the to-be-signed attributes from the cached document -
	// the calculation is deterministic, so the result is exactly what
	// the signing service was given to sign.
	calculation, err := p.CalculateToBeSigned(original, signatureAlgorithm, policy)
	if err != nil {
		return nil, err
	}
	if signerCert == nil {
		return nil, domain.DocumentIntegrityError(signed.ID, "no signer certificate available for verification", nil)
	}
	if err := verifySignatureValue(signerCert, hash, calculation.ToBeSignedBytes, signed.Signature); err != nil {
		return nil, domain.DocumentIntegrityError(signed.ID, "signature verification failed", err)
	}

	if p.logger != nil {
		p.logger.Info("verified signed PDF document",
			zap.String("correlation_id", correlationID),
			zap.String("document_id", signed.ID),
		)
	}
	return &domain.SignedDocument{
		ID:        signed.ID,
		MimeType:  signed.MimeType,
		Content:   signed.Content,
		Signature: signed.Signature,
	}, nil
}

// signaturePolicyAttribute encodes the ETSI signature-policy-identifier
// attribute for an EPES signature.
func signaturePolicyAttribute(policyID string) (cmsAttribute, error) {
	value, err := asn1.MarshalWithParams(policyID, "utf8")
	if err != nil {
		return cmsAttribute{}, err
	}
	return cmsAttribute{
		Type:   oidAttrSigPolicyID,
		Values: []asn1.RawValue{{FullBytes: value}},
	}, nil
}

func rawOID(oid asn1.ObjectIdentifier) asn1.RawValue {
	encoded, _ := asn1.Marshal(oid)
	return asn1.RawValue{FullBytes: encoded}
}

func rawOctetString(data []byte) asn1.RawValue {
	encoded, _ := asn1.Marshal(data)
	return asn1.RawValue{FullBytes: encoded}
}

// verifySignatureValue verifies a raw signature value over tbs with the
// certificate's public key.
func verifySignatureValue(cert *x509.Certificate, hash crypto.Hash, tbs, signature []byte) error {
	digest := hashBytes(tbs, hash)
	switch pub := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		return rsa.VerifyPKCS1v15(pub, hash, digest, signature)
	case *ecdsa.PublicKey:
		if ecdsa.VerifyASN1(pub, digest, signature) {
			return nil
		}
		return errors.New("ECDSA signature does not verify")
	default:
		return fmt.Errorf("unsupported public key type %T", pub)
	}
}

var _ ports.DocumentProcessor = (*PDFProcessor)(nil)
