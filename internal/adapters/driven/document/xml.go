package document

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
	"go.uber.org/zap"

	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/domain"
	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/ports"
)

// XML DSig namespace and algorithm URIs used when assembling the
// to-be-signed SignedInfo.
const (
	dsigNamespace          = "http://www.w3.org/2000/09/xmldsig#"
	xadesNamespace         = "http://uri.etsi.org/01903/v1.3.2#"
	signedPropertiesType   = "http://uri.etsi.org/01903#SignedProperties"
	exclusiveC14NAlgorithm = "http://www.w3.org/2001/10/xml-exc-c14n#"
	envelopedSignatureURI  = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
)

// XMLProcessor handles XML-signature documents.
type XMLProcessor struct {
	loader ports.ContentLoader
	logger *zap.Logger
}

// NewXMLProcessor creates an XML document processor.
func NewXMLProcessor(loader ports.ContentLoader, logger *zap.Logger) *XMLProcessor {
	return &XMLProcessor{loader: loader, logger: logger}
}

// Supports reports true for XML MIME types.
func (p *XMLProcessor) Supports(doc domain.TbsDocument) bool {
	mime := strings.ToLower(doc.MimeType)
	return mime == domain.DocumentTypeXML || mime == "text/xml"
}

// PreProcess resolves the document content and checks that it is
// well-formed XML. XML documents take no policy defaults.
func (p *XMLProcessor) PreProcess(correlationID string, doc domain.TbsDocument, policy *domain.PolicyConfiguration, fieldName string) (domain.TbsDocument, error) {
	processed := cloneTbsDocument(doc)
	if err := resolveContent(&processed, p.loader); err != nil {
		return domain.TbsDocument{}, err
	}
	root, err := parseXML(processed.Content)
	if err != nil || root == nil {
		result := domain.NewValidationResult(fieldName)
		result.Reject(domain.FieldPath(fieldName, "content"), "document is not well-formed XML")
		return domain.TbsDocument{}, domain.ValidationError(result)
	}
	return processed, nil
}

// CalculateToBeSigned canonicalizes the document, digests it and builds
// the SignedInfo the signing service signs. Deterministic for identical
// inputs so a failed outbound call can be retried idempotently.
func (p *XMLProcessor) CalculateToBeSigned(doc domain.TbsDocument, signatureAlgorithm string, policy *domain.PolicyConfiguration) (*domain.TbsCalculationResult, error) {
	hash, digestURI, err := hashForAlgorithm(signatureAlgorithm)
	if err != nil {
		result := domain.NewValidationResult("signatureAlgorithm")
		result.Reject("signatureAlgorithm", err.Error())
		return nil, domain.ValidationError(result)
	}
	digest, err := canonicalDigest(doc.Content, hash)
	if err != nil {
		return nil, domain.InternalError("Failed to canonicalize XML document", err)
	}

	calculation := &domain.TbsCalculationResult{SignatureType: domain.SignatureTypeXML}

	if doc.AdesRequirement != nil {
		// The AdES object ID is derived from the document digest so the
		// calculation stays deterministic across retries.
		calculation.AdesObjectID = "xades-" + hex.EncodeToString(digest[:8])
		adesBytes, err := p.buildXadesObject(calculation.AdesObjectID, doc, digestURI, policy)
		if err != nil {
			return nil, err
		}
		calculation.AdesObjectBytes = adesBytes
	}

	signedInfo, err := p.buildSignedInfo(signatureAlgorithm, digestURI, digest, calculation, hash)
	if err != nil {
		return nil, err
	}
	calculation.ToBeSignedBytes = signedInfo
	return calculation, nil
}

// buildSignedInfo assembles and canonicalizes the ds:SignedInfo element.
func (p *XMLProcessor) buildSignedInfo(signatureAlgorithm, digestURI string, digest []byte, calculation *domain.TbsCalculationResult, hash crypto.Hash) ([]byte, error) {
	signedInfo := etree.NewElement("SignedInfo")
	signedInfo.Space = "ds"
	signedInfo.CreateAttr("xmlns:ds", dsigNamespace)

	c14nMethod := signedInfo.CreateElement("ds:CanonicalizationMethod")
	c14nMethod.CreateAttr("Algorithm", exclusiveC14NAlgorithm)
	sigMethod := signedInfo.CreateElement("ds:SignatureMethod")
	sigMethod.CreateAttr("Algorithm", signatureAlgorithm)

	docRef := signedInfo.CreateElement("ds:Reference")
	docRef.CreateAttr("URI", "")
	transforms := docRef.CreateElement("ds:Transforms")
	transforms.CreateElement("ds:Transform").CreateAttr("Algorithm", envelopedSignatureURI)
	transforms.CreateElement("ds:Transform").CreateAttr("Algorithm", exclusiveC14NAlgorithm)
	docRef.CreateElement("ds:DigestMethod").CreateAttr("Algorithm", digestURI)
	docRef.CreateElement("ds:DigestValue").SetText(base64.StdEncoding.EncodeToString(digest))

	if calculation.AdesObjectID != "" {
		adesDigest := hashBytes(calculation.AdesObjectBytes, hash)
		adesRef := signedInfo.CreateElement("ds:Reference")
		adesRef.CreateAttr("URI", "#"+calculation.AdesObjectID)
		adesRef.CreateAttr("Type", signedPropertiesType)
		adesRef.CreateElement("ds:DigestMethod").CreateAttr("Algorithm", digestURI)
		adesRef.CreateElement("ds:DigestValue").SetText(base64.StdEncoding.EncodeToString(adesDigest))
	}

	canonicalizer := dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")
	canonical, err := canonicalizer.Canonicalize(signedInfo)
	if err != nil {
		return nil, domain.InternalError("Failed to canonicalize SignedInfo", err)
	}
	return canonical, nil
}

// buildXadesObject assembles the xades:SignedProperties for an advanced
// signature. No signing time is included - the object must be
// byte-identical across repeated calculations.
func (p *XMLProcessor) buildXadesObject(id string, doc domain.TbsDocument, digestURI string, policy *domain.PolicyConfiguration) ([]byte, error) {
	props := etree.NewElement("SignedProperties")
	props.Space = "xades"
	props.CreateAttr("xmlns:xades", xadesNamespace)
	props.CreateAttr("Id", id)

	sigProps := props.CreateElement("xades:SignedSignatureProperties")
	if doc.AdesRequirement.AdesFormat == domain.AdesFormatEPES {
		policyID := doc.AdesRequirement.SignaturePolicyID
		if policyID == "" && policy != nil {
			policyID = policy.SignaturePolicyID
		}
		policyIdentifier := sigProps.CreateElement("xades:SignaturePolicyIdentifier")
		sigPolicyID := policyIdentifier.CreateElement("xades:SignaturePolicyId")
		identifier := sigPolicyID.CreateElement("xades:SigPolicyId").CreateElement("xades:Identifier")
		identifier.SetText(policyID)
	}

	canonicalizer := dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")
	canonical, err := canonicalizer.Canonicalize(props)
	if err != nil {
		return nil, domain.InternalError("Failed to canonicalize SignedProperties", err)
	}
	return canonical, nil
}

// PostProcess verifies a signed XML document: the embedded signature
// must validate against the signer certificate and the signed reference
// digest must match the digest of the originating document.
func (p *XMLProcessor) PostProcess(signed domain.SignedDocument, correlationID string, original domain.TbsDocument, signerCert *x509.Certificate, signatureAlgorithm string, policy *domain.PolicyConfiguration) (*domain.SignedDocument, error) {
	hash, _, err := hashForAlgorithm(signatureAlgorithm)
	if err != nil {
		return nil, domain.InternalError("Unsupported signature algorithm in cached state", err)
	}

	root, err := parseXML(signed.Content)
	if err != nil || root == nil {
		return nil, domain.DocumentIntegrityError(signed.ID, "signed document is not well-formed XML", err)
	}

	// Bind the returned document back to the request: the digest stated
	// in the embedded signature must equal the digest of the document
	// content from the original request.
	statedDigest, err := extractReferenceDigest(root)
	if err != nil {
		return nil, domain.DocumentIntegrityError(signed.ID, "signed document carries no document reference digest", err)
	}
	expectedDigest, err := canonicalDigest(original.Content, hash)
	if err != nil {
		return nil, domain.InternalError("Failed to canonicalize original document", err)
	}
	if !bytes.Equal(statedDigest, expectedDigest) {
		return nil, domain.DocumentIntegrityError(signed.ID,
			"digest of signed document does not match the digest recorded in the request", nil)
	}

	content := signed.Content
	if signerCert != nil {
		ctx := dsig.NewDefaultValidationContext(&dsig.MemoryX509CertificateStore{
			Roots: []*x509.Certificate{signerCert},
		})
		validated, err := ctx.Validate(root)
		if err != nil {
			return nil, domain.DocumentIntegrityError(signed.ID, "XML signature verification failed", err)
		}
		// Re-serialize the validated element so later consumers cannot be
		// fooled by signature wrapping.
		validatedDoc := etree.NewDocument()
		validatedDoc.SetRoot(validated)
		content, err = validatedDoc.WriteToBytes()
		if err != nil {
			return nil, domain.InternalError("Failed to serialize validated document", err)
		}
	}

	if p.logger != nil {
		p.logger.Info("verified signed XML document",
			zap.String("correlation_id", correlationID),
			zap.String("document_id", signed.ID),
		)
	}
	return &domain.SignedDocument{
		ID:       signed.ID,
		MimeType: signed.MimeType,
		Content:  content,
	}, nil
}

// parseXML parses content and returns the root element.
func parseXML(content []byte) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return nil, err
	}
	return doc.Root(), nil
}

// canonicalDigest canonicalizes an XML document with exclusive C14N,
// dropping any embedded Signature first, and digests the result.
func canonicalDigest(content []byte, hash crypto.Hash) ([]byte, error) {
	root, err := parseXML(content)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, fmt.Errorf("empty XML document")
	}
	for _, child := range root.ChildElements() {
		if child.Tag == "Signature" && child.NamespaceURI() == dsigNamespace {
			root.RemoveChild(child)
		}
	}
	canonicalizer := dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")
	canonical, err := canonicalizer.Canonicalize(root)
	if err != nil {
		return nil, err
	}
	return hashBytes(canonical, hash), nil
}

// hashBytes digests data with the given hash function.
func hashBytes(data []byte, hash crypto.Hash) []byte {
	h := hash.New()
	h.Write(data)
	return h.Sum(nil)
}

// extractReferenceDigest returns the decoded DigestValue of the
// document reference (URI="") in the embedded signature.
func extractReferenceDigest(root *etree.Element) ([]byte, error) {
	for _, sig := range root.ChildElements() {
		if sig.Tag != "Signature" || sig.NamespaceURI() != dsigNamespace {
			continue
		}
		signedInfo := findChild(sig, "SignedInfo")
		if signedInfo == nil {
			continue
		}
		for _, ref := range signedInfo.ChildElements() {
			if ref.Tag != "Reference" {
				continue
			}
			if ref.SelectAttrValue("URI", "-") != "" {
				continue
			}
			digestValue := findChild(ref, "DigestValue")
			if digestValue == nil {
				continue
			}
			return base64.StdEncoding.DecodeString(strings.TrimSpace(digestValue.Text()))
		}
	}
	return nil, fmt.Errorf("no document reference found")
}

// findChild returns the first child element with the given local name.
func findChild(el *etree.Element, tag string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == tag {
			return child
		}
	}
	return nil
}

var _ ports.DocumentProcessor = (*XMLProcessor)(nil)
