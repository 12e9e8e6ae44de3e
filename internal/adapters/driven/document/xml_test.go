//go:build unit

package document

import (
	"bytes"
	"strings"
	"testing"

	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/domain"
)

var testXML = []byte(`<?xml version="1.0" encoding="UTF-8"?><Contract xmlns="urn:example:contract"><Amount>100</Amount></Contract>`)

func xmlDocument() domain.TbsDocument {
	return domain.TbsDocument{
		ID:       "xml-1",
		MimeType: domain.DocumentTypeXML,
		Content:  append([]byte(nil), testXML...),
	}
}

func TestXMLProcessor_Supports(t *testing.T) {
	p := NewXMLProcessor(nil, nil)
	tests := []struct {
		mime string
		want bool
	}{
		{"application/xml", true},
		{"text/xml", true},
		{"APPLICATION/XML", true},
		{"application/pdf", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := p.Supports(domain.TbsDocument{MimeType: tt.mime}); got != tt.want {
			t.Errorf("Supports(%q) = %v, want %v", tt.mime, got, tt.want)
		}
	}
}

func TestXMLProcessor_PreProcess_RejectsMalformedXML(t *testing.T) {
	p := NewXMLProcessor(nil, nil)
	doc := xmlDocument()
	doc.Content = []byte("<Contract><unclosed>")

	_, err := p.PreProcess("corr-1", doc, nil, "doc")
	if err == nil {
		t.Fatal("malformed XML accepted")
	}
	var sse *domain.SignServiceError
	if !asSignServiceError(err, &sse) || sse.Code != domain.ErrCodeValidationError {
		t.Errorf("error = %v, want input-validation error", err)
	}
}

func TestXMLProcessor_CalculateToBeSigned_Deterministic(t *testing.T) {
	p := NewXMLProcessor(nil, nil)
	doc := xmlDocument()
	doc.AdesRequirement = &domain.EtsiAdesRequirement{AdesFormat: domain.AdesFormatBES}

	first, err := p.CalculateToBeSigned(doc, AlgRSASHA256, nil)
	if err != nil {
		t.Fatalf("CalculateToBeSigned() returned error: %v", err)
	}
	second, err := p.CalculateToBeSigned(doc, AlgRSASHA256, nil)
	if err != nil {
		t.Fatalf("CalculateToBeSigned() returned error: %v", err)
	}
	if !bytes.Equal(first.ToBeSignedBytes, second.ToBeSignedBytes) {
		t.Error("ToBeSignedBytes differ between identical calculations")
	}
	if first.AdesObjectID != second.AdesObjectID {
		t.Errorf("AdesObjectID differs: %q vs %q", first.AdesObjectID, second.AdesObjectID)
	}
}

func TestXMLProcessor_CalculateToBeSigned_SignedInfoShape(t *testing.T) {
	p := NewXMLProcessor(nil, nil)
	calculation, err := p.CalculateToBeSigned(xmlDocument(), AlgRSASHA256, nil)
	if err != nil {
		t.Fatalf("CalculateToBeSigned() returned error: %v", err)
	}

	signedInfo := string(calculation.ToBeSignedBytes)
	for _, want := range []string{
		"SignedInfo",
		AlgRSASHA256,
		"http://www.w3.org/2001/10/xml-exc-c14n#",
		"http://www.w3.org/2000/09/xmldsig#enveloped-signature",
		DigestSHA256,
	} {
		if !strings.Contains(signedInfo, want) {
			t.Errorf("SignedInfo missing %q:\n%s", want, signedInfo)
		}
	}
	if calculation.SignatureType != domain.SignatureTypeXML {
		t.Errorf("SignatureType = %q", calculation.SignatureType)
	}
	if calculation.AdesObjectID != "" {
		t.Errorf("AdesObjectID = %q for a document without AdES requirement", calculation.AdesObjectID)
	}
}

func TestXMLProcessor_CalculateToBeSigned_EPESPolicyIdentifier(t *testing.T) {
	p := NewXMLProcessor(nil, nil)
	doc := xmlDocument()
	doc.AdesRequirement = &domain.EtsiAdesRequirement{AdesFormat: domain.AdesFormatEPES}
	policy := &domain.PolicyConfiguration{SignaturePolicyID: "1.2.752.201.2.1"}

	calculation, err := p.CalculateToBeSigned(doc, AlgRSASHA256, policy)
	if err != nil {
		t.Fatalf("CalculateToBeSigned() returned error: %v", err)
	}
	if !strings.HasPrefix(calculation.AdesObjectID, "xades-") {
		t.Errorf("AdesObjectID = %q", calculation.AdesObjectID)
	}
	ades := string(calculation.AdesObjectBytes)
	if !strings.Contains(ades, "SignaturePolicyIdentifier") || !strings.Contains(ades, "1.2.752.201.2.1") {
		t.Errorf("AdES object missing policy identifier:\n%s", ades)
	}
	if !strings.Contains(string(calculation.ToBeSignedBytes), "#"+calculation.AdesObjectID) {
		t.Error("SignedInfo carries no reference to the AdES object")
	}
}

func TestXMLProcessor_PostProcess_VerifiesSignedDocument(t *testing.T) {
	p := NewXMLProcessor(nil, nil)
	signer := newTestSigner(t)
	original := xmlDocument()

	signedContent, err := signer.SignXML(original.Content)
	if err != nil {
		t.Fatalf("SignXML() returned error: %v", err)
	}
	signed := domain.SignedDocument{
		ID:       original.ID,
		MimeType: original.MimeType,
		Content:  signedContent,
	}

	verified, err := p.PostProcess(signed, "corr-1", original, signer.Certificate(), AlgRSASHA256, nil)
	if err != nil {
		t.Fatalf("PostProcess() returned error: %v", err)
	}
	if len(verified.Content) == 0 {
		t.Fatal("verified document has no content")
	}
	if !strings.Contains(string(verified.Content), "<Amount>100</Amount>") {
		t.Error("verified document lost its payload")
	}
}

func TestXMLProcessor_PostProcess_RejectsDifferentDocument(t *testing.T) {
	p := NewXMLProcessor(nil, nil)
	signer := newTestSigner(t)
	original := xmlDocument()

	// Sign a different document than the one in the request.
	other := []byte(`<Contract xmlns="urn:example:contract"><Amount>999999</Amount></Contract>`)
	signedContent, err := signer.SignXML(other)
	if err != nil {
		t.Fatalf("SignXML() returned error: %v", err)
	}
	signed := domain.SignedDocument{ID: original.ID, MimeType: original.MimeType, Content: signedContent}

	_, err = p.PostProcess(signed, "corr-1", original, signer.Certificate(), AlgRSASHA256, nil)
	if err == nil {
		t.Fatal("signed substitute document accepted")
	}
	var sse *domain.SignServiceError
	if !asSignServiceError(err, &sse) || sse.Code != domain.ErrCodeDocumentIntegrity {
		t.Errorf("error = %v, want document-integrity error", err)
	}
}

func TestXMLProcessor_PostProcess_RejectsUnsignedDocument(t *testing.T) {
	p := NewXMLProcessor(nil, nil)
	signer := newTestSigner(t)
	original := xmlDocument()

	signed := domain.SignedDocument{ID: original.ID, MimeType: original.MimeType, Content: original.Content}
	if _, err := p.PostProcess(signed, "corr-1", original, signer.Certificate(), AlgRSASHA256, nil); err == nil {
		t.Error("document without embedded signature accepted")
	}
}

func TestRegistry_MutuallyExclusive(t *testing.T) {
	registry := NewRegistry(NewXMLProcessor(nil, nil), NewPDFProcessor(nil, nil))

	tests := []struct {
		mime string
		want int
	}{
		{"application/xml", 1},
		{"text/xml", 1},
		{"application/pdf", 1},
		{"image/png", 0},
	}
	for _, tt := range tests {
		if got := registry.Count(domain.TbsDocument{MimeType: tt.mime}); got != tt.want {
			t.Errorf("Count(%q) = %d, want %d", tt.mime, got, tt.want)
		}
	}
}

func TestRegistry_Resolve(t *testing.T) {
	registry := NewRegistry(NewXMLProcessor(nil, nil), NewPDFProcessor(nil, nil))

	processor, err := registry.Resolve(domain.TbsDocument{MimeType: "application/pdf"})
	if err != nil {
		t.Fatalf("Resolve() returned error: %v", err)
	}
	if _, ok := processor.(*PDFProcessor); !ok {
		t.Errorf("Resolve() = %T, want *PDFProcessor", processor)
	}

	if _, err := registry.Resolve(domain.TbsDocument{MimeType: "image/png"}); err == nil {
		t.Error("Resolve() for unsupported MIME type returned no error")
	}
}

func TestRegistry_ResolveRejectsAmbiguity(t *testing.T) {
	// Two processors claiming the same MIME type is a wiring bug.
	registry := NewRegistry(NewPDFProcessor(nil, nil), NewPDFProcessor(nil, nil))
	if _, err := registry.Resolve(domain.TbsDocument{MimeType: "application/pdf"}); err == nil {
		t.Error("ambiguous resolution returned no error")
	}
}

func TestHashForAlgorithm(t *testing.T) {
	hash, digestURI, err := hashForAlgorithm(AlgRSASHA256)
	if err != nil {
		t.Fatalf("hashForAlgorithm() returned error: %v", err)
	}
	if digestURI != DigestSHA256 {
		t.Errorf("digestURI = %q, want %q", digestURI, DigestSHA256)
	}
	if hash.Size() != 32 {
		t.Errorf("hash size = %d, want 32", hash.Size())
	}

	if _, _, err := hashForAlgorithm("urn:unknown"); err == nil {
		t.Error("unknown algorithm accepted")
	}
}
