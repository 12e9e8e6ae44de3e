//go:build unit

package document

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/domain"
	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/ports"
)

var testPDF = []byte("%PDF-1.7\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< >>\n%%EOF\n")

func pdfDocument() domain.TbsDocument {
	return domain.TbsDocument{
		ID:       "pdf-1",
		MimeType: domain.DocumentTypePDF,
		Content:  append([]byte(nil), testPDF...),
	}
}

func intp(v int) *int { return &v }

func TestPDFProcessor_Interface(t *testing.T) {
	var _ ports.DocumentProcessor = (*PDFProcessor)(nil)
}

func TestPDFProcessor_Supports(t *testing.T) {
	p := NewPDFProcessor(nil, nil)
	tests := []struct {
		mime string
		want bool
	}{
		{"application/pdf", true},
		{"Application/PDF", true},
		{"application/xml", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := p.Supports(domain.TbsDocument{MimeType: tt.mime}); got != tt.want {
			t.Errorf("Supports(%q) = %v, want %v", tt.mime, got, tt.want)
		}
	}
}

func TestPDFProcessor_PreProcess_RejectsNonPDF(t *testing.T) {
	p := NewPDFProcessor(nil, nil)
	doc := pdfDocument()
	doc.Content = []byte("<xml/>")

	_, err := p.PreProcess("corr-1", doc, nil, "signRequestInput.tbsDocuments[0]")
	if err == nil {
		t.Fatal("non-PDF content accepted")
	}
	var sse *domain.SignServiceError
	if !asSignServiceError(err, &sse) || sse.Code != domain.ErrCodeValidationError {
		t.Errorf("error = %v, want input-validation error", err)
	}
}

func TestPDFProcessor_PreProcess_ClampsScale(t *testing.T) {
	tests := []struct {
		name  string
		scale *int
		want  int
	}{
		{"nil defaults to zero", nil, 0},
		{"below floor clamps to floor", intp(-150), -100},
		{"above ceiling clamps to ceiling", intp(50), 0},
		{"floor kept", intp(-100), -100},
		{"ceiling kept", intp(0), 0},
		{"in range kept", intp(-40), -40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPDFProcessor(nil, nil)
			doc := pdfDocument()
			doc.VisiblePdfSignatureRequirement = &domain.VisiblePdfSignatureRequirement{
				TemplateImageRef: "img-1",
				Scale:            tt.scale,
			}
			processed, err := p.PreProcess("corr-1", doc, nil, "doc")
			if err != nil {
				t.Fatalf("PreProcess() returned error: %v", err)
			}
			got := processed.VisiblePdfSignatureRequirement.Scale
			if got == nil || *got != tt.want {
				t.Errorf("Scale = %v, want %d", got, tt.want)
			}
		})
	}
}

func TestPDFProcessor_PreProcess_ClampsPage(t *testing.T) {
	tests := []struct {
		name string
		page *int
		want int
	}{
		{"nil defaults to zero", nil, 0},
		{"negative clamps to zero", intp(-1), 0},
		{"positive kept", intp(3), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPDFProcessor(nil, nil)
			doc := pdfDocument()
			doc.VisiblePdfSignatureRequirement = &domain.VisiblePdfSignatureRequirement{
				TemplateImageRef: "img-1",
				Page:             tt.page,
			}
			processed, err := p.PreProcess("corr-1", doc, nil, "doc")
			if err != nil {
				t.Fatalf("PreProcess() returned error: %v", err)
			}
			got := processed.VisiblePdfSignatureRequirement.Page
			if got == nil || *got != tt.want {
				t.Errorf("Page = %v, want %d", got, tt.want)
			}
		})
	}
}

func TestPDFProcessor_PreProcess_LogsClampCorrections(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := NewPDFProcessor(nil, zap.New(core))
	doc := pdfDocument()
	doc.VisiblePdfSignatureRequirement = &domain.VisiblePdfSignatureRequirement{
		TemplateImageRef: "img-1",
		Scale:            intp(-150),
		Page:             intp(-1),
	}

	if _, err := p.PreProcess("corr-1", doc, nil, "doc"); err != nil {
		t.Fatalf("PreProcess() returned error: %v", err)
	}
	if got := logs.FilterMessage("corrected out-of-range visible signature scale").Len(); got != 1 {
		t.Errorf("scale correction logged %d times, want 1", got)
	}
	if got := logs.FilterMessage("corrected negative visible signature page").Len(); got != 1 {
		t.Errorf("page correction logged %d times, want 1", got)
	}
}

func TestPDFProcessor_PreProcess_DoesNotMutateInput(t *testing.T) {
	p := NewPDFProcessor(nil, nil)
	doc := pdfDocument()
	doc.VisiblePdfSignatureRequirement = &domain.VisiblePdfSignatureRequirement{
		TemplateImageRef: "img-1",
		Scale:            intp(-150),
	}

	if _, err := p.PreProcess("corr-1", doc, nil, "doc"); err != nil {
		t.Fatalf("PreProcess() returned error: %v", err)
	}
	if *doc.VisiblePdfSignatureRequirement.Scale != -150 {
		t.Error("PreProcess() mutated the caller's document")
	}
}

func TestPDFProcessor_PreProcess_PolicyDefaultVisibleRequirement(t *testing.T) {
	p := NewPDFProcessor(nil, nil)
	policy := &domain.PolicyConfiguration{
		DefaultVisiblePdfSignatureRequirement: &domain.VisiblePdfSignatureRequirement{
			TemplateImageRef: "company-stamp",
			XPosition:        100,
			YPosition:        50,
		},
	}

	processed, err := p.PreProcess("corr-1", pdfDocument(), policy, "doc")
	if err != nil {
		t.Fatalf("PreProcess() returned error: %v", err)
	}
	req := processed.VisiblePdfSignatureRequirement
	if req == nil || req.TemplateImageRef != "company-stamp" {
		t.Errorf("policy default visible requirement not applied: %+v", req)
	}
	// Defaults are clamped like explicit values.
	if req.Scale == nil || *req.Scale != 0 {
		t.Errorf("Scale = %v, want 0", req.Scale)
	}
}

func TestPDFProcessor_CalculateToBeSigned_Deterministic(t *testing.T) {
	p := NewPDFProcessor(nil, nil)
	doc := pdfDocument()
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
	if !bytes.Equal(first.AdesObjectBytes, second.AdesObjectBytes) {
		t.Error("AdesObjectBytes differ between identical calculations")
	}
	if first.SignatureType != domain.SignatureTypePDF {
		t.Errorf("SignatureType = %q", first.SignatureType)
	}
}

func TestPDFProcessor_CalculateToBeSigned_EPESChangesTBS(t *testing.T) {
	p := NewPDFProcessor(nil, nil)

	bes := pdfDocument()
	bes.AdesRequirement = &domain.EtsiAdesRequirement{AdesFormat: domain.AdesFormatBES}
	epes := pdfDocument()
	epes.AdesRequirement = &domain.EtsiAdesRequirement{
		AdesFormat:        domain.AdesFormatEPES,
		SignaturePolicyID: "1.2.752.201.2.1",
	}

	besCalc, err := p.CalculateToBeSigned(bes, AlgRSASHA256, nil)
	if err != nil {
		t.Fatalf("BES calculation failed: %v", err)
	}
	epesCalc, err := p.CalculateToBeSigned(epes, AlgRSASHA256, nil)
	if err != nil {
		t.Fatalf("EPES calculation failed: %v", err)
	}
	if bytes.Equal(besCalc.ToBeSignedBytes, epesCalc.ToBeSignedBytes) {
		t.Error("EPES policy attribute did not change the to-be-signed bytes")
	}
}

func TestPDFProcessor_CalculateToBeSigned_UnsupportedAlgorithm(t *testing.T) {
	p := NewPDFProcessor(nil, nil)
	if _, err := p.CalculateToBeSigned(pdfDocument(), "http://example.com/unknown-alg", nil); err == nil {
		t.Error("unsupported algorithm accepted")
	}
}

func TestPDFProcessor_PostProcess_VerifiesSignature(t *testing.T) {
	p := NewPDFProcessor(nil, nil)
	signer := newTestSigner(t)
	original := pdfDocument()

	calculation, err := p.CalculateToBeSigned(original, AlgRSASHA256, nil)
	if err != nil {
		t.Fatalf("CalculateToBeSigned() returned error: %v", err)
	}
	signature, err := signer.SignValue(calculation.ToBeSignedBytes, AlgRSASHA256)
	if err != nil {
		t.Fatalf("SignValue() returned error: %v", err)
	}
	signed := domain.SignedDocument{
		ID:        original.ID,
		MimeType:  original.MimeType,
		Content:   original.Content,
		Signature: signature,
	}

	verified, err := p.PostProcess(signed, "corr-1", original, signer.Certificate(), AlgRSASHA256, nil)
	if err != nil {
		t.Fatalf("PostProcess() returned error: %v", err)
	}
	if !bytes.Equal(verified.Content, original.Content) {
		t.Error("verified content differs from signed content")
	}
}

func TestPDFProcessor_PostProcess_RejectsContentSwap(t *testing.T) {
	p := NewPDFProcessor(nil, nil)
	signer := newTestSigner(t)
	original := pdfDocument()

	calculation, _ := p.CalculateToBeSigned(original, AlgRSASHA256, nil)
	signature, _ := signer.SignValue(calculation.ToBeSignedBytes, AlgRSASHA256)

	swapped := domain.SignedDocument{
		ID:        original.ID,
		MimeType:  original.MimeType,
		Content:   []byte("%PDF-1.7\ntampered\n%%EOF\n"),
		Signature: signature,
	}
	_, err := p.PostProcess(swapped, "corr-1", original, signer.Certificate(), AlgRSASHA256, nil)
	if err == nil {
		t.Fatal("content swap accepted")
	}
	var sse *domain.SignServiceError
	if !asSignServiceError(err, &sse) || sse.Code != domain.ErrCodeDocumentIntegrity {
		t.Errorf("error = %v, want document-integrity error", err)
	}
}

func TestPDFProcessor_PostProcess_RejectsForeignSignature(t *testing.T) {
	p := NewPDFProcessor(nil, nil)
	signer := newTestSigner(t)
	other := newTestSigner(t)
	original := pdfDocument()

	calculation, _ := p.CalculateToBeSigned(original, AlgRSASHA256, nil)
	signature, _ := other.SignValue(calculation.ToBeSignedBytes, AlgRSASHA256)

	signed := domain.SignedDocument{
		ID:        original.ID,
		MimeType:  original.MimeType,
		Content:   original.Content,
		Signature: signature,
	}
	// Verified against signer's certificate, signed with other's key.
	if _, err := p.PostProcess(signed, "corr-1", original, signer.Certificate(), AlgRSASHA256, nil); err == nil {
		t.Error("signature from a different key accepted")
	}
}

// newTestSigner creates a signer with a fresh self-signed credential.
func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test Signer"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return NewSigner(key, cert)
}
