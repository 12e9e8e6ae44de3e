// Package signsrv provides a mock signing service for integration
// testing. It produces the sign responses a real signing service would
// return for a pending transaction: a signer certificate, a SAML
// assertion about the signer and the signed documents.
package signsrv

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/crewjam/saml"
	"github.com/google/uuid"

	signintegration "github.com/idsec-solutions/signservice-integration-sub003"
	"github.com/idsec-solutions/signservice-integration-sub003/internal/adapters/driven/document"
	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/domain"
)

// SignService is a mock signing service.
type SignService struct {
	t        testing.TB
	signer   *document.Signer
	xml      *document.XMLProcessor
	pdf      *document.PDFProcessor
	audience string
	now      func() time.Time
}

// Option configures the mock signing service.
type Option func(*SignService)

// WithSubject sets the subject of the generated signer certificate.
func WithSubject(subject pkix.Name) Option {
	return func(s *SignService) {
		key, cert := generateSignerCredential(s.t, subject)
		s.signer = document.NewSigner(key, cert)
	}
}

// WithClock sets the time source used for assertion validity windows.
func WithClock(now func() time.Time) Option {
	return func(s *SignService) { s.now = now }
}

// New creates a mock signing service that issues assertions for the
// given relying party (audience). Certificates and keys are generated
// fresh for every instance.
func New(t testing.TB, audience string, opts ...Option) *SignService {
	t.Helper()
	key, cert := generateSignerCredential(t, pkix.Name{CommonName: "Test Signer"})
	s := &SignService{
		t:        t,
		signer:   document.NewSigner(key, cert),
		xml:      document.NewXMLProcessor(nil, nil),
		pdf:      document.NewPDFProcessor(nil, nil),
		audience: audience,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignerCertificate returns the signer certificate carried in responses.
func (s *SignService) SignerCertificate() *x509.Certificate {
	return s.signer.Certificate()
}

// Respond produces a success response for the given session state,
// asserting the signer identified by subject with the given attributes.
func (s *SignService) Respond(state domain.SignatureSessionState, policy *domain.PolicyConfiguration, subject string, attributes map[string]string) *signintegration.SignResponse {
	s.t.Helper()

	signedDocs := make([]domain.SignedDocument, 0, len(state.TbsDocuments))
	for _, doc := range state.TbsDocuments {
		signedDocs = append(signedDocs, s.signDocument(doc, state.SignatureAlgorithm, policy))
	}

	return &signintegration.SignResponse{
		InResponseTo:      state.ID,
		Status:            domain.DSSStatus{MajorCode: domain.DSSMajorSuccess},
		Assertion:         s.assertion(state, subject, attributes),
		SignerCertificate: s.signer.Certificate(),
		SignedDocuments:   signedDocs,
	}
}

// RespondCancel produces the response a signing service returns when
// the signer cancels the operation.
func (s *SignService) RespondCancel(transactionID string) *signintegration.SignResponse {
	return &signintegration.SignResponse{
		InResponseTo: transactionID,
		Status: domain.DSSStatus{
			MajorCode: domain.DSSMajorRequesterError,
			MinorCode: domain.DSSMinorUserCancel,
			Message:   "User cancelled the signature operation",
		},
	}
}

// RespondError produces a response with the given error status.
func (s *SignService) RespondError(transactionID string, status domain.DSSStatus) *signintegration.SignResponse {
	return &signintegration.SignResponse{InResponseTo: transactionID, Status: status}
}

func (s *SignService) signDocument(doc domain.TbsDocument, signatureAlgorithm string, policy *domain.PolicyConfiguration) domain.SignedDocument {
	s.t.Helper()

	if strings.EqualFold(doc.MimeType, domain.DocumentTypePDF) {
		calculation, err := s.pdf.CalculateToBeSigned(doc, signatureAlgorithm, policy)
		if err != nil {
			s.t.Fatalf("calculate to-be-signed for %s: %v", doc.ID, err)
		}
		signature, err := s.signer.SignValue(calculation.ToBeSignedBytes, signatureAlgorithm)
		if err != nil {
			s.t.Fatalf("sign document %s: %v", doc.ID, err)
		}
		return domain.SignedDocument{
			ID:        doc.ID,
			MimeType:  doc.MimeType,
			Content:   doc.Content,
			Signature: signature,
		}
	}

	signed, err := s.signer.SignXML(doc.Content)
	if err != nil {
		s.t.Fatalf("sign document %s: %v", doc.ID, err)
	}
	return domain.SignedDocument{ID: doc.ID, MimeType: doc.MimeType, Content: signed}
}

// assertion builds the signer assertion: issued by the authentication
// service the request pointed at, restricted to the relying party, with
// a short validity window around the current time.
func (s *SignService) assertion(state domain.SignatureSessionState, subject string, attributes map[string]string) *saml.Assertion {
	now := s.now().UTC()

	assertion := &saml.Assertion{
		ID:           "_" + uuid.NewString(),
		IssueInstant: now,
		Version:      "2.0",
		Issuer: saml.Issuer{
			Format: "urn:oasis:names:tc:SAML:2.0:nameid-format:entity",
			Value:  state.AuthnRequirements.AuthnServiceID,
		},
		Subject: &saml.Subject{
			NameID: &saml.NameID{
				Format: "urn:oasis:names:tc:SAML:2.0:nameid-format:persistent",
				Value:  subject,
			},
		},
		Conditions: &saml.Conditions{
			NotBefore:    now.Add(-time.Minute),
			NotOnOrAfter: now.Add(5 * time.Minute),
			AudienceRestrictions: []saml.AudienceRestriction{
				{Audience: saml.Audience{Value: s.audience}},
			},
		},
		AuthnStatements: []saml.AuthnStatement{
			{
				AuthnInstant: now,
				AuthnContext: saml.AuthnContext{
					AuthnContextClassRef: &saml.AuthnContextClassRef{
						Value: state.AuthnRequirements.AuthnContextRef,
					},
				},
			},
		},
	}

	if len(attributes) > 0 {
		stmt := saml.AttributeStatement{}
		for name, value := range attributes {
			stmt.Attributes = append(stmt.Attributes, saml.Attribute{
				Name:       name,
				NameFormat: "urn:oasis:names:tc:SAML:2.0:attrname-format:uri",
				Values:     []saml.AttributeValue{{Type: "xs:string", Value: value}},
			})
		}
		assertion.AttributeStatements = []saml.AttributeStatement{stmt}
	}
	return assertion
}

// generateSignerCredential creates a fresh self-signed signer
// certificate.
func generateSignerCredential(t testing.TB, subject pkix.Name) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate signer key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               subject,
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create signer certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse signer certificate: %v", err)
	}
	return key, cert
}
