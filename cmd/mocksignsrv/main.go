// Command mocksignsrv runs a standalone mock signing service for manual
// testing. It accepts the encoded session state produced for a sign
// request, signs the contained documents with a freshly generated
// signer credential and returns the response material as JSON.
// Usage: go run ./cmd/mocksignsrv
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/crewjam/saml"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/idsec-solutions/signservice-integration-sub003/internal/adapters/driven/document"
	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/domain"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		addr     string
		audience string
		subject  string
	)

	cmd := &cobra.Command{
		Use:          "mocksignsrv",
		Short:        "Mock signing service for manual testing",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer logger.Sync()

			srv, err := newServer(audience, subject, logger)
			if err != nil {
				return err
			}
			logger.Info("mock signing service listening", zap.String("addr", addr))
			return http.ListenAndServe(addr, srv.routes())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8480", "address to listen on")
	cmd.Flags().StringVar(&audience, "audience", "https://sp.example.com", "relying party entityID asserted as audience")
	cmd.Flags().StringVar(&subject, "subject", "190001019876", "signer subject asserted in responses")
	return cmd
}

type server struct {
	signer   *document.Signer
	pdf      *document.PDFProcessor
	audience string
	subject  string
	logger   *zap.Logger
}

func newServer(audience, subject string, logger *zap.Logger) (*server, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate signer key: %w", err)
	}
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Mock Sign Service Signer"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create signer certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	return &server{
		signer:   document.NewSigner(key, cert),
		pdf:      document.NewPDFProcessor(nil, logger),
		audience: audience,
		subject:  subject,
		logger:   logger,
	}, nil
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sign", s.handleSign)
	mux.HandleFunc("/certificate", s.handleCertificate)
	return mux
}

// signResponseBody is the JSON shape returned from /sign.
type signResponseBody struct {
	InResponseTo      string          `json:"inResponseTo"`
	MajorCode         string          `json:"majorCode"`
	MinorCode         string          `json:"minorCode,omitempty"`
	Assertion         string          `json:"assertion"`
	SignerCertificate string          `json:"signerCertificate"`
	SignedDocuments   []signedDocBody `json:"signedDocuments"`
}

type signedDocBody struct {
	ID        string `json:"id"`
	MimeType  string `json:"mimeType"`
	Content   []byte `json:"content"`
	Signature []byte `json:"signature,omitempty"`
}

// handleSign accepts the base64 JSON encoded session state as the
// request body and returns the signed response material.
func (s *server) handleSign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	encoded, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(encoded)))
	if err != nil {
		http.Error(w, "body is not base64", http.StatusBadRequest)
		return
	}
	var state domain.SignatureSessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		http.Error(w, "body is not an encoded sign request state", http.StatusBadRequest)
		return
	}

	body := signResponseBody{
		InResponseTo:      state.ID,
		MajorCode:         domain.DSSMajorSuccess,
		SignerCertificate: certPEM(s.signer.Certificate()),
	}
	for _, doc := range state.TbsDocuments {
		signed, err := s.signDocument(doc, state.SignatureAlgorithm)
		if err != nil {
			s.logger.Error("failed to sign document", zap.String("document_id", doc.ID), zap.Error(err))
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		body.SignedDocuments = append(body.SignedDocuments, signed)
	}

	assertionXML, err := s.assertionXML(state)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	body.Assertion = assertionXML

	s.logger.Info("signed transaction",
		zap.String("transaction_id", state.ID),
		zap.Int("documents", len(body.SignedDocuments)),
	)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func (s *server) handleCertificate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-pem-file")
	fmt.Fprint(w, certPEM(s.signer.Certificate()))
}

func (s *server) signDocument(doc domain.TbsDocument, signatureAlgorithm string) (signedDocBody, error) {
	if strings.EqualFold(doc.MimeType, domain.DocumentTypePDF) {
		calculation, err := s.pdf.CalculateToBeSigned(doc, signatureAlgorithm, nil)
		if err != nil {
			return signedDocBody{}, err
		}
		signature, err := s.signer.SignValue(calculation.ToBeSignedBytes, signatureAlgorithm)
		if err != nil {
			return signedDocBody{}, err
		}
		return signedDocBody{ID: doc.ID, MimeType: doc.MimeType, Content: doc.Content, Signature: signature}, nil
	}
	signed, err := s.signer.SignXML(doc.Content)
	if err != nil {
		return signedDocBody{}, err
	}
	return signedDocBody{ID: doc.ID, MimeType: doc.MimeType, Content: signed}, nil
}

func (s *server) assertionXML(state domain.SignatureSessionState) (string, error) {
	now := time.Now().UTC()
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
				Value:  s.subject,
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
	doc := etree.NewDocument()
	doc.SetRoot(assertion.Element())
	return doc.WriteToString()
}

func certPEM(cert *x509.Certificate) string {
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}))
}
