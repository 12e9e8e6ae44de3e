//go:build unit

package signintegration_test

import (
	"crypto/x509/pkix"
	"errors"
	"testing"
	"time"

	signintegration "github.com/idsec-solutions/signservice-integration-sub003"
	"github.com/idsec-solutions/signservice-integration-sub003/internal/adapters/driven/cache"
	"github.com/idsec-solutions/signservice-integration-sub003/internal/adapters/driven/document"
	"github.com/idsec-solutions/signservice-integration-sub003/internal/adapters/driven/metadata"
	"github.com/idsec-solutions/signservice-integration-sub003/internal/adapters/driven/policy"
	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/domain"
	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/ports"
	"github.com/idsec-solutions/signservice-integration-sub003/testfixtures/signsrv"
)

// claimRecorder captures claim and gauge recordings.
type claimRecorder struct {
	claims  []bool
	pending int
}

func (r *claimRecorder) RecordRequestCreated(string)            {}
func (r *claimRecorder) RecordResponseProcessed(string, string) {}
func (r *claimRecorder) RecordStateClaimed(found bool)          { r.claims = append(r.claims, found) }
func (r *claimRecorder) SetPendingTransactions(n int)           { r.pending = n }

var _ ports.MetricsRecorder = (*claimRecorder)(nil)

const (
	testEntityID          = "https://sp.example.com/sign"
	testAuthnServiceID    = "https://idp.example.com"
	testAttrPersonalID    = "urn:oid:1.2.752.29.4.13"
	testPersonalID        = "190001019876"
	serialNumberAttribute = "2.5.4.5"
)

// testEnv wires a request and a response processor around a shared
// session cache, the way an integrating application would.
type testEnv struct {
	cache     *cache.MemorySessionCache[domain.SignatureSessionState]
	requests  *signintegration.SignRequestProcessor
	responses *signintegration.SignResponseProcessor
	policy    *domain.PolicyConfiguration
}

func newTestEnv(t *testing.T, opts ...signintegration.ProcessorOption) *testEnv {
	t.Helper()

	policyConfig := &domain.PolicyConfiguration{
		Name:                   "default",
		Default:                true,
		DefaultAuthnServiceID:  testAuthnServiceID,
		DefaultAuthnContextRef: "http://id.elegnamnden.se/loa/1.0/loa3",
	}
	repo, err := policy.NewRepository(policyConfig)
	if err != nil {
		t.Fatalf("build policy repository: %v", err)
	}
	registry := document.NewRegistry(
		document.NewXMLProcessor(nil, nil),
		document.NewPDFProcessor(nil, nil),
	)
	sessionCache := cache.NewMemorySessionCache[domain.SignatureSessionState](time.Minute)
	return &testEnv{
		cache:     sessionCache,
		requests:  signintegration.NewSignRequestProcessor(repo, registry, sessionCache),
		responses: signintegration.NewSignResponseProcessor(testEntityID, repo, registry, sessionCache, opts...),
		policy:    policyConfig,
	}
}

// startTransaction runs the request leg and returns the pending state.
func (e *testEnv) startTransaction(t *testing.T, input *domain.SignRequestInput) *signintegration.SignRequestResult {
	t.Helper()
	result, err := e.requests.Process(input)
	if err != nil {
		t.Fatalf("assemble sign request: %v", err)
	}
	return result
}

func transactionInput() *domain.SignRequestInput {
	return &domain.SignRequestInput{
		SignRequesterID:    "https://sp.example.com",
		ReturnURL:          "https://sp.example.com/return",
		DestinationURL:     "https://sign.example.com/request",
		SignatureAlgorithm: document.AlgRSASHA256,
		TbsDocuments: []domain.TbsDocument{
			{ID: "contract", MimeType: "application/xml", Content: []byte(`<Contract xmlns="urn:test:contract"><Amount>100</Amount></Contract>`)},
			{ID: "appendix", MimeType: "application/pdf", Content: []byte("%PDF-1.7\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< >>\n%%EOF\n")},
		},
	}
}

func signerAttributes() map[string]string {
	return map[string]string{testAttrPersonalID: testPersonalID}
}

func assertErrorCode(t *testing.T, err error, code domain.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	var sse *domain.SignServiceError
	if !errors.As(err, &sse) {
		t.Fatalf("error %v is not a service error", err)
	}
	if sse.Code != code {
		t.Fatalf("error code = %s, want %s", sse.Code, code)
	}
}

func TestSignResponseProcessor_CompletedTransaction(t *testing.T) {
	env := newTestEnv(t)
	input := transactionInput()
	pending := env.startTransaction(t, input)

	srv := signsrv.New(t, testEntityID)
	response := srv.Respond(*pending.State, env.policy, testPersonalID, signerAttributes())

	result, err := env.responses.Process(response, input.SignRequesterID)
	if err != nil {
		t.Fatalf("Process() returned error: %v", err)
	}
	if result.State != domain.SignatureStateCompleted {
		t.Fatalf("result state = %q, want completed", result.State)
	}
	if result.ID != pending.ID {
		t.Errorf("result ID = %q, want %q", result.ID, pending.ID)
	}
	if result.CorrelationID != pending.CorrelationID {
		t.Errorf("result correlation ID = %q, want %q", result.CorrelationID, pending.CorrelationID)
	}
	if result.SignerAssertionInfo == nil {
		t.Fatal("no signer assertion info on completed result")
	}
	if result.SignerAssertionInfo.Subject != testPersonalID {
		t.Errorf("signer subject = %q", result.SignerAssertionInfo.Subject)
	}
	if result.SignerAssertionInfo.AuthnServiceID != testAuthnServiceID {
		t.Errorf("authn service = %q", result.SignerAssertionInfo.AuthnServiceID)
	}
	if value, ok := result.SignerAssertionInfo.Attribute(testAttrPersonalID); !ok || value != testPersonalID {
		t.Errorf("asserted attribute = %q, %v", value, ok)
	}
	if result.SignerCertificate == nil {
		t.Error("no signer certificate on completed result")
	}

	// Signed documents come back verified, in request order.
	if len(result.SignedDocuments) != 2 {
		t.Fatalf("signed documents = %d, want 2", len(result.SignedDocuments))
	}
	if result.SignedDocuments[0].ID != "contract" || result.SignedDocuments[1].ID != "appendix" {
		t.Errorf("signed document order = %q, %q", result.SignedDocuments[0].ID, result.SignedDocuments[1].ID)
	}
}

func TestSignResponseProcessor_ReplayIsRejected(t *testing.T) {
	env := newTestEnv(t)
	input := transactionInput()
	pending := env.startTransaction(t, input)

	srv := signsrv.New(t, testEntityID)
	response := srv.Respond(*pending.State, env.policy, testPersonalID, signerAttributes())

	if _, err := env.responses.Process(response, input.SignRequesterID); err != nil {
		t.Fatalf("first Process() returned error: %v", err)
	}

	// The claim removed the state, so the same response finds nothing.
	_, err := env.responses.Process(response, input.SignRequesterID)
	assertErrorCode(t, err, domain.ErrCodeUnknownTransaction)
}

func TestSignResponseProcessor_UnknownTransaction(t *testing.T) {
	env := newTestEnv(t)
	srv := signsrv.New(t, testEntityID)

	_, err := env.responses.Process(srv.RespondCancel("no-such-transaction"), "https://sp.example.com")
	assertErrorCode(t, err, domain.ErrCodeUnknownTransaction)
}

func TestSignResponseProcessor_WrongRequesterIsDenied(t *testing.T) {
	env := newTestEnv(t)
	input := transactionInput()
	pending := env.startTransaction(t, input)

	srv := signsrv.New(t, testEntityID)
	response := srv.Respond(*pending.State, env.policy, testPersonalID, signerAttributes())

	_, err := env.responses.Process(response, "https://evil.example.com")
	assertErrorCode(t, err, domain.ErrCodeAccessDenied)

	// The denied attempt must not consume the transaction: the rightful
	// owner can still complete it.
	result, err := env.responses.Process(response, input.SignRequesterID)
	if err != nil {
		t.Fatalf("owner's Process() returned error: %v", err)
	}
	if result.State != domain.SignatureStateCompleted {
		t.Errorf("result state = %q, want completed", result.State)
	}
}

func TestSignResponseProcessor_DeniedClaimIsNotAMiss(t *testing.T) {
	recorder := &claimRecorder{}
	env := newTestEnv(t, signintegration.WithMetricsRecorder(recorder))
	input := transactionInput()
	pending := env.startTransaction(t, input)

	srv := signsrv.New(t, testEntityID)
	response := srv.Respond(*pending.State, env.policy, testPersonalID, signerAttributes())

	_, err := env.responses.Process(response, "https://evil.example.com")
	assertErrorCode(t, err, domain.ErrCodeAccessDenied)
	if len(recorder.claims) != 0 {
		t.Errorf("denied claim recorded as %v, want no recording", recorder.claims)
	}

	if _, err := env.responses.Process(response, input.SignRequesterID); err != nil {
		t.Fatalf("owner's Process() returned error: %v", err)
	}
	if len(recorder.claims) != 1 || !recorder.claims[0] {
		t.Errorf("claims = %v, want one hit", recorder.claims)
	}
	if recorder.pending != 0 {
		t.Errorf("pending transactions gauge = %d, want 0", recorder.pending)
	}
}

func TestSignResponseProcessor_IssuerMetadataRequired(t *testing.T) {
	resolver := metadata.NewInMemoryResolver(nil)
	env := newTestEnv(t, signintegration.WithMetadataResolver(resolver))
	input := transactionInput()
	pending := env.startTransaction(t, input)

	srv := signsrv.New(t, testEntityID)
	response := srv.Respond(*pending.State, env.policy, testPersonalID, signerAttributes())

	// The asserting authentication service has no trusted metadata.
	_, err := env.responses.Process(response, input.SignRequesterID)
	assertErrorCode(t, err, domain.ErrCodeMetadataNotFound)

	resolver.Add(&domain.ServiceMetadata{EntityID: testAuthnServiceID})
	pending = env.startTransaction(t, input)
	response = srv.Respond(*pending.State, env.policy, testPersonalID, signerAttributes())

	result, err := env.responses.Process(response, input.SignRequesterID)
	if err != nil {
		t.Fatalf("Process() returned error: %v", err)
	}
	if result.State != domain.SignatureStateCompleted {
		t.Errorf("result state = %q, want completed", result.State)
	}
}

func TestSignResponseProcessor_UserCancel(t *testing.T) {
	env := newTestEnv(t)
	input := transactionInput()
	pending := env.startTransaction(t, input)

	srv := signsrv.New(t, testEntityID)
	result, err := env.responses.Process(srv.RespondCancel(pending.ID), input.SignRequesterID)
	if err != nil {
		t.Fatalf("Process() returned error: %v", err)
	}
	if result.State != domain.SignatureStateCancelled {
		t.Fatalf("result state = %q, want cancelled", result.State)
	}
	if !result.DSSStatus.UserCancel() {
		t.Errorf("DSS status = %+v, want user cancel", result.DSSStatus)
	}
	if result.SignerAssertionInfo != nil || len(result.SignedDocuments) != 0 {
		t.Error("cancelled result carries signer data")
	}
}

func TestSignResponseProcessor_ErrorStatus(t *testing.T) {
	env := newTestEnv(t)
	input := transactionInput()
	pending := env.startTransaction(t, input)

	srv := signsrv.New(t, testEntityID)
	response := srv.RespondError(pending.ID, domain.DSSStatus{
		MajorCode: domain.DSSMajorResponderError,
		Message:   "signing key unavailable",
	})

	_, err := env.responses.Process(response, input.SignRequesterID)
	assertErrorCode(t, err, domain.ErrCodeDSSError)
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func TestSignResponseProcessor_ExpiredAssertion(t *testing.T) {
	// The mock service issues assertions valid for five minutes; a
	// processor whose clock is ten minutes ahead must reject them.
	env := newTestEnv(t, signintegration.WithClock(fixedClock{at: time.Now().Add(10 * time.Minute)}))
	input := transactionInput()
	pending := env.startTransaction(t, input)

	srv := signsrv.New(t, testEntityID)
	response := srv.Respond(*pending.State, env.policy, testPersonalID, signerAttributes())

	_, err := env.responses.Process(response, input.SignRequesterID)
	assertErrorCode(t, err, domain.ErrCodeAssertionInvalid)
}

func TestSignResponseProcessor_WrongAudience(t *testing.T) {
	env := newTestEnv(t)
	input := transactionInput()
	pending := env.startTransaction(t, input)

	srv := signsrv.New(t, "https://other-sp.example.com")
	response := srv.Respond(*pending.State, env.policy, testPersonalID, signerAttributes())

	_, err := env.responses.Process(response, input.SignRequesterID)
	assertErrorCode(t, err, domain.ErrCodeAssertionInvalid)
}

func TestSignResponseProcessor_WrongIssuer(t *testing.T) {
	env := newTestEnv(t)
	input := transactionInput()
	pending := env.startTransaction(t, input)

	srv := signsrv.New(t, testEntityID)
	response := srv.Respond(*pending.State, env.policy, testPersonalID, signerAttributes())
	response.Assertion.Issuer.Value = "https://rogue-idp.example.com"

	_, err := env.responses.Process(response, input.SignRequesterID)
	assertErrorCode(t, err, domain.ErrCodeAssertionInvalid)
}

func TestSignResponseProcessor_MissingAssertion(t *testing.T) {
	env := newTestEnv(t)
	input := transactionInput()
	pending := env.startTransaction(t, input)

	srv := signsrv.New(t, testEntityID)
	response := srv.Respond(*pending.State, env.policy, testPersonalID, signerAttributes())
	response.Assertion = nil

	_, err := env.responses.Process(response, input.SignRequesterID)
	assertErrorCode(t, err, domain.ErrCodeAssertionInvalid)
}

func TestSignResponseProcessor_RequestedAttributes(t *testing.T) {
	tests := []struct {
		name     string
		asserted map[string]string
		wantErr  bool
	}{
		{
			name:     "matching value",
			asserted: map[string]string{testAttrPersonalID: testPersonalID},
		},
		{
			name:     "mismatched value",
			asserted: map[string]string{testAttrPersonalID: "199901019876"},
			wantErr:  true,
		},
		{
			name:     "not asserted",
			asserted: map[string]string{"urn:oid:2.5.4.42": "Alice"},
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			input := transactionInput()
			input.AuthnRequirements.RequestedSignerAttributes = []domain.SignerIdentityAttributeValue{
				{Type: domain.SignerIdentityAttributeSAML, Name: testAttrPersonalID, Value: testPersonalID},
			}
			pending := env.startTransaction(t, input)

			srv := signsrv.New(t, testEntityID)
			response := srv.Respond(*pending.State, env.policy, testPersonalID, tt.asserted)

			_, err := env.responses.Process(response, input.SignRequesterID)
			if tt.wantErr {
				assertErrorCode(t, err, domain.ErrCodeAttributeMismatch)
				return
			}
			if err != nil {
				t.Fatalf("Process() returned error: %v", err)
			}
		})
	}
}

func TestSignResponseProcessor_CertificateAttributeMapping(t *testing.T) {
	input := transactionInput()
	input.CertificateRequirements = domain.SigningCertificateRequirements{
		CertificateType: domain.CertificateTypePKC,
		AttributeMappings: []domain.CertificateAttributeMapping{
			{
				Sources:         []string{testAttrPersonalID},
				DestinationType: domain.CertificateAttributeRDN,
				DestinationName: serialNumberAttribute,
				Required:        true,
			},
		},
	}

	t.Run("certificate carries the mapped attribute", func(t *testing.T) {
		env := newTestEnv(t)
		pending := env.startTransaction(t, input)

		srv := signsrv.New(t, testEntityID,
			signsrv.WithSubject(pkix.Name{CommonName: "Test Signer", SerialNumber: testPersonalID}))
		response := srv.Respond(*pending.State, env.policy, testPersonalID, signerAttributes())

		result, err := env.responses.Process(response, input.SignRequesterID)
		if err != nil {
			t.Fatalf("Process() returned error: %v", err)
		}
		if result.State != domain.SignatureStateCompleted {
			t.Errorf("result state = %q", result.State)
		}
	})

	t.Run("certificate misses the mapped attribute", func(t *testing.T) {
		env := newTestEnv(t)
		pending := env.startTransaction(t, input)

		srv := signsrv.New(t, testEntityID,
			signsrv.WithSubject(pkix.Name{CommonName: "Test Signer"}))
		response := srv.Respond(*pending.State, env.policy, testPersonalID, signerAttributes())

		_, err := env.responses.Process(response, input.SignRequesterID)
		assertErrorCode(t, err, domain.ErrCodeAttributeMismatch)
	})
}

func TestSignResponseProcessor_MissingSignedDocument(t *testing.T) {
	env := newTestEnv(t)
	input := transactionInput()
	pending := env.startTransaction(t, input)

	srv := signsrv.New(t, testEntityID)
	response := srv.Respond(*pending.State, env.policy, testPersonalID, signerAttributes())
	response.SignedDocuments = response.SignedDocuments[:1]

	_, err := env.responses.Process(response, input.SignRequesterID)
	assertErrorCode(t, err, domain.ErrCodeDocumentIntegrity)
}

func TestSignResponseProcessor_UnknownSignedDocument(t *testing.T) {
	env := newTestEnv(t)
	input := transactionInput()
	pending := env.startTransaction(t, input)

	srv := signsrv.New(t, testEntityID)
	response := srv.Respond(*pending.State, env.policy, testPersonalID, signerAttributes())
	response.SignedDocuments = append(response.SignedDocuments, domain.SignedDocument{
		ID:       "stowaway",
		MimeType: "application/xml",
		Content:  []byte("<Doc/>"),
	})

	_, err := env.responses.Process(response, input.SignRequesterID)
	assertErrorCode(t, err, domain.ErrCodeDocumentIntegrity)
}

func TestSignResponseProcessor_TamperedDocument(t *testing.T) {
	env := newTestEnv(t)
	input := transactionInput()
	pending := env.startTransaction(t, input)

	srv := signsrv.New(t, testEntityID)
	response := srv.Respond(*pending.State, env.policy, testPersonalID, signerAttributes())
	// Swap the PDF body: the detached signature no longer matches.
	response.SignedDocuments[1].Content = []byte("%PDF-1.7\ntampered\n%%EOF\n")

	_, err := env.responses.Process(response, input.SignRequesterID)
	assertErrorCode(t, err, domain.ErrCodeDocumentIntegrity)
}
