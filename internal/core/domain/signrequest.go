package domain

// SignRequestInput is the caller-supplied description of one sign
// transaction. It is validated against a policy configuration and then
// treated as immutable.
type SignRequestInput struct {
	// CorrelationID ties log entries and state for this transaction
	// together. Generated when empty.
	CorrelationID string

	// Policy names the policy configuration scope. Empty selects the
	// default policy.
	Policy string

	// SignRequesterID identifies the requesting actor. Recorded as the
	// owner of the session state; may be empty.
	SignRequesterID string

	// ReturnURL is where the signing service sends the user back.
	ReturnURL string

	// DestinationURL is the signing service endpoint the request is
	// posted to.
	DestinationURL string

	// SignatureAlgorithm is the XML DSig algorithm URI the documents
	// should be signed with.
	SignatureAlgorithm string

	// AuthnRequirements states how the signer must authenticate.
	AuthnRequirements AuthnRequirements

	// CertificateRequirements states requirements on the signing
	// certificate issued for the signer.
	CertificateRequirements SigningCertificateRequirements

	// SignMessage is the message displayed to the signer during
	// authentication, nil when no message should be displayed.
	SignMessage *SignMessageParameters

	// TbsDocuments is the ordered sequence of documents to sign.
	TbsDocuments []TbsDocument

	// Extensions carries opaque extension values passed through to the
	// session state.
	Extensions map[string]string
}

// AuthnRequirements states how the signer is required to authenticate
// at the signing service.
type AuthnRequirements struct {
	// AuthnServiceID is the entityID of the authentication service
	// (identity provider) the signer must authenticate at. Falls back to
	// the policy default when empty.
	AuthnServiceID string

	// AuthnContextRef is the authentication context class the signer
	// must authenticate under. Falls back to the policy default when empty.
	AuthnContextRef string

	// RequestedSignerAttributes lists identity attributes that must be
	// asserted for the signer, with expected values.
	RequestedSignerAttributes []SignerIdentityAttributeValue
}

// SignerIdentityAttributeValue is one identity attribute with an
// expected value.
type SignerIdentityAttributeValue struct {
	// Type is the attribute kind; currently always "saml".
	Type string

	// Name is the attribute name (SAML attribute name URI).
	Name string

	// Value is the expected attribute value.
	Value string
}

// SignerIdentityAttributeSAML is the only supported signer attribute type.
const SignerIdentityAttributeSAML = "saml"

// Certificate attribute types, classifying where in the certificate an
// identity attribute is placed.
const (
	CertificateAttributeRDN = "rdn"
	CertificateAttributeSAN = "san"
)

// SigningCertificateRequirements states requirements on the certificate
// the signing service issues for the signer.
type SigningCertificateRequirements struct {
	// CertificateType is "PKC", "QC" or "QC_SSCD".
	CertificateType string

	// AttributeMappings maps signer identity attributes into certificate
	// attributes.
	AttributeMappings []CertificateAttributeMapping
}

// Certificate types.
const (
	CertificateTypePKC    = "PKC"
	CertificateTypeQC     = "QC"
	CertificateTypeQCSSCD = "QC_SSCD"
)

// CertificateAttributeMapping maps one or more signer identity
// attributes onto a certificate attribute.
type CertificateAttributeMapping struct {
	// Sources are the signer attribute names considered, in order of
	// preference.
	Sources []string

	// DestinationType is CertificateAttributeRDN or CertificateAttributeSAN.
	DestinationType string

	// DestinationName identifies the certificate attribute: an OID string
	// for RDN attributes, a SAN type name ("email", "dns") for SAN entries.
	DestinationName string

	// Required marks the mapping mandatory; the issued certificate must
	// carry the attribute.
	Required bool

	// DefaultValue is used when no source attribute is available.
	DefaultValue string
}

// SignMessageParameters describes the message displayed to the signer
// during authentication.
type SignMessageParameters struct {
	// Body is the message content.
	Body string

	// MimeType is "text" "text/html" or "text/markdown".
	MimeType string

	// MustShow requires the authentication service to display the
	// message for the signature operation to proceed.
	MustShow bool

	// DisplayEntity is the entityID of the authentication service the
	// message is encrypted for. Falls back to AuthnServiceID when empty.
	DisplayEntity string
}
