package signintegration

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"strings"

	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/domain"
)

// expectedCertificateValue resolves the value a certificate attribute
// mapping should have carried, taking the first asserted source
// attribute and falling back to the mapping's default value.
func expectedCertificateValue(mapping domain.CertificateAttributeMapping, info *domain.SignerAssertionInfo) string {
	for _, source := range mapping.Sources {
		if value, ok := info.Attribute(source); ok {
			return value
		}
	}
	return mapping.DefaultValue
}

// verifyCertificateAttribute checks that the issued certificate carries
// the mapped attribute with the expected value.
func verifyCertificateAttribute(cert *x509.Certificate, mapping domain.CertificateAttributeMapping, expected string) error {
	switch mapping.DestinationType {
	case domain.CertificateAttributeRDN:
		if rdnValue(cert.Subject, mapping.DestinationName) == expected {
			return nil
		}
		return domain.AttributeMismatchError(mapping.DestinationName,
			fmt.Sprintf("certificate subject does not carry RDN %s with value %q", mapping.DestinationName, expected))
	case domain.CertificateAttributeSAN:
		if sanContains(cert, mapping.DestinationName, expected) {
			return nil
		}
		return domain.AttributeMismatchError(mapping.DestinationName,
			fmt.Sprintf("certificate does not carry SAN %s entry %q", mapping.DestinationName, expected))
	default:
		return domain.AttributeMismatchError(mapping.DestinationName,
			fmt.Sprintf("unsupported certificate attribute type %q", mapping.DestinationType))
	}
}

// rdnValue returns the subject RDN value for a dotted OID string, or
// the empty string when the subject has no such component.
func rdnValue(subject pkix.Name, oid string) string {
	for _, name := range subject.Names {
		if name.Type.String() != oid {
			continue
		}
		if value, ok := name.Value.(string); ok {
			return value
		}
	}
	return ""
}

// sanContains reports whether the certificate has a subject alternative
// name of the given kind with the given value.
func sanContains(cert *x509.Certificate, kind, value string) bool {
	switch strings.ToLower(kind) {
	case "email", "rfc822name":
		for _, email := range cert.EmailAddresses {
			if email == value {
				return true
			}
		}
	case "dns", "dnsname":
		for _, name := range cert.DNSNames {
			if name == value {
				return true
			}
		}
	case "uri", "uniformresourceidentifier":
		for _, uri := range cert.URIs {
			if uri.String() == value {
				return true
			}
		}
	}
	return false
}
