// Package document contains the document-type-specific processors. Each
// processor implements the same four-operation contract and the
// Supports predicates are mutually exclusive, so a registry can map a
// document to exactly one processor.
package document

import (
	"crypto"
	"fmt"
)

// XML DSig signature algorithm URIs.
const (
	AlgRSASHA256   = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgRSASHA384   = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha384"
	AlgRSASHA512   = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha512"
	AlgECDSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha256"
	AlgECDSASHA384 = "http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha384"
	AlgECDSASHA512 = "http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha512"
)

// Digest method URIs.
const (
	DigestSHA256 = "http://www.w3.org/2001/04/xmlenc#sha256"
	DigestSHA384 = "http://www.w3.org/2001/04/xmldsig-more#sha384"
	DigestSHA512 = "http://www.w3.org/2001/04/xmlenc#sha512"
)

type algorithmInfo struct {
	hash      crypto.Hash
	digestURI string
}

var signatureAlgorithms = map[string]algorithmInfo{
	AlgRSASHA256:   {crypto.SHA256, DigestSHA256},
	AlgRSASHA384:   {crypto.SHA384, DigestSHA384},
	AlgRSASHA512:   {crypto.SHA512, DigestSHA512},
	AlgECDSASHA256: {crypto.SHA256, DigestSHA256},
	AlgECDSASHA384: {crypto.SHA384, DigestSHA384},
	AlgECDSASHA512: {crypto.SHA512, DigestSHA512},
}

// hashForAlgorithm returns the digest function and digest method URI for
// a signature algorithm URI.
func hashForAlgorithm(uri string) (crypto.Hash, string, error) {
	info, ok := signatureAlgorithms[uri]
	if !ok {
		return 0, "", fmt.Errorf("unsupported signature algorithm %q", uri)
	}
	return info.hash, info.digestURI, nil
}
