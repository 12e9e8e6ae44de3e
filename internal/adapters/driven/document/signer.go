package document

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
)

// Signer produces the signatures a signing service would return. It is
// used by the mock signing service and by response-processing tests;
// the production signing service is an external collaborator.
type Signer struct {
	privateKey  crypto.Signer
	certificate *x509.Certificate
}

// NewSigner creates a signer with the given credential.
func NewSigner(privateKey crypto.Signer, certificate *x509.Certificate) *Signer {
	return &Signer{privateKey: privateKey, certificate: certificate}
}

// Certificate returns the signer's certificate.
func (s *Signer) Certificate() *x509.Certificate {
	return s.certificate
}

// SignXML adds an enveloped XML signature to the document and returns
// the signed XML bytes.
func (s *Signer) SignXML(content []byte) ([]byte, error) {
	if len(content) == 0 {
		return nil, errors.New("empty document")
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return nil, fmt.Errorf("parse XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, errors.New("empty XML document")
	}

	tlsCert := tls.Certificate{
		Certificate: [][]byte{s.certificate.Raw},
		PrivateKey:  s.privateKey,
	}
	signingContext := dsig.NewDefaultSigningContext(dsig.TLSCertKeyStore(tlsCert))
	signingContext.Canonicalizer = dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")

	signedRoot, err := signingContext.SignEnveloped(root)
	if err != nil {
		return nil, fmt.Errorf("sign XML: %w", err)
	}
	doc.SetRoot(signedRoot)
	signed, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serialize signed XML: %w", err)
	}
	return signed, nil
}

// SignValue signs a to-be-signed byte sequence, producing the detached
// signature value used for PDF documents.
func (s *Signer) SignValue(tbs []byte, signatureAlgorithm string) ([]byte, error) {
	hash, _, err := hashForAlgorithm(signatureAlgorithm)
	if err != nil {
		return nil, err
	}
	digest := hashBytes(tbs, hash)
	switch key := s.privateKey.(type) {
	case *rsa.PrivateKey:
		return rsa.SignPKCS1v15(rand.Reader, key, hash, digest)
	case *ecdsa.PrivateKey:
		return ecdsa.SignASN1(rand.Reader, key, digest)
	default:
		return nil, fmt.Errorf("unsupported private key type %T", key)
	}
}
