package metadata

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"github.com/crewjam/saml"
	"go.uber.org/zap"

	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/domain"
)

// NewFileResolver loads SAML metadata (an EntityDescriptor or an
// EntitiesDescriptor aggregate) from a file and returns a resolver over
// its entities.
func NewFileResolver(path string, logger *zap.Logger) (*InMemoryResolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata file: %w", err)
	}
	resolver := NewInMemoryResolver(logger)
	if err := addFromXML(resolver, data); err != nil {
		return nil, fmt.Errorf("parse metadata file %s: %w", path, err)
	}
	return resolver, nil
}

func addFromXML(resolver *InMemoryResolver, data []byte) error {
	var entities saml.EntitiesDescriptor
	if err := xml.Unmarshal(data, &entities); err == nil && len(entities.EntityDescriptors) > 0 {
		for i := range entities.EntityDescriptors {
			if err := addEntity(resolver, &entities.EntityDescriptors[i]); err != nil {
				return err
			}
		}
		return nil
	}
	var entity saml.EntityDescriptor
	if err := xml.Unmarshal(data, &entity); err != nil {
		return err
	}
	return addEntity(resolver, &entity)
}

func addEntity(resolver *InMemoryResolver, ed *saml.EntityDescriptor) error {
	md, dataAlg, keyAlg, err := descriptorToMetadata(ed)
	if err != nil {
		return err
	}
	resolver.AddWithAlgorithms(md, dataAlg, keyAlg)
	return nil
}

// descriptorToMetadata extracts certificates and encryption algorithms
// from an entity descriptor. Key descriptors without a use attribute
// count for both signing and encryption, per the metadata spec.
func descriptorToMetadata(ed *saml.EntityDescriptor) (md *domain.ServiceMetadata, dataAlg, keyAlg string, err error) {
	md = &domain.ServiceMetadata{EntityID: ed.EntityID}

	var keyDescriptors []saml.KeyDescriptor
	for _, idp := range ed.IDPSSODescriptors {
		keyDescriptors = append(keyDescriptors, idp.KeyDescriptors...)
		for _, sso := range idp.SingleSignOnServices {
			if md.Location == "" {
				md.Location = sso.Location
			}
		}
	}
	for _, sp := range ed.SPSSODescriptors {
		keyDescriptors = append(keyDescriptors, sp.KeyDescriptors...)
	}

	for _, kd := range keyDescriptors {
		certs, err := parseKeyDescriptorCerts(kd)
		if err != nil {
			return nil, "", "", err
		}
		use := strings.ToLower(kd.Use)
		if use == "" || use == "signing" {
			md.SigningCertificates = append(md.SigningCertificates, certs...)
		}
		if use == "" || use == "encryption" {
			md.EncryptionCertificates = append(md.EncryptionCertificates, certs...)
			for _, em := range kd.EncryptionMethods {
				if strings.Contains(em.Algorithm, "xmlenc") && dataAlg == "" && !strings.Contains(em.Algorithm, "rsa") {
					dataAlg = em.Algorithm
				}
				if strings.Contains(em.Algorithm, "rsa") && keyAlg == "" {
					keyAlg = em.Algorithm
				}
			}
		}
	}
	return md, dataAlg, keyAlg, nil
}

func parseKeyDescriptorCerts(kd saml.KeyDescriptor) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for _, xc := range kd.KeyInfo.X509Data.X509Certificates {
		raw := strings.Map(dropSpace, xc.Data)
		der, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("decode certificate: %w", err)
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("parse certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

func dropSpace(r rune) rune {
	switch r {
	case ' ', '\t', '\n', '\r':
		return -1
	}
	return r
}
