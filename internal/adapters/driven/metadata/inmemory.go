// Package metadata provides MetadataResolver implementations over
// statically configured entities and SAML metadata files.
package metadata

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/domain"
	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/ports"
)

// Default XML encryption algorithms used when an entity's metadata does
// not state its own.
const (
	DefaultDataEncryptionAlgorithm = "http://www.w3.org/2009/xmlenc11#aes256-gcm"
	DefaultKeyTransportAlgorithm   = "http://www.w3.org/2001/04/xmlenc#rsa-oaep-mgf1p"
)

type entry struct {
	metadata                *domain.ServiceMetadata
	dataEncryptionAlgorithm string
	keyTransportAlgorithm   string
}

// InMemoryResolver resolves metadata from a statically registered set
// of entities.
type InMemoryResolver struct {
	mu       sync.RWMutex
	entities map[string]entry
	logger   *zap.Logger
}

// NewInMemoryResolver creates an empty resolver.
func NewInMemoryResolver(logger *zap.Logger) *InMemoryResolver {
	return &InMemoryResolver{entities: make(map[string]entry), logger: logger}
}

// Add registers an entity. Later registrations for the same entityID
// overwrite earlier ones.
func (r *InMemoryResolver) Add(md *domain.ServiceMetadata) {
	r.AddWithAlgorithms(md, "", "")
}

// AddWithAlgorithms registers an entity together with its published
// encryption algorithms.
func (r *InMemoryResolver) AddWithAlgorithms(md *domain.ServiceMetadata, dataAlg, keyTransportAlg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities[md.EntityID] = entry{
		metadata:                md,
		dataEncryptionAlgorithm: dataAlg,
		keyTransportAlgorithm:   keyTransportAlg,
	}
	if r.logger != nil {
		r.logger.Debug("registered metadata", zap.String("entity_id", md.EntityID))
	}
}

// ResolveMetadata returns the trusted descriptor for the entity. The
// policy parameter is accepted for the port contract; the in-memory
// resolver holds one trust set for all policies.
func (r *InMemoryResolver) ResolveMetadata(entityID string, policy *domain.PolicyConfiguration) (*domain.ServiceMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[entityID]
	if !ok {
		return nil, domain.MetadataError(entityID, fmt.Errorf("%w: %s", ports.ErrMetadataNotFound, entityID))
	}
	return e.metadata, nil
}

// ResolveEncryptionParameters returns the entity's encryption
// certificate and algorithms. Fails when the entity is unknown or
// publishes no encryption certificate - never silently skipped.
func (r *InMemoryResolver) ResolveEncryptionParameters(entityID string) (*domain.EncryptionParameters, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[entityID]
	if !ok {
		return nil, domain.MetadataError(entityID, fmt.Errorf("%w: %s", ports.ErrMetadataNotFound, entityID))
	}
	if len(e.metadata.EncryptionCertificates) == 0 {
		return nil, domain.MetadataError(entityID,
			fmt.Errorf("%w: no encryption certificate for %s", ports.ErrMetadataNotFound, entityID))
	}
	params := &domain.EncryptionParameters{
		Certificate:             e.metadata.EncryptionCertificates[0],
		DataEncryptionAlgorithm: e.dataEncryptionAlgorithm,
		KeyTransportAlgorithm:   e.keyTransportAlgorithm,
	}
	if params.DataEncryptionAlgorithm == "" {
		params.DataEncryptionAlgorithm = DefaultDataEncryptionAlgorithm
	}
	if params.KeyTransportAlgorithm == "" {
		params.KeyTransportAlgorithm = DefaultKeyTransportAlgorithm
	}
	return params, nil
}

var _ ports.MetadataResolver = (*InMemoryResolver)(nil)
