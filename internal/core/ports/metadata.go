package ports

import (
	"errors"

	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/domain"
)

// MetadataResolver is the port interface for resolving trusted SAML
// metadata for authentication services and signing services.
//
// Both operations fail with a metadata-specific error when no trusted
// material is available. That failure propagates as a hard stop for
// encryption and assertion validation - it is never silently skipped.
type MetadataResolver interface {
	// ResolveEncryptionParameters returns the encryption certificate and
	// algorithms published by the entity.
	ResolveEncryptionParameters(entityID string) (*domain.EncryptionParameters, error)

	// ResolveMetadata returns the trusted metadata descriptor for the
	// entity under the given policy.
	ResolveMetadata(entityID string, policy *domain.PolicyConfiguration) (*domain.ServiceMetadata, error)
}

// ErrMetadataNotFound is wrapped by resolvers when an entity has no
// trusted metadata.
var ErrMetadataNotFound = errors.New("metadata not found")

// ContentLoader resolves a document or resource reference to raw bytes.
// Failures surface as I/O errors, not validation errors.
type ContentLoader interface {
	Load(reference string) ([]byte, error)
}

// PolicyRepository gives access to the named policy configurations.
// Policies are loaded once at startup and read-only thereafter.
type PolicyRepository interface {
	// Policy returns the named policy, or the default policy for an
	// empty name. Returns ErrPolicyNotFound for an unknown name.
	Policy(name string) (*domain.PolicyConfiguration, error)

	// Names lists the available policy names.
	Names() []string
}

// ErrPolicyNotFound is returned for an unknown policy name.
var ErrPolicyNotFound = errors.New("policy not found")
