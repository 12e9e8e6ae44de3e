package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/domain"
	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/ports"
)

// policyFile is the YAML representation of the policy configuration.
type policyFile struct {
	Policies []policyEntry `yaml:"policies"`
}

type policyEntry struct {
	Name                   string           `yaml:"name"`
	Default                bool             `yaml:"default"`
	DefaultAuthnServiceID  string           `yaml:"default-authn-service-id"`
	DefaultAuthnContextRef string           `yaml:"default-authn-context-ref"`
	SignaturePolicyID      string           `yaml:"signature-policy-id"`
	StateTTLSeconds        int              `yaml:"state-ttl-seconds"`
	SigningCredential      *credentialEntry `yaml:"signing-credential"`
	DefaultVisiblePdf      *visiblePdfYAML  `yaml:"default-visible-pdf-signature"`
}

type credentialEntry struct {
	Name            string `yaml:"name"`
	KeyFile         string `yaml:"key-file"`
	CertificateFile string `yaml:"certificate-file"`
}

type visiblePdfYAML struct {
	TemplateImageRef     string            `yaml:"template-image-ref"`
	XPosition            int               `yaml:"x-position"`
	YPosition            int               `yaml:"y-position"`
	Scale                *int              `yaml:"scale"`
	Page                 *int              `yaml:"page"`
	SignerNameAttributes []string          `yaml:"signer-name-attributes"`
	FieldValues          map[string]string `yaml:"field-values"`
}

// Repository holds the loaded policies. Read-only after loading.
type Repository struct {
	policies    map[string]*domain.PolicyConfiguration
	defaultName string
}

// LoadRepository reads and validates a policy configuration file.
// Exactly one policy must be marked default.
func LoadRepository(path string) (*Repository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	if len(file.Policies) == 0 {
		return nil, fmt.Errorf("policy file %s defines no policies", path)
	}

	repo := &Repository{policies: make(map[string]*domain.PolicyConfiguration, len(file.Policies))}
	for _, entry := range file.Policies {
		if entry.Name == "" {
			return nil, fmt.Errorf("policy file %s contains a policy without a name", path)
		}
		if _, exists := repo.policies[entry.Name]; exists {
			return nil, fmt.Errorf("duplicate policy name %q", entry.Name)
		}
		cfg, err := entryToPolicy(entry)
		if err != nil {
			return nil, fmt.Errorf("policy %q: %w", entry.Name, err)
		}
		repo.policies[entry.Name] = cfg
		if entry.Default {
			if repo.defaultName != "" {
				return nil, fmt.Errorf("more than one default policy (%q and %q)", repo.defaultName, entry.Name)
			}
			repo.defaultName = entry.Name
		}
	}
	if repo.defaultName == "" {
		return nil, fmt.Errorf("policy file %s designates no default policy", path)
	}
	return repo, nil
}

// NewRepository builds a repository from already-constructed policies.
// Used by tests and embedders that do not load from file.
func NewRepository(policies ...*domain.PolicyConfiguration) (*Repository, error) {
	repo := &Repository{policies: make(map[string]*domain.PolicyConfiguration, len(policies))}
	for _, p := range policies {
		if _, exists := repo.policies[p.Name]; exists {
			return nil, fmt.Errorf("duplicate policy name %q", p.Name)
		}
		repo.policies[p.Name] = p
		if p.Default {
			if repo.defaultName != "" {
				return nil, fmt.Errorf("more than one default policy (%q and %q)", repo.defaultName, p.Name)
			}
			repo.defaultName = p.Name
		}
	}
	if repo.defaultName == "" {
		return nil, fmt.Errorf("no default policy designated")
	}
	return repo, nil
}

func entryToPolicy(entry policyEntry) (*domain.PolicyConfiguration, error) {
	cfg := &domain.PolicyConfiguration{
		Name:                   entry.Name,
		Default:                entry.Default,
		DefaultAuthnServiceID:  entry.DefaultAuthnServiceID,
		DefaultAuthnContextRef: entry.DefaultAuthnContextRef,
		SignaturePolicyID:      entry.SignaturePolicyID,
		StateTTLSeconds:        entry.StateTTLSeconds,
	}
	if entry.DefaultVisiblePdf != nil {
		cfg.DefaultVisiblePdfSignatureRequirement = &domain.VisiblePdfSignatureRequirement{
			TemplateImageRef:     entry.DefaultVisiblePdf.TemplateImageRef,
			XPosition:            entry.DefaultVisiblePdf.XPosition,
			YPosition:            entry.DefaultVisiblePdf.YPosition,
			Scale:                entry.DefaultVisiblePdf.Scale,
			Page:                 entry.DefaultVisiblePdf.Page,
			SignerNameAttributes: entry.DefaultVisiblePdf.SignerNameAttributes,
			FieldValues:          entry.DefaultVisiblePdf.FieldValues,
		}
	}
	if entry.SigningCredential != nil {
		key, err := LoadPrivateKey(entry.SigningCredential.KeyFile)
		if err != nil {
			return nil, err
		}
		certs, err := LoadCertificates(entry.SigningCredential.CertificateFile)
		if err != nil {
			return nil, err
		}
		cfg.SigningCredential = &domain.SigningCredential{
			Name:        entry.SigningCredential.Name,
			PrivateKey:  key,
			Certificate: certs[0],
		}
	}
	return cfg, nil
}

// Policy returns the named policy, or the default for an empty name.
func (r *Repository) Policy(name string) (*domain.PolicyConfiguration, error) {
	if name == "" {
		name = r.defaultName
	}
	cfg, ok := r.policies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrPolicyNotFound, name)
	}
	return cfg, nil
}

// Names lists the available policy names.
func (r *Repository) Names() []string {
	names := make([]string, 0, len(r.policies))
	for name := range r.policies {
		names = append(names, name)
	}
	return names
}

var _ ports.PolicyRepository = (*Repository)(nil)
