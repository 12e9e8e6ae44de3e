package ports

import (
	"errors"

	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/domain"
)

// StateCodec encodes session state into a tamper-evident token that can
// be handed to the relying application and verified when it comes back
// with the sign response.
type StateCodec interface {
	// Encode serializes and integrity-protects the state.
	Encode(state *domain.SignatureSessionState) (string, error)

	// Decode verifies and deserializes a token. Returns ErrInvalidStateToken
	// (wrapped) for tampered, expired or malformed tokens.
	Decode(token string) (*domain.SignatureSessionState, error)
}

// ErrInvalidStateToken is wrapped by codecs for tokens that do not verify.
var ErrInvalidStateToken = errors.New("invalid state token")
