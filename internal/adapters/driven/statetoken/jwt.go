// Package statetoken encodes session state into signed JWT tokens that
// relying applications carry between the request and response legs.
package statetoken

import (
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/domain"
	"github.com/idsec-solutions/signservice-integration-sub003/internal/core/ports"
)

// JWTCodec signs state tokens with RSA (RS256). The token is integrity
// protection only - the authoritative state lives in the session cache.
type JWTCodec struct {
	privateKey *rsa.PrivateKey
	ttl        time.Duration
}

// stateClaims defines the JWT claims structure for session state.
type stateClaims struct {
	jwt.RegisteredClaims
	State json.RawMessage `json:"state"`
}

// NewJWTCodec creates a codec. Tokens expire after ttl.
func NewJWTCodec(privateKey *rsa.PrivateKey, ttl time.Duration) *JWTCodec {
	return &JWTCodec{privateKey: privateKey, ttl: ttl}
}

// Encode serializes and signs the state.
func (c *JWTCodec) Encode(state *domain.SignatureSessionState) (string, error) {
	payload, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("marshal session state: %w", err)
	}
	now := time.Now()
	claims := stateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   state.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		State: payload,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(c.privateKey)
}

// Decode verifies a token and returns the embedded state.
func (c *JWTCodec) Decode(token string) (*domain.SignatureSessionState, error) {
	parsed, err := jwt.ParseWithClaims(token, &stateClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return &c.privateKey.PublicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrInvalidStateToken, err)
	}
	claims, ok := parsed.Claims.(*stateClaims)
	if !ok || !parsed.Valid {
		return nil, ports.ErrInvalidStateToken
	}
	var state domain.SignatureSessionState
	if err := json.Unmarshal(claims.State, &state); err != nil {
		return nil, fmt.Errorf("%w: malformed state payload", ports.ErrInvalidStateToken)
	}
	if state.ID == "" || state.ID != claims.Subject {
		return nil, fmt.Errorf("%w: state ID does not match token subject", ports.ErrInvalidStateToken)
	}
	return &state, nil
}

var _ ports.StateCodec = (*JWTCodec)(nil)
