package services

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidKeyID = errors.New("invalid key id")

// signingKey pairs a JWT signing method with its private and verification
// key material.
type signingKey struct {
	method jwt.SigningMethod
	priv   any
	pub    any
}

// TokenSigner signs and verifies gateway access tokens. Keys are registered
// under an id stamped into the token's kid header; an empty key id means
// the registry's default key.
type TokenSigner struct {
	keys      map[string]signingKey
	defaultID string
}

// NewTokenSigner creates an empty signer registry.
func NewTokenSigner() *TokenSigner {
	return &TokenSigner{
		keys: make(map[string]signingKey),
	}
}

// AddHMACKey registers an HS256 key. The first registered key becomes the
// default.
func (s *TokenSigner) AddHMACKey(keyID string, secret []byte) {
	s.add(keyID, signingKey{method: jwt.SigningMethodHS256, priv: secret, pub: secret})
}

// AddRSAKey registers an RS256 key. The first registered key becomes the
// default.
func (s *TokenSigner) AddRSAKey(keyID string, key *rsa.PrivateKey) {
	s.add(keyID, signingKey{method: jwt.SigningMethodRS256, priv: key, pub: &key.PublicKey})
}

func (s *TokenSigner) add(keyID string, key signingKey) {
	if s.defaultID == "" {
		s.defaultID = keyID
	}
	s.keys[keyID] = key
}

// Sign signs claims with the key registered under keyID, or the default key
// when keyID is empty. The kid header records which key was used.
func (s *TokenSigner) Sign(claims jwt.Claims, keyID string) (string, error) {
	if keyID == "" {
		keyID = s.defaultID
	}
	key, ok := s.keys[keyID]
	if !ok {
		return "", ErrInvalidKeyID
	}

	token := jwt.NewWithClaims(key.method, claims)
	token.Header["kid"] = keyID

	signed, err := token.SignedString(key.priv)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Keyfunc resolves the verification key for a parsed token, refusing alg
// substitution: the token's method must match the registered key's method.
func (s *TokenSigner) Keyfunc(token *jwt.Token) (any, error) {
	keyID := s.defaultID
	if kid, ok := token.Header["kid"].(string); ok && kid != "" {
		keyID = kid
	}
	key, ok := s.keys[keyID]
	if !ok {
		return nil, ErrInvalidKeyID
	}
	if token.Method.Alg() != key.method.Alg() {
		return nil, fmt.Errorf("unexpected signing method %q", token.Method.Alg())
	}
	return key.pub, nil
}
