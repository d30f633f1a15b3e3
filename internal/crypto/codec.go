// Package crypto holds the gateway's key material helpers: the at-rest
// codec for stored secrets and signing key generation.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/helioslabs/mcpgate/errors"
)

// KeySize is the required codec key length in bytes (AES-256).
const KeySize = 32

// Codec performs authenticated symmetric encryption of opaque secret
// strings. The key is loaded once at startup and the Codec is passed by
// value into every component that reads or writes stored secrets; nothing
// outside this package touches raw key material.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec builds a Codec from a base64-encoded 32-byte key.
func NewCodec(encodedKey string) (Codec, error) {
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return Codec{}, fmt.Errorf("decode codec key: %w", err)
	}
	return NewCodecFromKey(key)
}

// NewCodecFromKey builds a Codec from raw key bytes.
func NewCodecFromKey(key []byte) (Codec, error) {
	if len(key) != KeySize {
		return Codec{}, fmt.Errorf("codec key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return Codec{}, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return Codec{}, fmt.Errorf("init gcm: %w", err)
	}
	return Codec{aead: aead}, nil
}

// Encrypt seals plaintext and returns base64(nonce || ciphertext).
func (c Codec) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt inverts Encrypt. Any format mismatch or authentication failure
// yields ErrDecryption; a tampered ciphertext can never decrypt to a
// wrong-but-plausible plaintext.
func (c Codec) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errors.ErrDecryption
	}
	if len(raw) < c.aead.NonceSize() {
		return "", errors.ErrDecryption
	}
	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", errors.ErrDecryption
	}
	return string(plaintext), nil
}

// GenerateKey returns a fresh random codec key, base64-encoded. Used by
// deployment tooling to mint keys; never called on a live request path.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
