package crypto

import (
	"crypto/rand"
	"crypto/rsa"
)

// GenerateSigningKey generates a fresh RSA private key for signing gateway
// access tokens. Used when no persistent signing secret is configured;
// tokens signed with an ephemeral key do not survive a restart.
func GenerateSigningKey() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, 2048)
}
