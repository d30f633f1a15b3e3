package domain

import (
	"time"

	"github.com/helioslabs/mcpgate/errors"
)

// BundleEntry is one provider's decrypted token set inside a TokenBundle.
type BundleEntry struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// TokenBundle is the ephemeral set of tokens one execution request is
// authorized to use. It exists in memory and in encrypted transit only,
// is decrypted exactly once inside the execution sandbox, and is never
// persisted.
type TokenBundle struct {
	UserID    string                 `json:"user_id"`
	UserEmail string                 `json:"user_email,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	Tokens    map[string]BundleEntry `json:"tokens"`
}

// Get returns the entry for one provider. Tool wrappers inside the sandbox
// rely on this being the only way to reach a token: a bundle scoped to one
// user can never yield another user's or an ungranted provider's credential.
func (b *TokenBundle) Get(serverID string) (BundleEntry, error) {
	entry, ok := b.Tokens[serverID]
	if !ok {
		return BundleEntry{}, errors.ErrNotAuthorized
	}
	return entry, nil
}
