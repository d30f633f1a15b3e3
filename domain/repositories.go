package domain

import (
	"context"
)

// TokenRecordRepository is the persistent revocation ledger. One record per
// issued gateway token, keyed by jti.
type TokenRecordRepository interface {
	// CreateRecord stores the ledger entry for a freshly issued token.
	CreateRecord(ctx context.Context, rec *TokenRecord) error

	// GetRecord retrieves a record by jti. Returns ErrRevoked-compatible
	// "not found" semantics at the service layer; the repository itself
	// returns a plain error when the record is absent.
	GetRecord(ctx context.Context, jti string) (*TokenRecord, error)

	// TouchRecord updates last_used_at after a successful verification.
	TouchRecord(ctx context.Context, jti string) error

	// RevokeRecord idempotently marks a record revoked.
	RevokeRecord(ctx context.Context, jti string) error

	// ListRecordsBySubject returns all records issued to one subject.
	ListRecordsBySubject(ctx context.Context, subjectID string) ([]*TokenRecord, error)

	// DeleteRecord removes a record permanently. Administrative purge only.
	DeleteRecord(ctx context.Context, jti string) error
}

// ProviderRepository stores OAuth client configuration per integrated
// third-party service.
type ProviderRepository interface {
	CreateProvider(ctx context.Context, cred *ProviderCredential) error
	GetProviderByServerID(ctx context.Context, serverID string) (*ProviderCredential, error)
	ListProviders(ctx context.Context) ([]*ProviderCredential, error)
}

// UserTokenRepository stores per-(user, provider) granted OAuth tokens,
// encrypted at rest.
type UserTokenRepository interface {
	// UpsertUserToken stores or replaces the token set for a (user, server)
	// pair. Called on consent completion and after every successful refresh.
	UpsertUserToken(ctx context.Context, tok *UserToken) error

	// GetUserToken returns the stored token set, or errors.ErrNoToken when
	// the user never authorized the provider.
	GetUserToken(ctx context.Context, userID, serverID string) (*UserToken, error)

	// ListUserTokens returns every provider token set the user has granted.
	ListUserTokens(ctx context.Context, userID string) ([]*UserToken, error)

	// DeleteUserToken drops a grant, forcing a future re-consent.
	DeleteUserToken(ctx context.Context, userID, serverID string) error
}
