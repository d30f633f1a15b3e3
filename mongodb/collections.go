package mongodb

// Collection names owned by the gateway core. Tool wrappers read these
// tables; only the core writes them.
const (
	// TokenRecordsCollection is the revocation ledger for gateway-issued
	// access tokens, keyed by jti.
	TokenRecordsCollection = "gateway_access_tokens"

	// ProvidersCollection holds per-provider OAuth client configuration.
	ProvidersCollection = "oauth_providers"

	// UserTokensCollection holds per-(user, provider) granted OAuth
	// tokens, encrypted at rest.
	UserTokensCollection = "user_oauth_tokens"
)
