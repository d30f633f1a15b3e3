// Package errors defines the typed failure kinds surfaced by the gateway
// core. Callers branch on these with errors.Is; nothing in this package is
// ever shown verbatim to an end client.
package errors

import "errors"

// Authentication failures. The HTTP layer collapses all of these into a
// uniform 401 so a probing client cannot distinguish them.
var (
	ErrExpiredToken   = errors.New("token expired")
	ErrMalformedToken = errors.New("malformed token")
	ErrWrongTokenType = errors.New("wrong token type")
	ErrRevoked        = errors.New("token revoked")
)

// ErrDecryption indicates ciphertext tampering or a key mismatch. Treated as
// fatal for the request: logged loudly, never silently recovered.
var ErrDecryption = errors.New("decryption failed")

// Refresh coordinator outcomes.
var (
	// ErrRateLimited means the per-(user, provider) refresh ceiling was hit.
	// Surfaced distinctly so callers can back off; never retried internally.
	ErrRateLimited = errors.New("refresh rate limit exceeded")

	// ErrReauthorizationRequired means the provider rejected the refresh
	// token (revoked or expired upstream). The user must re-consent; the
	// coordinator never retries this.
	ErrReauthorizationRequired = errors.New("reauthorization required")

	// ErrProviderUnavailable is returned after bounded retries against the
	// provider token endpoint have been exhausted.
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// ErrNotAuthorized means the caller asked for a provider token its context
// was never granted. A logic error on the caller's side, not retried.
var ErrNotAuthorized = errors.New("not authorized for provider")

// ErrNoToken means no OAuth token is stored for the (user, provider) pair.
var ErrNoToken = errors.New("no stored token")
