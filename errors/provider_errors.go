package errors

import "fmt"

// ProviderError is a standardized OAuth 2.0 error returned by a provider's
// token endpoint (RFC 6749 §5.2).
type ProviderError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	URI         string `json:"error_uri,omitempty"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Standard OAuth2 error codes seen from provider token endpoints.
const (
	InvalidRequest         = "invalid_request"
	UnauthorizedClient     = "unauthorized_client"
	AccessDenied           = "access_denied"
	UnsupportedGrantType   = "unsupported_grant_type"
	InvalidScope           = "invalid_scope"
	InvalidClient          = "invalid_client"
	InvalidGrant           = "invalid_grant"
	ServerError            = "server_error"
	TemporarilyUnavailable = "temporarily_unavailable"
)

// IsConsentError reports whether a provider error code means the stored
// grant is dead and only a fresh user consent can recover, as opposed to a
// transient provider-side condition.
func IsConsentError(code string) bool {
	switch code {
	case InvalidGrant, InvalidClient, UnauthorizedClient, AccessDenied:
		return true
	}
	return false
}
