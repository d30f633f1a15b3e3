package domain

import "time"

// ProviderCredential is the OAuth client configuration for one integrated
// third-party service. ClientSecret is stored encrypted and decrypted only
// transiently while building an outbound token request.
type ProviderCredential struct {
	ID           string            `bson:"_id,omitempty" json:"id"`
	ProviderName string            `bson:"provider_name" json:"provider_name"`
	ServerID     string            `bson:"server_id"     json:"server_id"`
	ClientID     string            `bson:"client_id"     json:"client_id"`
	ClientSecret string            `bson:"client_secret" json:"-"`
	RedirectURI  string            `bson:"redirect_uri"  json:"redirect_uri"`
	AuthURL      string            `bson:"auth_url"      json:"auth_url"`
	TokenURL     string            `bson:"token_url"     json:"token_url"`
	Scopes       []string          `bson:"scopes"        json:"scopes"`
	Extra        map[string]string `bson:"extra,omitempty" json:"extra,omitempty"`
	CreatedAt    time.Time         `bson:"created_at"    json:"created_at"`
}

// UserToken holds one user's granted tokens for one provider. Both token
// values are encrypted at rest; only the refresh coordinator and the bundle
// packager ever see them decrypted.
type UserToken struct {
	UserID       string    `bson:"user_id"                 json:"user_id"`
	ServerID     string    `bson:"server_id"               json:"server_id"`
	AccessToken  string    `bson:"access_token"            json:"-"`
	RefreshToken string    `bson:"refresh_token,omitempty" json:"-"`
	ExpiresAt    time.Time `bson:"expires_at"              json:"expires_at"`
	UpdatedAt    time.Time `bson:"updated_at"              json:"updated_at"`
}
