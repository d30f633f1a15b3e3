package domain

import "time"

// TokenTypeAccess is the token_type claim stamped into every gateway-issued
// access token. Verification rejects anything else, so a JWT minted for a
// different purpose can never pass as a gateway credential.
const TokenTypeAccess = "mcp_access"

// TokenRecord is the revocation-ledger entry for one issued access token.
// The token itself is never stored or deleted; the record is authoritative
// for validity regardless of the signed expiry.
type TokenRecord struct {
	JTI        string    `bson:"_id"          json:"jti"`
	SubjectID  string    `bson:"subject_id"   json:"subject_id"`
	Label      string    `bson:"label"        json:"label"`
	Revoked    bool      `bson:"revoked"      json:"revoked"`
	IssuedAt   time.Time `bson:"issued_at"    json:"issued_at"`
	ExpiresAt  time.Time `bson:"expires_at"   json:"expires_at"`
	LastUsedAt time.Time `bson:"last_used_at" json:"last_used_at"`
}

// AccessClaims is the verified claim set of a gateway access token.
type AccessClaims struct {
	SubjectID   string    `json:"sub"`
	Email       string    `json:"email"`
	DisplayName string    `json:"name"`
	JTI         string    `json:"jti"`
	Label       string    `json:"label"`
	TokenType   string    `json:"token_type"`
	IssuedAt    time.Time `json:"iat"`
	ExpiresAt   time.Time `json:"exp"`
}
