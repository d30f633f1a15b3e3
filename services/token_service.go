package services

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/helioslabs/mcpgate/cache"
	"github.com/helioslabs/mcpgate/domain"
	gwerrors "github.com/helioslabs/mcpgate/errors"
	"github.com/helioslabs/mcpgate/internal/metrics"
)

// DefaultAccessTokenTTL is the issuance default: ten years. Gateway tokens
// stand in for session renewal in long-lived agent clients, so revocation,
// not expiry, is the real control.
const DefaultAccessTokenTTL = 10 * 365 * 24 * time.Hour

// TokenService issues, verifies, and revokes the gateway's own bearer
// tokens. Every verification consults the revocation ledger (through a
// short-TTL cache that revocation evicts eagerly); a valid signature and
// unexpired exp claim are never sufficient on their own.
type TokenService struct {
	records domain.TokenRecordRepository
	cache   cache.TokenStore
	signer  *TokenSigner
	issuer  string
}

// NewTokenService creates a new TokenService instance.
func NewTokenService(
	records domain.TokenRecordRepository,
	tokenCache cache.TokenStore,
	signer *TokenSigner,
	issuer string,
) *TokenService {
	return &TokenService{
		records: records,
		cache:   tokenCache,
		signer:  signer,
		issuer:  issuer,
	}
}

// accessClaims is the JWT claim layout of a gateway access token.
type accessClaims struct {
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"name,omitempty"`
	Label       string `json:"label,omitempty"`
	TokenType   string `json:"token_type"`
	jwt.RegisteredClaims
}

// Issue mints a signed access token for a named client ("VS Code", "Claude
// Desktop") and records its ledger entry. A zero ttl means
// DefaultAccessTokenTTL.
func (s *TokenService) Issue(
	ctx context.Context,
	subjectID, email, displayName, label string,
	ttl time.Duration,
) (string, *domain.TokenRecord, error) {
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	now := time.Now()
	jti := uuid.NewString()

	claims := accessClaims{
		Email:       email,
		DisplayName: displayName,
		Label:       label,
		TokenType:   domain.TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subjectID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := s.signer.Sign(claims, "")
	if err != nil {
		return "", nil, err
	}

	rec := &domain.TokenRecord{
		JTI:        jti,
		SubjectID:  subjectID,
		Label:      label,
		Revoked:    false,
		IssuedAt:   now,
		ExpiresAt:  now.Add(ttl),
		LastUsedAt: now,
	}
	if err := s.records.CreateRecord(ctx, rec); err != nil {
		return "", nil, err
	}

	metrics.TokensIssuedTotal.Inc()
	log.Info().Str("subject_id", subjectID).Str("jti", jti).Str("label", label).
		Msg("access token issued")

	return signed, rec, nil
}

// Verify validates a raw bearer token and returns its claims. Failure kinds:
// ErrExpiredToken, ErrMalformedToken, ErrWrongTokenType, ErrRevoked. On
// success the ledger's last_used_at is updated (cache hits defer the update
// until the cache entry ages out).
func (s *TokenService) Verify(ctx context.Context, raw string) (*domain.AccessClaims, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(raw, &claims, s.signer.Keyfunc)
	if err != nil {
		metrics.TokenVerifyFailuresTotal.Inc()
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, gwerrors.ErrExpiredToken
		}
		return nil, gwerrors.ErrMalformedToken
	}

	if claims.TokenType != domain.TokenTypeAccess {
		// A structurally valid JWT minted for another purpose.
		metrics.TokenVerifyFailuresTotal.Inc()
		return nil, gwerrors.ErrWrongTokenType
	}
	// exp is mandatory; without it the ten-year issuance default would be
	// indistinguishable from a forever token.
	if claims.ID == "" || claims.Subject == "" || claims.ExpiresAt == nil {
		metrics.TokenVerifyFailuresTotal.Inc()
		return nil, gwerrors.ErrMalformedToken
	}

	// Cache entries are written only after a full ledger check and are
	// evicted on revocation, so a hit stands in for a fresh ledger read
	// within the cache TTL.
	if entry, err := s.cache.Get(ctx, raw); err == nil && entry != nil {
		metrics.TokenVerificationsTotal.Inc()
		return claimsFromEntry(entry), nil
	}

	rec, err := s.records.GetRecord(ctx, claims.ID)
	if err != nil || rec == nil {
		// A token whose record is gone is treated the same as a revoked
		// one; no distinction leaks to the caller.
		metrics.TokenVerifyFailuresTotal.Inc()
		return nil, gwerrors.ErrRevoked
	}
	if rec.Revoked {
		metrics.TokenVerifyFailuresTotal.Inc()
		return nil, gwerrors.ErrRevoked
	}

	if err := s.records.TouchRecord(ctx, claims.ID); err != nil {
		log.Warn().Err(err).Str("jti", claims.ID).Msg("failed to update last_used_at")
	}

	var issuedAt time.Time
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}
	result := &domain.AccessClaims{
		SubjectID:   claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
		JTI:         claims.ID,
		Label:       claims.Label,
		TokenType:   claims.TokenType,
		IssuedAt:    issuedAt,
		ExpiresAt:   claims.ExpiresAt.Time,
	}

	if err := s.cache.Set(ctx, raw, &cache.VerificationEntry{
		JTI:         result.JTI,
		SubjectID:   result.SubjectID,
		Email:       result.Email,
		DisplayName: result.DisplayName,
		Label:       result.Label,
		ExpiresAt:   result.ExpiresAt,
	}); err != nil {
		log.Warn().Err(err).Msg("failed to cache verification result")
	}

	metrics.TokenVerificationsTotal.Inc()
	return result, nil
}

// Revoke idempotently marks a token's ledger entry revoked and evicts any
// cached verification results for it. Revoking an already-revoked or
// unknown jti is not an error.
func (s *TokenService) Revoke(ctx context.Context, jti string) error {
	if err := s.records.RevokeRecord(ctx, jti); err != nil {
		return err
	}
	if err := s.cache.DeleteByJTI(ctx, jti); err != nil {
		log.Warn().Err(err).Str("jti", jti).Msg("failed to evict revoked token from cache")
	}
	metrics.TokensRevokedTotal.Inc()
	log.Info().Str("jti", jti).Msg("access token revoked")
	return nil
}

// ListTokens returns the ledger entries for every token issued to a
// subject. last_used_at can lag a busy token by up to the verification
// cache TTL, since cache hits skip the ledger touch.
func (s *TokenService) ListTokens(ctx context.Context, subjectID string) ([]*domain.TokenRecord, error) {
	return s.records.ListRecordsBySubject(ctx, subjectID)
}

// PurgeToken permanently deletes a ledger entry. Administrative use only;
// normal invalidation is Revoke.
func (s *TokenService) PurgeToken(ctx context.Context, jti string) error {
	return s.records.DeleteRecord(ctx, jti)
}

func claimsFromEntry(entry *cache.VerificationEntry) *domain.AccessClaims {
	return &domain.AccessClaims{
		SubjectID:   entry.SubjectID,
		Email:       entry.Email,
		DisplayName: entry.DisplayName,
		JTI:         entry.JTI,
		Label:       entry.Label,
		TokenType:   domain.TokenTypeAccess,
		ExpiresAt:   entry.ExpiresAt,
	}
}
