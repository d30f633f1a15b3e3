package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/helioslabs/mcpgate/cache"
	"github.com/helioslabs/mcpgate/domain"
	gwerrors "github.com/helioslabs/mcpgate/errors"
	"github.com/helioslabs/mcpgate/internal/crypto"
	"github.com/helioslabs/mcpgate/internal/metrics"
)

// defaultTokenLifetime is assumed when a provider omits expires_in.
const defaultTokenLifetime = time.Hour

// RefreshOptions tune the coordinator. Zero values fall back to defaults.
type RefreshOptions struct {
	// CacheTTL bounds how long a validated token is served from memory
	// without consulting the store. Default 5 minutes.
	CacheTTL time.Duration
	// Skew is the safety margin before the persisted expiry at which a
	// token is considered due for refresh. Default 2 minutes.
	Skew time.Duration
	// RateLimit caps refreshes per RateWindow per (user, provider).
	// Default 5.
	RateLimit int
	// RateWindow is the rolling window for RateLimit. Default 1 hour.
	RateWindow time.Duration
	// Retries bounds attempts against the provider token endpoint on
	// transient failure. Default 3.
	Retries int
	// HTTPClient overrides the client used for provider calls. Nil means
	// http.DefaultClient.
	HTTPClient *http.Client
}

func (o *RefreshOptions) withDefaults() RefreshOptions {
	out := *o
	if out.CacheTTL <= 0 {
		out.CacheTTL = 5 * time.Minute
	}
	if out.Skew <= 0 {
		out.Skew = 2 * time.Minute
	}
	if out.RateLimit <= 0 {
		out.RateLimit = 5
	}
	if out.RateWindow <= 0 {
		out.RateWindow = time.Hour
	}
	if out.Retries <= 0 {
		out.Retries = 3
	}
	return out
}

// cachedToken is the coordinator's in-memory view of a currently valid
// access token. Refresh tokens are never cached.
type cachedToken struct {
	accessToken string
	expiresAt   time.Time
}

// RefreshService produces currently valid third-party access tokens for
// (user, provider) pairs, refreshing through the provider's token endpoint
// when needed. Per pair it guarantees: at most one in-flight refresh,
// a bounded refresh rate, and atomic old-or-new visibility for readers.
type RefreshService struct {
	providers  domain.ProviderRepository
	userTokens domain.UserTokenRepository
	codec      crypto.Codec

	cache  *ttlcache.Cache[string, cachedToken]
	group  singleflight.Group
	window *cache.RefreshWindow
	opts   RefreshOptions
}

// NewRefreshService creates a new RefreshService instance.
func NewRefreshService(
	providers domain.ProviderRepository,
	userTokens domain.UserTokenRepository,
	codec crypto.Codec,
	opts RefreshOptions,
) *RefreshService {
	opts = opts.withDefaults()

	c := ttlcache.New(
		ttlcache.WithTTL[string, cachedToken](opts.CacheTTL),
		ttlcache.WithDisableTouchOnHit[string, cachedToken](),
	)
	go c.Start()

	return &RefreshService{
		providers:  providers,
		userTokens: userTokens,
		codec:      codec,
		cache:      c,
		window:     cache.NewRefreshWindow(opts.RateLimit, opts.RateWindow),
		opts:       opts,
	}
}

// Close stops the coordinator's background loops.
func (s *RefreshService) Close() {
	s.cache.Stop()
	s.window.Close()
}

func refreshKey(userID, serverID string) string {
	return userID + ":" + serverID
}

// EnsureValid returns a currently valid access token for the pair,
// refreshing via the provider when the stored token is near expiry.
// Failure kinds: ErrNoToken, ErrRateLimited, ErrReauthorizationRequired,
// ErrProviderUnavailable, ErrDecryption.
func (s *RefreshService) EnsureValid(ctx context.Context, userID, serverID string) (string, error) {
	key := refreshKey(userID, serverID)

	// Fast path outside the flight. ttlcache is internally locked, so this
	// cannot observe a torn write from a concurrent refresh.
	if tok, ok := s.cachedValid(key); ok {
		return tok.accessToken, nil
	}

	// singleflight serializes per key: concurrent callers needing the same
	// pair share one refresh and its outcome.
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		// Another caller may have just refreshed while we waited.
		if tok, ok := s.cachedValid(key); ok {
			return tok, nil
		}
		return s.ensure(ctx, userID, serverID, key)
	})
	if err != nil {
		return "", err
	}
	return v.(cachedToken).accessToken, nil
}

func (s *RefreshService) cachedValid(key string) (cachedToken, bool) {
	item := s.cache.Get(key)
	if item == nil {
		return cachedToken{}, false
	}
	tok := item.Value()
	if time.Now().After(tok.expiresAt.Add(-s.opts.Skew)) {
		return cachedToken{}, false
	}
	return tok, true
}

// ensure runs inside the singleflight flight for key.
func (s *RefreshService) ensure(ctx context.Context, userID, serverID, key string) (cachedToken, error) {
	stored, err := s.userTokens.GetUserToken(ctx, userID, serverID)
	if err != nil {
		return cachedToken{}, err
	}

	accessToken, err := s.codec.Decrypt(stored.AccessToken)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("server_id", serverID).
			Msg("stored access token failed to decrypt")
		return cachedToken{}, err
	}

	// Still comfortably valid: serve from the store, no provider call.
	if time.Now().Before(stored.ExpiresAt.Add(-s.opts.Skew)) {
		tok := cachedToken{accessToken: accessToken, expiresAt: stored.ExpiresAt}
		s.cacheToken(key, tok)
		return tok, nil
	}

	if stored.RefreshToken == "" {
		return cachedToken{}, gwerrors.ErrReauthorizationRequired
	}
	refreshToken, err := s.codec.Decrypt(stored.RefreshToken)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("server_id", serverID).
			Msg("stored refresh token failed to decrypt")
		return cachedToken{}, err
	}

	// Attempts count against the window whether or not they succeed: a
	// failing refresh still costs a provider round trip.
	if !s.window.Allow(key) {
		metrics.RefreshRateLimitedTotal.Inc()
		log.Warn().Str("user_id", userID).Str("server_id", serverID).
			Msg("refresh rate limit exceeded")
		return cachedToken{}, gwerrors.ErrRateLimited
	}

	provider, err := s.providers.GetProviderByServerID(ctx, serverID)
	if err != nil {
		return cachedToken{}, err
	}
	// Public clients register without a secret; decrypt only when one is
	// stored.
	var clientSecret string
	if provider.ClientSecret != "" {
		if clientSecret, err = s.codec.Decrypt(provider.ClientSecret); err != nil {
			log.Error().Err(err).Str("server_id", serverID).
				Msg("provider client secret failed to decrypt")
			return cachedToken{}, err
		}
	}

	fresh, err := s.refresh(ctx, provider, clientSecret, refreshToken)
	if err != nil {
		metrics.RefreshFailuresTotal.Inc()
		return cachedToken{}, err
	}

	expiresAt := fresh.Expiry
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(defaultTokenLifetime)
	}

	encAccess, err := s.codec.Encrypt(fresh.AccessToken)
	if err != nil {
		return cachedToken{}, fmt.Errorf("encrypt refreshed access token: %w", err)
	}
	// Providers may rotate the refresh token; keep the old one when they
	// don't send a replacement.
	encRefresh := stored.RefreshToken
	if fresh.RefreshToken != "" && fresh.RefreshToken != refreshToken {
		if encRefresh, err = s.codec.Encrypt(fresh.RefreshToken); err != nil {
			return cachedToken{}, fmt.Errorf("encrypt rotated refresh token: %w", err)
		}
	}

	// Persist before publishing to the cache so readers only ever observe
	// a fully stored token set.
	if err := s.userTokens.UpsertUserToken(ctx, &domain.UserToken{
		UserID:       userID,
		ServerID:     serverID,
		AccessToken:  encAccess,
		RefreshToken: encRefresh,
		ExpiresAt:    expiresAt,
		UpdatedAt:    time.Now(),
	}); err != nil {
		return cachedToken{}, fmt.Errorf("persist refreshed token: %w", err)
	}

	tok := cachedToken{accessToken: fresh.AccessToken, expiresAt: expiresAt}
	s.cacheToken(key, tok)

	metrics.RefreshesTotal.Inc()
	log.Debug().Str("user_id", userID).Str("server_id", serverID).
		Time("expires_at", expiresAt).Msg("provider token refreshed")

	return tok, nil
}

func (s *RefreshService) cacheToken(key string, tok cachedToken) {
	ttl := s.opts.CacheTTL
	if until := time.Until(tok.expiresAt.Add(-s.opts.Skew)); until < ttl {
		ttl = until
	}
	if ttl <= 0 {
		return
	}
	s.cache.Set(key, tok, ttl)
}

// refresh calls the provider token endpoint, retrying transient failures a
// bounded number of times with backoff.
func (s *RefreshService) refresh(
	ctx context.Context,
	provider *domain.ProviderCredential,
	clientSecret, refreshToken string,
) (*oauth2.Token, error) {
	conf := &oauth2.Config{
		ClientID:     provider.ClientID,
		ClientSecret: clientSecret,
		RedirectURL:  provider.RedirectURI,
		Scopes:       provider.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  provider.AuthURL,
			TokenURL: provider.TokenURL,
		},
	}
	if s.opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.opts.HTTPClient)
	}

	backoff := 250 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < s.opts.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", gwerrors.ErrProviderUnavailable, ctx.Err())
			}
		}

		tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
		if err == nil {
			return tok, nil
		}

		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			code := retrieveErr.ErrorCode
			if gwerrors.IsConsentError(code) {
				// The grant is dead upstream. Only a fresh user consent
				// recovers; never retried.
				log.Warn().Str("provider", provider.ProviderName).Str("code", code).
					Msg("provider rejected refresh token")
				return nil, gwerrors.ErrReauthorizationRequired
			}
			if retrieveErr.Response != nil && retrieveErr.Response.StatusCode < 500 {
				// A definitive non-consent rejection; retrying won't help.
				return nil, fmt.Errorf("%w: %s", gwerrors.ErrProviderUnavailable, retrieveErr.Error())
			}
		}

		lastErr = err
		log.Warn().Err(err).Str("provider", provider.ProviderName).
			Int("attempt", attempt+1).Msg("provider token endpoint call failed")
	}

	return nil, fmt.Errorf("%w: %v", gwerrors.ErrProviderUnavailable, lastErr)
}

// Entry returns the full decrypted token set for one pair, with the access
// token guaranteed current. Used by the bundle packager; the refresh token
// is read from the store on demand and never cached.
func (s *RefreshService) Entry(ctx context.Context, userID, serverID string) (*domain.BundleEntry, error) {
	access, err := s.EnsureValid(ctx, userID, serverID)
	if err != nil {
		return nil, err
	}

	stored, err := s.userTokens.GetUserToken(ctx, userID, serverID)
	if err != nil {
		return nil, err
	}

	entry := &domain.BundleEntry{
		AccessToken: access,
		ExpiresAt:   stored.ExpiresAt,
	}
	if stored.RefreshToken != "" {
		refresh, err := s.codec.Decrypt(stored.RefreshToken)
		if err != nil {
			return nil, err
		}
		entry.RefreshToken = refresh
	}
	return entry, nil
}
