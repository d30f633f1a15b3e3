package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/helioslabs/mcpgate/domain"
	gwerrors "github.com/helioslabs/mcpgate/errors"
	"github.com/helioslabs/mcpgate/internal/crypto"
)

// tokenEndpoint is a fake provider token endpoint that counts calls.
type tokenEndpoint struct {
	srv   *httptest.Server
	calls atomic.Int64

	mu        sync.Mutex
	status    int
	errorCode string
	expiresIn int
}

func newTokenEndpoint(t *testing.T) *tokenEndpoint {
	t.Helper()
	te := &tokenEndpoint{status: http.StatusOK, expiresIn: 3600}
	te.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		te.calls.Add(1)
		te.mu.Lock()
		status, errorCode, expiresIn := te.status, te.errorCode, te.expiresIn
		te.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": errorCode})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"token_type":    "Bearer",
			"expires_in":    expiresIn,
		})
	}))
	t.Cleanup(te.srv.Close)
	return te
}

func (te *tokenEndpoint) fail(status int, errorCode string) {
	te.mu.Lock()
	te.status, te.errorCode = status, errorCode
	te.mu.Unlock()
}

func newTestCodec(t *testing.T) crypto.Codec {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	codec, err := crypto.NewCodec(key)
	require.NoError(t, err)
	return codec
}

// testProvider builds a confidential-client provider whose secret is stored
// encrypted, as the registration path persists it.
func testProvider(t *testing.T, te *tokenEndpoint, codec crypto.Codec) *domain.ProviderCredential {
	t.Helper()
	encSecret, err := codec.Encrypt("client-secret")
	require.NoError(t, err)
	return &domain.ProviderCredential{
		ProviderName: "github",
		ServerID:     "github-mcp",
		ClientID:     "client-id",
		ClientSecret: encSecret,
		TokenURL:     te.srv.URL + "/token",
		AuthURL:      te.srv.URL + "/authorize",
	}
}

func storedToken(t *testing.T, codec crypto.Codec, access, refresh string, expiresAt time.Time) *domain.UserToken {
	t.Helper()
	encAccess, err := codec.Encrypt(access)
	require.NoError(t, err)
	tok := &domain.UserToken{
		UserID:      "user-1",
		ServerID:    "github-mcp",
		AccessToken: encAccess,
		ExpiresAt:   expiresAt,
	}
	if refresh != "" {
		encRefresh, err := codec.Encrypt(refresh)
		require.NoError(t, err)
		tok.RefreshToken = encRefresh
	}
	return tok
}

func newTestRefreshService(
	t *testing.T,
	providers domain.ProviderRepository,
	userTokens domain.UserTokenRepository,
	codec crypto.Codec,
	opts RefreshOptions,
) *RefreshService {
	t.Helper()
	rs := NewRefreshService(providers, userTokens, codec, opts)
	t.Cleanup(rs.Close)
	return rs
}

func TestRefreshService_FreshTokenNoProviderCall(t *testing.T) {
	te := newTokenEndpoint(t)
	codec := newTestCodec(t)
	providers := new(MockProviderRepository)
	userTokens := new(MockUserTokenRepository)

	stored := storedToken(t, codec, "live-access", "live-refresh", time.Now().Add(time.Hour))
	userTokens.On("GetUserToken", mock.Anything, "user-1", "github-mcp").Return(stored, nil)

	rs := newTestRefreshService(t, providers, userTokens, codec, RefreshOptions{})

	access, err := rs.EnsureValid(context.Background(), "user-1", "github-mcp")
	require.NoError(t, err)
	assert.Equal(t, "live-access", access)
	assert.EqualValues(t, 0, te.calls.Load())
	providers.AssertNotCalled(t, "GetProviderByServerID", mock.Anything, mock.Anything)
}

func TestRefreshService_RefreshesExpiredToken(t *testing.T) {
	te := newTokenEndpoint(t)
	codec := newTestCodec(t)
	providers := new(MockProviderRepository)
	userTokens := new(MockUserTokenRepository)

	stored := storedToken(t, codec, "stale-access", "old-refresh", time.Now().Add(-time.Minute))
	userTokens.On("GetUserToken", mock.Anything, "user-1", "github-mcp").Return(stored, nil)
	providers.On("GetProviderByServerID", mock.Anything, "github-mcp").Return(testProvider(t, te, codec), nil)

	var persisted *domain.UserToken
	userTokens.On("UpsertUserToken", mock.Anything, mock.AnythingOfType("*domain.UserToken")).
		Run(func(args mock.Arguments) {
			persisted = args.Get(1).(*domain.UserToken)
		}).Return(nil)

	rs := newTestRefreshService(t, providers, userTokens, codec, RefreshOptions{})

	access, err := rs.EnsureValid(context.Background(), "user-1", "github-mcp")
	require.NoError(t, err)
	assert.Equal(t, "new-access", access)
	assert.EqualValues(t, 1, te.calls.Load())

	// The store is updated before the cache, and only with ciphertext.
	require.NotNil(t, persisted)
	assert.NotEqual(t, "new-access", persisted.AccessToken)
	gotAccess, err := codec.Decrypt(persisted.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "new-access", gotAccess)
	gotRefresh, err := codec.Decrypt(persisted.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "new-refresh", gotRefresh)

	// A follow-up call is served from the coordinator cache.
	access, err = rs.EnsureValid(context.Background(), "user-1", "github-mcp")
	require.NoError(t, err)
	assert.Equal(t, "new-access", access)
	assert.EqualValues(t, 1, te.calls.Load())
}

func TestRefreshService_ConcurrentCallersShareOneRefresh(t *testing.T) {
	te := newTokenEndpoint(t)
	codec := newTestCodec(t)
	providers := new(MockProviderRepository)
	userTokens := new(MockUserTokenRepository)

	stored := storedToken(t, codec, "stale-access", "old-refresh", time.Now().Add(-time.Minute))
	userTokens.On("GetUserToken", mock.Anything, "user-1", "github-mcp").Return(stored, nil)
	providers.On("GetProviderByServerID", mock.Anything, "github-mcp").Return(testProvider(t, te, codec), nil)
	userTokens.On("UpsertUserToken", mock.Anything, mock.Anything).Return(nil)

	rs := newTestRefreshService(t, providers, userTokens, codec, RefreshOptions{})

	const callers = 16
	var wg sync.WaitGroup
	results := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = rs.EnsureValid(context.Background(), "user-1", "github-mcp")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "new-access", results[i])
	}
	assert.EqualValues(t, 1, te.calls.Load(), "concurrent callers must share a single provider call")
}

func TestRefreshService_PublicClientRefreshes(t *testing.T) {
	te := newTokenEndpoint(t)
	codec := newTestCodec(t)
	providers := new(MockProviderRepository)
	userTokens := new(MockUserTokenRepository)

	stored := storedToken(t, codec, "stale-access", "old-refresh", time.Now().Add(-time.Minute))
	userTokens.On("GetUserToken", mock.Anything, "user-1", "github-mcp").Return(stored, nil)

	public := testProvider(t, te, codec)
	public.ClientSecret = ""
	providers.On("GetProviderByServerID", mock.Anything, "github-mcp").Return(public, nil)
	userTokens.On("UpsertUserToken", mock.Anything, mock.Anything).Return(nil)

	rs := newTestRefreshService(t, providers, userTokens, codec, RefreshOptions{})

	access, err := rs.EnsureValid(context.Background(), "user-1", "github-mcp")
	require.NoError(t, err)
	assert.Equal(t, "new-access", access)
	assert.EqualValues(t, 1, te.calls.Load())
}

func TestRefreshService_RateLimited(t *testing.T) {
	te := newTokenEndpoint(t)
	// Short-lived grants defeat the coordinator cache, forcing a provider
	// round trip per call.
	te.mu.Lock()
	te.expiresIn = 30
	te.mu.Unlock()

	codec := newTestCodec(t)
	providers := new(MockProviderRepository)
	userTokens := new(MockUserTokenRepository)

	stored := storedToken(t, codec, "stale-access", "old-refresh", time.Now().Add(-time.Minute))
	userTokens.On("GetUserToken", mock.Anything, "user-1", "github-mcp").Return(stored, nil)
	providers.On("GetProviderByServerID", mock.Anything, "github-mcp").Return(testProvider(t, te, codec), nil)
	userTokens.On("UpsertUserToken", mock.Anything, mock.Anything).Return(nil)

	rs := newTestRefreshService(t, providers, userTokens, codec, RefreshOptions{
		RateLimit:  1,
		RateWindow: time.Hour,
	})

	_, err := rs.EnsureValid(context.Background(), "user-1", "github-mcp")
	require.NoError(t, err)

	_, err = rs.EnsureValid(context.Background(), "user-1", "github-mcp")
	assert.ErrorIs(t, err, gwerrors.ErrRateLimited)
	assert.EqualValues(t, 1, te.calls.Load())
}

func TestRefreshService_InvalidGrantNeedsReauthorization(t *testing.T) {
	te := newTokenEndpoint(t)
	te.fail(http.StatusBadRequest, "invalid_grant")

	codec := newTestCodec(t)
	providers := new(MockProviderRepository)
	userTokens := new(MockUserTokenRepository)

	stored := storedToken(t, codec, "stale-access", "dead-refresh", time.Now().Add(-time.Minute))
	userTokens.On("GetUserToken", mock.Anything, "user-1", "github-mcp").Return(stored, nil)
	providers.On("GetProviderByServerID", mock.Anything, "github-mcp").Return(testProvider(t, te, codec), nil)

	rs := newTestRefreshService(t, providers, userTokens, codec, RefreshOptions{})

	_, err := rs.EnsureValid(context.Background(), "user-1", "github-mcp")
	assert.ErrorIs(t, err, gwerrors.ErrReauthorizationRequired)
	// Consent failures are terminal; no retry storm against the provider.
	assert.EqualValues(t, 1, te.calls.Load())
	userTokens.AssertNotCalled(t, "UpsertUserToken", mock.Anything, mock.Anything)
}

func TestRefreshService_NoRefreshTokenNeedsReauthorization(t *testing.T) {
	te := newTokenEndpoint(t)
	codec := newTestCodec(t)
	providers := new(MockProviderRepository)
	userTokens := new(MockUserTokenRepository)

	stored := storedToken(t, codec, "stale-access", "", time.Now().Add(-time.Minute))
	userTokens.On("GetUserToken", mock.Anything, "user-1", "github-mcp").Return(stored, nil)

	rs := newTestRefreshService(t, providers, userTokens, codec, RefreshOptions{})

	_, err := rs.EnsureValid(context.Background(), "user-1", "github-mcp")
	assert.ErrorIs(t, err, gwerrors.ErrReauthorizationRequired)
	assert.EqualValues(t, 0, te.calls.Load())
}

func TestRefreshService_NoGrant(t *testing.T) {
	codec := newTestCodec(t)
	providers := new(MockProviderRepository)
	userTokens := new(MockUserTokenRepository)

	userTokens.On("GetUserToken", mock.Anything, "user-1", "github-mcp").
		Return(nil, gwerrors.ErrNoToken)

	rs := newTestRefreshService(t, providers, userTokens, codec, RefreshOptions{})

	_, err := rs.EnsureValid(context.Background(), "user-1", "github-mcp")
	assert.ErrorIs(t, err, gwerrors.ErrNoToken)
}
