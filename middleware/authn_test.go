package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helioslabs/mcpgate/cache"
	"github.com/helioslabs/mcpgate/domain"
	"github.com/helioslabs/mcpgate/services"
)

// ledgerStub is a minimal in-memory TokenRecordRepository.
type ledgerStub struct {
	records map[string]*domain.TokenRecord
}

func (s *ledgerStub) CreateRecord(_ context.Context, rec *domain.TokenRecord) error {
	s.records[rec.JTI] = rec
	return nil
}

func (s *ledgerStub) GetRecord(_ context.Context, jti string) (*domain.TokenRecord, error) {
	rec, ok := s.records[jti]
	if !ok {
		return nil, assert.AnError
	}
	return rec, nil
}

func (s *ledgerStub) TouchRecord(_ context.Context, jti string) error {
	if rec, ok := s.records[jti]; ok {
		rec.LastUsedAt = time.Now()
	}
	return nil
}

func (s *ledgerStub) RevokeRecord(_ context.Context, jti string) error {
	if rec, ok := s.records[jti]; ok {
		rec.Revoked = true
	}
	return nil
}

func (s *ledgerStub) ListRecordsBySubject(_ context.Context, subjectID string) ([]*domain.TokenRecord, error) {
	var out []*domain.TokenRecord
	for _, rec := range s.records {
		if rec.SubjectID == subjectID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *ledgerStub) DeleteRecord(_ context.Context, jti string) error {
	delete(s.records, jti)
	return nil
}

func newAuthFixture(t *testing.T) (*services.TokenService, string) {
	t.Helper()
	signer := services.NewTokenSigner()
	signer.AddHMACKey("test", []byte("0123456789abcdef0123456789abcdef"))
	ts := services.NewTokenService(
		&ledgerStub{records: map[string]*domain.TokenRecord{}},
		cache.NewMemoryTokenStore(time.Minute),
		signer, "mcpgate-test")

	token, _, err := ts.Issue(context.Background(), "user-1", "u1@example.com", "", "VS Code", 0)
	require.NoError(t, err)
	return ts, token
}

func TestBearerAuth(t *testing.T) {
	ts, token := newAuthFixture(t)
	e := echo.New()

	handler := BearerAuth(ts)(func(c echo.Context) error {
		identity := IdentityFromContext(c)
		require.NotNil(t, identity)
		assert.Equal(t, "user-1", identity.SubjectID)
		return c.NoContent(http.StatusOK)
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage token", "Bearer garbage", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := handler(c)
			if tt.status == http.StatusOK {
				require.NoError(t, err)
				assert.Equal(t, http.StatusOK, rec.Code)
				return
			}
			var httpErr *echo.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.status, httpErr.Code)
			// The rejection reason never leaks.
			assert.Equal(t, "unauthenticated", httpErr.Message)
		})
	}
}

func TestBearerTokenParser(t *testing.T) {
	cases := map[string]struct {
		header string
		want   string
		ok     bool
	}{
		"plain":        {"Bearer abc", "abc", true},
		"lower scheme": {"bearer abc", "abc", true},
		"empty value":  {"Bearer ", "", false},
		"no scheme":    {"abc", "", false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, ok := bearerToken(tc.header)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
