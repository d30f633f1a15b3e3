// Package middleware provides the gateway's echo middleware.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/helioslabs/mcpgate/domain"
	"github.com/helioslabs/mcpgate/services"
)

// IdentityContextKey is the echo context key under which authenticated
// claims are stored for downstream handlers.
const IdentityContextKey = "mcpgate.identity"

var errNoCredentials = errors.New("no credentials")

// BearerAuth returns echo middleware that authenticates every request via
// `Authorization: Bearer <token>`. All verification failures produce the
// same generic 401; nothing about why a token was rejected leaks to the
// client.
func BearerAuth(ts *services.TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			claims, err := Authenticate(c.Request().Context(), ts, header)
			if err != nil {
				log.Debug().Err(err).Str("path", c.Path()).Msg("request rejected")
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
			}
			c.Set(IdentityContextKey, claims)
			return next(c)
		}
	}
}

// Authenticate resolves an Authorization header value to a verified
// identity. Exposed separately so non-HTTP surfaces can reuse it.
func Authenticate(ctx context.Context, ts *services.TokenService, header string) (*domain.AccessClaims, error) {
	if header == "" {
		return nil, errNoCredentials
	}
	raw, ok := bearerToken(header)
	if !ok {
		return nil, errNoCredentials
	}
	return ts.Verify(ctx, raw)
}

// IdentityFromContext returns the authenticated claims set by BearerAuth,
// or nil when the request was not authenticated.
func IdentityFromContext(c echo.Context) *domain.AccessClaims {
	claims, _ := c.Get(IdentityContextKey).(*domain.AccessClaims)
	return claims
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
