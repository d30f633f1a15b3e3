// Package echo binds the gateway core to its HTTP surface.
package echo

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/helioslabs/mcpgate/domain"
	gwerrors "github.com/helioslabs/mcpgate/errors"
	"github.com/helioslabs/mcpgate/internal/sandbox"
	"github.com/helioslabs/mcpgate/middleware"
	"github.com/helioslabs/mcpgate/mongodb"
	"github.com/helioslabs/mcpgate/services"
)

// GatewayAPI holds the core services behind the HTTP surface.
type GatewayAPI struct {
	tokens    *services.TokenService
	providers *services.ProviderService
	bundles   *services.BundleService
	executor  *sandbox.Executor
}

// NewGatewayAPI initializes the gateway API.
func NewGatewayAPI(
	tokens *services.TokenService,
	providers *services.ProviderService,
	bundles *services.BundleService,
	executor *sandbox.Executor,
) *GatewayAPI {
	return &GatewayAPI{
		tokens:    tokens,
		providers: providers,
		bundles:   bundles,
		executor:  executor,
	}
}

// RegisterRoutes registers the gateway routes. Everything under /v1
// requires a valid gateway bearer token.
func (ga *GatewayAPI) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", ga.HealthHandler)

	v1 := e.Group("/v1", middleware.BearerAuth(ga.tokens))
	v1.POST("/tokens", ga.IssueTokenHandler)
	v1.GET("/tokens", ga.ListTokensHandler)
	v1.DELETE("/tokens/:jti", ga.RevokeTokenHandler)
	v1.POST("/providers", ga.RegisterProviderHandler)
	v1.GET("/providers", ga.ListProvidersHandler)
	v1.POST("/context", ga.PackageContextHandler)
	v1.POST("/execute", ga.ExecuteHandler)
}

// HealthHandler reports liveness, including database reachability.
func (ga *GatewayAPI) HealthHandler(c echo.Context) error {
	if err := mongodb.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type issueTokenRequest struct {
	SubjectID   string `json:"subject_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Label       string `json:"label"`
	TTL         string `json:"ttl,omitempty"` // Go duration, optional
}

type issueTokenResponse struct {
	Token     string    `json:"token"`
	JTI       string    `json:"jti"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueTokenHandler mints a long-lived gateway access token for a named
// client ("VS Code", "Claude Desktop").
func (ga *GatewayAPI) IssueTokenHandler(c echo.Context) error {
	var req issueTokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.SubjectID == "" || req.Label == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "subject_id and label are required")
	}

	var ttl time.Duration
	if req.TTL != "" {
		var err error
		if ttl, err = time.ParseDuration(req.TTL); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid ttl")
		}
	}

	token, rec, err := ga.tokens.Issue(c.Request().Context(),
		req.SubjectID, req.Email, req.DisplayName, req.Label, ttl)
	if err != nil {
		log.Error().Err(err).Msg("token issuance failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "issuance failed")
	}

	return c.JSON(http.StatusCreated, issueTokenResponse{
		Token:     token,
		JTI:       rec.JTI,
		ExpiresAt: rec.ExpiresAt,
	})
}

// ListTokensHandler returns the ledger entries for the authenticated
// subject's issued tokens. Token values themselves are never returned.
func (ga *GatewayAPI) ListTokensHandler(c echo.Context) error {
	identity := middleware.IdentityFromContext(c)
	subjectID := c.QueryParam("subject_id")
	if subjectID == "" {
		subjectID = identity.SubjectID
	}

	records, err := ga.tokens.ListTokens(c.Request().Context(), subjectID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "listing failed")
	}
	return c.JSON(http.StatusOK, records)
}

// RevokeTokenHandler marks a token revoked. Idempotent: revoking twice is
// fine.
func (ga *GatewayAPI) RevokeTokenHandler(c echo.Context) error {
	jti := c.Param("jti")
	if jti == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "jti is required")
	}
	if err := ga.tokens.Revoke(c.Request().Context(), jti); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "revocation failed")
	}
	return c.NoContent(http.StatusNoContent)
}

type registerProviderRequest struct {
	ProviderName string   `json:"provider_name"`
	ServerID     string   `json:"server_id"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	RedirectURI  string   `json:"redirect_uri"`
	AuthURL      string   `json:"auth_url"`
	TokenURL     string   `json:"token_url"`
	Scopes       []string `json:"scopes"`
}

// RegisterProviderHandler stores the OAuth client configuration for one
// integrated third-party service.
func (ga *GatewayAPI) RegisterProviderHandler(c echo.Context) error {
	var req registerProviderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ServerID == "" || req.ClientID == "" || req.TokenURL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "server_id, client_id and token_url are required")
	}

	cred := &domain.ProviderCredential{
		ProviderName: req.ProviderName,
		ServerID:     req.ServerID,
		ClientID:     req.ClientID,
		RedirectURI:  req.RedirectURI,
		AuthURL:      req.AuthURL,
		TokenURL:     req.TokenURL,
		Scopes:       req.Scopes,
	}
	if err := ga.providers.Register(c.Request().Context(), cred, req.ClientSecret); err != nil {
		// Storage error text may carry index or document details; the
		// client gets none of it.
		log.Error().Err(err).Str("server_id", req.ServerID).Msg("provider registration failed")
		return echo.NewHTTPError(http.StatusBadRequest, "registration failed")
	}
	return c.NoContent(http.StatusCreated)
}

// ListProvidersHandler returns the registered providers, secrets excluded.
func (ga *GatewayAPI) ListProvidersHandler(c echo.Context) error {
	creds, err := ga.providers.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "listing failed")
	}
	return c.JSON(http.StatusOK, creds)
}

type packageContextResponse struct {
	EncryptedTokenContext string `json:"encrypted_token_context"`
}

// PackageContextHandler builds and returns the caller's encrypted token
// context bundle, refreshing stale provider tokens along the way.
func (ga *GatewayAPI) PackageContextHandler(c echo.Context) error {
	identity := middleware.IdentityFromContext(c)

	encrypted, err := ga.bundles.Package(c.Request().Context(), identity.SubjectID, identity.Email)
	if err != nil {
		return mapCoreError(err)
	}
	return c.JSON(http.StatusOK, packageContextResponse{EncryptedTokenContext: encrypted})
}

type executeRequest struct {
	Code                  string `json:"code"`
	EncryptedTokenContext string `json:"encrypted_token_context,omitempty"`
}

type executeResponse struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Error  string `json:"error,omitempty"`
}

// ExecuteHandler runs caller-supplied code in the sandbox. Failures return
// captured stderr plus a generic error marker, never raw secret material.
func (ga *GatewayAPI) ExecuteHandler(c echo.Context) error {
	var req executeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "code is required")
	}

	result, err := ga.executor.Execute(c.Request().Context(), sandbox.Request{
		Code:                  req.Code,
		EncryptedTokenContext: req.EncryptedTokenContext,
	})
	if err != nil {
		if errors.Is(err, sandbox.ErrTimeout) {
			return c.JSON(http.StatusOK, executeResponse{Error: "execution timed out"})
		}
		return mapCoreError(err)
	}

	resp := executeResponse{Stdout: result.Stdout, Stderr: result.Stderr}
	if result.ExitCode != 0 {
		resp.Error = "execution failed"
	}
	return c.JSON(http.StatusOK, resp)
}

// mapCoreError translates core failure kinds into HTTP status codes.
func mapCoreError(err error) error {
	switch {
	case errors.Is(err, gwerrors.ErrRateLimited):
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, gwerrors.ErrReauthorizationRequired):
		return echo.NewHTTPError(http.StatusConflict, "reauthorization required")
	case errors.Is(err, gwerrors.ErrProviderUnavailable):
		return echo.NewHTTPError(http.StatusBadGateway, "provider unavailable")
	case errors.Is(err, gwerrors.ErrNotAuthorized), errors.Is(err, gwerrors.ErrNoToken):
		return echo.NewHTTPError(http.StatusForbidden, "not authorized")
	case errors.Is(err, gwerrors.ErrDecryption):
		log.Error().Err(err).Msg("decryption failure on request path")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	default:
		log.Error().Err(err).Msg("internal error")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
