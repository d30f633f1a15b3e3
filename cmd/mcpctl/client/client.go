// Package client is mcpctl's HTTP client for the gateway API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/helioslabs/mcpgate/cmd/mcpctl/config"
	"github.com/helioslabs/mcpgate/domain"
)

// Gateway talks to one gateway instance.
type Gateway struct {
	endpoint string
	token    string
	http     *http.Client
}

// New builds a client from a CLI context.
func New(cfg *config.Context) (*Gateway, error) {
	if cfg == nil || cfg.ServerEndpoint == "" {
		return nil, fmt.Errorf("context has no server endpoint")
	}
	return &Gateway{
		endpoint: cfg.ServerEndpoint,
		token:    cfg.AuthToken,
		http:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// IssueTokenRequest mirrors the gateway's token issuance payload.
type IssueTokenRequest struct {
	SubjectID   string `json:"subject_id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Label       string `json:"label"`
	TTL         string `json:"ttl,omitempty"`
}

// IssueTokenResponse is the gateway's issuance reply.
type IssueTokenResponse struct {
	Token     string    `json:"token"`
	JTI       string    `json:"jti"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RegisterProviderRequest mirrors the gateway's provider registration payload.
type RegisterProviderRequest struct {
	ProviderName string   `json:"provider_name"`
	ServerID     string   `json:"server_id"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	RedirectURI  string   `json:"redirect_uri,omitempty"`
	AuthURL      string   `json:"auth_url,omitempty"`
	TokenURL     string   `json:"token_url"`
	Scopes       []string `json:"scopes,omitempty"`
}

// IssueToken mints a new gateway access token.
func (g *Gateway) IssueToken(ctx context.Context, req *IssueTokenRequest) (*IssueTokenResponse, error) {
	var resp IssueTokenResponse
	if err := g.do(ctx, http.MethodPost, "/v1/tokens", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListTokens fetches the ledger entries for a subject. An empty subjectID
// means the authenticated caller.
func (g *Gateway) ListTokens(ctx context.Context, subjectID string) ([]*domain.TokenRecord, error) {
	path := "/v1/tokens"
	if subjectID != "" {
		path += "?subject_id=" + subjectID
	}
	var records []*domain.TokenRecord
	if err := g.do(ctx, http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// RevokeToken revokes by jti.
func (g *Gateway) RevokeToken(ctx context.Context, jti string) error {
	return g.do(ctx, http.MethodDelete, "/v1/tokens/"+jti, nil, nil)
}

// RegisterProvider stores a provider configuration.
func (g *Gateway) RegisterProvider(ctx context.Context, req *RegisterProviderRequest) error {
	return g.do(ctx, http.MethodPost, "/v1/providers", req, nil)
}

// ListProviders fetches the registered providers.
func (g *Gateway) ListProviders(ctx context.Context) ([]*domain.ProviderCredential, error) {
	var creds []*domain.ProviderCredential
	if err := g.do(ctx, http.MethodGet, "/v1/providers", nil, &creds); err != nil {
		return nil, err
	}
	return creds, nil
}

func (g *Gateway) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.endpoint+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Message != "" {
		return fmt.Errorf("gateway returned %s: %s", resp.Status, payload.Message)
	}
	return fmt.Errorf("gateway returned %s", resp.Status)
}
