package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/helioslabs/mcpgate/domain"
	"github.com/helioslabs/mcpgate/internal/crypto"
)

// ProviderService manages the OAuth client configurations of integrated
// third-party services. Client secrets are encrypted before they reach the
// repository and are never returned.
type ProviderService struct {
	providers domain.ProviderRepository
	codec     crypto.Codec
}

// NewProviderService creates a new ProviderService instance.
func NewProviderService(providers domain.ProviderRepository, storageCodec crypto.Codec) *ProviderService {
	return &ProviderService{
		providers: providers,
		codec:     storageCodec,
	}
}

// Register stores a provider configuration. The given client secret is
// plaintext; it is encrypted here and decrypted only while building an
// outbound token request.
func (s *ProviderService) Register(ctx context.Context, cred *domain.ProviderCredential, clientSecret string) error {
	if cred.ServerID == "" || cred.ClientID == "" || cred.TokenURL == "" {
		return fmt.Errorf("server_id, client_id and token_url are required")
	}

	encSecret, err := s.codec.Encrypt(clientSecret)
	if err != nil {
		return fmt.Errorf("encrypt client secret: %w", err)
	}
	cred.ClientSecret = encSecret
	cred.CreatedAt = time.Now()

	if err := s.providers.CreateProvider(ctx, cred); err != nil {
		return err
	}

	log.Info().Str("server_id", cred.ServerID).Str("provider", cred.ProviderName).
		Msg("provider registered")
	return nil
}

// List returns all registered providers. The encrypted secret is blanked so
// not even ciphertext leaves the service.
func (s *ProviderService) List(ctx context.Context) ([]*domain.ProviderCredential, error) {
	creds, err := s.providers.ListProviders(ctx)
	if err != nil {
		return nil, err
	}
	for _, cred := range creds {
		cred.ClientSecret = ""
	}
	return creds, nil
}
