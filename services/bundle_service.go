package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/helioslabs/mcpgate/domain"
	gwerrors "github.com/helioslabs/mcpgate/errors"
	"github.com/helioslabs/mcpgate/internal/crypto"
	"github.com/helioslabs/mcpgate/internal/metrics"
)

// BundleService packages a user's authorized third-party tokens into an
// encrypted bundle for transit across the execution process boundary.
// Bundles are ephemeral: built per request, decrypted exactly once inside
// the sandbox, never persisted.
type BundleService struct {
	refresh    *RefreshService
	userTokens domain.UserTokenRepository
	codec      crypto.Codec // transit codec, keyed separately from storage
}

// NewBundleService creates a new BundleService instance.
func NewBundleService(
	refresh *RefreshService,
	userTokens domain.UserTokenRepository,
	transitCodec crypto.Codec,
) *BundleService {
	return &BundleService{
		refresh:    refresh,
		userTokens: userTokens,
		codec:      transitCodec,
	}
}

// Package gathers a current valid token for every provider the user has
// authorized, refreshing as needed so the bundle is never handed out stale,
// and returns the encrypted serialized bundle.
//
// Providers whose grant is dead upstream are skipped with a warning rather
// than failing the whole bundle; rate-limit and availability failures
// propagate so the caller can back off.
func (s *BundleService) Package(ctx context.Context, userID, userEmail string) (string, error) {
	grants, err := s.userTokens.ListUserTokens(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("list user grants: %w", err)
	}

	bundle := domain.TokenBundle{
		UserID:    userID,
		UserEmail: userEmail,
		CreatedAt: time.Now(),
		Tokens:    make(map[string]domain.BundleEntry, len(grants)),
	}

	for _, grant := range grants {
		entry, err := s.refresh.Entry(ctx, userID, grant.ServerID)
		if err != nil {
			if errors.Is(err, gwerrors.ErrReauthorizationRequired) {
				log.Warn().Str("user_id", userID).Str("server_id", grant.ServerID).
					Msg("grant needs re-consent, omitting from bundle")
				continue
			}
			return "", err
		}
		bundle.Tokens[grant.ServerID] = *entry
	}

	payload, err := json.Marshal(&bundle)
	if err != nil {
		return "", fmt.Errorf("serialize bundle: %w", err)
	}

	encrypted, err := s.codec.Encrypt(string(payload))
	if err != nil {
		return "", fmt.Errorf("encrypt bundle: %w", err)
	}

	metrics.BundlesPackagedTotal.Inc()
	return encrypted, nil
}

// Unpackage decrypts and deserializes a bundle. Tampered or wrong-key input
// fails with ErrDecryption.
func (s *BundleService) Unpackage(encrypted string) (*domain.TokenBundle, error) {
	payload, err := s.codec.Decrypt(encrypted)
	if err != nil {
		return nil, err
	}

	var bundle domain.TokenBundle
	if err := json.Unmarshal([]byte(payload), &bundle); err != nil {
		return nil, fmt.Errorf("deserialize bundle: %w", err)
	}
	return &bundle, nil
}
