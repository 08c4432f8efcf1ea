package commands

import (
	"context"
	"fmt"
	"log/slog"

	domainerrors "cratewatch/contexts/integrations/provider-gateway/domain/errors"
	"cratewatch/contexts/integrations/provider-gateway/ports"
)

// ResolveTokenUseCase loads a user's account link for a provider and returns
// the plaintext access token. Links still holding plaintext tokens from
// before envelope encryption are re-encrypted in place on first read.
type ResolveTokenUseCase struct {
	Links  ports.AccountLinkRepository
	Cipher ports.TokenCipher
	Clock  ports.Clock
	Logger *slog.Logger
}

type ResolvedToken struct {
	Link        ports.AccountLink
	AccessToken string
}

func (uc ResolveTokenUseCase) Execute(ctx context.Context, userID string, provider string) (ResolvedToken, error) {
	if !ports.ValidProvider(provider) {
		return ResolvedToken{}, domainerrors.ErrUnknownProvider
	}

	link, err := uc.Links.GetLink(ctx, userID, provider)
	if err != nil {
		return ResolvedToken{}, err
	}
	if link.AccessToken == "" {
		return ResolvedToken{}, domainerrors.ErrTokenMissing
	}
	if link.AccessTokenExpiresAt != nil && !link.AccessTokenExpiresAt.After(uc.Clock.Now()) {
		return ResolvedToken{}, domainerrors.ErrTokenExpired
	}

	plaintext, requiresMigration, err := uc.Cipher.Decrypt(link.AccessToken)
	if err != nil {
		return ResolvedToken{}, fmt.Errorf("decrypt access token: %w", err)
	}

	if requiresMigration {
		if err := uc.migrate(ctx, &link, plaintext); err != nil {
			uc.logger().Warn("token migration failed",
				"event", "token_migration_failed",
				"module", "integrations/provider-gateway",
				"layer", "application",
				"link_id", link.LinkID,
				"provider", provider,
				"error", err.Error(),
			)
		}
	}

	return ResolvedToken{Link: link, AccessToken: plaintext}, nil
}

// migrate rewrites both stored tokens as envelopes. Failures are logged and
// swallowed: the caller already has a usable plaintext token.
func (uc ResolveTokenUseCase) migrate(ctx context.Context, link *ports.AccountLink, accessPlaintext string) error {
	encryptedAccess, err := uc.Cipher.Encrypt(accessPlaintext)
	if err != nil {
		return err
	}

	encryptedRefresh := link.RefreshToken
	if link.RefreshToken != "" {
		refreshPlaintext, _, err := uc.Cipher.Decrypt(link.RefreshToken)
		if err != nil {
			return err
		}
		encryptedRefresh, err = uc.Cipher.Encrypt(refreshPlaintext)
		if err != nil {
			return err
		}
	}

	now := uc.Clock.Now()
	if err := uc.Links.UpdateTokens(ctx, link.LinkID, encryptedAccess, encryptedRefresh, now); err != nil {
		return err
	}
	link.AccessToken = encryptedAccess
	link.RefreshToken = encryptedRefresh
	link.UpdatedAt = now

	uc.logger().Info("account link tokens migrated to envelope",
		"event", "token_migrated",
		"module", "integrations/provider-gateway",
		"layer", "application",
		"link_id", link.LinkID,
		"provider", link.Provider,
	)
	return nil
}

func (uc ResolveTokenUseCase) logger() *slog.Logger {
	if uc.Logger != nil {
		return uc.Logger
	}
	return slog.Default()
}
