package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	domainerrors "cratewatch/contexts/integrations/provider-gateway/domain/errors"
	"cratewatch/contexts/integrations/provider-gateway/ports"
)

// LinkAccountCommand carries plaintext tokens from the OAuth callback.
// They are encrypted before anything touches the repository.
type LinkAccountCommand struct {
	UserID               string
	Provider             string
	ExternalUserID       string
	AccessToken          string
	RefreshToken         string
	AccessTokenExpiresAt *time.Time
	TokenType            string
	Scopes               string
}

// LinkAccountUseCase creates or replaces the (user, provider) account link.
type LinkAccountUseCase struct {
	Links  ports.AccountLinkRepository
	Cipher ports.TokenCipher
	Clock  ports.Clock
	IDs    ports.IDGenerator
	Logger *slog.Logger
}

func (uc LinkAccountUseCase) Execute(ctx context.Context, cmd LinkAccountCommand) (ports.AccountLink, error) {
	if !ports.ValidProvider(cmd.Provider) {
		return ports.AccountLink{}, domainerrors.ErrUnknownProvider
	}
	if cmd.AccessToken == "" {
		return ports.AccountLink{}, domainerrors.ErrTokenMissing
	}

	encryptedAccess, err := uc.Cipher.Encrypt(cmd.AccessToken)
	if err != nil {
		return ports.AccountLink{}, fmt.Errorf("encrypt access token: %w", err)
	}
	encryptedRefresh := ""
	if cmd.RefreshToken != "" {
		encryptedRefresh, err = uc.Cipher.Encrypt(cmd.RefreshToken)
		if err != nil {
			return ports.AccountLink{}, fmt.Errorf("encrypt refresh token: %w", err)
		}
	}

	linkID, err := uc.IDs.NewID(ctx)
	if err != nil {
		return ports.AccountLink{}, err
	}
	now := uc.Clock.Now()

	link := ports.AccountLink{
		LinkID:               linkID,
		UserID:               cmd.UserID,
		Provider:             cmd.Provider,
		ExternalUserID:       cmd.ExternalUserID,
		AccessToken:          encryptedAccess,
		RefreshToken:         encryptedRefresh,
		AccessTokenExpiresAt: cmd.AccessTokenExpiresAt,
		TokenType:            cmd.TokenType,
		Scopes:               cmd.Scopes,
		ConnectedAt:          now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := uc.Links.SaveLink(ctx, link); err != nil {
		return ports.AccountLink{}, err
	}

	logger := uc.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("external account linked",
		"event", "account_linked",
		"module", "integrations/provider-gateway",
		"layer", "application",
		"user_id", cmd.UserID,
		"provider", cmd.Provider,
	)
	return link, nil
}
