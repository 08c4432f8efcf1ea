package commands

import (
	"context"
	"log/slog"
	"strings"

	"cratewatch/contexts/identity/user-service/domain/entities"
	domainerrors "cratewatch/contexts/identity/user-service/domain/errors"
	"cratewatch/contexts/identity/user-service/ports"
)

type CreateUserCommand struct {
	Email       string
	DisplayName string
	Timezone    string
	Currency    string
}

type CreateUserUseCase struct {
	Users       ports.UserRepository
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func (uc CreateUserUseCase) Execute(ctx context.Context, cmd CreateUserCommand) (entities.User, error) {
	email := NormalizeEmail(cmd.Email)
	if !validEmail(email) {
		return entities.User{}, domainerrors.ErrInvalidEmail
	}

	userID, err := uc.IDGenerator.NewID(ctx)
	if err != nil {
		return entities.User{}, err
	}
	now := uc.Clock.Now()

	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = "USD"
	}

	user := entities.User{
		UserID:      userID,
		Email:       email,
		DisplayName: strings.TrimSpace(cmd.DisplayName),
		Timezone:    strings.TrimSpace(cmd.Timezone),
		Currency:    currency,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.Users.CreateUser(ctx, user); err != nil {
		return entities.User{}, err
	}

	if uc.Logger != nil {
		uc.Logger.Info("user created",
			"event", "user_created",
			"module", "identity/user-service",
			"layer", "application",
			"user_id", user.UserID,
		)
	}
	return user, nil
}

// NormalizeEmail lowercases and trims, matching the case-insensitive unique
// index on the users table.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.ContainsAny(email, " \t")
}
