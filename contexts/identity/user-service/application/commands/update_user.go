package commands

import (
	"context"
	"log/slog"
	"strings"

	"cratewatch/contexts/identity/user-service/domain/entities"
	"cratewatch/contexts/identity/user-service/ports"
)

// UpdateUserCommand is a partial update; nil fields keep current values.
// Email is immutable here.
type UpdateUserCommand struct {
	UserID      string
	DisplayName *string
	Timezone    *string
	Currency    *string
}

type UpdateUserUseCase struct {
	Users  ports.UserRepository
	Clock  ports.Clock
	Logger *slog.Logger
}

func (uc UpdateUserUseCase) Execute(ctx context.Context, cmd UpdateUserCommand) (entities.User, error) {
	user, err := uc.Users.GetUser(ctx, cmd.UserID)
	if err != nil {
		return entities.User{}, err
	}

	if cmd.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*cmd.DisplayName)
	}
	if cmd.Timezone != nil {
		user.Timezone = strings.TrimSpace(*cmd.Timezone)
	}
	if cmd.Currency != nil {
		if currency := strings.ToUpper(strings.TrimSpace(*cmd.Currency)); currency != "" {
			user.Currency = currency
		}
	}
	user.UpdatedAt = uc.Clock.Now()

	if err := uc.Users.UpdateUser(ctx, user); err != nil {
		return entities.User{}, err
	}
	return user, nil
}
