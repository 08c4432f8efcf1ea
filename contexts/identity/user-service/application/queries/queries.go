package queries

import (
	"context"

	"cratewatch/contexts/identity/user-service/domain/entities"
	"cratewatch/contexts/identity/user-service/ports"
)

type GetUserUseCase struct {
	Users ports.UserRepository
}

func (uc GetUserUseCase) Execute(ctx context.Context, userID string) (entities.User, error) {
	return uc.Users.GetUser(ctx, userID)
}

type GetUserByEmailUseCase struct {
	Users ports.UserRepository
}

func (uc GetUserByEmailUseCase) Execute(ctx context.Context, email string) (entities.User, error) {
	return uc.Users.GetUserByEmail(ctx, email)
}
