package ports

import (
	"context"
	"time"

	"cratewatch/contexts/identity/user-service/domain/entities"
)

// UserRepository owns account rows. Emails are stored lowercased; CreateUser
// surfaces ErrDuplicateEmail on the unique index.
type UserRepository interface {
	CreateUser(ctx context.Context, user entities.User) error
	GetUser(ctx context.Context, userID string) (entities.User, error)
	GetUserByEmail(ctx context.Context, email string) (entities.User, error)
	UpdateUser(ctx context.Context, user entities.User) error
}

// RuleDisabler is the deactivation side effect: flip every active rule off.
// Implemented by the rule service repository.
type RuleDisabler interface {
	DisableRulesForUser(ctx context.Context, userID string, now time.Time) (int64, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
