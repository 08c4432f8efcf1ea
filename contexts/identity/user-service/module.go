package userservice

import (
	"context"
	"log/slog"

	"cratewatch/contexts/identity/user-service/adapters/memory"
	"cratewatch/contexts/identity/user-service/application/commands"
	"cratewatch/contexts/identity/user-service/application/queries"
	"cratewatch/contexts/identity/user-service/ports"
	notifports "cratewatch/contexts/notifications/notification-service/ports"
	ruleports "cratewatch/contexts/watching/rule-service/ports"
)

// Directory serves account attributes to the other contexts: currency for
// the rule runner, timezone for delivery quiet hours. Missing or inactive
// users answer with zero values so callers fall back to their defaults.
type Directory struct {
	Users ports.UserRepository
}

func (d Directory) GetCurrency(ctx context.Context, userID string) (string, error) {
	user, err := d.Users.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Currency, nil
}

func (d Directory) GetTimezone(ctx context.Context, userID string) (string, error) {
	user, err := d.Users.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Timezone, nil
}

// Module is the composition surface for the user service.
type Module struct {
	CreateUser     commands.CreateUserUseCase
	UpdateUser     commands.UpdateUserUseCase
	DeactivateUser commands.DeactivateUserUseCase
	GetUser        queries.GetUserUseCase
	GetUserByEmail queries.GetUserByEmailUseCase
	Directory      Directory
	Store          *memory.Store
}

type Dependencies struct {
	Users       ports.UserRepository
	Rules       ports.RuleDisabler
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		CreateUser: commands.CreateUserUseCase{
			Users:       deps.Users,
			Clock:       deps.Clock,
			IDGenerator: deps.IDGenerator,
			Logger:      deps.Logger,
		},
		UpdateUser: commands.UpdateUserUseCase{
			Users:  deps.Users,
			Clock:  deps.Clock,
			Logger: deps.Logger,
		},
		DeactivateUser: commands.DeactivateUserUseCase{
			Users:  deps.Users,
			Rules:  deps.Rules,
			Clock:  deps.Clock,
			Logger: deps.Logger,
		},
		GetUser:        queries.GetUserUseCase{Users: deps.Users},
		GetUserByEmail: queries.GetUserByEmailUseCase{Users: deps.Users},
		Directory:      Directory{Users: deps.Users},
	}
}

// NewInMemoryModule wires the service against the in-memory user store.
func NewInMemoryModule(rules ports.RuleDisabler, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Users:       store,
		Rules:       rules,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	return module
}

var (
	_ notifports.UserDirectory = Directory{}
	_ ruleports.UserDirectory  = Directory{}
)
