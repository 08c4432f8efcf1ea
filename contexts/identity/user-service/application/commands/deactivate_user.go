package commands

import (
	"context"
	"log/slog"

	"cratewatch/contexts/identity/user-service/domain/entities"
	"cratewatch/contexts/identity/user-service/ports"
)

// DeactivateUserUseCase retains the account but flips it inactive, disabling
// all of the user's active watch rules as a side effect so the scheduler
// stops polling on their behalf.
type DeactivateUserUseCase struct {
	Users  ports.UserRepository
	Rules  ports.RuleDisabler
	Clock  ports.Clock
	Logger *slog.Logger
}

func (uc DeactivateUserUseCase) Execute(ctx context.Context, userID string) (entities.User, error) {
	user, err := uc.Users.GetUser(ctx, userID)
	if err != nil {
		return entities.User{}, err
	}
	if !user.IsActive {
		return user, nil
	}

	now := uc.Clock.Now()
	user.IsActive = false
	user.UpdatedAt = now
	if err := uc.Users.UpdateUser(ctx, user); err != nil {
		return entities.User{}, err
	}

	var disabled int64
	if uc.Rules != nil {
		disabled, err = uc.Rules.DisableRulesForUser(ctx, userID, now)
		if err != nil {
			// The account is already inactive; rule disabling is reported
			// but does not roll that back.
			uc.logger().Warn("rule disabling failed during deactivation",
				"event", "user_deactivation_rules_failed",
				"module", "identity/user-service",
				"layer", "application",
				"user_id", userID,
				"error", err.Error(),
			)
			return user, nil
		}
	}

	uc.logger().Info("user deactivated",
		"event", "user_deactivated",
		"module", "identity/user-service",
		"layer", "application",
		"user_id", userID,
		"rules_disabled", disabled,
	)
	return user, nil
}

func (uc DeactivateUserUseCase) logger() *slog.Logger {
	if uc.Logger != nil {
		return uc.Logger
	}
	return slog.Default()
}
