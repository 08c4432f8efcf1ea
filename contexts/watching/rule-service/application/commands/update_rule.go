package commands

import (
	"context"
	"log/slog"
	"strings"

	notifentities "cratewatch/contexts/notifications/notification-service/domain/entities"
	notifports "cratewatch/contexts/notifications/notification-service/ports"
	"cratewatch/contexts/watching/rule-service/domain/entities"
	domainerrors "cratewatch/contexts/watching/rule-service/domain/errors"
	"cratewatch/contexts/watching/rule-service/ports"
)

// UpdateRuleCommand carries partial updates. Nil fields keep current values.
type UpdateRuleCommand struct {
	UserID              string
	RuleID              string
	Name                *string
	Query               *entities.RuleQuery
	PollIntervalSeconds *int
}

type UpdateRuleUseCase struct {
	Rules  ports.RuleRepository
	Events notifports.EventRecorder
	Clock  ports.Clock
	Logger *slog.Logger
}

func (uc UpdateRuleUseCase) Execute(ctx context.Context, cmd UpdateRuleCommand) (entities.WatchRule, error) {
	rule, err := uc.Rules.GetRule(ctx, cmd.UserID, cmd.RuleID)
	if err != nil {
		return entities.WatchRule{}, err
	}

	if cmd.Name != nil {
		if strings.TrimSpace(*cmd.Name) == "" {
			return entities.WatchRule{}, domainerrors.ErrInvalidRuleName
		}
		rule.Name = strings.TrimSpace(*cmd.Name)
	}
	if cmd.PollIntervalSeconds != nil {
		if !entities.ValidPollInterval(*cmd.PollIntervalSeconds) {
			return entities.WatchRule{}, domainerrors.ErrInvalidPollInterval
		}
		rule.PollIntervalSeconds = *cmd.PollIntervalSeconds
	}
	if cmd.Query != nil {
		query := *cmd.Query
		if err := query.Validate(); err != nil {
			return entities.WatchRule{}, err
		}
		rule.Query = query
	}

	rule.UpdatedAt = uc.Clock.Now()
	if err := uc.Rules.UpdateRule(ctx, rule); err != nil {
		return entities.WatchRule{}, err
	}

	recordRuleEvent(ctx, uc.Events, uc.Logger, notifentities.EventRuleUpdated, rule)
	return rule, nil
}
