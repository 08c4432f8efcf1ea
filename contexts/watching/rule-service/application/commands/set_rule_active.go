package commands

import (
	"context"
	"log/slog"

	notifentities "cratewatch/contexts/notifications/notification-service/domain/entities"
	notifports "cratewatch/contexts/notifications/notification-service/ports"
	"cratewatch/contexts/watching/rule-service/domain/entities"
	"cratewatch/contexts/watching/rule-service/ports"
)

// SetRuleActiveUseCase flips a rule's soft-delete flag. Enabling clears
// next_run_at so the scheduler picks the rule up on the next tick.
type SetRuleActiveUseCase struct {
	Rules  ports.RuleRepository
	Events notifports.EventRecorder
	Clock  ports.Clock
	Logger *slog.Logger
}

func (uc SetRuleActiveUseCase) Execute(ctx context.Context, userID string, ruleID string, active bool) (entities.WatchRule, error) {
	rule, err := uc.Rules.GetRule(ctx, userID, ruleID)
	if err != nil {
		return entities.WatchRule{}, err
	}
	if rule.IsActive == active {
		return rule, nil
	}

	rule.IsActive = active
	rule.UpdatedAt = uc.Clock.Now()
	if active {
		rule.NextRunAt = nil
	}
	if err := uc.Rules.UpdateRule(ctx, rule); err != nil {
		return entities.WatchRule{}, err
	}

	eventType := notifentities.EventRuleDisabled
	if active {
		eventType = notifentities.EventRuleEnabled
	}
	recordRuleEvent(ctx, uc.Events, uc.Logger, eventType, rule)
	return rule, nil
}
