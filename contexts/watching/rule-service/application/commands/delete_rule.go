package commands

import (
	"context"
	"log/slog"

	notifentities "cratewatch/contexts/notifications/notification-service/domain/entities"
	notifports "cratewatch/contexts/notifications/notification-service/ports"
	"cratewatch/contexts/watching/rule-service/ports"
)

type DeleteRuleUseCase struct {
	Rules  ports.RuleRepository
	Events notifports.EventRecorder
	Logger *slog.Logger
}

func (uc DeleteRuleUseCase) Execute(ctx context.Context, userID string, ruleID string) error {
	rule, err := uc.Rules.GetRule(ctx, userID, ruleID)
	if err != nil {
		return err
	}
	if err := uc.Rules.DeleteRule(ctx, userID, ruleID); err != nil {
		return err
	}
	recordRuleEvent(ctx, uc.Events, uc.Logger, notifentities.EventRuleDeleted, rule)
	return nil
}
