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

type CreateRuleCommand struct {
	UserID              string
	Name                string
	Query               entities.RuleQuery
	PollIntervalSeconds int
}

type CreateRuleUseCase struct {
	Rules       ports.RuleRepository
	Events      notifports.EventRecorder
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func (uc CreateRuleUseCase) Execute(ctx context.Context, cmd CreateRuleCommand) (entities.WatchRule, error) {
	if strings.TrimSpace(cmd.Name) == "" {
		return entities.WatchRule{}, domainerrors.ErrInvalidRuleName
	}
	if !entities.ValidPollInterval(cmd.PollIntervalSeconds) {
		return entities.WatchRule{}, domainerrors.ErrInvalidPollInterval
	}
	if err := cmd.Query.Validate(); err != nil {
		return entities.WatchRule{}, err
	}

	ruleID, err := uc.IDGenerator.NewID(ctx)
	if err != nil {
		return entities.WatchRule{}, err
	}
	now := uc.Clock.Now()

	rule := entities.WatchRule{
		RuleID:              ruleID,
		UserID:              cmd.UserID,
		Name:                strings.TrimSpace(cmd.Name),
		Query:               cmd.Query,
		IsActive:            true,
		PollIntervalSeconds: cmd.PollIntervalSeconds,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := uc.Rules.CreateRule(ctx, rule); err != nil {
		return entities.WatchRule{}, err
	}

	recordRuleEvent(ctx, uc.Events, uc.Logger, notifentities.EventRuleCreated, rule)
	return rule, nil
}

func recordRuleEvent(ctx context.Context, events notifports.EventRecorder, logger *slog.Logger, eventType notifentities.EventType, rule entities.WatchRule) {
	if events == nil {
		return
	}
	_, _, err := events.Record(ctx, notifports.EventRecord{
		UserID: rule.UserID,
		Type:   eventType,
		RuleID: rule.RuleID,
		Payload: map[string]any{
			"rule_id":   rule.RuleID,
			"name":      rule.Name,
			"sources":   rule.Query.Sources,
			"is_active": rule.IsActive,
		},
	})
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("event record failed",
			"event", "rule_event_record_failed",
			"module", "watching/rule-service",
			"layer", "application",
			"event_type", string(eventType),
			"rule_id", rule.RuleID,
			"error", err.Error(),
		)
	}
}
