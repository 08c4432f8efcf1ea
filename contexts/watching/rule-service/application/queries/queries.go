package queries

import (
	"context"

	"cratewatch/contexts/watching/rule-service/domain/entities"
	"cratewatch/contexts/watching/rule-service/ports"
)

const defaultLimit = 50

type GetRuleUseCase struct {
	Rules ports.RuleRepository
}

func (uc GetRuleUseCase) Execute(ctx context.Context, userID string, ruleID string) (entities.WatchRule, error) {
	return uc.Rules.GetRule(ctx, userID, ruleID)
}

type ListRulesUseCase struct {
	Rules ports.RuleRepository
}

func (uc ListRulesUseCase) Execute(ctx context.Context, userID string, limit int) ([]entities.WatchRule, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	return uc.Rules.ListRulesByUser(ctx, userID, limit)
}
