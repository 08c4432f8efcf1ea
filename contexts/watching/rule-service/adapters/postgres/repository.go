package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"cratewatch/contexts/watching/rule-service/domain/entities"
	domainerrors "cratewatch/contexts/watching/rule-service/domain/errors"

	"gorm.io/gorm"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

type ruleModel struct {
	RuleID              string     `gorm:"column:rule_id;primaryKey"`
	UserID              string     `gorm:"column:user_id;index"`
	Name                string     `gorm:"column:name"`
	Query               []byte     `gorm:"column:query"`
	IsActive            bool       `gorm:"column:is_active"`
	PollIntervalSeconds int        `gorm:"column:poll_interval_seconds"`
	LastRunAt           *time.Time `gorm:"column:last_run_at"`
	NextRunAt           *time.Time `gorm:"column:next_run_at;index"`
	ClaimedAt           *time.Time `gorm:"column:claimed_at"`
	CreatedAt           time.Time  `gorm:"column:created_at"`
	UpdatedAt           time.Time  `gorm:"column:updated_at"`
}

func (ruleModel) TableName() string { return "watch_rules" }

func (r *Repository) CreateRule(ctx context.Context, rule entities.WatchRule) error {
	row, err := toModel(rule)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *Repository) GetRule(ctx context.Context, userID string, ruleID string) (entities.WatchRule, error) {
	var row ruleModel
	err := r.db.WithContext(ctx).
		Where("rule_id = ? AND user_id = ?", ruleID, userID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.WatchRule{}, domainerrors.ErrRuleNotFound
		}
		return entities.WatchRule{}, err
	}
	return row.toEntity()
}

func (r *Repository) GetRuleByID(ctx context.Context, ruleID string) (entities.WatchRule, error) {
	var row ruleModel
	err := r.db.WithContext(ctx).
		Where("rule_id = ?", ruleID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.WatchRule{}, domainerrors.ErrRuleNotFound
		}
		return entities.WatchRule{}, err
	}
	return row.toEntity()
}

func (r *Repository) UpdateRule(ctx context.Context, rule entities.WatchRule) error {
	row, err := toModel(rule)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).
		Model(&ruleModel{}).
		Where("rule_id = ? AND user_id = ?", rule.RuleID, rule.UserID).
		Updates(map[string]any{
			"name":                  row.Name,
			"query":                 row.Query,
			"is_active":             row.IsActive,
			"poll_interval_seconds": row.PollIntervalSeconds,
			"next_run_at":           row.NextRunAt,
			"updated_at":            row.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRuleNotFound
	}
	return nil
}

func (r *Repository) DeleteRule(ctx context.Context, userID string, ruleID string) error {
	result := r.db.WithContext(ctx).
		Where("rule_id = ? AND user_id = ?", ruleID, userID).
		Delete(&ruleModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRuleNotFound
	}
	return nil
}

func (r *Repository) ListRulesByUser(ctx context.Context, userID string, limit int) ([]entities.WatchRule, error) {
	var rows []ruleModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	return toEntities(rows)
}

func (r *Repository) ListActiveRulesByUser(ctx context.Context, userID string) ([]entities.WatchRule, error) {
	var rows []ruleModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active", userID).
		Order("created_at ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	return toEntities(rows)
}

// ClaimDueRules stamps claimed_at on a batch of due rules with
// FOR UPDATE SKIP LOCKED, so concurrent schedulers partition the batch
// instead of double-running rules.
func (r *Repository) ClaimDueRules(ctx context.Context, now time.Time, limit int) ([]entities.WatchRule, error) {
	var rows []ruleModel
	err := r.db.WithContext(ctx).Raw(`
		UPDATE watch_rules
		SET claimed_at = ?
		WHERE rule_id IN (
			SELECT rule_id FROM watch_rules
			WHERE is_active
			  AND (next_run_at IS NULL OR next_run_at <= ?)
			  AND claimed_at IS NULL
			ORDER BY next_run_at ASC NULLS FIRST, created_at ASC
			LIMIT ?
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *`,
		now.UTC(), now.UTC(), limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toEntities(rows)
}

func (r *Repository) RecordRunResult(ctx context.Context, ruleID string, lastRunAt *time.Time, nextRunAt time.Time) error {
	updates := map[string]any{
		"next_run_at": nextRunAt.UTC(),
		"claimed_at":  nil,
		"updated_at":  nextRunAt.UTC(),
	}
	if lastRunAt != nil {
		utc := lastRunAt.UTC()
		updates["last_run_at"] = utc
		updates["updated_at"] = utc
	}
	result := r.db.WithContext(ctx).
		Model(&ruleModel{}).
		Where("rule_id = ?", ruleID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRuleNotFound
	}
	return nil
}

// ReleaseExpiredClaims unsticks rules claimed by a scheduler that died
// before RecordRunResult could release them.
func (r *Repository) ReleaseExpiredClaims(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&ruleModel{}).
		Where("claimed_at IS NOT NULL AND claimed_at < ?", cutoff.UTC()).
		Update("claimed_at", nil)
	return result.RowsAffected, result.Error
}

func (r *Repository) DisableRulesForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&ruleModel{}).
		Where("user_id = ? AND is_active", userID).
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": now.UTC(),
		})
	return result.RowsAffected, result.Error
}

func toModel(rule entities.WatchRule) (ruleModel, error) {
	query, err := json.Marshal(rule.Query)
	if err != nil {
		return ruleModel{}, err
	}
	return ruleModel{
		RuleID:              rule.RuleID,
		UserID:              rule.UserID,
		Name:                rule.Name,
		Query:               query,
		IsActive:            rule.IsActive,
		PollIntervalSeconds: rule.PollIntervalSeconds,
		LastRunAt:           rule.LastRunAt,
		NextRunAt:           rule.NextRunAt,
		CreatedAt:           rule.CreatedAt.UTC(),
		UpdatedAt:           rule.UpdatedAt.UTC(),
	}, nil
}

func (m ruleModel) toEntity() (entities.WatchRule, error) {
	var query entities.RuleQuery
	if len(m.Query) > 0 {
		if err := json.Unmarshal(m.Query, &query); err != nil {
			return entities.WatchRule{}, err
		}
	}
	return entities.WatchRule{
		RuleID:              m.RuleID,
		UserID:              m.UserID,
		Name:                m.Name,
		Query:               query,
		IsActive:            m.IsActive,
		PollIntervalSeconds: m.PollIntervalSeconds,
		LastRunAt:           m.LastRunAt,
		NextRunAt:           m.NextRunAt,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}, nil
}

func toEntities(rows []ruleModel) ([]entities.WatchRule, error) {
	rules := make([]entities.WatchRule, 0, len(rows))
	for _, row := range rows {
		rule, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
