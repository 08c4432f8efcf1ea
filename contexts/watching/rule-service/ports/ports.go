package ports

import (
	"context"
	"time"

	listingcommands "cratewatch/contexts/marketplace/listing-service/application/commands"
	"cratewatch/contexts/watching/rule-service/domain/entities"
)

// RuleRepository owns watch rule rows and the scheduler's claim surface.
type RuleRepository interface {
	CreateRule(ctx context.Context, rule entities.WatchRule) error
	// GetRule is user-scoped: a rule owned by another user reads as not
	// found.
	GetRule(ctx context.Context, userID string, ruleID string) (entities.WatchRule, error)
	GetRuleByID(ctx context.Context, ruleID string) (entities.WatchRule, error)
	UpdateRule(ctx context.Context, rule entities.WatchRule) error
	// DeleteRule removes the row and cascades matches. User-scoped.
	DeleteRule(ctx context.Context, userID string, ruleID string) error
	ListRulesByUser(ctx context.Context, userID string, limit int) ([]entities.WatchRule, error)
	ListActiveRulesByUser(ctx context.Context, userID string) ([]entities.WatchRule, error)
	// ClaimDueRules selects at most limit due active rules ordered by
	// next_run_at ASC NULLS FIRST, created_at ASC and claims them so
	// concurrent schedulers skip them within the tick.
	ClaimDueRules(ctx context.Context, now time.Time, limit int) ([]entities.WatchRule, error)
	// RecordRunResult writes the post-run bookkeeping and releases the
	// claim. lastRunAt is nil on failure (it stays unchanged).
	RecordRunResult(ctx context.Context, ruleID string, lastRunAt *time.Time, nextRunAt time.Time) error
	// ReleaseExpiredClaims clears claims stamped before cutoff, making the
	// rules claimable again after a worker died mid-run. Returns how many
	// claims were released.
	ReleaseExpiredClaims(ctx context.Context, cutoff time.Time) (int64, error)
	// DisableRulesForUser is the deactivation cascade. Returns how many
	// rules were flipped.
	DisableRulesForUser(ctx context.Context, userID string, now time.Time) (int64, error)
}

// ListingIngestor is the listing service's ingest pipeline.
type ListingIngestor interface {
	Execute(ctx context.Context, cmd listingcommands.IngestCommand) (listingcommands.IngestSummary, error)
}

// UserDirectory resolves per-user defaults the runner needs.
type UserDirectory interface {
	GetCurrency(ctx context.Context, userID string) (string, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// Jitter returns a non-negative duration below max, 0 when max <= 0.
// A func type so tests can pin it.
type Jitter func(max time.Duration) time.Duration
