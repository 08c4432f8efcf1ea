package workers

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"cratewatch/contexts/watching/rule-service/ports"
	"cratewatch/internal/platform/metrics"
)

// SchedulerSummary is one tick's outcome.
type SchedulerSummary struct {
	Claimed   int
	Processed int
	Failed    int
}

// Scheduler claims due rules and runs them through the rule runner. Rule
// failures reschedule the rule on a short delay and never abort the tick.
type Scheduler struct {
	Rules      ports.RuleRepository
	Runner     RuleRunner
	Clock      ports.Clock
	BatchSize  int
	Jitter     time.Duration
	RetryDelay time.Duration
	ClaimTTL   time.Duration
	Metrics    *metrics.SchedulerMetrics
	JitterFn   ports.Jitter
	Logger     *slog.Logger
}

func (s Scheduler) RunOnce(ctx context.Context) (SchedulerSummary, error) {
	summary := SchedulerSummary{}

	batch := s.BatchSize
	if batch <= 0 {
		batch = 20
	}
	now := s.Clock.Now()

	// Sweep claims abandoned by a scheduler that died between ClaimDueRules
	// and RecordRunResult, so those rules become due again.
	if released, err := s.Rules.ReleaseExpiredClaims(ctx, now.Add(-s.claimTTL())); err != nil {
		s.logger().Error("claim expiry sweep failed",
			"event", "scheduler_claim_expiry_failed",
			"module", "watching/rule-service",
			"layer", "worker",
			"error", err.Error(),
		)
	} else if released > 0 {
		s.logger().Info("claim expiry sweep completed",
			"event", "scheduler_claim_expiry_completed",
			"module", "watching/rule-service",
			"layer", "worker",
			"released_count", released,
		)
	}

	rules, err := s.Rules.ClaimDueRules(ctx, now, batch)
	if err != nil {
		return summary, err
	}
	summary.Claimed = len(rules)

	for _, rule := range rules {
		if rule.NextRunAt != nil {
			s.Metrics.ObserveLag(now.Sub(*rule.NextRunAt).Seconds())
		}

		runSummary, runErr := s.Runner.RunRule(ctx, rule.RuleID)
		finished := s.Clock.Now()

		if runErr != nil {
			summary.Failed++
			s.Metrics.ObserveFailed()
			nextRun := finished.Add(s.retryDelay() + s.jitter(s.retryDelay()))
			if err := s.Rules.RecordRunResult(ctx, rule.RuleID, nil, nextRun); err != nil {
				s.logger().Error("run result write failed",
					"event", "scheduler_record_failed",
					"module", "watching/rule-service",
					"layer", "worker",
					"rule_id", rule.RuleID,
					"error", err.Error(),
				)
			}
			s.logger().Warn("rule run failed",
				"event", "scheduler_rule_failed",
				"module", "watching/rule-service",
				"layer", "worker",
				"rule_id", rule.RuleID,
				"error", runErr.Error(),
			)
			continue
		}

		summary.Processed++
		s.Metrics.ObserveProcessed()

		interval := time.Duration(rule.PollIntervalSeconds) * time.Second
		nextRun := finished.Add(interval + s.jitter(s.Jitter))
		if err := s.Rules.RecordRunResult(ctx, rule.RuleID, &finished, nextRun); err != nil {
			s.logger().Error("run result write failed",
				"event", "scheduler_record_failed",
				"module", "watching/rule-service",
				"layer", "worker",
				"rule_id", rule.RuleID,
				"error", err.Error(),
			)
			continue
		}

		s.logger().Info("rule run completed",
			"event", "scheduler_rule_completed",
			"module", "watching/rule-service",
			"layer", "worker",
			"rule_id", rule.RuleID,
			"fetched", runSummary.Fetched,
			"listings_created", runSummary.ListingsCreated,
			"snapshots_created", runSummary.SnapshotsCreated,
			"matches_created", runSummary.MatchesCreated,
		)
	}
	return summary, nil
}

func (s Scheduler) jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	if s.JitterFn != nil {
		return s.JitterFn(max)
	}
	return time.Duration(rand.Int63n(int64(max)))
}

func (s Scheduler) retryDelay() time.Duration {
	if s.RetryDelay > 0 {
		return s.RetryDelay
	}
	return time.Minute
}

func (s Scheduler) claimTTL() time.Duration {
	if s.ClaimTTL > 0 {
		return s.ClaimTTL
	}
	return 10 * time.Minute
}

func (s Scheduler) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
