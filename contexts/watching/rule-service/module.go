package ruleservice

import (
	"context"
	"log/slog"
	"time"

	gatewayports "cratewatch/contexts/integrations/provider-gateway/ports"
	listingservices "cratewatch/contexts/marketplace/listing-service/domain/services"
	listingports "cratewatch/contexts/marketplace/listing-service/ports"
	notifports "cratewatch/contexts/notifications/notification-service/ports"
	"cratewatch/contexts/watching/rule-service/adapters/memory"
	"cratewatch/contexts/watching/rule-service/application/commands"
	"cratewatch/contexts/watching/rule-service/application/queries"
	"cratewatch/contexts/watching/rule-service/application/workers"
	"cratewatch/contexts/watching/rule-service/ports"
	"cratewatch/internal/platform/metrics"
)

// FilterDirectory adapts the rule repository into the listing service's
// matcher input.
type FilterDirectory struct {
	Rules ports.RuleRepository
}

func (d FilterDirectory) ActiveFilters(ctx context.Context, userID string) ([]listingservices.RuleFilter, error) {
	rules, err := d.Rules.ListActiveRulesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	filters := make([]listingservices.RuleFilter, 0, len(rules))
	for _, rule := range rules {
		filters = append(filters, listingservices.RuleFilter{
			RuleID:   rule.RuleID,
			UserID:   rule.UserID,
			Sources:  rule.Query.Sources,
			Keywords: rule.Query.Keywords,
			MaxPrice: rule.Query.MaxPrice,
			Currency: rule.Query.Currency,
		})
	}
	return filters, nil
}

// Module is the composition surface for the rule service.
type Module struct {
	CreateRule    commands.CreateRuleUseCase
	UpdateRule    commands.UpdateRuleUseCase
	SetRuleActive commands.SetRuleActiveUseCase
	DeleteRule    commands.DeleteRuleUseCase
	GetRule       queries.GetRuleUseCase
	ListRules     queries.ListRulesUseCase
	Runner        workers.RuleRunner
	Scheduler     workers.Scheduler
	Filters       FilterDirectory
	Store         *memory.Store
}

type Dependencies struct {
	Rules       ports.RuleRepository
	Events      notifports.EventRecorder
	Clients     workers.SearchClientFactory
	Sink        gatewayports.RequestLogSink
	Ingest      ports.ListingIngestor
	Users       ports.UserDirectory
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	SearchLimit int
	BatchSize   int
	Jitter      time.Duration
	RetryDelay  time.Duration
	ClaimTTL    time.Duration
	Metrics     *metrics.SchedulerMetrics
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	runner := workers.RuleRunner{
		Rules:       deps.Rules,
		Clients:     deps.Clients,
		Sink:        deps.Sink,
		Ingest:      deps.Ingest,
		Users:       deps.Users,
		SearchLimit: deps.SearchLimit,
		Logger:      deps.Logger,
	}

	return Module{
		CreateRule: commands.CreateRuleUseCase{
			Rules:       deps.Rules,
			Events:      deps.Events,
			Clock:       deps.Clock,
			IDGenerator: deps.IDGenerator,
			Logger:      deps.Logger,
		},
		UpdateRule: commands.UpdateRuleUseCase{
			Rules:  deps.Rules,
			Events: deps.Events,
			Clock:  deps.Clock,
			Logger: deps.Logger,
		},
		SetRuleActive: commands.SetRuleActiveUseCase{
			Rules:  deps.Rules,
			Events: deps.Events,
			Clock:  deps.Clock,
			Logger: deps.Logger,
		},
		DeleteRule: commands.DeleteRuleUseCase{
			Rules:  deps.Rules,
			Events: deps.Events,
			Logger: deps.Logger,
		},
		GetRule:   queries.GetRuleUseCase{Rules: deps.Rules},
		ListRules: queries.ListRulesUseCase{Rules: deps.Rules},
		Runner:    runner,
		Scheduler: workers.Scheduler{
			Rules:      deps.Rules,
			Runner:     runner,
			Clock:      deps.Clock,
			BatchSize:  deps.BatchSize,
			Jitter:     deps.Jitter,
			RetryDelay: deps.RetryDelay,
			ClaimTTL:   deps.ClaimTTL,
			Metrics:    deps.Metrics,
			Logger:     deps.Logger,
		},
		Filters: FilterDirectory{Rules: deps.Rules},
	}
}

// NewInMemoryModule wires the service against the in-memory rule store.
func NewInMemoryModule(deps Dependencies) Module {
	store := memory.NewStore()
	deps.Rules = store
	if deps.Clock == nil {
		deps.Clock = store
	}
	if deps.IDGenerator == nil {
		deps.IDGenerator = store
	}
	module := NewModule(deps)
	module.Store = store
	return module
}

var _ listingports.RuleDirectory = FilterDirectory{}
