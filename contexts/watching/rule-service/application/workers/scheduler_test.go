package workers_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	providergateway "cratewatch/contexts/integrations/provider-gateway"
	gatewayports "cratewatch/contexts/integrations/provider-gateway/ports"
	listingmemory "cratewatch/contexts/marketplace/listing-service/adapters/memory"
	listingcommands "cratewatch/contexts/marketplace/listing-service/application/commands"
	notificationservice "cratewatch/contexts/notifications/notification-service"
	"cratewatch/contexts/watching/rule-service/adapters/memory"
	"cratewatch/contexts/watching/rule-service/application/workers"
	"cratewatch/contexts/watching/rule-service/domain/entities"
)

type noopStream struct{}

func (noopStream) PublishRealtime(context.Context, string, []byte) error { return nil }

type staticUsers struct{}

func (staticUsers) GetCurrency(context.Context, string) (string, error) { return "USD", nil }

type harness struct {
	rules     *memory.Store
	listings  *listingmemory.Store
	scheduler workers.Scheduler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	notif := notificationservice.NewInMemoryModule(noopStream{}, nil)
	rules := memory.NewStore()
	listings := listingmemory.NewStore()

	ingest := listingcommands.IngestListingsUseCase{
		Listings:    listings,
		Matches:     listings,
		Rules:       listings,
		Releases:    listings,
		Events:      notif.RecordEvent,
		Clock:       listings,
		IDGenerator: listings,
	}
	runner := workers.RuleRunner{
		Rules:   rules,
		Clients: providergateway.NewFactory(providergateway.ProviderConfig{MockEnabled: true}, nil),
		Ingest:  ingest,
		Users:   staticUsers{},
	}
	return &harness{
		rules:    rules,
		listings: listings,
		scheduler: workers.Scheduler{
			Rules:     rules,
			Runner:    runner,
			Clock:     rules,
			BatchSize: 10,
			JitterFn:  func(time.Duration) time.Duration { return 0 },
		},
	}
}

func (h *harness) seedRule(t *testing.T, ruleID string, interval int) entities.WatchRule {
	t.Helper()
	rule := entities.WatchRule{
		RuleID:              ruleID,
		UserID:              "user-1",
		Name:                ruleID,
		Query:               entities.RuleQuery{Keywords: []string{"boards", "canada"}, Sources: []string{"mock"}},
		IsActive:            true,
		PollIntervalSeconds: interval,
		CreatedAt:           h.rules.Now(),
		UpdatedAt:           h.rules.Now(),
	}
	if err := h.rules.CreateRule(context.Background(), rule); err != nil {
		t.Fatalf("seed rule: %v", err)
	}
	return rule
}

func TestSchedulerRunsDueRulesAndAdvancesNextRun(t *testing.T) {
	h := newHarness(t)
	h.rules.SetNow(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	h.seedRule(t, "rule-1", 300)

	summary, err := h.scheduler.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if summary.Claimed != 1 || summary.Processed != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	rule, err := h.rules.GetRuleByID(context.Background(), "rule-1")
	if err != nil {
		t.Fatalf("reload rule: %v", err)
	}
	if rule.LastRunAt == nil || rule.NextRunAt == nil {
		t.Fatalf("run bookkeeping missing: %+v", rule)
	}
	if !rule.NextRunAt.After(*rule.LastRunAt) {
		t.Fatal("next_run_at must be after last_run_at")
	}
	if rule.NextRunAt.Sub(*rule.LastRunAt) < 300*time.Second {
		t.Fatalf("next_run_at must be at least poll_interval ahead, got %v", rule.NextRunAt.Sub(*rule.LastRunAt))
	}

	// The mock provider returns deterministic listings; they must have been
	// ingested with initial snapshots.
	if summaryFetched := summaryFetchedListings(t, h); summaryFetched == 0 {
		t.Fatal("expected listings ingested from the mock provider")
	}

	// Rule no longer due until next_run_at passes.
	again, err := h.scheduler.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if again.Claimed != 0 {
		t.Fatalf("rule should not be due again, claimed %d", again.Claimed)
	}

	h.rules.SetNow(rule.NextRunAt.Add(time.Second))
	third, err := h.scheduler.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("third tick: %v", err)
	}
	if third.Processed != 1 {
		t.Fatalf("rule should be due after next_run_at, got %+v", third)
	}
}

// summaryFetchedListings looks up the first listing the deterministic mock
// provider returns for rule-1 and counts its snapshots.
func summaryFetchedListings(t *testing.T, h *harness) int {
	t.Helper()
	listing, found, err := h.listings.FindByProviderExternalID(context.Background(), "mock", firstMockExternalID(t, h))
	if err != nil {
		t.Fatalf("lookup listing: %v", err)
	}
	if !found {
		return 0
	}
	snapshots, err := h.listings.ListSnapshots(context.Background(), listing.ListingID)
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	return len(snapshots)
}

func firstMockExternalID(t *testing.T, h *harness) string {
	t.Helper()
	factory := providergateway.NewFactory(providergateway.ProviderConfig{MockEnabled: true}, nil)
	client, err := factory.Client("mock", "user-1", nil)
	if err != nil {
		t.Fatalf("mock client: %v", err)
	}
	listings, err := client.Search(context.Background(), gatewayports.SearchQuery{
		Keywords: []string{"boards", "canada"},
		Seed:     "rule-1",
	}, 50)
	if err != nil || len(listings) == 0 {
		t.Fatalf("mock search: %v", err)
	}
	return listings[0].ExternalID
}

func TestConcurrentSchedulersPartitionDueRules(t *testing.T) {
	h := newHarness(t)
	h.rules.SetNow(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	h.seedRule(t, "rule-1", 300)
	h.seedRule(t, "rule-2", 300)

	var processed int64
	group, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 2; i++ {
		group.Go(func() error {
			summary, err := h.scheduler.RunOnce(ctx)
			if err != nil {
				return err
			}
			atomic.AddInt64(&processed, int64(summary.Processed))
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		t.Fatalf("concurrent ticks: %v", err)
	}

	if got := atomic.LoadInt64(&processed); got != 2 {
		t.Fatalf("every due rule must be processed exactly once across workers, got %d", got)
	}
}

func TestSchedulerSkipsInactiveRules(t *testing.T) {
	h := newHarness(t)
	h.rules.SetNow(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	rule := h.seedRule(t, "rule-1", 300)

	rule.IsActive = false
	if err := h.rules.UpdateRule(context.Background(), rule); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	summary, err := h.scheduler.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if summary.Claimed != 0 {
		t.Fatalf("inactive rules must not be claimed: %+v", summary)
	}
}

func TestSchedulerReclaimsRuleAbandonedByDeadWorker(t *testing.T) {
	h := newHarness(t)
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	h.rules.SetNow(start)
	h.seedRule(t, "rule-1", 300)

	// A worker claims the rule and dies before recording a run result.
	claimed, err := h.rules.ClaimDueRules(context.Background(), start, 10)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("claim: n=%d err=%v", len(claimed), err)
	}

	// Inside the claim TTL the rule stays off-limits.
	summary, err := h.scheduler.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if summary.Claimed != 0 {
		t.Fatalf("held claim must not be re-claimed early, got %+v", summary)
	}

	// A day later the abandoned claim has expired and the rule runs again.
	h.rules.SetNow(start.Add(24 * time.Hour))
	summary, err = h.scheduler.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("tick after expiry: %v", err)
	}
	if summary.Claimed != 1 || summary.Processed != 1 {
		t.Fatalf("expected abandoned rule to run, got %+v", summary)
	}
}
