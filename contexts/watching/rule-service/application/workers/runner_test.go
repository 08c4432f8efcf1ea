package workers_test

import (
	"context"
	"errors"
	"testing"
	"time"

	gatewaymemory "cratewatch/contexts/integrations/provider-gateway/adapters/memory"
	gatewayports "cratewatch/contexts/integrations/provider-gateway/ports"
	listingmemory "cratewatch/contexts/marketplace/listing-service/adapters/memory"
	listingcommands "cratewatch/contexts/marketplace/listing-service/application/commands"
	notificationservice "cratewatch/contexts/notifications/notification-service"
	"cratewatch/contexts/watching/rule-service/adapters/memory"
	"cratewatch/contexts/watching/rule-service/application/workers"
	"cratewatch/contexts/watching/rule-service/domain/entities"
)

type silentFailClient struct{}

func (silentFailClient) Provider() string { return "discogs" }

func (silentFailClient) Search(context.Context, gatewayports.SearchQuery, int) ([]gatewayports.Listing, error) {
	return nil, errors.New("connection refused")
}

type healthyClient struct{}

func (healthyClient) Provider() string { return "ebay" }

func (healthyClient) Search(_ context.Context, _ gatewayports.SearchQuery, _ int) ([]gatewayports.Listing, error) {
	return []gatewayports.Listing{{
		Provider:   "ebay",
		ExternalID: "v1|1|0",
		URL:        "https://www.ebay.com/itm/1",
		Title:      "Boards of Canada - Music Has the Right to Children",
		Price:      30,
		Currency:   "USD",
	}}, nil
}

type splitFactory struct{}

func (splitFactory) Client(provider string, _ string, _ gatewayports.RequestLogSink) (gatewayports.SearchClient, error) {
	if provider == "discogs" {
		return silentFailClient{}, nil
	}
	return healthyClient{}, nil
}

func TestRunnerIsolatesFailingSourceAndLogsFallbackRow(t *testing.T) {
	notif := notificationservice.NewInMemoryModule(noopStream{}, nil)
	rules := memory.NewStore()
	listings := listingmemory.NewStore()
	sink := gatewaymemory.NewStore()

	rule := entities.WatchRule{
		RuleID:              "rule-1",
		UserID:              "user-1",
		Name:                "boc",
		Query:               entities.RuleQuery{Keywords: []string{"boards"}, Sources: []string{"discogs", "ebay"}},
		IsActive:            true,
		PollIntervalSeconds: 300,
		CreatedAt:           time.Now().UTC(),
	}
	if err := rules.CreateRule(context.Background(), rule); err != nil {
		t.Fatalf("seed rule: %v", err)
	}

	runner := workers.RuleRunner{
		Rules:   rules,
		Clients: splitFactory{},
		Sink:    sink,
		Ingest: listingcommands.IngestListingsUseCase{
			Listings:    listings,
			Matches:     listings,
			Rules:       listings,
			Releases:    listings,
			Events:      notif.RecordEvent,
			Clock:       listings,
			IDGenerator: listings,
		},
		Users: staticUsers{},
	}

	summary, err := runner.RunRule(context.Background(), "rule-1")
	if err != nil {
		t.Fatalf("run rule: %v", err)
	}
	if summary.Fetched != 1 || summary.ListingsCreated != 1 {
		t.Fatalf("healthy source should still ingest: %+v", summary)
	}

	// The failing client logged nothing itself, so the runner emits one
	// synthetic fallback row.
	requests := sink.Requests()
	if len(requests) != 1 {
		t.Fatalf("expected one fallback request row, got %d", len(requests))
	}
	if requests[0].Provider != "discogs" || requests[0].Error == "" {
		t.Fatalf("unexpected fallback row: %+v", requests[0])
	}
	if requests[0].Meta["fallback"] != true {
		t.Fatalf("fallback marker missing: %+v", requests[0].Meta)
	}
}

func TestRunnerInactiveRuleIsZeroSummary(t *testing.T) {
	rules := memory.NewStore()
	rule := entities.WatchRule{
		RuleID:   "rule-1",
		UserID:   "user-1",
		Name:     "idle",
		Query:    entities.RuleQuery{Keywords: []string{"x"}, Sources: []string{"mock"}},
		IsActive: false,
	}
	if err := rules.CreateRule(context.Background(), rule); err != nil {
		t.Fatalf("seed rule: %v", err)
	}

	runner := workers.RuleRunner{Rules: rules, Clients: splitFactory{}}
	summary, err := runner.RunRule(context.Background(), "rule-1")
	if err != nil {
		t.Fatalf("run rule: %v", err)
	}
	if summary.Fetched != 0 || summary.ListingsCreated != 0 || summary.MatchesCreated != 0 {
		t.Fatalf("inactive rule must be a zero summary: %+v", summary)
	}
}
