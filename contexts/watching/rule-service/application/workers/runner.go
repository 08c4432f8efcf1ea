package workers

import (
	"context"
	"log/slog"
	"strings"

	gatewayports "cratewatch/contexts/integrations/provider-gateway/ports"
	listingcommands "cratewatch/contexts/marketplace/listing-service/application/commands"
	"cratewatch/contexts/watching/rule-service/ports"
)

const defaultSearchLimit = 50

// SearchClientFactory builds a provider client bound to a user and sink.
// Implemented by the provider gateway.
type SearchClientFactory interface {
	Client(provider string, userID string, sink gatewayports.RequestLogSink) (gatewayports.SearchClient, error)
}

// RunSummary is one rule run's outcome.
type RunSummary struct {
	RuleID           string
	Fetched          int
	ListingsCreated  int
	SnapshotsCreated int
	MatchesCreated   int
}

// RuleRunner executes a single rule: one provider search per source, feeding
// results into the listing ingest pipeline. Provider failures are isolated
// per source.
type RuleRunner struct {
	Rules       ports.RuleRepository
	Clients     SearchClientFactory
	Sink        gatewayports.RequestLogSink
	Ingest      ports.ListingIngestor
	Users       ports.UserDirectory
	SearchLimit int
	Logger      *slog.Logger
}

func (r RuleRunner) RunRule(ctx context.Context, ruleID string) (RunSummary, error) {
	summary := RunSummary{RuleID: ruleID}

	rule, err := r.Rules.GetRuleByID(ctx, ruleID)
	if err != nil {
		return summary, err
	}
	if !rule.IsActive {
		return summary, nil
	}

	userCurrency := "USD"
	if r.Users != nil {
		if currency, err := r.Users.GetCurrency(ctx, rule.UserID); err == nil && currency != "" {
			userCurrency = currency
		}
	}

	limit := r.SearchLimit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	for _, source := range dedupeSources(rule.Query.Sources) {
		counting := &gatewayports.CountingSink{Sink: r.Sink}

		client, err := r.Clients.Client(source, rule.UserID, counting)
		if err != nil {
			r.recordSourceFailure(ctx, rule.UserID, source, counting, err)
			continue
		}

		listings, err := client.Search(ctx, gatewayports.SearchQuery{
			Keywords: rule.Query.Keywords,
			Seed:     rule.RuleID,
		}, limit)
		if err != nil {
			r.recordSourceFailure(ctx, rule.UserID, source, counting, err)
			continue
		}
		summary.Fetched += len(listings)

		ingested, err := r.Ingest.Execute(ctx, listingcommands.IngestCommand{
			UserID:       rule.UserID,
			UserCurrency: userCurrency,
			Listings:     toIngestPayloads(listings),
		})
		if err != nil {
			r.logger().Warn("ingest batch failed",
				"event", "rule_ingest_failed",
				"module", "watching/rule-service",
				"layer", "worker",
				"rule_id", rule.RuleID,
				"source", source,
				"error", err.Error(),
			)
			continue
		}
		summary.ListingsCreated += ingested.ListingsCreated
		summary.SnapshotsCreated += ingested.SnapshotsCreated
		summary.MatchesCreated += ingested.MatchesCreated
	}
	return summary, nil
}

// recordSourceFailure logs the skipped source and, when the provider client
// wrote no request rows itself, emits one synthetic fallback row.
func (r RuleRunner) recordSourceFailure(ctx context.Context, userID string, source string, counting *gatewayports.CountingSink, cause error) {
	r.logger().Warn("provider source skipped",
		"event", "rule_source_skipped",
		"module", "watching/rule-service",
		"layer", "worker",
		"provider", source,
		"error", cause.Error(),
	)
	if counting.Count() > 0 || r.Sink == nil {
		return
	}
	entry := gatewayports.RequestLog{
		UserID:   userID,
		Provider: source,
		Endpoint: "search",
		Method:   "GET",
		Error:    cause.Error(),
		Meta:     map[string]any{"fallback": true},
	}
	if err := r.Sink.Record(ctx, entry); err != nil {
		r.logger().Warn("fallback request log failed",
			"event", "rule_fallback_log_failed",
			"module", "watching/rule-service",
			"layer", "worker",
			"provider", source,
			"error", err.Error(),
		)
	}
}

func dedupeSources(sources []string) []string {
	seen := make(map[string]struct{}, len(sources))
	out := make([]string, 0, len(sources))
	for _, source := range sources {
		source = strings.ToLower(strings.TrimSpace(source))
		if source == "" {
			continue
		}
		if _, dup := seen[source]; dup {
			continue
		}
		seen[source] = struct{}{}
		out = append(out, source)
	}
	return out
}

func toIngestPayloads(listings []gatewayports.Listing) []listingcommands.IngestListing {
	payloads := make([]listingcommands.IngestListing, 0, len(listings))
	for _, listing := range listings {
		payloads = append(payloads, listingcommands.IngestListing{
			Provider:         listing.Provider,
			ExternalID:       listing.ExternalID,
			URL:              listing.URL,
			Title:            listing.Title,
			Price:            listing.Price,
			Currency:         listing.Currency,
			Condition:        listing.Condition,
			Seller:           listing.Seller,
			Location:         listing.Location,
			DiscogsReleaseID: listing.DiscogsReleaseID,
			Raw:              listing.Raw,
		})
	}
	return payloads
}

func (r RuleRunner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
