package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cratewatch/contexts/marketplace/listing-service/domain/entities"
	domainerrors "cratewatch/contexts/marketplace/listing-service/domain/errors"
	"cratewatch/contexts/marketplace/listing-service/domain/services"
	"cratewatch/contexts/marketplace/listing-service/ports"
	notifentities "cratewatch/contexts/notifications/notification-service/domain/entities"
	notifports "cratewatch/contexts/notifications/notification-service/ports"
)

// IngestListing is the provider-normalized payload handed in by the rule
// runner or the API backfill path.
type IngestListing struct {
	Provider         string
	ExternalID       string
	URL              string
	Title            string
	Price            float64
	Currency         string
	Condition        string
	Seller           string
	Location         string
	DiscogsReleaseID int64
	Raw              map[string]any
}

type IngestCommand struct {
	UserID       string
	UserCurrency string
	Listings     []IngestListing
}

// IngestSummary aggregates one batch. Errors counts per-listing failures that
// were isolated rather than aborting the batch.
type IngestSummary struct {
	Fetched          int
	ListingsCreated  int
	SnapshotsCreated int
	MatchesCreated   int
	Errors           int
}

// IngestListingsUseCase runs the upsert, snapshot, enrichment and matching
// pipeline for a batch of provider results.
type IngestListingsUseCase struct {
	Listings    ports.ListingRepository
	Matches     ports.MatchRepository
	Rules       ports.RuleDirectory
	Releases    ports.ReleaseDirectory
	Events      notifports.EventRecorder
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func (uc IngestListingsUseCase) Execute(ctx context.Context, cmd IngestCommand) (IngestSummary, error) {
	summary := IngestSummary{Fetched: len(cmd.Listings)}
	if len(cmd.Listings) == 0 {
		return summary, nil
	}

	filters, err := uc.Rules.ActiveFilters(ctx, cmd.UserID)
	if err != nil {
		return summary, fmt.Errorf("load active rules: %w", err)
	}
	candidates, err := uc.Releases.ActiveCandidates(ctx, cmd.UserID)
	if err != nil {
		return summary, fmt.Errorf("load watch releases: %w", err)
	}

	for _, payload := range cmd.Listings {
		if err := uc.ingestOne(ctx, cmd, payload, filters, candidates, &summary); err != nil {
			summary.Errors++
			uc.logger().Warn("listing ingest failed",
				"event", "listing_ingest_failed",
				"module", "marketplace/listing-service",
				"layer", "application",
				"provider", payload.Provider,
				"external_id", payload.ExternalID,
				"error", err.Error(),
			)
		}
	}
	return summary, nil
}

func (uc IngestListingsUseCase) ingestOne(
	ctx context.Context,
	cmd IngestCommand,
	payload IngestListing,
	filters []services.RuleFilter,
	candidates []services.ReleaseCandidate,
	summary *IngestSummary,
) error {
	if payload.Provider == "" || payload.ExternalID == "" || payload.Title == "" || payload.Price < 0 {
		return domainerrors.ErrInvalidListing
	}

	listing, created, snapshotted, err := uc.upsert(ctx, cmd.UserID, payload)
	if err != nil {
		return err
	}
	if created {
		summary.ListingsCreated++
	}
	if snapshotted {
		summary.SnapshotsCreated++
	}

	watchReleaseID := uc.enrich(ctx, &listing, candidates)

	if created && watchReleaseID != "" {
		uc.recordEvent(ctx, notifports.EventRecord{
			UserID:         cmd.UserID,
			Type:           notifentities.EventListingFirstSeen,
			WatchReleaseID: watchReleaseID,
			ListingID:      listing.ListingID,
			Payload:        listingPayload(listing),
		})
	}

	for _, filter := range filters {
		if !filter.Matches(listing.Provider, listing.NormalizedTitle, listing.Price, listing.Currency, cmd.UserCurrency) {
			continue
		}
		createdMatch, err := uc.createMatch(ctx, cmd.UserID, filter, listing, watchReleaseID)
		if err != nil {
			return err
		}
		if createdMatch {
			summary.MatchesCreated++
		}
	}
	return nil
}

// upsert applies the snapshot policy: always on create, on price change
// otherwise. A price movement on an existing listing emits a drop or rise
// event for the ingesting user.
func (uc IngestListingsUseCase) upsert(ctx context.Context, userID string, payload IngestListing) (entities.Listing, bool, bool, error) {
	now := uc.Clock.Now()
	normalized := services.NormalizeTitle(payload.Title)

	existing, found, err := uc.Listings.FindByProviderExternalID(ctx, payload.Provider, payload.ExternalID)
	if err != nil {
		return entities.Listing{}, false, false, err
	}

	if !found {
		listingID, err := uc.IDGenerator.NewID(ctx)
		if err != nil {
			return entities.Listing{}, false, false, err
		}
		listing := entities.Listing{
			ListingID:        listingID,
			Provider:         payload.Provider,
			ExternalID:       payload.ExternalID,
			URL:              payload.URL,
			Title:            payload.Title,
			NormalizedTitle:  normalized,
			Price:            payload.Price,
			Currency:         payload.Currency,
			Condition:        payload.Condition,
			Seller:           payload.Seller,
			Location:         payload.Location,
			Status:           entities.ListingStatusActive,
			DiscogsReleaseID: payload.DiscogsReleaseID,
			FirstSeenAt:      now,
			LastSeenAt:       now,
			Raw:              payload.Raw,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := uc.Listings.CreateListing(ctx, listing); err != nil {
			return entities.Listing{}, false, false, err
		}
		if err := uc.addSnapshot(ctx, listing, now); err != nil {
			return entities.Listing{}, false, false, err
		}
		return listing, true, true, nil
	}

	oldPrice := existing.Price
	existing.URL = payload.URL
	existing.Title = payload.Title
	existing.NormalizedTitle = normalized
	existing.Price = payload.Price
	existing.Currency = payload.Currency
	existing.Condition = payload.Condition
	existing.Seller = payload.Seller
	existing.Location = payload.Location
	if payload.DiscogsReleaseID != 0 {
		existing.DiscogsReleaseID = payload.DiscogsReleaseID
	}
	existing.Status = entities.ListingStatusActive
	existing.LastSeenAt = now
	existing.UpdatedAt = now
	if len(payload.Raw) > 0 {
		if existing.Raw == nil {
			existing.Raw = map[string]any{}
		}
		for key, value := range payload.Raw {
			existing.Raw[key] = value
		}
	}

	if err := uc.Listings.UpdateListing(ctx, existing); err != nil {
		return entities.Listing{}, false, false, err
	}

	if payload.Price == oldPrice {
		return existing, false, false, nil
	}

	if err := uc.addSnapshot(ctx, existing, now); err != nil {
		return entities.Listing{}, false, false, err
	}

	eventType := notifentities.EventListingPriceRise
	if payload.Price < oldPrice {
		eventType = notifentities.EventListingPriceDrop
	}
	priceEvent := listingPayload(existing)
	priceEvent["old_price"] = oldPrice
	priceEvent["new_price"] = payload.Price
	uc.recordEvent(ctx, notifports.EventRecord{
		UserID:    userID,
		Type:      eventType,
		ListingID: existing.ListingID,
		Payload:   priceEvent,
	})
	return existing, false, true, nil
}

func (uc IngestListingsUseCase) addSnapshot(ctx context.Context, listing entities.Listing, now time.Time) error {
	snapshotID, err := uc.IDGenerator.NewID(ctx)
	if err != nil {
		return err
	}
	return uc.Listings.AddSnapshot(ctx, entities.PriceSnapshot{
		SnapshotID: snapshotID,
		ListingID:  listing.ListingID,
		Price:      listing.Price,
		Currency:   listing.Currency,
		RecordedAt: now,
	})
}

// enrich maps a release-less listing onto the user's watch releases and
// stores the decision record under raw.matching.discogs_mapping. Returns the
// watch release id the listing resolved to, if any.
func (uc IngestListingsUseCase) enrich(ctx context.Context, listing *entities.Listing, candidates []services.ReleaseCandidate) string {
	if listing.DiscogsReleaseID != 0 {
		for _, candidate := range candidates {
			if candidate.DiscogsReleaseID == listing.DiscogsReleaseID {
				return candidate.WatchReleaseID
			}
		}
		return ""
	}
	if len(candidates) == 0 {
		return ""
	}

	decision := services.MapToRelease(listing.Title, candidates)

	if listing.Raw == nil {
		listing.Raw = map[string]any{}
	}
	matching, _ := listing.Raw["matching"].(map[string]any)
	if matching == nil {
		matching = map[string]any{}
	}
	matching["discogs_mapping"] = decision
	listing.Raw["matching"] = matching

	if decision.Matched {
		listing.DiscogsReleaseID = decision.DiscogsReleaseID
		listing.DiscogsMasterID = decision.DiscogsMasterID
	}

	if err := uc.Listings.UpdateListing(ctx, *listing); err != nil {
		uc.logger().Warn("mapping decision persist failed",
			"event", "listing_mapping_persist_failed",
			"module", "marketplace/listing-service",
			"layer", "application",
			"listing_id", listing.ListingID,
			"error", err.Error(),
		)
		return ""
	}
	if decision.Matched {
		return decision.WatchReleaseID
	}
	return ""
}

func (uc IngestListingsUseCase) createMatch(
	ctx context.Context,
	userID string,
	filter services.RuleFilter,
	listing entities.Listing,
	watchReleaseID string,
) (bool, error) {
	matchID, err := uc.IDGenerator.NewID(ctx)
	if err != nil {
		return false, err
	}
	created, err := uc.Matches.CreateMatch(ctx, entities.WatchMatch{
		MatchID:   matchID,
		RuleID:    filter.RuleID,
		UserID:    userID,
		ListingID: listing.ListingID,
		MatchedAt: uc.Clock.Now(),
		MatchContext: map[string]any{
			"keywords": filter.Keywords,
			"provider": listing.Provider,
			"price":    listing.Price,
			"currency": listing.Currency,
		},
	})
	if err != nil || !created {
		return false, err
	}

	if uc.Events == nil {
		return true, nil
	}

	// The match row and its NEW_MATCH event land together or not at all: a
	// committed match with no event would be skipped by replays through the
	// (rule, listing) unique key, losing the event forever. On a failed
	// record the match is unwound so the next ingest pass recreates both.
	payload := listingPayload(listing)
	payload["rule_id"] = filter.RuleID
	if _, _, err := uc.Events.Record(ctx, notifports.EventRecord{
		UserID:         userID,
		Type:           notifentities.EventNewMatch,
		WatchReleaseID: watchReleaseID,
		RuleID:         filter.RuleID,
		ListingID:      listing.ListingID,
		Payload:        payload,
	}); err != nil {
		if deleteErr := uc.Matches.DeleteMatch(ctx, matchID); deleteErr != nil {
			uc.logger().Error("match unwind failed",
				"event", "listing_match_unwind_failed",
				"module", "marketplace/listing-service",
				"layer", "application",
				"match_id", matchID,
				"error", deleteErr.Error(),
			)
		}
		return false, fmt.Errorf("record match event: %w", err)
	}
	return true, nil
}

func (uc IngestListingsUseCase) recordEvent(ctx context.Context, record notifports.EventRecord) {
	if uc.Events == nil {
		return
	}
	if _, _, err := uc.Events.Record(ctx, record); err != nil {
		uc.logger().Warn("event record failed",
			"event", "listing_event_record_failed",
			"module", "marketplace/listing-service",
			"layer", "application",
			"event_type", string(record.Type),
			"listing_id", record.ListingID,
			"error", err.Error(),
		)
	}
}

func listingPayload(listing entities.Listing) map[string]any {
	return map[string]any{
		"listing_id":  listing.ListingID,
		"provider":    listing.Provider,
		"external_id": listing.ExternalID,
		"title":       listing.Title,
		"price":       listing.Price,
		"currency":    listing.Currency,
		"url":         listing.URL,
	}
}

func (uc IngestListingsUseCase) logger() *slog.Logger {
	if uc.Logger != nil {
		return uc.Logger
	}
	return slog.Default()
}
