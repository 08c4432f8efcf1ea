package ports

import (
	"context"
	"time"

	"cratewatch/contexts/marketplace/listing-service/domain/entities"
	"cratewatch/contexts/marketplace/listing-service/domain/services"
)

// ListingRepository owns the canonical listing store and its snapshot series.
type ListingRepository interface {
	// FindByProviderExternalID returns (listing, found).
	FindByProviderExternalID(ctx context.Context, provider string, externalID string) (entities.Listing, bool, error)
	GetListing(ctx context.Context, listingID string) (entities.Listing, error)
	CreateListing(ctx context.Context, listing entities.Listing) error
	UpdateListing(ctx context.Context, listing entities.Listing) error
	AddSnapshot(ctx context.Context, snapshot entities.PriceSnapshot) error
	ListSnapshots(ctx context.Context, listingID string) ([]entities.PriceSnapshot, error)
}

// MatchRepository owns (rule, listing)-unique match rows.
type MatchRepository interface {
	// CreateMatch inserts the match. Returns false when the (rule_id,
	// listing_id) pair already exists.
	CreateMatch(ctx context.Context, match entities.WatchMatch) (bool, error)
	// DeleteMatch unwinds a match whose NEW_MATCH event could not be
	// recorded, so a later ingest pass can recreate both together.
	DeleteMatch(ctx context.Context, matchID string) error
	ListMatchesByRule(ctx context.Context, ruleID string, limit int) ([]entities.WatchMatch, error)
	ListMatchesByUser(ctx context.Context, userID string, limit int) ([]entities.WatchMatch, error)
}

// ClickRepository records outbound redirects.
type ClickRepository interface {
	CreateClick(ctx context.Context, click entities.OutboundClick) error
}

// RuleDirectory exposes the active rules of a user as evaluated filters.
// Implemented by the rule service.
type RuleDirectory interface {
	ActiveFilters(ctx context.Context, userID string) ([]services.RuleFilter, error)
}

// ReleaseDirectory exposes a user's active watch releases to the mapper.
// Implemented by the release service.
type ReleaseDirectory interface {
	ActiveCandidates(ctx context.Context, userID string) ([]services.ReleaseCandidate, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
