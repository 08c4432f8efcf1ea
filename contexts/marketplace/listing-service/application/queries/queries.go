package queries

import (
	"context"

	"cratewatch/contexts/marketplace/listing-service/domain/entities"
	"cratewatch/contexts/marketplace/listing-service/ports"
)

const defaultLimit = 50

// ListingWithHistory pairs a listing with its ordered snapshot series.
type ListingWithHistory struct {
	Listing   entities.Listing
	Snapshots []entities.PriceSnapshot
}

type GetListingUseCase struct {
	Listings ports.ListingRepository
}

func (uc GetListingUseCase) Execute(ctx context.Context, listingID string) (ListingWithHistory, error) {
	listing, err := uc.Listings.GetListing(ctx, listingID)
	if err != nil {
		return ListingWithHistory{}, err
	}
	snapshots, err := uc.Listings.ListSnapshots(ctx, listingID)
	if err != nil {
		return ListingWithHistory{}, err
	}
	return ListingWithHistory{Listing: listing, Snapshots: snapshots}, nil
}

type ListMatchesUseCase struct {
	Matches ports.MatchRepository
}

func (uc ListMatchesUseCase) ByUser(ctx context.Context, userID string, limit int) ([]entities.WatchMatch, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	return uc.Matches.ListMatchesByUser(ctx, userID, limit)
}

func (uc ListMatchesUseCase) ByRule(ctx context.Context, ruleID string, limit int) ([]entities.WatchMatch, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	return uc.Matches.ListMatchesByRule(ctx, ruleID, limit)
}
