package commands

import (
	"context"
	"log/slog"

	"cratewatch/contexts/marketplace/listing-service/domain/entities"
	domainerrors "cratewatch/contexts/marketplace/listing-service/domain/errors"
	"cratewatch/contexts/marketplace/listing-service/ports"
)

// RecordClickUseCase stores an outbound click and returns the listing so the
// redirect handler can decorate its URL.
type RecordClickUseCase struct {
	Listings    ports.ListingRepository
	Clicks      ports.ClickRepository
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func (uc RecordClickUseCase) Execute(ctx context.Context, userID string, listingID string, referrer string) (entities.Listing, error) {
	if userID == "" || listingID == "" {
		return entities.Listing{}, domainerrors.ErrInvalidClick
	}

	listing, err := uc.Listings.GetListing(ctx, listingID)
	if err != nil {
		return entities.Listing{}, err
	}

	clickID, err := uc.IDGenerator.NewID(ctx)
	if err != nil {
		return entities.Listing{}, err
	}
	if err := uc.Clicks.CreateClick(ctx, entities.OutboundClick{
		ClickID:   clickID,
		UserID:    userID,
		ListingID: listing.ListingID,
		Provider:  listing.Provider,
		Referrer:  referrer,
		CreatedAt: uc.Clock.Now(),
	}); err != nil {
		return entities.Listing{}, err
	}

	logger := uc.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("outbound click recorded",
		"event", "outbound_click_recorded",
		"module", "marketplace/listing-service",
		"layer", "application",
		"user_id", userID,
		"listing_id", listing.ListingID,
		"provider", listing.Provider,
	)
	return listing, nil
}
