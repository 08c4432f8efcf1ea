package commands

import (
	"context"
	"log/slog"

	"cratewatch/contexts/marketplace/listing-service/domain/entities"
	"cratewatch/contexts/marketplace/listing-service/ports"
	notifentities "cratewatch/contexts/notifications/notification-service/domain/entities"
	notifports "cratewatch/contexts/notifications/notification-service/ports"
)

// MarkEndedUseCase transitions a listing to ended and notifies the watching
// user. Marking an already-ended listing is a no-op.
type MarkEndedUseCase struct {
	Listings ports.ListingRepository
	Events   notifports.EventRecorder
	Clock    ports.Clock
	Logger   *slog.Logger
}

func (uc MarkEndedUseCase) Execute(ctx context.Context, userID string, listingID string) error {
	listing, err := uc.Listings.GetListing(ctx, listingID)
	if err != nil {
		return err
	}
	if listing.Status == entities.ListingStatusEnded {
		return nil
	}

	now := uc.Clock.Now()
	listing.Status = entities.ListingStatusEnded
	listing.UpdatedAt = now
	if err := uc.Listings.UpdateListing(ctx, listing); err != nil {
		return err
	}

	if uc.Events != nil {
		payload := listingPayload(listing)
		if _, _, err := uc.Events.Record(ctx, notifports.EventRecord{
			UserID:    userID,
			Type:      notifentities.EventListingEnded,
			ListingID: listing.ListingID,
			Payload:   payload,
		}); err != nil {
			logger := uc.Logger
			if logger == nil {
				logger = slog.Default()
			}
			logger.Warn("event record failed",
				"event", "listing_event_record_failed",
				"module", "marketplace/listing-service",
				"layer", "application",
				"event_type", string(notifentities.EventListingEnded),
				"listing_id", listing.ListingID,
				"error", err.Error(),
			)
		}
	}
	return nil
}
