package commands

import (
	"context"
	"log/slog"
	"strings"

	notifentities "cratewatch/contexts/notifications/notification-service/domain/entities"
	notifports "cratewatch/contexts/notifications/notification-service/ports"
	"cratewatch/contexts/watching/release-service/domain/entities"
	domainerrors "cratewatch/contexts/watching/release-service/domain/errors"
	"cratewatch/contexts/watching/release-service/ports"
)

// UpdateReleaseCommand is a partial update; nil fields keep current values.
// Discogs identifiers and match mode are immutable after creation.
type UpdateReleaseCommand struct {
	UserID         string
	WatchReleaseID string
	Title          *string
	Artist         *string
	Year           *int
	TargetPrice    *float64
	Currency       *string
	MinCondition   *string
}

type UpdateReleaseUseCase struct {
	Releases ports.ReleaseRepository
	Events   notifports.EventRecorder
	Clock    ports.Clock
	Logger   *slog.Logger
}

func (uc UpdateReleaseUseCase) Execute(ctx context.Context, cmd UpdateReleaseCommand) (entities.WatchRelease, error) {
	release, err := uc.Releases.GetRelease(ctx, cmd.UserID, cmd.WatchReleaseID)
	if err != nil {
		return entities.WatchRelease{}, err
	}

	if cmd.Title != nil {
		title := strings.TrimSpace(*cmd.Title)
		if title == "" {
			return entities.WatchRelease{}, domainerrors.ErrInvalidTitle
		}
		release.Title = title
	}
	if cmd.Artist != nil {
		release.Artist = strings.TrimSpace(*cmd.Artist)
	}
	if cmd.Year != nil {
		release.Year = *cmd.Year
	}
	if cmd.TargetPrice != nil {
		if *cmd.TargetPrice < 0 {
			return entities.WatchRelease{}, domainerrors.ErrNegativeTargetPrice
		}
		release.TargetPrice = cmd.TargetPrice
	}
	if cmd.Currency != nil {
		release.Currency = normalizeCurrency(*cmd.Currency)
	}
	if cmd.MinCondition != nil {
		release.MinCondition = *cmd.MinCondition
	}
	release.UpdatedAt = uc.Clock.Now()

	if err := uc.Releases.UpdateRelease(ctx, release); err != nil {
		return entities.WatchRelease{}, err
	}

	recordReleaseEvent(ctx, uc.Events, uc.Logger, notifentities.EventWatchReleaseUpdated, release)
	return release, nil
}
