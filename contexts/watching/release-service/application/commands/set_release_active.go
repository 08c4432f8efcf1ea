package commands

import (
	"context"
	"log/slog"

	notifentities "cratewatch/contexts/notifications/notification-service/domain/entities"
	notifports "cratewatch/contexts/notifications/notification-service/ports"
	"cratewatch/contexts/watching/release-service/domain/entities"
	"cratewatch/contexts/watching/release-service/ports"
)

type SetReleaseActiveUseCase struct {
	Releases ports.ReleaseRepository
	Events   notifports.EventRecorder
	Clock    ports.Clock
	Logger   *slog.Logger
}

func (uc SetReleaseActiveUseCase) Execute(ctx context.Context, userID string, watchReleaseID string, active bool) (entities.WatchRelease, error) {
	release, err := uc.Releases.GetRelease(ctx, userID, watchReleaseID)
	if err != nil {
		return entities.WatchRelease{}, err
	}
	if release.IsActive == active {
		return release, nil
	}

	release.IsActive = active
	release.UpdatedAt = uc.Clock.Now()
	if err := uc.Releases.UpdateRelease(ctx, release); err != nil {
		return entities.WatchRelease{}, err
	}

	eventType := notifentities.EventWatchReleaseDisabled
	if active {
		eventType = notifentities.EventWatchReleaseEnabled
	}
	recordReleaseEvent(ctx, uc.Events, uc.Logger, eventType, release)
	return release, nil
}
