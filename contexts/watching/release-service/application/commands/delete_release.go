package commands

import (
	"context"
	"log/slog"

	"cratewatch/contexts/watching/release-service/ports"
)

// DeleteReleaseUseCase hard-deletes a watch release. The softer form is
// SetReleaseActive(false), which keeps history and emits a lifecycle event.
type DeleteReleaseUseCase struct {
	Releases ports.ReleaseRepository
	Logger   *slog.Logger
}

func (uc DeleteReleaseUseCase) Execute(ctx context.Context, userID string, watchReleaseID string) error {
	if err := uc.Releases.DeleteRelease(ctx, userID, watchReleaseID); err != nil {
		return err
	}
	if uc.Logger != nil {
		uc.Logger.Info("watch release deleted",
			"event", "watch_release_deleted",
			"module", "watching/release-service",
			"layer", "application",
			"watch_release_id", watchReleaseID,
		)
	}
	return nil
}
