package queries

import (
	"context"

	"cratewatch/contexts/watching/release-service/domain/entities"
	"cratewatch/contexts/watching/release-service/ports"
)

const defaultLimit = 50

type GetReleaseUseCase struct {
	Releases ports.ReleaseRepository
}

func (uc GetReleaseUseCase) Execute(ctx context.Context, userID string, watchReleaseID string) (entities.WatchRelease, error) {
	return uc.Releases.GetRelease(ctx, userID, watchReleaseID)
}

type ListReleasesUseCase struct {
	Releases ports.ReleaseRepository
}

func (uc ListReleasesUseCase) Execute(ctx context.Context, userID string, limit int) ([]entities.WatchRelease, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	return uc.Releases.ListReleasesByUser(ctx, userID, limit)
}
