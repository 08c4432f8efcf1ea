package ports

import (
	"context"
	"time"

	"cratewatch/contexts/watching/release-service/domain/entities"
)

// ReleaseRepository owns watch release rows. Lookups by Discogs identifier
// back the partial-uniqueness invariant and the import upsert path.
type ReleaseRepository interface {
	CreateRelease(ctx context.Context, release entities.WatchRelease) error
	GetRelease(ctx context.Context, userID string, watchReleaseID string) (entities.WatchRelease, error)
	UpdateRelease(ctx context.Context, release entities.WatchRelease) error
	DeleteRelease(ctx context.Context, userID string, watchReleaseID string) error
	ListReleasesByUser(ctx context.Context, userID string, limit int) ([]entities.WatchRelease, error)
	ListActiveReleasesByUser(ctx context.Context, userID string) ([]entities.WatchRelease, error)
	// FindByDiscogsRelease matches exact_release rows on discogs_release_id.
	FindByDiscogsRelease(ctx context.Context, userID string, discogsReleaseID int64) (entities.WatchRelease, bool, error)
	// FindByDiscogsMaster matches master_release rows on discogs_master_id.
	FindByDiscogsMaster(ctx context.Context, userID string, discogsMasterID int64) (entities.WatchRelease, bool, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
