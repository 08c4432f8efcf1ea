package ports

import (
	"context"
	"time"

	"cratewatch/contexts/integrations/import-service/domain/entities"
	gatewaycommands "cratewatch/contexts/integrations/provider-gateway/application/commands"
	releasecommands "cratewatch/contexts/watching/release-service/application/commands"
	releaseentities "cratewatch/contexts/watching/release-service/domain/entities"
)

// ImportJobRepository owns import job rows. CreateJob surfaces
// ErrJobInFlight when the partial-unique in-flight constraint trips, which is
// how concurrent ensure calls collapse to one job.
type ImportJobRepository interface {
	CreateJob(ctx context.Context, job entities.ImportJob) error
	GetJob(ctx context.Context, jobID string) (entities.ImportJob, error)
	UpdateJob(ctx context.Context, job entities.ImportJob) error
	FindInFlightJob(ctx context.Context, userID string, provider string, scope entities.ImportScope) (entities.ImportJob, bool, error)
	// FindRecentCompletedJob returns the newest completed job finished at or
	// after the cutoff, backing the ensure cooldown.
	FindRecentCompletedJob(ctx context.Context, userID string, provider string, scope entities.ImportScope, cutoff time.Time) (entities.ImportJob, bool, error)
	ListJobsByUser(ctx context.Context, userID string, limit int) ([]entities.ImportJob, error)
}

// TokenResolver hands the executor a plaintext provider token.
// Implemented by the provider gateway's ResolveTokenUseCase.
type TokenResolver interface {
	Execute(ctx context.Context, userID string, provider string) (gatewaycommands.ResolvedToken, error)
}

// ReleaseUpserter folds one imported release into the user's watch releases.
// Implemented by the release service's UpsertFromImportUseCase.
type ReleaseUpserter interface {
	Execute(ctx context.Context, userID string, source releasecommands.ImportSource, imported releasecommands.ImportedRelease) (releaseentities.WatchRelease, bool, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
