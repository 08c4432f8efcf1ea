package releaseservice

import (
	"context"
	"log/slog"

	listingservices "cratewatch/contexts/marketplace/listing-service/domain/services"
	listingports "cratewatch/contexts/marketplace/listing-service/ports"
	notifports "cratewatch/contexts/notifications/notification-service/ports"
	"cratewatch/contexts/watching/release-service/adapters/memory"
	"cratewatch/contexts/watching/release-service/application/commands"
	"cratewatch/contexts/watching/release-service/application/queries"
	"cratewatch/contexts/watching/release-service/ports"
)

// CandidateDirectory adapts the release repository into the listing mapper's
// candidate input.
type CandidateDirectory struct {
	Releases ports.ReleaseRepository
}

func (d CandidateDirectory) ActiveCandidates(ctx context.Context, userID string) ([]listingservices.ReleaseCandidate, error) {
	releases, err := d.Releases.ListActiveReleasesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	candidates := make([]listingservices.ReleaseCandidate, 0, len(releases))
	for _, release := range releases {
		candidates = append(candidates, listingservices.ReleaseCandidate{
			WatchReleaseID:   release.WatchReleaseID,
			DiscogsReleaseID: release.DiscogsReleaseID,
			DiscogsMasterID:  release.DiscogsMasterID,
			Title:            release.Title,
			Artist:           release.Artist,
		})
	}
	return candidates, nil
}

// Module is the composition surface for the release service.
type Module struct {
	CreateRelease    commands.CreateReleaseUseCase
	UpdateRelease    commands.UpdateReleaseUseCase
	SetReleaseActive commands.SetReleaseActiveUseCase
	DeleteRelease    commands.DeleteReleaseUseCase
	UpsertFromImport commands.UpsertFromImportUseCase
	GetRelease       queries.GetReleaseUseCase
	ListReleases     queries.ListReleasesUseCase
	Candidates       CandidateDirectory
	Store            *memory.Store
}

type Dependencies struct {
	Releases    ports.ReleaseRepository
	Events      notifports.EventRecorder
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		CreateRelease: commands.CreateReleaseUseCase{
			Releases:    deps.Releases,
			Events:      deps.Events,
			Clock:       deps.Clock,
			IDGenerator: deps.IDGenerator,
			Logger:      deps.Logger,
		},
		UpdateRelease: commands.UpdateReleaseUseCase{
			Releases: deps.Releases,
			Events:   deps.Events,
			Clock:    deps.Clock,
			Logger:   deps.Logger,
		},
		SetReleaseActive: commands.SetReleaseActiveUseCase{
			Releases: deps.Releases,
			Events:   deps.Events,
			Clock:    deps.Clock,
			Logger:   deps.Logger,
		},
		DeleteRelease: commands.DeleteReleaseUseCase{
			Releases: deps.Releases,
			Logger:   deps.Logger,
		},
		UpsertFromImport: commands.UpsertFromImportUseCase{
			Releases:    deps.Releases,
			Clock:       deps.Clock,
			IDGenerator: deps.IDGenerator,
			Logger:      deps.Logger,
		},
		GetRelease:   queries.GetReleaseUseCase{Releases: deps.Releases},
		ListReleases: queries.ListReleasesUseCase{Releases: deps.Releases},
		Candidates:   CandidateDirectory{Releases: deps.Releases},
	}
}

// NewInMemoryModule wires the service against the in-memory release store.
func NewInMemoryModule(events notifports.EventRecorder, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Releases:    store,
		Events:      events,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	return module
}

var _ listingports.ReleaseDirectory = CandidateDirectory{}
