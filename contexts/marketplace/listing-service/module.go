package listingservice

import (
	"log/slog"

	"cratewatch/contexts/marketplace/listing-service/adapters/memory"
	"cratewatch/contexts/marketplace/listing-service/application/commands"
	"cratewatch/contexts/marketplace/listing-service/application/queries"
	"cratewatch/contexts/marketplace/listing-service/ports"
	notifports "cratewatch/contexts/notifications/notification-service/ports"
)

// Module is the composition surface for the listing service. Ingest is the
// entry point the rule runner feeds provider results into.
type Module struct {
	Ingest      commands.IngestListingsUseCase
	MarkEnded   commands.MarkEndedUseCase
	RecordClick commands.RecordClickUseCase
	GetListing  queries.GetListingUseCase
	ListMatches queries.ListMatchesUseCase
	Store       *memory.Store
}

type Dependencies struct {
	Listings    ports.ListingRepository
	Matches     ports.MatchRepository
	Clicks      ports.ClickRepository
	Rules       ports.RuleDirectory
	Releases    ports.ReleaseDirectory
	Events      notifports.EventRecorder
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		Ingest: commands.IngestListingsUseCase{
			Listings:    deps.Listings,
			Matches:     deps.Matches,
			Rules:       deps.Rules,
			Releases:    deps.Releases,
			Events:      deps.Events,
			Clock:       deps.Clock,
			IDGenerator: deps.IDGenerator,
			Logger:      deps.Logger,
		},
		MarkEnded: commands.MarkEndedUseCase{
			Listings: deps.Listings,
			Events:   deps.Events,
			Clock:    deps.Clock,
			Logger:   deps.Logger,
		},
		RecordClick: commands.RecordClickUseCase{
			Listings:    deps.Listings,
			Clicks:      deps.Clicks,
			Clock:       deps.Clock,
			IDGenerator: deps.IDGenerator,
			Logger:      deps.Logger,
		},
		GetListing:  queries.GetListingUseCase{Listings: deps.Listings},
		ListMatches: queries.ListMatchesUseCase{Matches: deps.Matches},
	}
}

// NewInMemoryModule wires the service against the in-memory store, with the
// store doubling as the rule and release directories.
func NewInMemoryModule(events notifports.EventRecorder, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Listings:    store,
		Matches:     store,
		Clicks:      store,
		Rules:       store,
		Releases:    store,
		Events:      events,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	return module
}
