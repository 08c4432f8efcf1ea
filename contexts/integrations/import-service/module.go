package importservice

import (
	"log/slog"

	"cratewatch/contexts/integrations/import-service/adapters/memory"
	"cratewatch/contexts/integrations/import-service/application/commands"
	"cratewatch/contexts/integrations/import-service/application/queries"
	"cratewatch/contexts/integrations/import-service/ports"
	gatewayports "cratewatch/contexts/integrations/provider-gateway/ports"
	notifports "cratewatch/contexts/notifications/notification-service/ports"
)

// Module is the composition surface for the import service.
type Module struct {
	EnsureJob  commands.EnsureImportJobUseCase
	ExecuteJob commands.ExecuteImportJobUseCase
	GetJob     queries.GetJobUseCase
	ListJobs   queries.ListJobsUseCase
	Store      *memory.Store
}

type Dependencies struct {
	Jobs        ports.ImportJobRepository
	Tokens      ports.TokenResolver
	Lists       gatewayports.DiscogsListClient
	Releases    ports.ReleaseUpserter
	Events      notifports.EventRecorder
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		EnsureJob: commands.EnsureImportJobUseCase{
			Jobs:        deps.Jobs,
			Events:      deps.Events,
			Clock:       deps.Clock,
			IDGenerator: deps.IDGenerator,
			Logger:      deps.Logger,
		},
		ExecuteJob: commands.ExecuteImportJobUseCase{
			Jobs:     deps.Jobs,
			Tokens:   deps.Tokens,
			Lists:    deps.Lists,
			Releases: deps.Releases,
			Events:   deps.Events,
			Clock:    deps.Clock,
			Logger:   deps.Logger,
		},
		GetJob:   queries.GetJobUseCase{Jobs: deps.Jobs},
		ListJobs: queries.ListJobsUseCase{Jobs: deps.Jobs},
	}
}

// NewInMemoryModule wires the service against the in-memory job store.
func NewInMemoryModule(deps Dependencies) Module {
	store := memory.NewStore()
	deps.Jobs = store
	if deps.Clock == nil {
		deps.Clock = store
	}
	if deps.IDGenerator == nil {
		deps.IDGenerator = store
	}
	module := NewModule(deps)
	module.Store = store
	return module
}
