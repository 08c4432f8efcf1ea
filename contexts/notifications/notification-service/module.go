package notificationservice

import (
	"log/slog"
	"time"

	"cratewatch/contexts/notifications/notification-service/adapters/email"
	"cratewatch/contexts/notifications/notification-service/adapters/memory"
	"cratewatch/contexts/notifications/notification-service/application/commands"
	"cratewatch/contexts/notifications/notification-service/application/queries"
	"cratewatch/contexts/notifications/notification-service/application/workers"
	"cratewatch/contexts/notifications/notification-service/ports"
	"cratewatch/internal/platform/metrics"
)

// Module is the composition surface for the notification service.
// RecordEvent is the cross-context entry point into the event log.
type Module struct {
	RecordEvent       commands.RecordEventUseCase
	UpdatePreference  commands.UpdatePreferenceUseCase
	MarkRead          commands.MarkReadUseCase
	ListNotifications queries.ListNotificationsUseCase
	ListEvents        queries.ListEventsUseCase
	DeliveryWorker    workers.DeliveryWorker
	Store             *memory.Store
	Email             *email.StubSender
}

type Dependencies struct {
	Events         ports.EventRepository
	Notifications  ports.NotificationRepository
	Preferences    ports.PreferenceRepository
	Queue          ports.DeliveryQueue
	Users          ports.UserDirectory
	Email          ports.EmailSender
	Stream         ports.StreamPublisher
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	BatchSize      int
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	ClaimTTL       time.Duration
	Metrics        *metrics.DeliveryMetrics
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	recordEvent := commands.RecordEventUseCase{
		Events:        deps.Events,
		Notifications: deps.Notifications,
		Preferences:   deps.Preferences,
		Queue:         deps.Queue,
		Clock:         deps.Clock,
		IDGenerator:   deps.IDGenerator,
		Logger:        deps.Logger,
	}

	worker := workers.DeliveryWorker{
		Notifications:  deps.Notifications,
		Preferences:    deps.Preferences,
		Queue:          deps.Queue,
		Users:          deps.Users,
		Email:          deps.Email,
		Stream:         deps.Stream,
		Clock:          deps.Clock,
		BatchSize:      deps.BatchSize,
		MaxAttempts:    deps.MaxAttempts,
		RetryBaseDelay: deps.RetryBaseDelay,
		RetryMaxDelay:  deps.RetryMaxDelay,
		ClaimTTL:       deps.ClaimTTL,
		Metrics:        deps.Metrics,
		Logger:         deps.Logger,
	}

	return Module{
		RecordEvent: recordEvent,
		UpdatePreference: commands.UpdatePreferenceUseCase{
			Preferences: deps.Preferences,
			Logger:      deps.Logger,
		},
		MarkRead: commands.MarkReadUseCase{
			Notifications: deps.Notifications,
			Clock:         deps.Clock,
			Logger:        deps.Logger,
		},
		ListNotifications: queries.ListNotificationsUseCase{
			Notifications: deps.Notifications,
			Logger:        deps.Logger,
		},
		ListEvents: queries.ListEventsUseCase{
			Events: deps.Events,
			Logger: deps.Logger,
		},
		DeliveryWorker: worker,
	}
}

// NewInMemoryModule wires the service against in-memory adapters and the stub
// email transport, for tests and local runtime.
func NewInMemoryModule(stream ports.StreamPublisher, logger *slog.Logger) Module {
	store := memory.NewStore(logger)
	sender := &email.StubSender{Logger: logger}
	module := NewModule(Dependencies{
		Events:        store,
		Notifications: store,
		Preferences:   store,
		Queue:         store,
		Users:         store,
		Email:         sender,
		Stream:        stream,
		Clock:         store,
		IDGenerator:   store,
		Logger:        logger,
	})
	module.Store = store
	module.Email = sender
	return module
}

var _ ports.EventRecorder = commands.RecordEventUseCase{}
