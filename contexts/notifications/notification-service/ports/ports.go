package ports

import (
	"context"
	"time"

	"cratewatch/contexts/notifications/notification-service/domain/entities"
)

// EventRecord is the write-side shape other contexts use to append events.
type EventRecord struct {
	UserID         string
	Type           entities.EventType
	WatchReleaseID string
	RuleID         string
	ListingID      string
	Payload        map[string]any
}

// EventRecorder is the cross-context entry point into the event log.
// Implemented by the notification module's RecordEventUseCase.
type EventRecorder interface {
	Record(ctx context.Context, record EventRecord) (entities.Event, bool, error)
}

// EventRepository owns the append-only event log.
type EventRepository interface {
	// AppendEvent persists the event. Returns false when the NEW_MATCH
	// dedupe tuple (user, type, watch_release, listing) already exists.
	AppendEvent(ctx context.Context, event entities.Event) (bool, error)
	ListEventsByUser(ctx context.Context, userID string, limit int) ([]entities.Event, error)
}

// NotificationRepository owns (event, channel) delivery records.
type NotificationRepository interface {
	// CreateNotification inserts a pending row. Returns false when the
	// (event_id, channel) pair already exists.
	CreateNotification(ctx context.Context, notification entities.Notification) (bool, error)
	GetNotification(ctx context.Context, notificationID string) (entities.Notification, error)
	MarkDelivered(ctx context.Context, notificationID string, deliveredAt time.Time) error
	MarkFailed(ctx context.Context, notificationID string, failedAt time.Time) error
	MarkRead(ctx context.Context, notificationID string, userID string, readAt time.Time) error
	ListNotificationsByUser(ctx context.Context, userID string, limit int) ([]entities.Notification, error)
}

// PreferenceRepository stores per-user notification preferences.
type PreferenceRepository interface {
	GetPreference(ctx context.Context, userID string) (entities.Preference, bool, error)
	SavePreference(ctx context.Context, preference entities.Preference) error
}

// DeliveryTask is one queued dispatch attempt for a notification.
type DeliveryTask struct {
	TaskID         string
	NotificationID string
	RunAt          time.Time
	Attempts       int
}

// DeliveryQueue is the durable work queue drained by the delivery worker.
// Claiming is exclusive across concurrent workers.
type DeliveryQueue interface {
	EnqueueDelivery(ctx context.Context, task DeliveryTask) error
	ClaimDueDeliveries(ctx context.Context, now time.Time, limit int) ([]DeliveryTask, error)
	RescheduleDelivery(ctx context.Context, taskID string, runAt time.Time, attempts int) error
	CompleteDelivery(ctx context.Context, taskID string) error
	// ReleaseExpiredClaims clears claims stamped before cutoff so tasks
	// abandoned by a dead worker become due again. Returns how many claims
	// were released.
	ReleaseExpiredClaims(ctx context.Context, cutoff time.Time) (int64, error)
}

// EmailMessage is the transport-agnostic email payload.
type EmailMessage struct {
	UserID         string
	NotificationID string
	EventID        string
	EventType      entities.EventType
	Payload        map[string]any
}

// EmailSender abstracts the concrete email transport (SES, stub).
// Transient failures must wrap domainerrors.ErrEmailTransient.
type EmailSender interface {
	SendNotification(ctx context.Context, message EmailMessage) error
}

// StreamPublisher fans realtime payloads out to a user's live subscribers.
type StreamPublisher interface {
	PublishRealtime(ctx context.Context, userID string, payload []byte) error
}

// UserDirectory resolves account-level attributes needed for delivery timing.
type UserDirectory interface {
	GetTimezone(ctx context.Context, userID string) (string, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
