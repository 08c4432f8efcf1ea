package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "cratewatch/contexts/notifications/notification-service/application"
	"cratewatch/contexts/notifications/notification-service/domain/entities"
	domainerrors "cratewatch/contexts/notifications/notification-service/domain/errors"
	"cratewatch/contexts/notifications/notification-service/ports"
)

// RecordEventUseCase appends a user-scoped event and fans it out into
// per-channel pending notifications plus delivery tasks.
// Fan-out is idempotent end to end: the event dedupe tuple, the
// (event, channel) unique pair, and task enqueue keyed by notification id
// each absorb replays.
type RecordEventUseCase struct {
	Events        ports.EventRepository
	Notifications ports.NotificationRepository
	Preferences   ports.PreferenceRepository
	Queue         ports.DeliveryQueue
	Clock         ports.Clock
	IDGenerator   ports.IDGenerator
	Logger        *slog.Logger
}

// Record implements ports.EventRecorder. The returned bool reports whether a
// new event row was created.
func (u RecordEventUseCase) Record(ctx context.Context, record ports.EventRecord) (entities.Event, bool, error) {
	logger := application.ResolveLogger(u.Logger)
	if strings.TrimSpace(record.UserID) == "" || !record.Type.Valid() {
		return entities.Event{}, false, domainerrors.ErrInvalidEvent
	}

	now := u.now()
	eventID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return entities.Event{}, false, err
	}

	event := entities.Event{
		EventID:        eventID,
		UserID:         record.UserID,
		Type:           record.Type,
		WatchReleaseID: record.WatchReleaseID,
		RuleID:         record.RuleID,
		ListingID:      record.ListingID,
		Payload:        record.Payload,
		CreatedAt:      now,
	}

	created, err := u.Events.AppendEvent(ctx, event)
	if err != nil {
		logger.Error("event append failed",
			"event", "notification_event_append_failed",
			"module", "notifications/notification-service",
			"layer", "application",
			"user_id", record.UserID,
			"event_type", string(record.Type),
			"error", err.Error(),
		)
		return entities.Event{}, false, err
	}
	if !created {
		return event, false, nil
	}

	if !event.Type.UserVisible() {
		return event, true, nil
	}

	if err := u.fanOut(ctx, event, now); err != nil {
		return event, true, err
	}
	return event, true, nil
}

func (u RecordEventUseCase) fanOut(ctx context.Context, event entities.Event, now time.Time) error {
	logger := application.ResolveLogger(u.Logger)

	preference, found, err := u.Preferences.GetPreference(ctx, event.UserID)
	if err != nil {
		return err
	}
	if !found {
		preference = entities.DefaultPreference(event.UserID)
	}
	if !preference.Allows(event.Type) {
		logger.Debug("event suppressed by preference toggle",
			"event", "notification_fanout_suppressed",
			"module", "notifications/notification-service",
			"layer", "application",
			"user_id", event.UserID,
			"event_type", string(event.Type),
		)
		return nil
	}

	for _, channel := range preference.Channels() {
		notificationID, err := u.IDGenerator.NewID(ctx)
		if err != nil {
			return err
		}
		notification := entities.Notification{
			NotificationID: notificationID,
			UserID:         event.UserID,
			EventID:        event.EventID,
			EventType:      event.Type,
			Channel:        channel,
			Status:         entities.NotificationStatusPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		created, err := u.Notifications.CreateNotification(ctx, notification)
		if err != nil {
			return err
		}
		if !created {
			continue
		}

		taskID, err := u.IDGenerator.NewID(ctx)
		if err != nil {
			return err
		}
		if err := u.Queue.EnqueueDelivery(ctx, ports.DeliveryTask{
			TaskID:         taskID,
			NotificationID: notificationID,
			RunAt:          now,
		}); err != nil {
			return err
		}

		logger.Info("notification enqueued",
			"event", "notification_enqueued",
			"module", "notifications/notification-service",
			"layer", "application",
			"user_id", event.UserID,
			"event_id", event.EventID,
			"event_type", string(event.Type),
			"channel", string(channel),
		)
	}
	return nil
}

func (u RecordEventUseCase) now() time.Time {
	if u.Clock != nil {
		return u.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
