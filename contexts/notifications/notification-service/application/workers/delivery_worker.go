package workers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	application "cratewatch/contexts/notifications/notification-service/application"
	"cratewatch/contexts/notifications/notification-service/domain/entities"
	domainerrors "cratewatch/contexts/notifications/notification-service/domain/errors"
	"cratewatch/contexts/notifications/notification-service/domain/services"
	"cratewatch/contexts/notifications/notification-service/ports"
	"cratewatch/internal/platform/metrics"
)

// DeliveryWorker drains due delivery tasks and dispatches notifications to
// their channel transport. Safe to run from several worker processes at once:
// task claiming is exclusive and completed deliveries are idempotent.
type DeliveryWorker struct {
	Notifications  ports.NotificationRepository
	Preferences    ports.PreferenceRepository
	Queue          ports.DeliveryQueue
	Users          ports.UserDirectory
	Email          ports.EmailSender
	Stream         ports.StreamPublisher
	Clock          ports.Clock
	BatchSize      int
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	ClaimTTL       time.Duration
	Metrics        *metrics.DeliveryMetrics
	Logger         *slog.Logger
}

type DeliveryCycleSummary struct {
	Claimed   int
	Delivered int
	Deferred  int
	Retried   int
	Failed    int
}

func (w DeliveryWorker) RunOnce(ctx context.Context) (DeliveryCycleSummary, error) {
	logger := application.ResolveLogger(w.Logger)
	limit := w.BatchSize
	if limit <= 0 {
		limit = 50
	}
	now := w.now()

	// Sweep claims left behind by a worker that died between claiming and
	// completing or rescheduling, so those tasks become due again.
	if released, err := w.Queue.ReleaseExpiredClaims(ctx, now.Add(-w.claimTTL())); err != nil {
		logger.Error("claim expiry sweep failed",
			"event", "notification_claim_expiry_failed",
			"module", "notifications/notification-service",
			"layer", "worker",
			"error", err.Error(),
		)
	} else if released > 0 {
		logger.Info("claim expiry sweep completed",
			"event", "notification_claim_expiry_completed",
			"module", "notifications/notification-service",
			"layer", "worker",
			"released_count", released,
		)
	}

	tasks, err := w.Queue.ClaimDueDeliveries(ctx, now, limit)
	if err != nil {
		logger.Error("delivery claim failed",
			"event", "notification_delivery_claim_failed",
			"module", "notifications/notification-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return DeliveryCycleSummary{}, err
	}

	summary := DeliveryCycleSummary{Claimed: len(tasks)}
	for _, task := range tasks {
		if err := w.deliver(ctx, task, &summary); err != nil {
			logger.Error("delivery task failed",
				"event", "notification_delivery_task_failed",
				"module", "notifications/notification-service",
				"layer", "worker",
				"task_id", task.TaskID,
				"notification_id", task.NotificationID,
				"error", err.Error(),
			)
			return summary, err
		}
	}

	w.Metrics.ObserveDelivered(summary.Delivered)
	w.Metrics.ObserveDeferred(summary.Deferred)
	w.Metrics.ObserveFailed(summary.Failed)

	if summary.Claimed > 0 {
		logger.Info("delivery cycle completed",
			"event", "notification_delivery_cycle_completed",
			"module", "notifications/notification-service",
			"layer", "worker",
			"claimed", summary.Claimed,
			"delivered", summary.Delivered,
			"deferred", summary.Deferred,
			"retried", summary.Retried,
			"failed", summary.Failed,
		)
	}
	return summary, nil
}

func (w DeliveryWorker) deliver(ctx context.Context, task ports.DeliveryTask, summary *DeliveryCycleSummary) error {
	logger := application.ResolveLogger(w.Logger)
	now := w.now()

	notification, err := w.Notifications.GetNotification(ctx, task.NotificationID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotificationNotFound) {
			// Lost race with a cascade delete; drop the task.
			logger.Warn("delivery target missing",
				"event", "notification_delivery_target_missing",
				"module", "notifications/notification-service",
				"layer", "worker",
				"notification_id", task.NotificationID,
			)
			return w.Queue.CompleteDelivery(ctx, task.TaskID)
		}
		return err
	}

	if notification.Status == entities.NotificationStatusSent {
		return w.Queue.CompleteDelivery(ctx, task.TaskID)
	}

	preference, found, err := w.Preferences.GetPreference(ctx, notification.UserID)
	if err != nil {
		return err
	}
	if !found {
		preference = entities.DefaultPreference(notification.UserID)
	}

	timezone := ""
	if w.Users != nil {
		if tz, err := w.Users.GetTimezone(ctx, notification.UserID); err == nil {
			timezone = tz
		}
	}

	if deferSeconds := services.DeferSeconds(preference, timezone, notification.CreatedAt, now); deferSeconds > 0 {
		summary.Deferred++
		return w.Queue.RescheduleDelivery(ctx, task.TaskID, now.Add(time.Duration(deferSeconds)*time.Second), task.Attempts)
	}

	switch notification.Channel {
	case entities.ChannelEmail:
		return w.deliverEmail(ctx, task, notification, now, summary)
	case entities.ChannelRealtime:
		return w.deliverRealtime(ctx, task, notification, now, summary)
	default:
		// Unknown channel rows are terminal failures.
		summary.Failed++
		if err := w.Notifications.MarkFailed(ctx, notification.NotificationID, now); err != nil {
			return err
		}
		return w.Queue.CompleteDelivery(ctx, task.TaskID)
	}
}

func (w DeliveryWorker) deliverEmail(
	ctx context.Context,
	task ports.DeliveryTask,
	notification entities.Notification,
	now time.Time,
	summary *DeliveryCycleSummary,
) error {
	err := w.Email.SendNotification(ctx, ports.EmailMessage{
		UserID:         notification.UserID,
		NotificationID: notification.NotificationID,
		EventID:        notification.EventID,
		EventType:      notification.EventType,
	})
	if err == nil {
		summary.Delivered++
		if err := w.Notifications.MarkDelivered(ctx, notification.NotificationID, now); err != nil {
			return err
		}
		return w.Queue.CompleteDelivery(ctx, task.TaskID)
	}

	if errors.Is(err, domainerrors.ErrEmailTransient) {
		attempts := task.Attempts + 1
		if attempts >= w.maxAttempts() {
			summary.Failed++
			if err := w.Notifications.MarkFailed(ctx, notification.NotificationID, now); err != nil {
				return err
			}
			return w.Queue.CompleteDelivery(ctx, task.TaskID)
		}
		summary.Retried++
		return w.Queue.RescheduleDelivery(ctx, task.TaskID, now.Add(w.retryDelay(attempts)), attempts)
	}

	// Permanent transport failure.
	summary.Failed++
	if markErr := w.Notifications.MarkFailed(ctx, notification.NotificationID, now); markErr != nil {
		return markErr
	}
	return w.Queue.CompleteDelivery(ctx, task.TaskID)
}

func (w DeliveryWorker) deliverRealtime(
	ctx context.Context,
	task ports.DeliveryTask,
	notification entities.Notification,
	now time.Time,
	summary *DeliveryCycleSummary,
) error {
	payload, err := json.Marshal(map[string]any{
		"notification_id": notification.NotificationID,
		"event_id":        notification.EventID,
		"event_type":      string(notification.EventType),
		"created_at":      notification.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	if err := w.Stream.PublishRealtime(ctx, notification.UserID, payload); err != nil {
		attempts := task.Attempts + 1
		if attempts >= w.maxAttempts() {
			summary.Failed++
			if markErr := w.Notifications.MarkFailed(ctx, notification.NotificationID, now); markErr != nil {
				return markErr
			}
			return w.Queue.CompleteDelivery(ctx, task.TaskID)
		}
		summary.Retried++
		return w.Queue.RescheduleDelivery(ctx, task.TaskID, now.Add(w.retryDelay(attempts)), attempts)
	}

	summary.Delivered++
	if err := w.Notifications.MarkDelivered(ctx, notification.NotificationID, now); err != nil {
		return err
	}
	return w.Queue.CompleteDelivery(ctx, task.TaskID)
}

func (w DeliveryWorker) maxAttempts() int {
	if w.MaxAttempts > 0 {
		return w.MaxAttempts
	}
	return 5
}

func (w DeliveryWorker) claimTTL() time.Duration {
	if w.ClaimTTL > 0 {
		return w.ClaimTTL
	}
	return 10 * time.Minute
}

// retryDelay is exponential in the attempt count, capped, with jitter so
// synchronized failures do not resynchronize on retry.
func (w DeliveryWorker) retryDelay(attempts int) time.Duration {
	base := w.RetryBaseDelay
	if base <= 0 {
		base = 30 * time.Second
	}
	max := w.RetryMaxDelay
	if max <= 0 {
		max = 15 * time.Minute
	}

	delay := base
	for i := 1; i < attempts && delay < max; i++ {
		delay *= 2
	}
	if delay > max {
		delay = max
	}
	jitter := time.Duration(rand.Int63n(int64(base)))
	return delay + jitter
}

func (w DeliveryWorker) now() time.Time {
	if w.Clock != nil {
		return w.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
