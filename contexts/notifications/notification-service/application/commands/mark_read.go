package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "cratewatch/contexts/notifications/notification-service/application"
	domainerrors "cratewatch/contexts/notifications/notification-service/domain/errors"
	"cratewatch/contexts/notifications/notification-service/ports"
)

type MarkReadUseCase struct {
	Notifications ports.NotificationRepository
	Clock         ports.Clock
	Logger        *slog.Logger
}

// Execute marks a notification read for its owning user. Cross-user ids
// surface as not found.
func (u MarkReadUseCase) Execute(ctx context.Context, userID string, notificationID string) error {
	logger := application.ResolveLogger(u.Logger)
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(notificationID) == "" {
		return domainerrors.ErrNotificationNotFound
	}

	now := time.Now().UTC()
	if u.Clock != nil {
		now = u.Clock.Now().UTC()
	}

	if err := u.Notifications.MarkRead(ctx, notificationID, userID, now); err != nil {
		logger.Debug("mark read failed",
			"event", "notification_mark_read_failed",
			"module", "notifications/notification-service",
			"layer", "application",
			"user_id", userID,
			"notification_id", notificationID,
			"error", err.Error(),
		)
		return err
	}
	return nil
}
