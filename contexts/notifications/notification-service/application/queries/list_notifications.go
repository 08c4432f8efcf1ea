package queries

import (
	"context"
	"log/slog"
	"strings"

	application "cratewatch/contexts/notifications/notification-service/application"
	"cratewatch/contexts/notifications/notification-service/domain/entities"
	domainerrors "cratewatch/contexts/notifications/notification-service/domain/errors"
	"cratewatch/contexts/notifications/notification-service/ports"
)

type ListNotificationsUseCase struct {
	Notifications ports.NotificationRepository
	Logger        *slog.Logger
}

func (u ListNotificationsUseCase) Execute(ctx context.Context, userID string, limit int) ([]entities.Notification, error) {
	logger := application.ResolveLogger(u.Logger)
	if strings.TrimSpace(userID) == "" {
		return nil, domainerrors.ErrNotificationNotFound
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	items, err := u.Notifications.ListNotificationsByUser(ctx, userID, limit)
	if err != nil {
		logger.Error("list notifications failed",
			"event", "notification_list_failed",
			"module", "notifications/notification-service",
			"layer", "application",
			"user_id", userID,
			"error", err.Error(),
		)
		return nil, err
	}
	return items, nil
}

type ListEventsUseCase struct {
	Events ports.EventRepository
	Logger *slog.Logger
}

func (u ListEventsUseCase) Execute(ctx context.Context, userID string, limit int) ([]entities.Event, error) {
	logger := application.ResolveLogger(u.Logger)
	if strings.TrimSpace(userID) == "" {
		return nil, domainerrors.ErrEventNotFound
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	items, err := u.Events.ListEventsByUser(ctx, userID, limit)
	if err != nil {
		logger.Error("list events failed",
			"event", "notification_event_list_failed",
			"module", "notifications/notification-service",
			"layer", "application",
			"user_id", userID,
			"error", err.Error(),
		)
		return nil, err
	}
	return items, nil
}
