package commands

import (
	"context"
	"log/slog"
	"strings"

	application "cratewatch/contexts/notifications/notification-service/application"
	"cratewatch/contexts/notifications/notification-service/domain/entities"
	domainerrors "cratewatch/contexts/notifications/notification-service/domain/errors"
	"cratewatch/contexts/notifications/notification-service/ports"
)

type UpdatePreferenceCommand struct {
	UserID           string
	EmailEnabled     bool
	RealtimeEnabled  bool
	QuietHoursStart  *int
	QuietHoursEnd    *int
	EventToggles     map[entities.EventType]bool
	TimezoneOverride string
	Frequency        entities.DeliveryFrequency
}

type UpdatePreferenceUseCase struct {
	Preferences ports.PreferenceRepository
	Logger      *slog.Logger
}

func (u UpdatePreferenceUseCase) Execute(ctx context.Context, cmd UpdatePreferenceCommand) (entities.Preference, error) {
	logger := application.ResolveLogger(u.Logger)
	if strings.TrimSpace(cmd.UserID) == "" {
		return entities.Preference{}, domainerrors.ErrInvalidPreference
	}
	if !validHourPointer(cmd.QuietHoursStart) || !validHourPointer(cmd.QuietHoursEnd) {
		return entities.Preference{}, domainerrors.ErrInvalidPreference
	}
	if (cmd.QuietHoursStart == nil) != (cmd.QuietHoursEnd == nil) {
		return entities.Preference{}, domainerrors.ErrInvalidPreference
	}
	for eventType := range cmd.EventToggles {
		if !eventType.Valid() {
			return entities.Preference{}, domainerrors.ErrInvalidPreference
		}
	}

	frequency := cmd.Frequency
	if frequency == "" {
		frequency = entities.FrequencyInstant
	}
	switch frequency {
	case entities.FrequencyInstant, entities.FrequencyHourly, entities.FrequencyDaily:
	default:
		return entities.Preference{}, domainerrors.ErrInvalidPreference
	}

	preference := entities.Preference{
		UserID:           cmd.UserID,
		EmailEnabled:     cmd.EmailEnabled,
		RealtimeEnabled:  cmd.RealtimeEnabled,
		QuietHoursStart:  cmd.QuietHoursStart,
		QuietHoursEnd:    cmd.QuietHoursEnd,
		EventToggles:     cmd.EventToggles,
		TimezoneOverride: strings.TrimSpace(cmd.TimezoneOverride),
		Frequency:        frequency,
	}

	if err := u.Preferences.SavePreference(ctx, preference); err != nil {
		logger.Error("preference save failed",
			"event", "notification_preference_save_failed",
			"module", "notifications/notification-service",
			"layer", "application",
			"user_id", cmd.UserID,
			"error", err.Error(),
		)
		return entities.Preference{}, err
	}
	return preference, nil
}

func validHourPointer(hour *int) bool {
	return hour == nil || (*hour >= 0 && *hour <= 23)
}
