package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"cratewatch/contexts/notifications/notification-service/domain/entities"
	domainerrors "cratewatch/contexts/notifications/notification-service/domain/errors"
	"cratewatch/contexts/notifications/notification-service/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

type eventModel struct {
	EventID        string    `gorm:"column:event_id;primaryKey"`
	UserID         string    `gorm:"column:user_id;index"`
	EventType      string    `gorm:"column:event_type"`
	WatchReleaseID *string   `gorm:"column:watch_release_id"`
	RuleID         *string   `gorm:"column:rule_id"`
	ListingID      *string   `gorm:"column:listing_id"`
	Payload        []byte    `gorm:"column:payload"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (eventModel) TableName() string { return "events" }

type notificationModel struct {
	NotificationID string     `gorm:"column:notification_id;primaryKey"`
	UserID         string     `gorm:"column:user_id;index"`
	EventID        string     `gorm:"column:event_id"`
	EventType      string     `gorm:"column:event_type"`
	Channel        string     `gorm:"column:channel"`
	Status         string     `gorm:"column:status"`
	IsRead         bool       `gorm:"column:is_read"`
	DeliveredAt    *time.Time `gorm:"column:delivered_at"`
	FailedAt       *time.Time `gorm:"column:failed_at"`
	ReadAt         *time.Time `gorm:"column:read_at"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (notificationModel) TableName() string { return "notifications" }

type preferenceModel struct {
	UserID           string  `gorm:"column:user_id;primaryKey"`
	EmailEnabled     bool    `gorm:"column:email_enabled"`
	RealtimeEnabled  bool    `gorm:"column:realtime_enabled"`
	QuietHoursStart  *int    `gorm:"column:quiet_hours_start"`
	QuietHoursEnd    *int    `gorm:"column:quiet_hours_end"`
	EventToggles     []byte  `gorm:"column:event_toggles"`
	TimezoneOverride *string `gorm:"column:timezone_override"`
	Frequency        string  `gorm:"column:delivery_frequency"`
}

func (preferenceModel) TableName() string { return "user_notification_preferences" }

type deliveryTaskModel struct {
	TaskID         string     `gorm:"column:task_id;primaryKey"`
	NotificationID string     `gorm:"column:notification_id"`
	RunAt          time.Time  `gorm:"column:run_at;index"`
	Attempts       int        `gorm:"column:attempts"`
	ClaimedAt      *time.Time `gorm:"column:claimed_at"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
}

func (deliveryTaskModel) TableName() string { return "delivery_tasks" }

func (r *Repository) AppendEvent(ctx context.Context, event entities.Event) (bool, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return false, err
	}

	row := eventModel{
		EventID:        event.EventID,
		UserID:         event.UserID,
		EventType:      string(event.Type),
		WatchReleaseID: nullable(event.WatchReleaseID),
		RuleID:         nullable(event.RuleID),
		ListingID:      nullable(event.ListingID),
		Payload:        payload,
		CreatedAt:      event.CreatedAt.UTC(),
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		// events_new_match_dedupe guards (user_id, event_type,
		// watch_release_id, listing_id) for NEW_MATCH rows.
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *Repository) ListEventsByUser(ctx context.Context, userID string, limit int) ([]entities.Event, error) {
	var rows []eventModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]entities.Event, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) CreateNotification(ctx context.Context, notification entities.Notification) (bool, error) {
	row := notificationModel{
		NotificationID: notification.NotificationID,
		UserID:         notification.UserID,
		EventID:        notification.EventID,
		EventType:      string(notification.EventType),
		Channel:        string(notification.Channel),
		Status:         string(notification.Status),
		IsRead:         notification.IsRead,
		CreatedAt:      notification.CreatedAt.UTC(),
		UpdatedAt:      notification.UpdatedAt.UTC(),
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}, {Name: "channel"}},
			DoNothing: true,
		}).
		Create(&row)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) GetNotification(ctx context.Context, notificationID string) (entities.Notification, error) {
	var row notificationModel
	err := r.db.WithContext(ctx).
		Where("notification_id = ?", notificationID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Notification{}, domainerrors.ErrNotificationNotFound
		}
		return entities.Notification{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) MarkDelivered(ctx context.Context, notificationID string, deliveredAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&notificationModel{}).
		Where("notification_id = ? AND status <> ?", notificationID, string(entities.NotificationStatusSent)).
		Updates(map[string]any{
			"status":       string(entities.NotificationStatusSent),
			"delivered_at": deliveredAt.UTC(),
			"updated_at":   deliveredAt.UTC(),
		}).
		Error
}

func (r *Repository) MarkFailed(ctx context.Context, notificationID string, failedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&notificationModel{}).
		Where("notification_id = ?", notificationID).
		Updates(map[string]any{
			"status":     string(entities.NotificationStatusFailed),
			"failed_at":  failedAt.UTC(),
			"updated_at": failedAt.UTC(),
		}).
		Error
}

func (r *Repository) MarkRead(ctx context.Context, notificationID string, userID string, readAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&notificationModel{}).
		Where("notification_id = ? AND user_id = ?", notificationID, userID).
		Updates(map[string]any{
			"is_read":    true,
			"read_at":    readAt.UTC(),
			"updated_at": readAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotificationNotFound
	}
	return nil
}

func (r *Repository) ListNotificationsByUser(ctx context.Context, userID string, limit int) ([]entities.Notification, error) {
	var rows []notificationModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]entities.Notification, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) GetPreference(ctx context.Context, userID string) (entities.Preference, bool, error) {
	var row preferenceModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Preference{}, false, nil
		}
		return entities.Preference{}, false, err
	}

	preference, err := row.toEntity()
	if err != nil {
		return entities.Preference{}, false, err
	}
	return preference, true, nil
}

func (r *Repository) SavePreference(ctx context.Context, preference entities.Preference) error {
	toggles, err := json.Marshal(preference.EventToggles)
	if err != nil {
		return err
	}
	if preference.EventToggles == nil {
		toggles = nil
	}

	row := preferenceModel{
		UserID:           preference.UserID,
		EmailEnabled:     preference.EmailEnabled,
		RealtimeEnabled:  preference.RealtimeEnabled,
		QuietHoursStart:  preference.QuietHoursStart,
		QuietHoursEnd:    preference.QuietHoursEnd,
		EventToggles:     toggles,
		TimezoneOverride: nullable(preference.TimezoneOverride),
		Frequency:        string(preference.Frequency),
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(&row).
		Error
}

func (r *Repository) EnqueueDelivery(ctx context.Context, task ports.DeliveryTask) error {
	row := deliveryTaskModel{
		TaskID:         task.TaskID,
		NotificationID: task.NotificationID,
		RunAt:          task.RunAt.UTC(),
		Attempts:       task.Attempts,
		CreatedAt:      task.RunAt.UTC(),
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

// ClaimDueDeliveries stamps claimed_at on a batch of due tasks using
// FOR UPDATE SKIP LOCKED so concurrent workers never pick the same task.
func (r *Repository) ClaimDueDeliveries(ctx context.Context, now time.Time, limit int) ([]ports.DeliveryTask, error) {
	var rows []deliveryTaskModel
	err := r.db.WithContext(ctx).Raw(`
		UPDATE delivery_tasks
		SET claimed_at = ?
		WHERE task_id IN (
			SELECT task_id FROM delivery_tasks
			WHERE run_at <= ? AND claimed_at IS NULL
			ORDER BY run_at ASC
			LIMIT ?
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *`,
		now.UTC(), now.UTC(), limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	tasks := make([]ports.DeliveryTask, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, ports.DeliveryTask{
			TaskID:         row.TaskID,
			NotificationID: row.NotificationID,
			RunAt:          row.RunAt,
			Attempts:       row.Attempts,
		})
	}
	return tasks, nil
}

func (r *Repository) RescheduleDelivery(ctx context.Context, taskID string, runAt time.Time, attempts int) error {
	result := r.db.WithContext(ctx).
		Model(&deliveryTaskModel{}).
		Where("task_id = ?", taskID).
		Updates(map[string]any{
			"run_at":     runAt.UTC(),
			"attempts":   attempts,
			"claimed_at": nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrDeliveryTaskNotFound
	}
	return nil
}

func (r *Repository) CompleteDelivery(ctx context.Context, taskID string) error {
	return r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Delete(&deliveryTaskModel{}).
		Error
}

// ReleaseExpiredClaims unsticks tasks claimed by a worker that died before
// completing or rescheduling them.
func (r *Repository) ReleaseExpiredClaims(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&deliveryTaskModel{}).
		Where("claimed_at IS NOT NULL AND claimed_at < ?", cutoff.UTC()).
		Update("claimed_at", nil)
	return result.RowsAffected, result.Error
}

func (m eventModel) toEntity() entities.Event {
	var payload map[string]any
	if len(m.Payload) > 0 {
		_ = json.Unmarshal(m.Payload, &payload)
	}
	return entities.Event{
		EventID:        m.EventID,
		UserID:         m.UserID,
		Type:           entities.EventType(m.EventType),
		WatchReleaseID: deref(m.WatchReleaseID),
		RuleID:         deref(m.RuleID),
		ListingID:      deref(m.ListingID),
		Payload:        payload,
		CreatedAt:      m.CreatedAt,
	}
}

func (m notificationModel) toEntity() entities.Notification {
	return entities.Notification{
		NotificationID: m.NotificationID,
		UserID:         m.UserID,
		EventID:        m.EventID,
		EventType:      entities.EventType(m.EventType),
		Channel:        entities.Channel(m.Channel),
		Status:         entities.NotificationStatus(m.Status),
		IsRead:         m.IsRead,
		DeliveredAt:    m.DeliveredAt,
		FailedAt:       m.FailedAt,
		ReadAt:         m.ReadAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func (m preferenceModel) toEntity() (entities.Preference, error) {
	var toggles map[entities.EventType]bool
	if len(m.EventToggles) > 0 {
		if err := json.Unmarshal(m.EventToggles, &toggles); err != nil {
			return entities.Preference{}, err
		}
	}
	return entities.Preference{
		UserID:           m.UserID,
		EmailEnabled:     m.EmailEnabled,
		RealtimeEnabled:  m.RealtimeEnabled,
		QuietHoursStart:  m.QuietHoursStart,
		QuietHoursEnd:    m.QuietHoursEnd,
		EventToggles:     toggles,
		TimezoneOverride: deref(m.TimezoneOverride),
		Frequency:        entities.DeliveryFrequency(m.Frequency),
	}, nil
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
