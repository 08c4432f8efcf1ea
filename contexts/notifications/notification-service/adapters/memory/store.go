package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	application "cratewatch/contexts/notifications/notification-service/application"
	"cratewatch/contexts/notifications/notification-service/domain/entities"
	domainerrors "cratewatch/contexts/notifications/notification-service/domain/errors"
	"cratewatch/contexts/notifications/notification-service/ports"
)

// Store is the in-memory adapter implementing every notification port for
// local runtime and tests. Not production persistence.
type Store struct {
	mu            sync.RWMutex
	events        map[string]entities.Event
	eventOrder    []string
	matchDedupe   map[string]struct{}
	notifications map[string]entities.Notification
	notifByPair   map[string]string
	preferences   map[string]entities.Preference
	tasks         map[string]ports.DeliveryTask
	claimed       map[string]time.Time
	timezones     map[string]string
	sequence      uint64
	now           time.Time
	logger        *slog.Logger
}

func NewStore(logger *slog.Logger) *Store {
	return &Store{
		events:        make(map[string]entities.Event),
		matchDedupe:   make(map[string]struct{}),
		notifications: make(map[string]entities.Notification),
		notifByPair:   make(map[string]string),
		preferences:   make(map[string]entities.Preference),
		tasks:         make(map[string]ports.DeliveryTask),
		claimed:       make(map[string]time.Time),
		timezones:     make(map[string]string),
		logger:        application.ResolveLogger(logger),
	}
}

// SetNow pins the store clock for deterministic tests; zero means wall clock.
func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) SetTimezone(userID string, timezone string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timezones[userID] = timezone
}

func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.now.IsZero() {
		return s.now
	}
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	seq := atomic.AddUint64(&s.sequence, 1)
	return fmt.Sprintf("mem-%06d", seq), nil
}

func (s *Store) GetTimezone(_ context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timezones[userID], nil
}

func matchDedupeKey(event entities.Event) string {
	return event.UserID + "|" + string(event.Type) + "|" + event.WatchReleaseID + "|" + event.ListingID
}

func (s *Store) AppendEvent(_ context.Context, event entities.Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.Type == entities.EventNewMatch && event.WatchReleaseID != "" && event.ListingID != "" {
		key := matchDedupeKey(event)
		if _, exists := s.matchDedupe[key]; exists {
			return false, nil
		}
		s.matchDedupe[key] = struct{}{}
	}

	s.events[event.EventID] = event
	s.eventOrder = append(s.eventOrder, event.EventID)
	return true, nil
}

func (s *Store) ListEventsByUser(_ context.Context, userID string, limit int) ([]entities.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Event, 0)
	for i := len(s.eventOrder) - 1; i >= 0 && len(items) < limit; i-- {
		event := s.events[s.eventOrder[i]]
		if event.UserID == userID {
			items = append(items, event)
		}
	}
	return items, nil
}

func pairKey(eventID string, channel entities.Channel) string {
	return eventID + "|" + string(channel)
}

func (s *Store) CreateNotification(_ context.Context, notification entities.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(notification.EventID, notification.Channel)
	if _, exists := s.notifByPair[key]; exists {
		return false, nil
	}
	s.notifByPair[key] = notification.NotificationID
	s.notifications[notification.NotificationID] = notification
	return true, nil
}

func (s *Store) GetNotification(_ context.Context, notificationID string) (entities.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notification, ok := s.notifications[notificationID]
	if !ok {
		return entities.Notification{}, domainerrors.ErrNotificationNotFound
	}
	return notification, nil
}

func (s *Store) MarkDelivered(_ context.Context, notificationID string, deliveredAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notification, ok := s.notifications[notificationID]
	if !ok {
		return domainerrors.ErrNotificationNotFound
	}
	if notification.Status == entities.NotificationStatusSent {
		return nil
	}
	notification.Status = entities.NotificationStatusSent
	notification.DeliveredAt = &deliveredAt
	notification.UpdatedAt = deliveredAt
	s.notifications[notificationID] = notification
	return nil
}

func (s *Store) MarkFailed(_ context.Context, notificationID string, failedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notification, ok := s.notifications[notificationID]
	if !ok {
		return domainerrors.ErrNotificationNotFound
	}
	notification.Status = entities.NotificationStatusFailed
	notification.FailedAt = &failedAt
	notification.UpdatedAt = failedAt
	s.notifications[notificationID] = notification
	return nil
}

func (s *Store) MarkRead(_ context.Context, notificationID string, userID string, readAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notification, ok := s.notifications[notificationID]
	if !ok || notification.UserID != userID {
		return domainerrors.ErrNotificationNotFound
	}
	notification.IsRead = true
	notification.ReadAt = &readAt
	notification.UpdatedAt = readAt
	s.notifications[notificationID] = notification
	return nil
}

func (s *Store) ListNotificationsByUser(_ context.Context, userID string, limit int) ([]entities.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Notification, 0)
	for _, notification := range s.notifications {
		if notification.UserID == userID {
			items = append(items, notification)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) GetPreference(_ context.Context, userID string) (entities.Preference, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	preference, ok := s.preferences[userID]
	return preference, ok, nil
}

func (s *Store) SavePreference(_ context.Context, preference entities.Preference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences[preference.UserID] = preference
	return nil
}

func (s *Store) EnqueueDelivery(_ context.Context, task ports.DeliveryTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.TaskID] = task
	return nil
}

func (s *Store) ClaimDueDeliveries(_ context.Context, now time.Time, limit int) ([]ports.DeliveryTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]ports.DeliveryTask, 0, limit)
	for _, task := range s.tasks {
		if len(due) >= limit {
			break
		}
		if _, taken := s.claimed[task.TaskID]; taken {
			continue
		}
		if !task.RunAt.After(now) {
			s.claimed[task.TaskID] = now
			due = append(due, task)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RunAt.Before(due[j].RunAt) })
	return due, nil
}

func (s *Store) RescheduleDelivery(_ context.Context, taskID string, runAt time.Time, attempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return domainerrors.ErrDeliveryTaskNotFound
	}
	task.RunAt = runAt
	task.Attempts = attempts
	s.tasks[taskID] = task
	delete(s.claimed, taskID)
	return nil
}

func (s *Store) CompleteDelivery(_ context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, taskID)
	delete(s.claimed, taskID)
	return nil
}

func (s *Store) ReleaseExpiredClaims(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var released int64
	for taskID, claimedAt := range s.claimed {
		if claimedAt.Before(cutoff) {
			delete(s.claimed, taskID)
			released++
		}
	}
	return released, nil
}

// PendingDeliveryCount reports queued tasks; used by tests.
func (s *Store) PendingDeliveryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
