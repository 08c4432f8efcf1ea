package entities

import "time"

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelRealtime Channel = "realtime"
)

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// Notification is one (event, channel) delivery record.
// The (event_id, channel) pair is unique; creation is the idempotency point
// for fan-out.
type Notification struct {
	NotificationID string
	UserID         string
	EventID        string
	EventType      EventType
	Channel        Channel
	Status         NotificationStatus
	IsRead         bool
	DeliveredAt    *time.Time
	FailedAt       *time.Time
	ReadAt         *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
