package errors

import "errors"

var (
	ErrInvalidEvent          = errors.New("invalid event record")
	ErrEventNotFound         = errors.New("event not found")
	ErrNotificationNotFound  = errors.New("notification not found")
	ErrInvalidPreference     = errors.New("invalid notification preference")
	ErrEmailTransient        = errors.New("email transport transient failure")
	ErrEmailPermanent        = errors.New("email transport permanent failure")
	ErrStreamPublishFailed   = errors.New("realtime publish failed")
	ErrDeliveryTaskNotFound  = errors.New("delivery task not found")
)
