package email

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	domainerrors "cratewatch/contexts/notifications/notification-service/domain/errors"
	"cratewatch/contexts/notifications/notification-service/ports"
)

// StubSender is the development email transport: it records messages instead
// of sending them. The production transport (SES) lives outside the core and
// satisfies the same port.
type StubSender struct {
	Logger *slog.Logger

	mu       sync.Mutex
	sent     []ports.EmailMessage
	failWith error
}

// FailWith forces the next sends to fail; wrap domainerrors.ErrEmailTransient
// to exercise the retry path.
func (s *StubSender) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *StubSender) SendNotification(_ context.Context, message ports.EmailMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return s.failWith
	}
	s.sent = append(s.sent, message)
	if s.Logger != nil {
		s.Logger.Info("stub email recorded",
			"event", "notification_stub_email_sent",
			"module", "notifications/notification-service",
			"layer", "adapter",
			"user_id", message.UserID,
			"notification_id", message.NotificationID,
			"event_type", string(message.EventType),
		)
	}
	return nil
}

// Sent returns a copy of the recorded messages.
func (s *StubSender) Sent() []ports.EmailMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.EmailMessage, len(s.sent))
	copy(out, s.sent)
	return out
}

var _ ports.EmailSender = (*StubSender)(nil)

// TransientError wraps a cause as a retryable transport failure.
func TransientError(cause error) error {
	if cause == nil {
		return domainerrors.ErrEmailTransient
	}
	return fmt.Errorf("%w: %v", domainerrors.ErrEmailTransient, cause)
}
