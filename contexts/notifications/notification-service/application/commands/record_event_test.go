package commands_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	notificationservice "cratewatch/contexts/notifications/notification-service"
	"cratewatch/contexts/notifications/notification-service/application/commands"
	"cratewatch/contexts/notifications/notification-service/domain/entities"
	domainerrors "cratewatch/contexts/notifications/notification-service/domain/errors"
	"cratewatch/contexts/notifications/notification-service/ports"
)

type captureStream struct {
	mu       sync.Mutex
	payloads map[string][][]byte
}

func newCaptureStream() *captureStream {
	return &captureStream{payloads: make(map[string][][]byte)}
}

func (c *captureStream) PublishRealtime(_ context.Context, userID string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads[userID] = append(c.payloads[userID], payload)
	return nil
}

func TestRecordEventFansOutToBothChannels(t *testing.T) {
	module := notificationservice.NewInMemoryModule(newCaptureStream(), nil)

	event, created, err := module.RecordEvent.Record(context.Background(), ports.EventRecord{
		UserID:         "user-1",
		Type:           entities.EventNewMatch,
		RuleID:         "rule-1",
		ListingID:      "listing-1",
		WatchReleaseID: "release-1",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !created {
		t.Fatal("first record must create the event")
	}
	if event.EventID == "" {
		t.Fatal("event id must be assigned")
	}

	notifications, err := module.ListNotifications.Execute(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(notifications) != 2 {
		t.Fatalf("expected email+realtime notifications, got %d", len(notifications))
	}
	channels := map[entities.Channel]bool{}
	for _, n := range notifications {
		if n.Status != entities.NotificationStatusPending {
			t.Fatalf("new notifications must be pending, got %s", n.Status)
		}
		channels[n.Channel] = true
	}
	if !channels[entities.ChannelEmail] || !channels[entities.ChannelRealtime] {
		t.Fatalf("unexpected channel set: %v", channels)
	}
	if got := module.Store.PendingDeliveryCount(); got != 2 {
		t.Fatalf("expected 2 queued deliveries, got %d", got)
	}
}

func TestRecordEventNewMatchDeduplicates(t *testing.T) {
	module := notificationservice.NewInMemoryModule(newCaptureStream(), nil)

	record := ports.EventRecord{
		UserID:         "user-1",
		Type:           entities.EventNewMatch,
		WatchReleaseID: "release-1",
		ListingID:      "listing-1",
	}
	for i := 0; i < 3; i++ {
		if _, _, err := module.RecordEvent.Record(context.Background(), record); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	events, err := module.ListEvents.Execute(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("NEW_MATCH must deduplicate, got %d events", len(events))
	}
	notifications, err := module.ListNotifications.Execute(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(notifications) != 2 {
		t.Fatalf("dedupe must not refan out, got %d notifications", len(notifications))
	}
}

func TestRecordEventHonorsPreferenceToggles(t *testing.T) {
	module := notificationservice.NewInMemoryModule(newCaptureStream(), nil)

	_, err := module.UpdatePreference.Execute(context.Background(), commands.UpdatePreferenceCommand{
		UserID:          "user-1",
		EmailEnabled:    true,
		RealtimeEnabled: true,
		EventToggles: map[entities.EventType]bool{
			entities.EventNewMatch: false,
		},
	})
	if err != nil {
		t.Fatalf("update preference: %v", err)
	}

	_, created, err := module.RecordEvent.Record(context.Background(), ports.EventRecord{
		UserID:         "user-1",
		Type:           entities.EventNewMatch,
		WatchReleaseID: "release-1",
		ListingID:      "listing-1",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !created {
		t.Fatal("event row must still be created")
	}

	notifications, err := module.ListNotifications.Execute(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(notifications) != 0 {
		t.Fatalf("toggled-off event must not fan out, got %d", len(notifications))
	}
}

func TestRecordEventRuleLifecycleStaysInLog(t *testing.T) {
	module := notificationservice.NewInMemoryModule(newCaptureStream(), nil)

	_, created, err := module.RecordEvent.Record(context.Background(), ports.EventRecord{
		UserID: "user-1",
		Type:   entities.EventRuleCreated,
		RuleID: "rule-1",
	})
	if err != nil || !created {
		t.Fatalf("record lifecycle event: created=%v err=%v", created, err)
	}

	notifications, err := module.ListNotifications.Execute(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(notifications) != 0 {
		t.Fatalf("lifecycle events must not notify, got %d", len(notifications))
	}
}

func TestRecordEventRejectsInvalidInput(t *testing.T) {
	module := notificationservice.NewInMemoryModule(newCaptureStream(), nil)

	_, _, err := module.RecordEvent.Record(context.Background(), ports.EventRecord{
		UserID: "  ",
		Type:   entities.EventNewMatch,
	})
	if !errors.Is(err, domainerrors.ErrInvalidEvent) {
		t.Fatalf("expected invalid event, got %v", err)
	}

	_, _, err = module.RecordEvent.Record(context.Background(), ports.EventRecord{
		UserID: "user-1",
		Type:   entities.EventType("NOT_A_TYPE"),
	})
	if !errors.Is(err, domainerrors.ErrInvalidEvent) {
		t.Fatalf("expected invalid event for bad type, got %v", err)
	}
}
