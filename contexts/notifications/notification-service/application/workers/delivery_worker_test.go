package workers_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	notificationservice "cratewatch/contexts/notifications/notification-service"
	"cratewatch/contexts/notifications/notification-service/adapters/email"
	"cratewatch/contexts/notifications/notification-service/domain/entities"
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

func (c *captureStream) count(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads[userID])
}

func seedMatchEvent(t *testing.T, module notificationservice.Module, userID string) {
	t.Helper()
	_, created, err := module.RecordEvent.Record(context.Background(), ports.EventRecord{
		UserID:         userID,
		Type:           entities.EventNewMatch,
		WatchReleaseID: "release-1",
		ListingID:      "listing-1",
	})
	if err != nil || !created {
		t.Fatalf("seed event: created=%v err=%v", created, err)
	}
}

func TestDeliveryWorkerDeliversBothChannels(t *testing.T) {
	stream := newCaptureStream()
	module := notificationservice.NewInMemoryModule(stream, nil)
	seedMatchEvent(t, module, "user-1")

	summary, err := module.DeliveryWorker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if summary.Claimed != 2 || summary.Delivered != 2 {
		t.Fatalf("expected 2 claimed and delivered, got %+v", summary)
	}

	if stream.count("user-1") != 1 {
		t.Fatalf("expected one realtime publish, got %d", stream.count("user-1"))
	}
	if len(module.Email.Sent()) != 1 {
		t.Fatalf("expected one stub email, got %d", len(module.Email.Sent()))
	}

	notifications, err := module.ListNotifications.Execute(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, n := range notifications {
		if n.Status != entities.NotificationStatusSent || n.DeliveredAt == nil {
			t.Fatalf("notification not marked sent: %+v", n)
		}
	}
	if module.Store.PendingDeliveryCount() != 0 {
		t.Fatalf("queue must drain, %d left", module.Store.PendingDeliveryCount())
	}
}

func TestDeliveryIsIdempotentAfterSuccess(t *testing.T) {
	stream := newCaptureStream()
	module := notificationservice.NewInMemoryModule(stream, nil)
	seedMatchEvent(t, module, "user-1")

	if _, err := module.DeliveryWorker.RunOnce(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first, err := module.ListNotifications.Execute(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	// Re-enqueue the already-sent notifications by hand; delivery must no-op.
	for _, n := range first {
		if err := module.Store.EnqueueDelivery(context.Background(), ports.DeliveryTask{
			TaskID:         "replay-" + n.NotificationID,
			NotificationID: n.NotificationID,
			RunAt:          time.Now().Add(-time.Minute),
		}); err != nil {
			t.Fatalf("enqueue replay: %v", err)
		}
	}
	if _, err := module.DeliveryWorker.RunOnce(context.Background()); err != nil {
		t.Fatalf("replay run: %v", err)
	}

	second, err := module.ListNotifications.Execute(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("list after replay: %v", err)
	}
	deliveredAt := make(map[string]time.Time, len(first))
	for _, n := range first {
		deliveredAt[n.NotificationID] = *n.DeliveredAt
	}
	for _, n := range second {
		if !n.DeliveredAt.Equal(deliveredAt[n.NotificationID]) {
			t.Fatal("delivered_at must not change on replay")
		}
	}
	if stream.count("user-1") != 1 {
		t.Fatalf("replay must not republish, got %d", stream.count("user-1"))
	}
}

func TestDeliveryRetriesTransientEmailFailure(t *testing.T) {
	stream := newCaptureStream()
	module := notificationservice.NewInMemoryModule(stream, nil)
	seedMatchEvent(t, module, "user-1")

	module.Email.FailWith(email.TransientError(errors.New("smtp timeout")))
	summary, err := module.DeliveryWorker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if summary.Retried != 1 {
		t.Fatalf("expected one retried email delivery, got %+v", summary)
	}

	// The email task is rescheduled into the future and stays queued.
	if module.Store.PendingDeliveryCount() != 1 {
		t.Fatalf("expected email task requeued, got %d", module.Store.PendingDeliveryCount())
	}

	// Once the transport recovers the retry succeeds.
	module.Email.FailWith(nil)
	module.Store.SetNow(time.Now().UTC().Add(time.Hour))
	summary, err = module.DeliveryWorker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("retry run: %v", err)
	}
	if summary.Delivered != 1 {
		t.Fatalf("expected retried delivery to succeed, got %+v", summary)
	}
}

func TestDeliveryPermanentEmailFailureMarksFailed(t *testing.T) {
	stream := newCaptureStream()
	module := notificationservice.NewInMemoryModule(stream, nil)
	seedMatchEvent(t, module, "user-1")

	module.Email.FailWith(errors.New("rejected recipient"))
	summary, err := module.DeliveryWorker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("expected one permanent failure, got %+v", summary)
	}

	notifications, err := module.ListNotifications.Execute(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var failed bool
	for _, n := range notifications {
		if n.Channel == entities.ChannelEmail {
			failed = n.Status == entities.NotificationStatusFailed && n.FailedAt != nil
		}
	}
	if !failed {
		t.Fatal("email notification must be marked failed with failed_at")
	}
}

func TestDeliveryDefersDuringQuietHours(t *testing.T) {
	stream := newCaptureStream()
	module := notificationservice.NewInMemoryModule(stream, nil)

	// Pin now to 23:30 UTC inside a 22->07 quiet window.
	now := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)
	module.Store.SetNow(now)

	start, end := 22, 7
	pref := entities.DefaultPreference("user-1")
	pref.QuietHoursStart = &start
	pref.QuietHoursEnd = &end
	if err := module.Store.SavePreference(context.Background(), pref); err != nil {
		t.Fatalf("save preference: %v", err)
	}

	seedMatchEvent(t, module, "user-1")
	summary, err := module.DeliveryWorker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if summary.Deferred != 2 || summary.Delivered != 0 {
		t.Fatalf("quiet hours must defer both channels, got %+v", summary)
	}
	if stream.count("user-1") != 0 {
		t.Fatal("nothing may publish during quiet hours")
	}

	// After the window ends deliveries drain.
	module.Store.SetNow(time.Date(2026, 3, 2, 7, 0, 5, 0, time.UTC))
	summary, err = module.DeliveryWorker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("post-window run: %v", err)
	}
	if summary.Delivered != 2 {
		t.Fatalf("expected deliveries after quiet hours, got %+v", summary)
	}
}

func TestDeliveryHourlyFrequencyDeliversAtBucketBoundary(t *testing.T) {
	stream := newCaptureStream()
	module := notificationservice.NewInMemoryModule(stream, nil)

	created := time.Date(2026, 3, 1, 14, 40, 0, 0, time.UTC)
	module.Store.SetNow(created)

	pref := entities.DefaultPreference("user-1")
	pref.Frequency = entities.FrequencyHourly
	if err := module.Store.SavePreference(context.Background(), pref); err != nil {
		t.Fatalf("save preference: %v", err)
	}

	seedMatchEvent(t, module, "user-1")
	summary, err := module.DeliveryWorker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if summary.Deferred != 2 || summary.Delivered != 0 {
		t.Fatalf("mid-bucket run must defer both channels, got %+v", summary)
	}

	// The reschedule lands run_at on the bucket boundary; the tick at that
	// instant must deliver instead of chasing the following boundary.
	module.Store.SetNow(time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC))
	summary, err = module.DeliveryWorker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("boundary run: %v", err)
	}
	if summary.Delivered != 2 || summary.Deferred != 0 {
		t.Fatalf("expected boundary-tick delivery, got %+v", summary)
	}
	if module.Store.PendingDeliveryCount() != 0 {
		t.Fatalf("queue must drain, %d left", module.Store.PendingDeliveryCount())
	}
}

func TestDeliveryReclaimsTasksAbandonedByDeadWorker(t *testing.T) {
	stream := newCaptureStream()
	module := notificationservice.NewInMemoryModule(stream, nil)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	module.Store.SetNow(start)
	seedMatchEvent(t, module, "user-1")

	// A worker claims both tasks and dies before completing them.
	claimed, err := module.Store.ClaimDueDeliveries(context.Background(), start, 10)
	if err != nil || len(claimed) != 2 {
		t.Fatalf("claim: n=%d err=%v", len(claimed), err)
	}

	// Inside the claim TTL the tasks stay off-limits.
	summary, err := module.DeliveryWorker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if summary.Claimed != 0 {
		t.Fatalf("held claims must not be re-claimed early, got %+v", summary)
	}

	// A day later the abandoned claims have expired and the queue drains.
	module.Store.SetNow(start.Add(24 * time.Hour))
	summary, err = module.DeliveryWorker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run after expiry: %v", err)
	}
	if summary.Claimed != 2 || summary.Delivered != 2 {
		t.Fatalf("expected abandoned tasks to deliver, got %+v", summary)
	}
	if module.Store.PendingDeliveryCount() != 0 {
		t.Fatalf("queue must drain, %d left", module.Store.PendingDeliveryCount())
	}
}
