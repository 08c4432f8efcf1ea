package messaging

import (
	"context"
	"testing"
)

func TestBrokerFansOutPerUser(t *testing.T) {
	broker := NewBroker(nil)

	chA, cancelA := broker.Subscribe("user-1")
	defer cancelA()
	chB, cancelB := broker.Subscribe("user-1")
	defer cancelB()
	chOther, cancelOther := broker.Subscribe("user-2")
	defer cancelOther()

	if err := broker.PublishRealtime(context.Background(), "user-1", []byte(`{"hello":true}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for _, ch := range []<-chan []byte{chA, chB} {
		select {
		case payload := <-ch:
			if string(payload) != `{"hello":true}` {
				t.Fatalf("unexpected payload %q", payload)
			}
		default:
			t.Fatal("subscriber should have received the payload")
		}
	}
	select {
	case <-chOther:
		t.Fatal("payload leaked across users")
	default:
	}
}

func TestBrokerUnsubscribeStopsDelivery(t *testing.T) {
	broker := NewBroker(nil)

	ch, cancel := broker.Subscribe("user-1")
	cancel()
	if broker.SubscriberCount("user-1") != 0 {
		t.Fatal("cancel should remove the subscription")
	}

	if err := broker.PublishRealtime(context.Background(), "user-1", []byte("x")); err != nil {
		t.Fatalf("publish after cancel: %v", err)
	}
	select {
	case <-ch:
		t.Fatal("cancelled subscriber must not receive payloads")
	default:
	}
}

func TestBrokerDropsForSlowSubscriber(t *testing.T) {
	broker := NewBroker(nil)

	_, cancel := broker.Subscribe("user-1")
	defer cancel()

	// Fill the buffer past capacity; publish must not block.
	for i := 0; i < 40; i++ {
		if err := broker.PublishRealtime(context.Background(), "user-1", []byte("n")); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
}
