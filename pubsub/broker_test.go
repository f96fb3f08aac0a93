package pubsub

import (
	"context"
	"testing"
	"time"
)

func TestBrokerFlow(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := broker.Subscribe(ctx)

	received := make(chan string, 1)
	go func() {
		for event := range events {
			if event.Type == CreatedEvent {
				received <- event.Payload
			}
		}
	}()

	const msg = "summary job queued"
	broker.Publish(CreatedEvent, msg)

	select {
	case got := <-received:
		if got != msg {
			t.Errorf("got %q, want %q", got, msg)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for event")
	}
}

func TestAutoUnsubscribe(t *testing.T) {
	broker := NewBroker[int]()
	defer broker.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	events := broker.Subscribe(ctx)
	if n := broker.SubscriberCount(); n != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", n)
	}

	cancel()

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("unexpected event after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	if n := broker.SubscriberCount(); n != 0 {
		t.Fatalf("SubscriberCount = %d after cancel", n)
	}
}

func TestNonBlockingPublish(t *testing.T) {
	broker := NewBrokerWithBuffer[int](4)
	defer broker.Shutdown()

	// never drained
	_ = broker.Subscribe(context.Background())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			broker.Publish(UpdatedEvent, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
	if d := broker.Dropped(); d != 6 {
		t.Fatalf("Dropped = %d, want 6", d)
	}
}

func TestBrokerShutdown(t *testing.T) {
	broker := NewBroker[string]()
	events := broker.Subscribe(context.Background())

	broker.Shutdown()
	broker.Shutdown()

	select {
	case _, ok := <-events:
		if ok {
			t.Error("channel still open after Shutdown")
		}
	case <-time.After(time.Second):
		t.Error("channel not closed after Shutdown")
	}

	late := broker.Subscribe(context.Background())
	if _, ok := <-late; ok {
		t.Error("subscription after Shutdown should be closed")
	}
	broker.Publish(FinishedEvent, "ignored")
}
