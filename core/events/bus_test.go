package events_test

import (
	"context"
	"testing"
	"time"

	"arbor/core/events"
)

type testEvent struct {
	data string
}

func (testEvent) Topic() string { return "test.topic" }

func TestPublishSubscribe(t *testing.T) {
	bus := events.New(4)
	defer bus.Close()

	ch, cancel, err := bus.Subscribe("test.topic")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	bus.Publish(context.Background(), testEvent{data: "hello"})

	select {
	case ev := <-ch:
		if ev.(testEvent).data != "hello" {
			t.Errorf("payload = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestTopicIsolation(t *testing.T) {
	bus := events.New(4)
	defer bus.Close()

	ch, cancel, _ := bus.Subscribe("other.topic")
	defer cancel()

	bus.Publish(context.Background(), testEvent{data: "x"})

	select {
	case ev := <-ch:
		t.Errorf("received event for foreign topic: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberDrops(t *testing.T) {
	bus := events.New(1)
	defer bus.Close()

	ch, cancel, _ := bus.Subscribe("test.topic")
	defer cancel()

	// Fill the buffer and keep publishing; the publisher must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(context.Background(), testEvent{data: "flood"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
	if len(ch) != 1 {
		t.Errorf("buffered = %d, want 1", len(ch))
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	bus := events.New(4)
	defer bus.Close()

	ch, cancel, _ := bus.Subscribe("test.topic")
	cancel()

	// Channel is closed by cancel; publishing must not panic.
	bus.Publish(context.Background(), testEvent{data: "late"})
	if _, open := <-ch; open {
		t.Error("channel still open after cancel")
	}
}

func TestCloseClosesSubscribers(t *testing.T) {
	bus := events.New(4)
	ch, _, _ := bus.Subscribe("test.topic")
	bus.Close()
	if _, open := <-ch; open {
		t.Error("channel still open after bus close")
	}
}
