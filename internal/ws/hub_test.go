package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestClient(h *Hub, bookingID string, buffer int) *Client {
	return &Client{
		hub:       h,
		bookingID: bookingID,
		send:      make(chan []byte, buffer),
		logger:    zap.NewNop(),
	}
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case payload, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed while expecting an event")
		}
		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			t.Fatalf("invalid event payload: %v", err)
		}
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func expectNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case payload, ok := <-c.send:
		if ok {
			t.Fatalf("unexpected event delivered: %s", payload)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishReachesOnlyTheBookingRoom(t *testing.T) {
	h := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	viewer := newTestClient(h, "b-1", 4)
	other := newTestClient(h, "b-2", 4)
	viewer.Register()
	other.Register()

	h.Publish("b-1", Event{Type: EventChargingUpdate, Data: map[string]int{"battery": 42}})

	event := receive(t, viewer)
	if event.Type != EventChargingUpdate {
		t.Errorf("event type = %q, want %q", event.Type, EventChargingUpdate)
	}
	expectNothing(t, other)
}

func TestEventsFanOutToAllRoomViewers(t *testing.T) {
	h := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	first := newTestClient(h, "b-1", 4)
	second := newTestClient(h, "b-1", 4)
	first.Register()
	second.Register()

	h.Publish("b-1", Event{Type: EventChargingCompleted})

	if receive(t, first).Type != EventChargingCompleted {
		t.Error("first viewer missed the event")
	}
	if receive(t, second).Type != EventChargingCompleted {
		t.Error("second viewer missed the event")
	}
}

func TestLateSubscriberGetsNoReplay(t *testing.T) {
	h := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	// Publish into an empty room first, then join.
	h.Publish("b-1", Event{Type: EventChargingUpdate})

	// A follow-up event to a sentinel room guarantees the first publish has
	// been processed before the viewer joins.
	sentinel := newTestClient(h, "sentinel", 1)
	sentinel.Register()
	h.Publish("sentinel", Event{Type: EventChargingUpdate})
	receive(t, sentinel)

	late := newTestClient(h, "b-1", 4)
	late.Register()
	expectNothing(t, late)
}

func TestSlowConsumerIsEvicted(t *testing.T) {
	h := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	// An unbuffered channel nobody reads models a viewer that stopped
	// draining: the hub must drop it rather than block the fan-out loop.
	slow := newTestClient(h, "b-1", 0)
	slow.Register()

	h.Publish("b-1", Event{Type: EventChargingUpdate})

	select {
	case _, ok := <-slow.send:
		if ok {
			t.Fatal("delivery to a full channel should have evicted the viewer")
		}
	case <-time.After(time.Second):
		t.Fatal("slow consumer was never evicted")
	}
}

func TestUnregisterClosesChannelAndRoom(t *testing.T) {
	h := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	viewer := newTestClient(h, "b-1", 4)
	viewer.Register()
	h.unregister <- viewer

	select {
	case _, ok := <-viewer.send:
		if ok {
			t.Fatal("received event after unregister")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed after unregister")
	}

	// Publishing into the now-empty room must not panic or deliver anywhere.
	h.Publish("b-1", Event{Type: EventChargingUpdate})
}

func TestShutdownClosesAllViewers(t *testing.T) {
	h := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	viewer := newTestClient(h, "b-1", 4)
	viewer.Register()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop on context cancel")
	}

	select {
	case _, ok := <-viewer.send:
		if ok {
			t.Fatal("event delivered during shutdown")
		}
	default:
		t.Fatal("send channel not closed on shutdown")
	}
}

func TestRegisterAndUnregisterAfterShutdownDoNotBlock(t *testing.T) {
	h := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	viewer := newTestClient(h, "b-1", 4)
	viewer.Register()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop on context cancel")
	}

	// A read pump exiting after shutdown still unregisters; with nobody
	// draining the channel that send must not hang the goroutine.
	finished := make(chan struct{})
	go func() {
		viewer.unregister()
		late := newTestClient(h, "b-2", 1)
		late.Register()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("register/unregister blocked on a stopped hub")
	}
}
