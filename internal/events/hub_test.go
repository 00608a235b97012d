package events

import "testing"

func TestHubDeliversToAllSubscribers(t *testing.T) {
	h := NewHub()
	a, cancelA := h.Subscribe(4)
	defer cancelA()
	b, cancelB := h.Subscribe(4)
	defer cancelB()

	h.Publish(Event{Kind: CourseUpdate, CourseID: "024798"})

	for _, ch := range []<-chan Event{a, b} {
		e := <-ch
		if e.Kind != CourseUpdate || e.CourseID != "024798" {
			t.Fatalf("event = %+v", e)
		}
		if e.At.IsZero() {
			t.Fatalf("publish should stamp the event time")
		}
	}
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(1)
	defer cancel()

	h.Publish(Event{Kind: CourseLoad})
	h.Publish(Event{Kind: CourseUpdate})

	if e := <-ch; e.Kind != CourseLoad {
		t.Fatalf("first event = %s", e.Kind)
	}
	select {
	case e := <-ch:
		t.Fatalf("expected drop, got %+v", e)
	default:
	}
}

func TestHubCancelClosesAndUnregisters(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(1)
	if h.Subscribers() != 1 {
		t.Fatalf("subscribers = %d", h.Subscribers())
	}
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed")
	}
	if h.Subscribers() != 0 {
		t.Fatalf("subscribers = %d", h.Subscribers())
	}
	h.Publish(Event{Kind: LiveStatus})
}
