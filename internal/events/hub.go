// Package events fans UI-facing events out to any number of subscribers.
package events

import (
	"sync"
	"time"
)

type Kind string

const (
	CourseLoad     Kind = "course-load"
	CourseUpdate   Kind = "course-update"
	CourseChange   Kind = "course-change"
	CourseRestored Kind = "course-restored"
	CourseStale    Kind = "course-stale"
	LiveStatus     Kind = "api-live-status"
)

type Event struct {
	Kind     Kind      `json:"kind"`
	CourseID string    `json:"courseId,omitempty"`
	At       time.Time `json:"at"`
	Data     any       `json:"data,omitempty"`
}

// Hub is safe for concurrent use. Publish never blocks: a subscriber whose
// buffer is full misses the event.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of events and a cancel func that closes it.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
