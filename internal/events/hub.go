// Package events is an in-memory pub/sub with a ring buffer so late
// subscribers can catch up from a Last-Event-ID.
package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Event is one published value. Data is its JSON encoding.
type Event struct {
	ID    int64           `json:"id"`
	Topic string          `json:"topic"`
	At    time.Time       `json:"at"`
	Data  json.RawMessage `json:"data"`
}

// Hub fans published events out to subscribers without ever blocking the
// publisher.
type Hub struct {
	nextID  atomic.Int64
	dropped atomic.Int64

	mu     sync.Mutex
	ring   []Event
	start  int
	size   int
	closed bool

	subs      map[int]chan Event
	nextSubID int
}

// NewHub creates a hub retaining the last capacity events.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 100
	}
	return &Hub{
		ring: make([]Event, capacity),
		subs: make(map[int]chan Event),
	}
}

// Publish encodes data and sends it to every subscriber. A subscriber whose
// buffer is full misses the event; Dropped counts those misses.
func (h *Hub) Publish(topic string, data any) (Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s event: %w", topic, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return Event{}, fmt.Errorf("hub closed")
	}
	ev := Event{
		ID:    h.nextID.Add(1),
		Topic: topic,
		At:    time.Now().UTC(),
		Data:  payload,
	}
	h.pushLocked(ev)
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
	return ev, nil
}

// Subscribe returns a channel of future events and a cancel func. The
// channel is closed by cancel or by Close.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 128
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.nextSubID
	h.nextSubID++
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// SnapshotSince returns buffered events with ID > lastID, oldest first.
func (h *Hub) SnapshotSince(lastID int64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, 0, h.size)
	for i := 0; i < h.size; i++ {
		ev := h.ring[(h.start+i)%len(h.ring)]
		if ev.ID > lastID {
			out = append(out, ev)
		}
	}
	return out
}

// Dropped returns how many deliveries were skipped for slow subscribers.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// Close ends every subscription. Later publishes fail.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

func (h *Hub) pushLocked(ev Event) {
	capacity := len(h.ring)
	if h.size < capacity {
		h.ring[(h.start+h.size)%capacity] = ev
		h.size++
		return
	}
	// Overwrite oldest.
	h.ring[h.start] = ev
	h.start = (h.start + 1) % capacity
}
