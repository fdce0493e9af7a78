package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/ariefcatur/go-appliance-care/internal/metrics"
)

// Event is one server frame delivered to subscribers of Topic.
type Event struct {
	Topic     string          `json:"topic"`
	Name      string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewEvent(topic, name string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{Topic: topic, Name: name, Data: raw, Timestamp: time.Now().UTC()}, nil
}

// Publisher is how domain code emits events. Publish never blocks on slow
// subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

func TopicBooking(id string) string { return "booking-" + id }
func TopicOrder(id string) string   { return "order-" + id }
func TopicUser(id string) string    { return "user-" + id }

// Subscription is one client's inbox. Topics are joined and left on it
// while it stays open.
type Subscription struct {
	hub    *Hub
	ch     chan Event
	mu     sync.Mutex
	topics map[string]struct{}
	closed bool
}

func (s *Subscription) Events() <-chan Event { return s.ch }

func (s *Subscription) Join(topic string) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.topics[topic] = struct{}{}
	subs := s.hub.topics[topic]
	if subs == nil {
		subs = make(map[*Subscription]struct{})
		s.hub.topics[topic] = subs
	}
	subs[s] = struct{}{}
}

func (s *Subscription) Leave(topic string) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.topics, topic)
	s.hub.detach(topic, s)
}

// Close leaves every topic and closes the Events channel.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.close()
}

// close requires hub.mu.
func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for topic := range s.topics {
		s.hub.detach(topic, s)
	}
	s.topics = nil
	delete(s.hub.subs, s)
	close(s.ch)
}

// Hub routes events to in-process subscribers by topic. One hub is
// created per process and shared by the WebSocket endpoint and the
// notification dispatcher.
type Hub struct {
	log    *slog.Logger
	buffer int

	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	subs   map[*Subscription]struct{}
	closed bool
}

func NewHub(buffer int, log *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	return &Hub{
		log:    log,
		buffer: buffer,
		topics: make(map[string]map[*Subscription]struct{}),
		subs:   make(map[*Subscription]struct{}),
	}
}

// Subscribe opens a new subscription with no topics. It returns nil after
// the hub has been closed.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	s := &Subscription{hub: h, ch: make(chan Event, h.buffer), topics: make(map[string]struct{})}
	h.subs[s] = struct{}{}
	return s
}

// Publish delivers ev to every subscriber of ev.Topic. A subscriber whose
// buffer is full misses the event.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.topics[ev.Topic] {
		select {
		case s.ch <- ev:
		default:
			metrics.NotificationsDropped.WithLabelValues("realtime").Inc()
			h.log.Warn("realtime subscriber too slow, event dropped", "topic", ev.Topic, "event", ev.Name)
		}
	}
	return nil
}

// Subscribers reports how many subscriptions have joined topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Close ends every subscription. Later Subscribe calls return nil.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		s.close()
	}
}

// detach requires hub.mu.
func (h *Hub) detach(topic string, s *Subscription) {
	subs := h.topics[topic]
	delete(subs, s)
	if len(subs) == 0 {
		delete(h.topics, topic)
	}
}
