package stream

import (
	"encoding/json"
	"sync"

	"github.com/serroba/visitor-analytics/internal/analytics"
	"go.uber.org/zap"
)

// DefaultBuffer is the number of undelivered messages a subscriber may hold
// before it is dropped.
const DefaultBuffer = 64

// Observer is told about subscriber churn, typically for metrics.
type Observer interface {
	SubscribersChanged(count int)
	SubscriberDropped()
}

type nopObserver struct{}

func (nopObserver) SubscribersChanged(int) {}
func (nopObserver) SubscriberDropped()     {}

// Hub fans ingested events out to live subscribers. Broadcast never blocks:
// a subscriber that cannot keep up is dropped.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]*Subscriber
	buffer      int
	newID       func() string
	observer    Observer
	logger      *zap.Logger
}

// Subscriber is one live connection's view of the hub. Messages are JSON
// encoded events; the channel is closed when the subscriber is removed.
type Subscriber struct {
	id   string
	hub  *Hub
	send chan []byte
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithBuffer sets the per-subscriber buffer size.
func WithBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithObserver reports subscriber churn to o.
func WithObserver(o Observer) HubOption {
	return func(h *Hub) { h.observer = o }
}

// NewHub creates an empty hub. newID generates subscriber ids.
func NewHub(newID func() string, logger *zap.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		subscribers: make(map[string]*Subscriber),
		buffer:      DefaultBuffer,
		newID:       newID,
		observer:    nopObserver{},
		logger:      logger,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Subscribe registers a new subscriber. Only events broadcast after this call
// are delivered.
func (h *Hub) Subscribe() *Subscriber {
	s := &Subscriber{
		id:   h.newID(),
		hub:  h,
		send: make(chan []byte, h.buffer),
	}

	h.mu.Lock()
	h.subscribers[s.id] = s
	count := len(h.subscribers)
	h.mu.Unlock()

	h.observer.SubscribersChanged(count)
	h.logger.Debug("live subscriber connected", zap.String("subscriberId", s.id), zap.Int("subscribers", count))

	return s
}

// Broadcast encodes event once and offers it to every subscriber.
func (h *Hub) Broadcast(event *analytics.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode live event", zap.String("eventId", event.ID), zap.Error(err))

		return
	}

	h.broadcast(data)
}

func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()

	var dropped []string

	for id, s := range h.subscribers {
		select {
		case s.send <- data:
		default:
			delete(h.subscribers, id)
			close(s.send)

			dropped = append(dropped, id)
		}
	}

	count := len(h.subscribers)
	h.mu.Unlock()

	for _, id := range dropped {
		h.observer.SubscriberDropped()
		h.logger.Warn("dropping slow live subscriber", zap.String("subscriberId", id))
	}

	if len(dropped) > 0 {
		h.observer.SubscribersChanged(count)
	}
}

// Count returns the number of registered subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subscribers)
}

// Close unregisters every subscriber, closing their channels.
func (h *Hub) Close() {
	h.mu.Lock()

	for id, s := range h.subscribers {
		delete(h.subscribers, id)
		close(s.send)
	}

	h.mu.Unlock()

	h.observer.SubscribersChanged(0)
}

// Shutdown closes the hub; it satisfies do.Shutdownable.
func (h *Hub) Shutdown() error {
	h.Close()

	return nil
}

func (h *Hub) remove(s *Subscriber) {
	h.mu.Lock()

	current, ok := h.subscribers[s.id]
	if !ok || current != s {
		h.mu.Unlock()

		return
	}

	delete(h.subscribers, s.id)
	close(s.send)
	count := len(h.subscribers)
	h.mu.Unlock()

	h.observer.SubscribersChanged(count)
	h.logger.Debug("live subscriber disconnected", zap.String("subscriberId", s.id), zap.Int("subscribers", count))
}

// ID returns the subscriber id.
func (s *Subscriber) ID() string {
	return s.id
}

// Messages returns the delivery channel.
func (s *Subscriber) Messages() <-chan []byte {
	return s.send
}

// Close unregisters the subscriber. It is safe to call more than once and
// after the hub dropped it.
func (s *Subscriber) Close() {
	s.hub.remove(s)
}

var _ analytics.Broadcaster = (*Hub)(nil)
