// Package events provides the real-time event fan-out: a topic-based
// broadcaster that request handling publishes into and observers (the admin
// WebSocket endpoint, the CLI events command) subscribe to. Publishing is
// fire-and-forget: a slow observer never blocks the request path, its events
// are dropped and counted instead.
package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Well-known topics.
const (
	TopicRequestLog       = "request-log"
	TopicMockSetChanged   = "mock-set-changed"
	TopicScenarioSwitched = "scenario-switched"
	TopicMetrics          = "metrics"
	TopicAlerts           = "alerts"
)

// Event is a single published record.
type Event struct {
	Topic     string    `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Subscriber receives published events.
type Subscriber chan Event

// subscriberBuffer is the per-subscriber channel depth before drops start.
const subscriberBuffer = 100

type subscription struct {
	ch     Subscriber
	topics map[string]struct{} // nil means all topics
}

func (s *subscription) wants(topic string) bool {
	if s.topics == nil {
		return true
	}
	_, ok := s.topics[topic]
	return ok
}

// Broadcaster fans events out to subscribers by topic.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[*subscription]struct{}
	dropped atomic.Uint64
	log     *slog.Logger
}

// NewBroadcaster creates a Broadcaster. A nil logger discards.
func NewBroadcaster(log *slog.Logger) *Broadcaster {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Broadcaster{
		subs: make(map[*subscription]struct{}),
		log:  log,
	}
}

// Subscribe registers a subscriber for the given topics (none means all).
// Returns the receiving channel and an unsubscribe function; unsubscribe
// closes the channel.
func (b *Broadcaster) Subscribe(topics ...string) (Subscriber, func()) {
	sub := &subscription{ch: make(Subscriber, subscriberBuffer)}
	if len(topics) > 0 {
		sub.topics = make(map[string]struct{}, len(topics))
		for _, t := range topics {
			sub.topics[t] = struct{}{}
		}
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		if _, ok := b.subs[sub]; ok {
			delete(b.subs, sub)
			close(sub.ch)
		}
		b.mu.Unlock()
	}
	return sub.ch, unsubscribe
}

// Publish delivers payload to every subscriber of topic without blocking.
// Events for slow subscribers are dropped and counted.
func (b *Broadcaster) Publish(topic string, payload any) {
	ev := Event{Topic: topic, Timestamp: time.Now(), Payload: payload}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		if !sub.wants(topic) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns the number of events dropped due to slow subscribers.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
