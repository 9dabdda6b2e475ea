package streaming

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"honeypot-lab/pkg/logger"
)

// EventBus distributes session events to subscribers
type EventBus struct {
	nats   *NATSPublisher
	logger *logger.Logger

	mu          sync.RWMutex
	subscribers map[string]*subscriber
	nextID      int
}

type subscriber struct {
	ch  chan *SessionEvent
	sub *Subscription
}

// NewEventBus creates a new event bus. nats may be nil.
func NewEventBus(nats *NATSPublisher, log *logger.Logger) *EventBus {
	return &EventBus{
		nats:        nats,
		logger:      log.WithComponent("event-bus"),
		subscribers: make(map[string]*subscriber),
	}
}

// Publish publishes a session event to NATS and all local subscribers
func (eb *EventBus) Publish(ctx context.Context, event *SessionEvent) error {
	// Publish to NATS if available
	if eb.nats != nil && eb.nats.IsConnected() {
		if err := eb.nats.PublishSessionEvent(ctx, event); err != nil {
			eb.logger.Warn().Err(err).Msg("failed to publish to NATS, using local broadcast only")
		}
	}

	eb.broadcast(event)
	return nil
}

// RelayRemote feeds events published by other instances through NATS to the
// local subscribers until ctx is cancelled. Without NATS it is a no-op.
func (eb *EventBus) RelayRemote(ctx context.Context) error {
	if eb.nats == nil || !eb.nats.IsConnected() {
		return nil
	}
	remote, err := eb.nats.Subscribe(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to subscribe to remote events: %w", err)
	}
	go eb.relay(remote)
	eb.logger.Info().Msg("relaying remote session events")
	return nil
}

func (eb *EventBus) relay(remote <-chan *SessionEvent) {
	for event := range remote {
		eb.broadcast(event)
	}
}

// broadcast delivers to local subscribers only
func (eb *EventBus) broadcast(event *SessionEvent) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for id, s := range eb.subscribers {
		if s.sub != nil && !s.sub.Matches(event) {
			continue
		}
		select {
		case s.ch <- event:
		default:
			eb.logger.Debug().Str("subscriber", id).Msg("subscriber channel full, dropping event")
		}
	}
}

// Subscribe creates a new local subscription and returns a channel for events
func (eb *EventBus) Subscribe(sub *Subscription) (<-chan *SessionEvent, func()) {
	eb.mu.Lock()
	eb.nextID++
	id := strconv.Itoa(eb.nextID)
	s := &subscriber{ch: make(chan *SessionEvent, 100), sub: sub}
	eb.subscribers[id] = s
	eb.mu.Unlock()

	eb.logger.Debug().Str("subscriber_id", id).Msg("new subscriber")

	// Return unsubscribe function
	unsubscribe := func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		if _, ok := eb.subscribers[id]; ok {
			close(s.ch)
			delete(eb.subscribers, id)
			eb.logger.Debug().Str("subscriber_id", id).Msg("subscriber removed")
		}
	}

	return s.ch, unsubscribe
}

// SubscriberCount returns the number of active subscribers
func (eb *EventBus) SubscriberCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}

// Close closes the event bus
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for id, s := range eb.subscribers {
		close(s.ch)
		delete(eb.subscribers, id)
	}

	if eb.nats != nil {
		eb.nats.Close()
	}
}
