package streaming

import (
	"context"

	"honeypot-lab/internal/domain/models"
)

// EventBusPublisher implements services.EventPublisher on top of the EventBus.
// Dashboards receive events by subscribing the WebSocket hub to the same bus.
type EventBusPublisher struct {
	eventBus *EventBus
}

// NewEventBusPublisher creates a new publisher adapter
func NewEventBusPublisher(eventBus *EventBus) *EventBusPublisher {
	return &EventBusPublisher{eventBus: eventBus}
}

// PublishSessionStarted announces a new decoy conversation
func (p *EventBusPublisher) PublishSessionStarted(ctx context.Context, s *models.Session) error {
	return p.publish(ctx, NewSessionEvent(EventTypeSessionStarted, s))
}

// PublishEvidence announces the values a message added to a session
func (p *EventBusPublisher) PublishEvidence(ctx context.Context, s *models.Session, added models.EvidenceSet) error {
	event := NewSessionEvent(EventTypeEvidenceCaptured, s)
	event.Evidence = added
	return p.publish(ctx, event)
}

// PublishSessionClosed announces that a session gathered everything it needed
func (p *EventBusPublisher) PublishSessionClosed(ctx context.Context, s *models.Session, report *models.IntelligenceReport) error {
	event := NewSessionEvent(EventTypeSessionClosed, s)
	event.Report = report
	return p.publish(ctx, event)
}

func (p *EventBusPublisher) publish(ctx context.Context, event *SessionEvent) error {
	return p.eventBus.Publish(ctx, event)
}
