package streaming

import (
	"time"

	"github.com/google/uuid"

	"honeypot-lab/internal/domain/models"
)

// EventType represents the type of session event
type EventType string

const (
	EventTypeSessionStarted   EventType = "session.started"
	EventTypeEvidenceCaptured EventType = "evidence.captured"
	EventTypeSessionClosed    EventType = "session.closed"
)

// SessionEvent is a real-time update about one decoy conversation
type SessionEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	SessionID string       `json:"session_id"`
	Step      int          `json:"step"`
	Phase     models.Phase `json:"phase"`
	Active    bool         `json:"active"`

	// Evidence carries only the values captured by the triggering message
	Evidence models.EvidenceSet     `json:"evidence,omitempty"`
	Counts   map[models.Category]int `json:"counts,omitempty"`

	// Report is set on session.closed
	Report *models.IntelligenceReport `json:"report,omitempty"`
}

// NewSessionEvent snapshots s for an event of the given type
func NewSessionEvent(eventType EventType, s *models.Session) *SessionEvent {
	return &SessionEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		SessionID: s.ID,
		Step:      s.Step,
		Phase:     s.Phase,
		Active:    s.Active,
		Counts:    s.Evidence.Counts(),
	}
}

// Subscription represents a client's subscription preferences
type Subscription struct {
	// Filter by event types (empty = all)
	Types []EventType `json:"types,omitempty"`

	// Follow a single session (empty = all)
	SessionID string `json:"session_id,omitempty"`

	// Only evidence events touching these categories (empty = all)
	Categories []models.Category `json:"categories,omitempty"`
}

// Matches checks if an event matches the subscription filters
func (s *Subscription) Matches(event *SessionEvent) bool {
	if len(s.Types) > 0 {
		found := false
		for _, t := range s.Types {
			if t == event.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if s.SessionID != "" && s.SessionID != event.SessionID {
		return false
	}

	if len(s.Categories) > 0 && event.Type == EventTypeEvidenceCaptured {
		found := false
		for _, c := range s.Categories {
			if event.Evidence.Has(c) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}
