package models

import (
	"time"
)

// Phase is a coarse stage of the scripted decoy dialogue
type Phase string

const (
	PhaseRapport   Phase = "rapport"
	PhaseVerify    Phase = "verify"
	PhaseCooperate Phase = "cooperate"
	PhaseElicit    Phase = "elicit"
	PhaseClosed    Phase = "closed"
)

// Register is the emotional tone layered onto an utterance
type Register string

const (
	RegisterWorry       Register = "worry"
	RegisterConfusion   Register = "confusion"
	RegisterCooperation Register = "cooperation"
	RegisterTrust       Register = "trust"
)

// Session is one ongoing decoy conversation with one counterpart
type Session struct {
	ID       string      `json:"session_id"`
	Step     int         `json:"step"`
	Messages int         `json:"messages"`
	Phase    Phase       `json:"phase"`
	Evidence EvidenceSet `json:"evidence"`

	// Active flips to false once the completion predicate holds and never flips back
	Active       bool `json:"active"`
	ScamDetected bool `json:"scam_detected"`

	// LastTemplate is the phrasebook entry used for the previous reply
	LastTemplate string `json:"last_template,omitempty"`

	CreatedAt    time.Time  `json:"created_at"`
	LastActiveAt time.Time  `json:"last_active_at"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
}

// NewSession creates a fresh session at step 1 in the rapport phase
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:           id,
		Step:         1,
		Phase:        PhaseRapport,
		Evidence:     NewEvidenceSet(),
		Active:       true,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// IsClosed reports whether the session reached its terminal state
func (s *Session) IsClosed() bool {
	return !s.Active
}

// Close marks the session terminal. Calling it again keeps the first ClosedAt.
func (s *Session) Close(now time.Time) {
	if !s.Active {
		return
	}
	s.Active = false
	s.Phase = PhaseClosed
	s.ClosedAt = &now
}

// Touch records activity for the eviction policy
func (s *Session) Touch(now time.Time) {
	s.LastActiveAt = now
}

// Clone returns a deep copy safe to hand out of a store critical section
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Evidence = s.Evidence.Clone()
	if s.ClosedAt != nil {
		t := *s.ClosedAt
		cp.ClosedAt = &t
	}
	return &cp
}

// SessionView exposes raw evidence for audit and reporting
type SessionView struct {
	SessionID    string           `json:"sessionId"`
	Step         int              `json:"step"`
	Phase        Phase            `json:"phase"`
	Active       bool             `json:"active"`
	Messages     int              `json:"messagesExchanged"`
	ScamDetected bool             `json:"scamDetected"`
	Evidence     EvidenceSet      `json:"evidence"`
	Counts       map[Category]int `json:"extractedCounts"`
	CreatedAt    time.Time        `json:"createdAt"`
	LastActiveAt time.Time        `json:"lastActiveAt"`
	ClosedAt     *time.Time       `json:"closedAt,omitempty"`
}

// View builds the audit view of s
func (s *Session) View() *SessionView {
	c := s.Clone()
	return &SessionView{
		SessionID:    c.ID,
		Step:         c.Step,
		Phase:        c.Phase,
		Active:       c.Active,
		Messages:     c.Messages,
		ScamDetected: c.ScamDetected,
		Evidence:     c.Evidence,
		Counts:       c.Evidence.Counts(),
		CreatedAt:    c.CreatedAt,
		LastActiveAt: c.LastActiveAt,
		ClosedAt:     c.ClosedAt,
	}
}
