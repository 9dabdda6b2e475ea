package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultGreeting stands in for a missing or empty counterpart message
const DefaultGreeting = "Hello"

// MessageRequest is one inbound counterpart message.
// Callers disagree on field names, so decoding accepts sessionId or session_id,
// and text or message, where message may be a string or an object with a text field.
type MessageRequest struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
}

// UnmarshalJSON implements the lenient body decoding
func (r *MessageRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.SessionID = firstString(raw, "sessionId", "session_id")

	if text := firstString(raw, "text"); text != "" {
		r.Text = text
		return nil
	}

	msg, ok := raw["message"]
	if !ok {
		return nil
	}
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		r.Text = s
		return nil
	}
	var nested struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(msg, &nested); err == nil {
		r.Text = nested.Text
	}
	return nil
}

// WithDefaults fills a missing session id and message so the engine always
// receives a usable pair
func (r MessageRequest) WithDefaults() MessageRequest {
	r.SessionID = strings.TrimSpace(r.SessionID)
	if r.SessionID == "" {
		r.SessionID = NewSessionID()
	}
	if strings.TrimSpace(r.Text) == "" {
		r.Text = DefaultGreeting
	}
	return r
}

// NewSessionID generates an opaque session identifier
func NewSessionID() string {
	return "session_" + uuid.New().String()
}

func firstString(raw map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

// MessageResponse is returned to the transport for every message
type MessageResponse struct {
	Status          string           `json:"status"`
	SessionID       string           `json:"sessionId"`
	Reply           string           `json:"reply"`
	Step            int              `json:"step"`
	Phase           Phase            `json:"phase"`
	Active          bool             `json:"active"`
	Messages        int              `json:"messagesExchanged"`
	ExtractedCounts map[Category]int `json:"extractedCounts"`
}

// ExtractedIntelligence is the raw evidence payload of a report
type ExtractedIntelligence struct {
	BankAccounts       []string `json:"bankAccounts"`
	UPIIDs             []string `json:"upiIds"`
	PhoneNumbers       []string `json:"phoneNumbers"`
	IFSCCodes          []string `json:"ifscCodes"`
	Emails             []string `json:"emails"`
	PhishingLinks      []string `json:"phishingLinks"`
	Amounts            []string `json:"amounts"`
	SuspiciousKeywords []string `json:"suspiciousKeywords"`
}

// NewExtractedIntelligence flattens an evidence set into the report shape
func NewExtractedIntelligence(e EvidenceSet) ExtractedIntelligence {
	return ExtractedIntelligence{
		BankAccounts:       e.Values(CategoryBankAccount),
		UPIIDs:             e.Values(CategoryUPIID),
		PhoneNumbers:       e.Values(CategoryPhoneNumber),
		IFSCCodes:          e.Values(CategoryIFSCCode),
		Emails:             e.Values(CategoryEmail),
		PhishingLinks:      e.Values(CategoryPhishingLink),
		Amounts:            e.Values(CategoryAmount),
		SuspiciousKeywords: e.Values(CategoryKeyword),
	}
}

// Evidence converts the report payload back into an evidence set
func (x ExtractedIntelligence) Evidence() EvidenceSet {
	e := NewEvidenceSet()
	add := func(c Category, values []string) {
		for _, v := range values {
			e.Add(c, v)
		}
	}
	add(CategoryBankAccount, x.BankAccounts)
	add(CategoryUPIID, x.UPIIDs)
	add(CategoryPhoneNumber, x.PhoneNumbers)
	add(CategoryIFSCCode, x.IFSCCodes)
	add(CategoryEmail, x.Emails)
	add(CategoryPhishingLink, x.PhishingLinks)
	add(CategoryAmount, x.Amounts)
	add(CategoryKeyword, x.SuspiciousKeywords)
	return e
}

// IntelligenceReport is delivered once, when a session transitions to closed
type IntelligenceReport struct {
	ID                    uuid.UUID             `json:"id"`
	SessionID             string                `json:"sessionId"`
	ScamDetected          bool                  `json:"scamDetected"`
	MessagesExchanged     int                   `json:"messagesExchanged"`
	ExtractedIntelligence ExtractedIntelligence `json:"extractedIntelligence"`
	AgentNotes            string                `json:"agentNotes,omitempty"`
	CreatedAt             time.Time             `json:"createdAt"`
}

// NewIntelligenceReport snapshots a closed session
func NewIntelligenceReport(s *Session, notes string) *IntelligenceReport {
	return &IntelligenceReport{
		ID:                    uuid.New(),
		SessionID:             s.ID,
		ScamDetected:          s.ScamDetected,
		MessagesExchanged:     s.Messages,
		ExtractedIntelligence: NewExtractedIntelligence(s.Evidence),
		AgentNotes:            notes,
		CreatedAt:             time.Now().UTC(),
	}
}

// ScamDetection is the keyword-count scam likelihood of a single message
type ScamDetection struct {
	IsScam          bool     `json:"is_scam"`
	Confidence      float64  `json:"confidence"`
	Score           int      `json:"score"`
	MatchedKeywords []string `json:"matched_keywords,omitempty"`
}
