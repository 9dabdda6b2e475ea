package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"honeypot-lab/internal/domain/models"
	"honeypot-lab/internal/domain/services"
	"honeypot-lab/internal/infrastructure/graph"
	"honeypot-lab/internal/streaming"
	"honeypot-lab/pkg/logger"
)

// Handlers holds all API handlers
type Handlers struct {
	Health    *HealthHandler
	Honeypot  *HoneypotHandler
	Reports   *ReportsHandler
	Streaming *StreamingHandler
}

// ReportReader reads archived intelligence reports
type ReportReader interface {
	GetBySession(ctx context.Context, sessionID string) (*models.IntelligenceReport, error)
	List(ctx context.Context, limit, offset int) ([]*models.IntelligenceReport, int64, error)
	FindByEvidence(ctx context.Context, category models.Category, value string, limit int) ([]*models.IntelligenceReport, error)
}

// LinkFinder correlates sessions through shared evidence
type LinkFinder interface {
	SessionsWithValue(ctx context.Context, category models.Category, value string, limit int) ([]string, error)
	LinkedSessions(ctx context.Context, sessionID string, limit int) ([]graph.LinkedSession, error)
}

// Dependencies holds dependencies for handlers. Every infrastructure
// dependency is optional.
type Dependencies struct {
	Honeypot     *services.HoneypotService
	Reporter     *services.Reporter
	Reports      ReportReader
	Links        LinkFinder
	WSHub        *streaming.WebSocketHub
	EventBus     *streaming.EventBus
	Checks       []ReadinessCheck
	Version      string
	MaxBodyBytes int64
	Logger       *logger.Logger
}

// NewHandlers creates all handlers
func NewHandlers(deps Dependencies) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(deps.Honeypot, deps.Checks, deps.Version, deps.Logger),
		Honeypot:  NewHoneypotHandler(deps.Honeypot, deps.MaxBodyBytes, deps.Logger),
		Reports:   NewReportsHandler(deps.Reports, deps.Links, deps.Reporter, deps.Logger),
		Streaming: NewStreamingHandler(deps.WSHub, deps.EventBus, deps.Logger),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
