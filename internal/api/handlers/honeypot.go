package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"honeypot-lab/internal/domain/models"
	"honeypot-lab/internal/domain/services"
	"honeypot-lab/internal/infrastructure/sessionstore"
	"honeypot-lab/pkg/logger"
)

const defaultMaxBodyBytes = 64 * 1024

// HoneypotHandler serves the decoy conversation endpoints
type HoneypotHandler struct {
	service      *services.HoneypotService
	maxBodyBytes int64
	logger       *logger.Logger
}

// NewHoneypotHandler creates a new honeypot handler
func NewHoneypotHandler(service *services.HoneypotService, maxBodyBytes int64, log *logger.Logger) *HoneypotHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &HoneypotHandler{
		service:      service,
		maxBodyBytes: maxBodyBytes,
		logger:       log.WithComponent("honeypot-handler"),
	}
}

// Message handles POST / and POST /api/v1/honeypot/message.
// It answers 200 for any body; unreadable input is replaced by defaults.
func (h *HoneypotHandler) Message(w http.ResponseWriter, r *http.Request) {
	var req models.MessageRequest

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		h.logger.Debug().Err(err).Msg("failed to read message body, using defaults")
	} else if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			h.logger.Debug().Err(err).Msg("invalid message body, using defaults")
			req = models.MessageRequest{}
		}
	}

	resp := h.service.HandleMessage(r.Context(), req)
	writeJSON(w, http.StatusOK, resp)
}

// Session handles GET /api/v1/sessions/{id}
func (h *HoneypotHandler) Session(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	view, err := h.service.Session(r.Context(), id)
	if errors.Is(err, sessionstore.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", id).Msg("failed to load session")
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// DetectRequest is the request body for standalone scam scoring
type DetectRequest struct {
	Text string `json:"text"`
}

// Detect handles POST /api/v1/detect
func (h *HoneypotHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes)).Decode(&req); err != nil {
		h.logger.Debug().Err(err).Msg("invalid request body")
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	writeJSON(w, http.StatusOK, h.service.Detect(req.Text))
}
