package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"honeypot-lab/internal/domain/models"
	"honeypot-lab/internal/domain/services"
	"honeypot-lab/internal/infrastructure/database/repository"
	"honeypot-lab/pkg/logger"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// ReportsHandler serves archived reports and cross-session links
type ReportsHandler struct {
	reports  ReportReader
	links    LinkFinder
	reporter *services.Reporter
	logger   *logger.Logger
}

// NewReportsHandler creates a new reports handler. reports and links may be nil
// when their backends are not configured.
func NewReportsHandler(reports ReportReader, links LinkFinder, reporter *services.Reporter, log *logger.Logger) *ReportsHandler {
	return &ReportsHandler{
		reports:  reports,
		links:    links,
		reporter: reporter,
		logger:   log.WithComponent("reports-handler"),
	}
}

// ListResponse is a page of reports
type ListResponse struct {
	Reports []*models.IntelligenceReport `json:"reports"`
	Total   int64                        `json:"total"`
	Limit   int                          `json:"limit"`
	Offset  int                          `json:"offset"`
}

// List handles GET /api/v1/reports
func (h *ReportsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "report archive not configured")
		return
	}

	limit := queryInt(r, "limit", defaultPageSize)
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	category := models.Category(r.URL.Query().Get("category"))
	value := r.URL.Query().Get("value")
	if category != "" || value != "" {
		if !category.IsValid() || value == "" {
			writeError(w, http.StatusBadRequest, "category and value must be given together")
			return
		}
		reports, err := h.reports.FindByEvidence(r.Context(), category, value, limit)
		if err != nil {
			h.logger.Error().Err(err).Msg("failed to search reports")
			writeError(w, http.StatusInternalServerError, "failed to search reports")
			return
		}
		writeJSON(w, http.StatusOK, ListResponse{Reports: reports, Total: int64(len(reports)), Limit: limit})
		return
	}

	reports, total, err := h.reports.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list reports")
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{Reports: reports, Total: total, Limit: limit, Offset: offset})
}

// Get handles GET /api/v1/reports/{sessionId}
func (h *ReportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "report archive not configured")
		return
	}

	sessionID := chi.URLParam(r, "sessionId")
	rep, err := h.reports.GetBySession(r.Context(), sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to load report")
		writeError(w, http.StatusInternalServerError, "failed to load report")
		return
	}

	writeJSON(w, http.StatusOK, rep)
}

// Stats handles GET /api/v1/reports/stats
func (h *ReportsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.reporter == nil {
		writeJSON(w, http.StatusOK, services.ReporterStats{})
		return
	}
	writeJSON(w, http.StatusOK, h.reporter.Stats())
}

// Linked handles GET /api/v1/intel/linked. With session_id it returns sessions
// sharing evidence with that session; with category and value it returns the
// sessions that disclosed that value.
func (h *ReportsHandler) Linked(w http.ResponseWriter, r *http.Request) {
	if h.links == nil {
		writeError(w, http.StatusServiceUnavailable, "evidence graph not configured")
		return
	}

	q := r.URL.Query()
	limit := queryInt(r, "limit", defaultPageSize)
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}

	if sessionID := q.Get("session_id"); sessionID != "" {
		linked, err := h.links.LinkedSessions(r.Context(), sessionID, limit)
		if err != nil {
			h.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to query linked sessions")
			writeError(w, http.StatusInternalServerError, "failed to query linked sessions")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "linked": linked})
		return
	}

	category := models.Category(q.Get("category"))
	value := q.Get("value")
	if !category.IsValid() || value == "" {
		writeError(w, http.StatusBadRequest, "session_id or category and value are required")
		return
	}

	sessions, err := h.links.SessionsWithValue(r.Context(), category, value, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to query sessions by value")
		writeError(w, http.StatusInternalServerError, "failed to query sessions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category": category,
		"value":    value,
		"sessions": sessions,
	})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
