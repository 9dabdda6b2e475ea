package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"honeypot-lab/internal/domain/models"
	"honeypot-lab/internal/infrastructure/database"
)

// ErrNotFound is returned when no row matches
var ErrNotFound = errors.New("not found")

// reportJSONKeys maps categories to their field in the extracted_intelligence document
var reportJSONKeys = map[models.Category]string{
	models.CategoryBankAccount:  "bankAccounts",
	models.CategoryUPIID:        "upiIds",
	models.CategoryPhoneNumber:  "phoneNumbers",
	models.CategoryIFSCCode:     "ifscCodes",
	models.CategoryEmail:        "emails",
	models.CategoryPhishingLink: "phishingLinks",
	models.CategoryAmount:       "amounts",
	models.CategoryKeyword:      "suspiciousKeywords",
}

const reportColumns = `id, session_id, scam_detected, messages_exchanged, extracted_intelligence,
	COALESCE(agent_notes, ''), created_at`

// ReportRepository archives intelligence reports
type ReportRepository struct {
	db database.DBTX
}

// NewReportRepository creates a new report repository
func NewReportRepository(db database.DBTX) *ReportRepository {
	return &ReportRepository{db: db}
}

// Save inserts a report. A second report for the same session is ignored and
// reported as not inserted.
func (r *ReportRepository) Save(ctx context.Context, rep *models.IntelligenceReport) (bool, error) {
	query := `
		INSERT INTO intelligence_reports (
			id, session_id, scam_detected, messages_exchanged, extracted_intelligence, agent_notes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id) DO NOTHING`

	tag, err := r.db.Exec(ctx, query,
		rep.ID, rep.SessionID, rep.ScamDetected, rep.MessagesExchanged,
		rep.ExtractedIntelligence, rep.AgentNotes, rep.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to save report: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetBySession retrieves the report of a session
func (r *ReportRepository) GetBySession(ctx context.Context, sessionID string) (*models.IntelligenceReport, error) {
	query := `SELECT ` + reportColumns + ` FROM intelligence_reports WHERE session_id = $1`

	rep, err := scanReport(r.db.QueryRow(ctx, query, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return rep, nil
}

// List returns reports newest first along with the total count
func (r *ReportRepository) List(ctx context.Context, limit, offset int) ([]*models.IntelligenceReport, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM intelligence_reports").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count reports: %w", err)
	}

	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + reportColumns + `
		FROM intelligence_reports
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports, err := collectReports(rows)
	if err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

// FindByEvidence returns reports whose extracted intelligence contains value under category
func (r *ReportRepository) FindByEvidence(ctx context.Context, category models.Category, value string, limit int) ([]*models.IntelligenceReport, error) {
	key, ok := reportJSONKeys[category]
	if !ok {
		return nil, fmt.Errorf("unknown category %q", category)
	}
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + reportColumns + `
		FROM intelligence_reports
		WHERE extracted_intelligence @> $1
		ORDER BY created_at DESC
		LIMIT $2`

	probe := map[string][]string{key: {value}}
	rows, err := r.db.Query(ctx, query, probe, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search reports: %w", err)
	}
	defer rows.Close()

	return collectReports(rows)
}

func collectReports(rows pgx.Rows) ([]*models.IntelligenceReport, error) {
	var reports []*models.IntelligenceReport
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}
	return reports, nil
}

func scanReport(row pgx.Row) (*models.IntelligenceReport, error) {
	var rep models.IntelligenceReport
	err := row.Scan(
		&rep.ID, &rep.SessionID, &rep.ScamDetected, &rep.MessagesExchanged,
		&rep.ExtractedIntelligence, &rep.AgentNotes, &rep.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rep, nil
}
