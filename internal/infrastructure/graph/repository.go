package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"honeypot-lab/internal/domain/models"
	"honeypot-lab/pkg/logger"
)

// Categories that identify the counterpart. IFSC codes name a bank branch,
// amounts and keywords recur across unrelated scams.
var linkingCategories = map[models.Category]bool{
	models.CategoryBankAccount:  true,
	models.CategoryUPIID:        true,
	models.CategoryPhoneNumber:  true,
	models.CategoryEmail:        true,
	models.CategoryPhishingLink: true,
}

// LinkedSession is another session that disclosed some of the same evidence
type LinkedSession struct {
	SessionID string   `json:"sessionId"`
	Shared    int      `json:"shared"`
	Values    []string `json:"values"`
}

const cypherRecordReport = `
	MERGE (s:Session {id: $session_id})
	SET s.report_id = $report_id,
		s.scam_detected = $scam_detected,
		s.messages = $messages,
		s.closed_at = $closed_at
	WITH s
	UNWIND $evidence AS item
	MERGE (e:Evidence {category: item.category, value: item.value})
	MERGE (s)-[:DISCLOSED]->(e)`

const cypherLinkedByValue = `
	MATCH (e:Evidence {category: $category, value: $value})<-[:DISCLOSED]-(s:Session)
	RETURN s.id AS session_id
	ORDER BY session_id
	LIMIT $limit`

const cypherLinkedBySession = `
	MATCH (:Session {id: $session_id})-[:DISCLOSED]->(e:Evidence)<-[:DISCLOSED]-(other:Session)
	RETURN other.id AS session_id, count(e) AS shared, collect(e.value) AS values
	ORDER BY shared DESC, session_id
	LIMIT $limit`

// EvidenceGraph correlates sessions through the evidence they disclosed
type EvidenceGraph struct {
	client *Neo4jClient
	logger *logger.Logger
}

// NewEvidenceGraph creates a new evidence graph
func NewEvidenceGraph(client *Neo4jClient, log *logger.Logger) *EvidenceGraph {
	return &EvidenceGraph{
		client: client,
		logger: log.WithComponent("evidence-graph"),
	}
}

// RecordReport links a closed session to every identifying value it disclosed
func (g *EvidenceGraph) RecordReport(ctx context.Context, rep *models.IntelligenceReport) error {
	params := map[string]any{
		"session_id":    rep.SessionID,
		"report_id":     rep.ID.String(),
		"scam_detected": rep.ScamDetected,
		"messages":      rep.MessagesExchanged,
		"closed_at":     rep.CreatedAt.Unix(),
		"evidence":      evidenceItems(rep.ExtractedIntelligence.Evidence()),
	}

	_, err := g.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypherRecordReport, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to record report in graph: %w", err)
	}

	g.logger.Debug().Str("session_id", rep.SessionID).Msg("report recorded in evidence graph")
	return nil
}

// SessionsWithValue returns the sessions that disclosed value under category
func (g *EvidenceGraph) SessionsWithValue(ctx context.Context, category models.Category, value string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	params := map[string]any{"category": string(category), "value": value, "limit": limit}

	out, err := g.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypherLinkedByValue, params)
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(records))
		for _, rec := range records {
			id, _, err := neo4j.GetRecordValue[string](rec, "session_id")
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return ids, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions by evidence: %w", err)
	}
	return out.([]string), nil
}

// LinkedSessions returns other sessions sharing evidence with sessionID, most overlap first
func (g *EvidenceGraph) LinkedSessions(ctx context.Context, sessionID string, limit int) ([]LinkedSession, error) {
	if limit <= 0 {
		limit = 20
	}
	params := map[string]any{"session_id": sessionID, "limit": limit}

	out, err := g.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypherLinkedBySession, params)
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}

		linked := make([]LinkedSession, 0, len(records))
		for _, rec := range records {
			id, _, _ := neo4j.GetRecordValue[string](rec, "session_id")
			shared, _, _ := neo4j.GetRecordValue[int64](rec, "shared")
			raw, _, _ := neo4j.GetRecordValue[[]any](rec, "values")

			values := make([]string, 0, len(raw))
			for _, v := range raw {
				if s, ok := v.(string); ok {
					values = append(values, s)
				}
			}
			linked = append(linked, LinkedSession{SessionID: id, Shared: int(shared), Values: values})
		}
		return linked, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query linked sessions: %w", err)
	}
	return out.([]LinkedSession), nil
}

// evidenceItems flattens the identifying part of an evidence set into Cypher parameters
func evidenceItems(e models.EvidenceSet) []map[string]any {
	var items []map[string]any
	for _, c := range models.AllCategories {
		if !linkingCategories[c] {
			continue
		}
		for _, v := range e.Values(c) {
			items = append(items, map[string]any{"category": string(c), "value": v})
		}
	}
	return items
}
