package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"honeypot-lab/internal/domain/models"
)

// callbackBackoffs are the waits between callback attempts
var callbackBackoffs = []time.Duration{100 * time.Millisecond, 300 * time.Millisecond}

// CallbackSink POSTs the intelligence report as JSON to an evaluator endpoint
type CallbackSink struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewCallbackSink creates a callback sink. timeout bounds each attempt.
func NewCallbackSink(url string, headers map[string]string, timeout time.Duration) (*CallbackSink, error) {
	if url == "" {
		return nil, errors.New("callback url is empty")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hdr := make(map[string]string, len(headers))
	for k, v := range headers {
		hdr[k] = v
	}
	return &CallbackSink{
		url:     url,
		headers: hdr,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

func (s *CallbackSink) Name() string { return "callback" }

// Deliver posts the report, retrying transport errors and non-2xx answers
func (s *CallbackSink) Deliver(ctx context.Context, d *Delivery) error {
	payload, err := json.Marshal(d.Report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= len(callbackBackoffs); attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = s.post(ctx, payload, d.Report.SessionID)
		if lastErr == nil {
			return nil
		}

		if attempt < len(callbackBackoffs) {
			timer := time.NewTimer(callbackBackoffs[attempt])
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func (s *CallbackSink) post(ctx context.Context, payload []byte, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Honeypot-Lab/1.0")
	req.Header.Set("X-Session-ID", sessionID)
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post report: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned status %d: %s", resp.StatusCode, truncateBody(body))
	}
	return nil
}

func truncateBody(b []byte) string {
	const limit = 200
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "..."
}

// ReportArchive persists reports, ignoring duplicates for the same session
type ReportArchive interface {
	Save(ctx context.Context, rep *models.IntelligenceReport) (bool, error)
}

// ArchiveSink stores every report in the relational archive
type ArchiveSink struct {
	archive ReportArchive
}

func NewArchiveSink(archive ReportArchive) *ArchiveSink {
	return &ArchiveSink{archive: archive}
}

func (s *ArchiveSink) Name() string { return "archive" }

func (s *ArchiveSink) Deliver(ctx context.Context, d *Delivery) error {
	if _, err := s.archive.Save(ctx, d.Report); err != nil {
		return fmt.Errorf("failed to archive report: %w", err)
	}
	return nil
}

// ReportGraph links reports through the evidence values they share
type ReportGraph interface {
	RecordReport(ctx context.Context, rep *models.IntelligenceReport) error
}

// GraphSink records the report's evidence in the link graph
type GraphSink struct {
	graph ReportGraph
}

func NewGraphSink(graph ReportGraph) *GraphSink {
	return &GraphSink{graph: graph}
}

func (s *GraphSink) Name() string { return "graph" }

func (s *GraphSink) Deliver(ctx context.Context, d *Delivery) error {
	return s.graph.RecordReport(ctx, d.Report)
}

// EventSink announces closed sessions on the event stream
type EventSink struct {
	events EventPublisher
}

func NewEventSink(events EventPublisher) *EventSink {
	return &EventSink{events: events}
}

func (s *EventSink) Name() string { return "events" }

func (s *EventSink) Deliver(ctx context.Context, d *Delivery) error {
	return s.events.PublishSessionClosed(ctx, d.Session, d.Report)
}
