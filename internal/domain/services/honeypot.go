package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"honeypot-lab/internal/domain/models"
	"honeypot-lab/internal/domain/services/dialogue"
	"honeypot-lab/internal/infrastructure/sessionstore"
	"honeypot-lab/pkg/logger"
)

// EventPublisher announces session lifecycle events. Implementations must be
// safe for concurrent use.
type EventPublisher interface {
	PublishSessionStarted(ctx context.Context, s *models.Session) error
	PublishEvidence(ctx context.Context, s *models.Session, added models.EvidenceSet) error
	PublishSessionClosed(ctx context.Context, s *models.Session, report *models.IntelligenceReport) error
}

const (
	eventTimeout  = 5 * time.Second
	statusSuccess = "success"
)

// HoneypotService runs one counterpart message through the session store and
// the dialogue engine
type HoneypotService struct {
	store    sessionstore.Store
	engine   *dialogue.Engine
	detector *ScamDetector
	reporter *Reporter
	events   EventPublisher
	logger   *logger.Logger
}

// NewHoneypotService creates the service. reporter and events may be nil.
func NewHoneypotService(
	store sessionstore.Store,
	engine *dialogue.Engine,
	detector *ScamDetector,
	reporter *Reporter,
	events EventPublisher,
	log *logger.Logger,
) *HoneypotService {
	if detector == nil {
		detector = NewScamDetector(log)
	}
	return &HoneypotService{
		store:    store,
		engine:   engine,
		detector: detector,
		reporter: reporter,
		events:   events,
		logger:   log.WithComponent("honeypot"),
	}
}

// HandleMessage always returns a reply. Store failures degrade to a
// non-committal answer for a fresh-looking session.
func (s *HoneypotService) HandleMessage(ctx context.Context, req models.MessageRequest) *models.MessageResponse {
	req = req.WithDefaults()
	log := s.logger.WithSessionID(req.SessionID)
	detection := s.detector.Detect(req.Text)

	var (
		turn    dialogue.Turn
		created bool
	)
	sess, err := s.store.Update(ctx, req.SessionID, func(sess *models.Session, isNew bool) error {
		created = isNew
		if detection.IsScam {
			sess.ScamDetected = true
		}
		turn = s.engine.Respond(sess, req.Text)
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to update session, answering with fallback")
		return s.fallback(req.SessionID)
	}

	logTurn(log, sess, req.Text, turn)

	if created {
		s.publish(log, func(ctx context.Context, p EventPublisher) error {
			return p.PublishSessionStarted(ctx, sess)
		})
	}
	if !turn.NewEvidence.IsEmpty() {
		added := turn.NewEvidence
		s.publish(log, func(ctx context.Context, p EventPublisher) error {
			return p.PublishEvidence(ctx, sess, added)
		})
	}
	if turn.Closed {
		s.report(log, sess, detection)
	}

	return &models.MessageResponse{
		Status:          statusSuccess,
		SessionID:       sess.ID,
		Reply:           turn.Reply,
		Step:            turn.Step,
		Phase:           turn.Phase,
		Active:          sess.Active,
		Messages:        sess.Messages,
		ExtractedCounts: sess.Evidence.Counts(),
	}
}

// Session returns the raw evidence view of a session
func (s *HoneypotService) Session(ctx context.Context, id string) (*models.SessionView, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess.View(), nil
}

// SessionCount returns the number of live sessions
func (s *HoneypotService) SessionCount(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// Detect scores a standalone message
func (s *HoneypotService) Detect(text string) *models.ScamDetection {
	return s.detector.Detect(text)
}

func (s *HoneypotService) fallback(sessionID string) *models.MessageResponse {
	return &models.MessageResponse{
		Status:          statusSuccess,
		SessionID:       sessionID,
		Reply:           s.engine.Fallback(),
		Step:            1,
		Phase:           models.PhaseRapport,
		Active:          true,
		ExtractedCounts: models.NewEvidenceSet().Counts(),
	}
}

// report hands the closed session to the reporter. It runs once per session:
// only the message that flipped the session to closed reaches it. The
// cross-replica guard runs on the reporter's workers, off the reply path.
func (s *HoneypotService) report(log *logger.Logger, sess *models.Session, detection *models.ScamDetection) {
	rep := models.NewIntelligenceReport(sess, agentNotes(sess, detection))

	log.Info().
		Int("messages", sess.Messages).
		Interface("counts", sess.Evidence.Counts()).
		Msg("session closed with full intelligence")

	if s.reporter == nil {
		return
	}
	s.reporter.Submit(&Delivery{Session: sess, Report: rep})
}

// publish sends an event off the reply path
func (s *HoneypotService) publish(log *logger.Logger, fn func(ctx context.Context, p EventPublisher) error) {
	if s.events == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		if err := fn(ctx, s.events); err != nil {
			log.Warn().Err(err).Msg("failed to publish session event")
		}
	}()
}

func logTurn(log *logger.Logger, sess *models.Session, text string, turn dialogue.Turn) {
	log.Info().
		Int("step", turn.Step).
		Str("phase", string(turn.Phase)).
		Bool("active", sess.Active).
		Str("counterpart", truncate(text, 80)).
		Str("reply", turn.Reply).
		Strs("missing", turn.Missing).
		Interface("counts", sess.Evidence.Counts()).
		Msg("turn")
}

func agentNotes(sess *models.Session, detection *models.ScamDetection) string {
	var parts []string
	for _, c := range models.AllCategories {
		if c == models.CategoryKeyword || c == models.CategoryAmount {
			continue
		}
		if n := sess.Evidence.Count(c); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, c))
		}
	}
	notes := fmt.Sprintf("Counterpart disclosed %s over %d messages.", strings.Join(parts, ", "), sess.Messages)
	if kws := sess.Evidence.Values(models.CategoryKeyword); len(kws) > 0 {
		notes += " Pressure keywords: " + strings.Join(kws, ", ") + "."
	}
	if detection != nil && detection.IsScam {
		notes += fmt.Sprintf(" Last message scam confidence %.2f.", detection.Confidence)
	}
	return notes
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
