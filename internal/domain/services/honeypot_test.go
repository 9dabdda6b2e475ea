package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"honeypot-lab/internal/domain/models"
	"honeypot-lab/internal/domain/services/dialogue"
	"honeypot-lab/internal/domain/services/extraction"
	"honeypot-lab/internal/infrastructure/sessionstore"
	"honeypot-lab/pkg/logger"
)

const fullDisclosure = "Transfer to account 123456789012 IFSC SBIN0004321, call 9123456780, verify at https://secure-login.example.in/kyc"

type recordingEvents struct {
	mu       sync.Mutex
	started  int
	evidence int
	closed   int
}

func (r *recordingEvents) PublishSessionStarted(context.Context, *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
	return nil
}

func (r *recordingEvents) PublishEvidence(context.Context, *models.Session, models.EvidenceSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evidence++
	return nil
}

func (r *recordingEvents) PublishSessionClosed(context.Context, *models.Session, *models.IntelligenceReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

func (r *recordingEvents) counts() (int, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started, r.evidence, r.closed
}

type failingStore struct{}

func (failingStore) Update(context.Context, string, sessionstore.UpdateFunc) (*models.Session, error) {
	return nil, errors.New("redis: connection refused")
}

func (failingStore) Get(context.Context, string) (*models.Session, error) {
	return nil, sessionstore.ErrSessionNotFound
}

func (failingStore) Count(context.Context) (int, error) { return 0, nil }

type fixture struct {
	svc      *HoneypotService
	sink     *recordingSink
	events   *recordingEvents
	reporter *Reporter
}

func newFixture(t *testing.T, store sessionstore.Store) *fixture {
	t.Helper()
	return newFixtureWith(t, store, ReporterConfig{Workers: 1, QueueSize: 16})
}

func newFixtureWith(t *testing.T, store sessionstore.Store, cfg ReporterConfig) *fixture {
	t.Helper()
	log := logger.NewNop()
	if store == nil {
		store = sessionstore.NewMemoryStore(time.Hour, time.Minute, log)
	}
	engine := dialogue.NewEngine(
		extraction.New(extraction.DefaultOptions()),
		dialogue.DefaultPhaseTable(),
		dialogue.DefaultRequirements(false, false),
		dialogue.DefaultPhrasebook(),
		dialogue.FixedSelector{},
		dialogue.DefaultOptions(),
	)
	sink := &recordingSink{}
	events := &recordingEvents{}
	reporter := NewReporter(cfg, log, sink)
	t.Cleanup(reporter.Stop)

	return &fixture{
		svc:      NewHoneypotService(store, engine, NewScamDetector(log), reporter, events, log),
		sink:     sink,
		events:   events,
		reporter: reporter,
	}
}

func TestHandleMessageFreshSession(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.svc.HandleMessage(context.Background(), models.MessageRequest{SessionID: "s1", Text: "Hello"})

	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, 1, resp.Step)
	assert.Equal(t, models.PhaseRapport, resp.Phase)
	assert.True(t, resp.Active)
	assert.Equal(t, 1, resp.Messages)
	assert.NotEmpty(t, resp.Reply)
	for _, n := range resp.ExtractedCounts {
		assert.Zero(t, n)
	}

	assert.Eventually(t, func() bool {
		started, _, _ := f.events.counts()
		return started == 1
	}, time.Second, 5*time.Millisecond)
}

func TestHandleMessageFillsDefaults(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.svc.HandleMessage(context.Background(), models.MessageRequest{})

	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, 1, resp.Step)
	assert.True(t, resp.Active)
}

func TestHandleMessageStepsAdvance(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for want := 1; want <= 5; want++ {
		resp := f.svc.HandleMessage(ctx, models.MessageRequest{SessionID: "s", Text: "Are you there?"})
		assert.Equal(t, want, resp.Step)
	}

	view, err := f.svc.Session(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, 6, view.Step)
	assert.Equal(t, 5, view.Messages)
}

func TestHandleMessageReportsExactlyOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.svc.HandleMessage(ctx, models.MessageRequest{SessionID: "s", Text: "Your bank account is locked"})

	resp := f.svc.HandleMessage(ctx, models.MessageRequest{SessionID: "s", Text: fullDisclosure})
	assert.False(t, resp.Active)
	assert.Equal(t, models.PhaseClosed, resp.Phase)
	assert.Equal(t, 1, resp.ExtractedCounts[models.CategoryBankAccount])
	assert.Equal(t, 1, resp.ExtractedCounts[models.CategoryIFSCCode])
	assert.Equal(t, 1, resp.ExtractedCounts[models.CategoryPhoneNumber])
	assert.Equal(t, 1, resp.ExtractedCounts[models.CategoryPhishingLink])

	for i := 0; i < 3; i++ {
		after := f.svc.HandleMessage(ctx, models.MessageRequest{SessionID: "s", Text: "Hello? Send it again " + fullDisclosure})
		assert.False(t, after.Active)
		assert.Equal(t, resp.Step, after.Step)
	}

	f.reporter.Stop()
	require.Equal(t, 1, f.sink.count())

	rep := f.sink.got[0].Report
	assert.Equal(t, "s", rep.SessionID)
	assert.Equal(t, 2, rep.MessagesExchanged)
	assert.True(t, rep.ScamDetected)
	assert.Equal(t, []string{"SBIN0004321"}, rep.ExtractedIntelligence.IFSCCodes)
	assert.Contains(t, rep.AgentNotes, "2 messages")
}

func TestHandleMessageConcurrentSessionReportsOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.svc.HandleMessage(ctx, models.MessageRequest{SessionID: "race", Text: fullDisclosure})
		}()
	}
	wg.Wait()

	f.reporter.Stop()
	assert.Equal(t, 1, f.sink.count())

	view, err := f.svc.Session(ctx, "race")
	require.NoError(t, err)
	assert.Equal(t, 16, view.Messages)
	assert.False(t, view.Active)
}

func TestHandleMessageStoreFailureFallsBack(t *testing.T) {
	f := newFixture(t, failingStore{})

	resp := f.svc.HandleMessage(context.Background(), models.MessageRequest{SessionID: "s", Text: fullDisclosure})

	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, dialogue.DefaultPhrasebook().Fallback, resp.Reply)
	assert.Equal(t, 1, resp.Step)
	assert.True(t, resp.Active)
	assert.Zero(t, resp.ExtractedCounts[models.CategoryBankAccount])

	f.reporter.Stop()
	assert.Zero(t, f.sink.count())
}

type onceMarker struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (m *onceMarker) MarkReported(_ context.Context, id string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[id] {
		return false, nil
	}
	m.seen[id] = true
	return true, nil
}

func TestReportMarkerSuppressesDuplicates(t *testing.T) {
	marker := &onceMarker{seen: map[string]bool{"s": true}}
	f := newFixtureWith(t, nil, ReporterConfig{Workers: 1, QueueSize: 16, Marker: marker, MarkTTL: time.Hour})

	resp := f.svc.HandleMessage(context.Background(), models.MessageRequest{SessionID: "s", Text: fullDisclosure})
	assert.False(t, resp.Active)

	f.reporter.Stop()
	assert.Zero(t, f.sink.count())
	assert.EqualValues(t, 1, f.reporter.Stats().Duplicates)
}

// stalledMarker blocks until released or its context expires
type stalledMarker struct {
	release chan struct{}
}

func (m *stalledMarker) MarkReported(ctx context.Context, _ string, _ time.Duration) (bool, error) {
	select {
	case <-m.release:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func TestSlowReportMarkerDoesNotDelayReply(t *testing.T) {
	marker := &stalledMarker{release: make(chan struct{})}
	f := newFixtureWith(t, nil, ReporterConfig{Workers: 1, QueueSize: 16, Marker: marker})

	start := time.Now()
	resp := f.svc.HandleMessage(context.Background(), models.MessageRequest{SessionID: "slow", Text: fullDisclosure})
	assert.False(t, resp.Active)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	close(marker.release)
	f.reporter.Stop()
	assert.Equal(t, 1, f.sink.count())
}

func TestSessionUnknown(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Session(context.Background(), "missing")
	assert.True(t, errors.Is(err, sessionstore.ErrSessionNotFound))
}

func TestHandleMessageLogsCarrySessionID(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Level: "debug", Format: "json", Output: &buf})
	engine := dialogue.NewEngine(nil, nil, nil, nil, dialogue.FixedSelector{}, dialogue.DefaultOptions())
	svc := NewHoneypotService(sessionstore.NewMemoryStore(time.Hour, time.Minute, log), engine, nil, nil, nil, log)

	svc.HandleMessage(context.Background(), models.MessageRequest{SessionID: "s-log", Text: fullDisclosure})

	var turns int
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["component"] != "honeypot" {
			continue
		}
		assert.Equal(t, "s-log", entry["session_id"], line)
		if entry["message"] == "turn" {
			turns++
		}
	}
	assert.Equal(t, 1, turns)
}
