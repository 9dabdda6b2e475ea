package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"honeypot-lab/internal/api/handlers"
	"honeypot-lab/internal/config"
	"honeypot-lab/internal/domain/models"
	"honeypot-lab/internal/domain/services"
	"honeypot-lab/internal/domain/services/dialogue"
	"honeypot-lab/internal/infrastructure/cache"
	"honeypot-lab/internal/infrastructure/database/repository"
	"honeypot-lab/internal/infrastructure/graph"
	"honeypot-lab/internal/infrastructure/sessionstore"
	"honeypot-lab/pkg/logger"
)

type fakeReports struct {
	reports map[string]*models.IntelligenceReport
}

func (f *fakeReports) GetBySession(_ context.Context, id string) (*models.IntelligenceReport, error) {
	if rep, ok := f.reports[id]; ok {
		return rep, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeReports) List(context.Context, int, int) ([]*models.IntelligenceReport, int64, error) {
	var out []*models.IntelligenceReport
	for _, rep := range f.reports {
		out = append(out, rep)
	}
	return out, int64(len(out)), nil
}

func (f *fakeReports) FindByEvidence(context.Context, models.Category, string, int) ([]*models.IntelligenceReport, error) {
	return nil, nil
}

type fakeLinks struct{}

func (fakeLinks) SessionsWithValue(_ context.Context, _ models.Category, value string, _ int) ([]string, error) {
	return []string{"a", "b"}, nil
}

func (fakeLinks) LinkedSessions(_ context.Context, id string, _ int) ([]graph.LinkedSession, error) {
	return []graph.LinkedSession{{SessionID: "other", Shared: 1, Values: []string{"9876543210"}}}, nil
}

type testServer struct {
	handler http.Handler
	service *services.HoneypotService
}

func newTestServer(t *testing.T, mutate func(cfg *config.Config, deps *handlers.Dependencies), c *cache.RedisCache) *testServer {
	t.Helper()
	log := logger.NewNop()
	cfg := config.Default()

	engine := dialogue.NewEngine(nil, nil, nil, nil, dialogue.FixedSelector{}, dialogue.DefaultOptions())
	store := sessionstore.NewMemoryStore(time.Hour, time.Minute, log)
	svc := services.NewHoneypotService(store, engine, services.NewScamDetector(log), nil, nil, log)

	deps := handlers.Dependencies{
		Honeypot: svc,
		Version:  "test",
		Logger:   log,
	}
	if mutate != nil {
		mutate(cfg, &deps)
	}

	return &testServer{
		handler: NewRouter(*cfg, handlers.NewHandlers(deps), c, log).Setup(),
		service: svc,
	}
}

func (s *testServer) do(method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestMessageEndpoints(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	for _, path := range []string{"/", "/api/v1/honeypot/message"} {
		t.Run(path, func(t *testing.T) {
			rec := srv.do(http.MethodPost, path, `{"sessionId":"s-`+path+`","text":"Hello"}`, nil)
			require.Equal(t, http.StatusOK, rec.Code)

			resp := decode[models.MessageResponse](t, rec)
			assert.Equal(t, "success", resp.Status)
			assert.Equal(t, 1, resp.Step)
			assert.True(t, resp.Active)
			assert.NotEmpty(t, resp.Reply)
			assert.Contains(t, resp.ExtractedCounts, models.CategoryBankAccount)
		})
	}
}

func TestMessageBodyVariants(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	bodies := []string{
		`{"session_id":"v","message":"call me on 9876543210"}`,
		`{"sessionId":"v","message":{"text":"or UPI fraud@ybl"}}`,
	}
	var resp models.MessageResponse
	for _, b := range bodies {
		rec := srv.do(http.MethodPost, "/", b, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp = decode[models.MessageResponse](t, rec)
	}

	assert.Equal(t, "v", resp.SessionID)
	assert.Equal(t, 2, resp.Step)
	assert.Equal(t, 1, resp.ExtractedCounts[models.CategoryPhoneNumber])
	assert.Equal(t, 1, resp.ExtractedCounts[models.CategoryUPIID])
}

func TestMessageMalformedBodyStillAnswers(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	for _, body := range []string{"", "not json", `{"text": 42}`, `[1,2,3]`} {
		rec := srv.do(http.MethodPost, "/", body, nil)
		require.Equal(t, http.StatusOK, rec.Code, "body %q", body)

		resp := decode[models.MessageResponse](t, rec)
		assert.Equal(t, 1, resp.Step)
		assert.True(t, resp.Active)
		assert.NotEmpty(t, resp.SessionID)
		assert.NotEmpty(t, resp.Reply)
	}
}

func TestRootReportsSessionCount(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	srv.do(http.MethodPost, "/", `{"sessionId":"a","text":"hi"}`, nil)
	srv.do(http.MethodPost, "/", `{"sessionId":"b","text":"hi"}`, nil)

	rec := srv.do(http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ready", body["status"])
	assert.EqualValues(t, 2, body["sessions"])
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, func(_ *config.Config, deps *handlers.Dependencies) {
		deps.Checks = []handlers.ReadinessCheck{
			{Name: "redis", Check: func(context.Context) error { return assert.AnError }},
		}
	}, nil)

	rec := srv.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[handlers.HealthResponse](t, rec)
	assert.Equal(t, "not ready", body.Status)
	assert.Contains(t, body.Checks["redis"], "unhealthy")
}

func TestAPIKeyRequiredWhenConfigured(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config, _ *handlers.Dependencies) {
		cfg.Auth.APIKey = "s3cret"
	}, nil)

	rec := srv.do(http.MethodPost, "/", `{"text":"hi"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(http.MethodPost, "/", `{"text":"hi"}`, map[string]string{"x-api-key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(http.MethodPost, "/", `{"text":"hi"}`, map[string]string{"x-api-key": "s3cret"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// health stays public
	rec = srv.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionView(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := srv.do(http.MethodGet, "/api/v1/sessions/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	srv.do(http.MethodPost, "/", `{"sessionId":"audit","text":"IFSC hdfc0001234"}`, nil)

	rec = srv.do(http.MethodGet, "/api/v1/sessions/audit", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[models.SessionView](t, rec)
	assert.Equal(t, []string{"HDFC0001234"}, view.Evidence[models.CategoryIFSCCode])
	assert.Equal(t, 2, view.Step)
}

func TestDetect(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := srv.do(http.MethodPost, "/api/v1/detect", `{"text":"Urgent: verify your bank account"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[models.ScamDetection](t, rec)
	assert.True(t, got.IsScam)
	assert.Equal(t, 4, got.Score)

	rec = srv.do(http.MethodPost, "/api/v1/detect", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportsWithoutArchive(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	assert.Equal(t, http.StatusServiceUnavailable, srv.do(http.MethodGet, "/api/v1/reports", "", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, srv.do(http.MethodGet, "/api/v1/intel/linked?session_id=x", "", nil).Code)
	assert.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/api/v1/reports/stats", "", nil).Code)
}

func TestReportsAndLinks(t *testing.T) {
	s := models.NewSession("done", time.Now())
	s.Evidence.Add(models.CategoryPhoneNumber, "9876543210")
	archive := &fakeReports{reports: map[string]*models.IntelligenceReport{
		"done": models.NewIntelligenceReport(s, ""),
	}}

	srv := newTestServer(t, func(_ *config.Config, deps *handlers.Dependencies) {
		deps.Reports = archive
		deps.Links = fakeLinks{}
	}, nil)

	rec := srv.do(http.MethodGet, "/api/v1/reports", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[handlers.ListResponse](t, rec)
	assert.EqualValues(t, 1, list.Total)

	rec = srv.do(http.MethodGet, "/api/v1/reports/done", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rep := decode[models.IntelligenceReport](t, rec)
	assert.Equal(t, []string{"9876543210"}, rep.ExtractedIntelligence.PhoneNumbers)

	assert.Equal(t, http.StatusNotFound, srv.do(http.MethodGet, "/api/v1/reports/missing", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, srv.do(http.MethodGet, "/api/v1/reports?category=bogus&value=x", "", nil).Code)

	rec = srv.do(http.MethodGet, "/api/v1/intel/linked?category=phone_number&value=9876543210", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sessions":["a","b"]`)

	rec = srv.do(http.MethodGet, "/api/v1/intel/linked?session_id=done", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"other"`)

	assert.Equal(t, http.StatusBadRequest, srv.do(http.MethodGet, "/api/v1/intel/linked", "", nil).Code)
}

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := cache.NewRedisFromClient(client, "test:", logger.NewNop())

	srv := newTestServer(t, func(cfg *config.Config, _ *handlers.Dependencies) {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.RequestsPerMinute = 2
	}, c)

	for i := 0; i < 2; i++ {
		rec := srv.do(http.MethodPost, "/", `{"sessionId":"rl","text":"hi"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Remaining"))
	}

	rec := srv.do(http.MethodPost, "/", `{"sessionId":"rl","text":"hi"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// operator endpoints are not rate limited
	assert.Equal(t, http.StatusOK, srv.do(http.MethodGet, "/api/v1/sessions/rl", "", nil).Code)
}
