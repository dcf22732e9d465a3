package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/redrace/tournament-system/brackets"
	"github.com/redrace/tournament-system/handlers"
	"github.com/redrace/tournament-system/metrics"
	"github.com/redrace/tournament-system/middleware"
	"github.com/redrace/tournament-system/models"
	"github.com/redrace/tournament-system/services"
)

const (
	testSecret = "routes-secret"
	testAPIKey = "bot-key"
)

type stubRaceService struct {
	services.RaceService
	completed []int
}

func (s *stubRaceService) Complete(_ context.Context, raceID int, _ services.CompleteRaceInput) (*services.CompleteRaceResult, error) {
	s.completed = append(s.completed, raceID)
	return &services.CompleteRaceResult{Race: &models.Race{ID: raceID, Completed: true}}, nil
}

type stubTournamentService struct {
	services.TournamentService
	ended int
}

func (s *stubTournamentService) RoundSummary(context.Context) (*models.RoundSummary, error) {
	return &models.RoundSummary{CurrentRound: models.RoundTwo, UpcomingRaces: 3}, nil
}

func (s *stubTournamentService) EndRound(context.Context) (*models.EndRoundResult, error) {
	s.ended++
	return &models.EndRoundResult{PreviousRound: models.RoundTwo, NextRound: models.RoundThree}, nil
}

type testServer struct {
	router     chi.Router
	races      *stubRaceService
	tournament *stubTournamentService
	metrics    *metrics.Metrics
}

func newTestServer(t *testing.T, perMinute int, health func(ctx context.Context) error) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hash, err := bcrypt.GenerateFromPassword([]byte(testAPIKey), bcrypt.MinCost)
	require.NoError(t, err)

	ts := &testServer{
		router:     chi.NewRouter(),
		races:      &stubRaceService{},
		tournament: &stubTournamentService{},
		metrics:    metrics.New(),
	}
	auth := middleware.NewAuthenticator(testSecret, logger)

	SetupRoutes(ts.router, Handlers{
		Race:       handlers.NewRaceHandler(ts.races),
		Tournament: handlers.NewTournamentHandler(ts.tournament),
		Pickems:    handlers.NewPickemsHandler(nil),
		Group:      handlers.NewGroupHandler(nil),
		User:       handlers.NewUserHandler(nil),
		Stats:      handlers.NewStatsHandler(nil, nil),
		WebSocket:  handlers.NewWebSocketHandler(brackets.NewHub(logger), "red2025", nil, logger),
	}, Options{
		Auth:           auth,
		APIKey:         middleware.NewAPIKeyGuard(string(hash), auth, logger),
		RateLimiter:    middleware.NewRateLimiter(perMinute, ts.metrics),
		Metrics:        ts.metrics,
		AllowedOrigins: []string{"https://red.example"},
		HealthCheck:    health,
	})
	return ts
}

func token(t *testing.T, user *models.User) string {
	t.Helper()
	signed, err := middleware.IssueToken(testSecret, user, time.Hour)
	require.NoError(t, err)
	return "Bearer " + signed
}

func (ts *testServer) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, 100, nil)
	rec := ts.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	down := newTestServer(t, 100, func(context.Context) error { return errors.New("db down") })
	rec = down.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOpenAPIDocument(t *testing.T) {
	ts := newTestServer(t, 100, nil)
	rec := ts.do(http.MethodGet, "/openapi.json", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc struct {
		Paths map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Contains(t, doc.Paths, "/api/races/{raceID}/complete")
	assert.Contains(t, doc.Paths, "/api/tournament/end-round")
}

func TestPublicRoundSummary(t *testing.T) {
	ts := newTestServer(t, 100, nil)
	rec := ts.do(http.MethodGet, "/api/tournament/round", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"current_round":"Round 2"`)
}

func TestEndRoundRequiresAdmin(t *testing.T) {
	ts := newTestServer(t, 100, nil)
	runner := &models.User{ID: 1, DiscordUsername: "alice", Role: models.RoleRunner}
	admin := &models.User{ID: 2, DiscordUsername: "mod", Role: models.RoleCommentator, IsAdmin: true}

	rec := ts.do(http.MethodPost, "/api/tournament/end-round", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPost, "/api/tournament/end-round", "", map[string]string{"Authorization": token(t, runner)})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, ts.tournament.ended)

	rec = ts.do(http.MethodPost, "/api/tournament/end-round", "", map[string]string{"Authorization": token(t, admin)})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ts.tournament.ended)
}

func TestCompleteAcceptsAPIKey(t *testing.T) {
	ts := newTestServer(t, 100, nil)
	body := `{"results":[{"racer_id":1,"status":"Finished","finish_time":{"hours":1,"minutes":40}}]}`

	rec := ts.do(http.MethodPost, "/api/races/7/complete", body, map[string]string{middleware.APIKeyHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPost, "/api/races/7/complete", body, map[string]string{middleware.APIKeyHeader: testAPIKey})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []int{7}, ts.races.completed)
}

func TestRateLimitAppliesToAPI(t *testing.T) {
	ts := newTestServer(t, 1, nil)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/tournament/round", "", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, ts.do(http.MethodGet, "/api/tournament/round", "", nil).Code)
	// служебные пути лимит не трогает
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/healthz", "", nil).Code)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, 100, nil)
	rec := ts.do(http.MethodOptions, "/api/tournament/round", "", map[string]string{
		"Origin":                        "https://red.example",
		"Access-Control-Request-Method": http.MethodGet,
	})
	assert.Equal(t, "https://red.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, 100, nil)
	ts.do(http.MethodGet, "/api/tournament/round", "", nil)

	rec := ts.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `tournament_http_requests_total{method="GET",route="/api/tournament/round",status="200"} 1`)
}
