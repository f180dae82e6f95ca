package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AdamBeresnev/brick-bracket/internal/bracket"
	"github.com/AdamBeresnev/brick-bracket/internal/catalog"
	"github.com/AdamBeresnev/brick-bracket/internal/config"
	"github.com/AdamBeresnev/brick-bracket/internal/httputil"
	"github.com/AdamBeresnev/brick-bracket/internal/middleware"
	"github.com/AdamBeresnev/brick-bracket/internal/observe"
	"github.com/AdamBeresnev/brick-bracket/internal/service"
	"github.com/AdamBeresnev/brick-bracket/internal/store"
	"github.com/AdamBeresnev/brick-bracket/internal/testutil"
	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t       *testing.T
	db      *sqlx.DB
	handler http.Handler

	adminToken  string
	memberToken string
}

func newTestServer(t *testing.T, voteBurst int) *testServer {
	t.Helper()

	database := testutil.NewDB(t)
	logger := zerolog.Nop()
	cfg := &config.Config{
		Env:               "development",
		DefaultStageHours: 24,
		AllowedOrigins:    []string{"*"},
	}

	tournamentStore := store.NewTournamentStore(database)
	voteStore := store.NewVoteStore(database)
	userStore := store.NewUserStore(database)

	reg := prometheus.NewRegistry()
	recorder, err := observe.NewRecorder(reg, logger)
	require.NoError(t, err)

	tokens := middleware.NewTokenIssuer("test-secret", time.Hour)

	handler := newRouter(routerParams{
		Config:      cfg,
		Logger:      logger,
		Tournaments: service.NewTournamentService(database, tournamentStore, voteStore, catalog.NewStore(database, logger), logger),
		Votes:       service.NewVoteService(database, tournamentStore, voteStore, logger),
		Advance:     service.NewAdvanceService(database, tournamentStore, voteStore, logger),
		Winners:     service.NewWinnerService(database, tournamentStore, voteStore, store.NewWinnerStore(database), logger),
		Users:       service.NewUserService(userStore, cfg, logger),
		UserStore:   userStore,
		Sessions:    scs.New(),
		Tokens:      tokens,
		Limiter:     middleware.NewRateLimiter(0.001, voteBurst),
		Recorder:    recorder,
		Registry:    reg,
	})

	admin := testutil.SeedUser(t, database, "admin@example.com", true)
	member := testutil.SeedUser(t, database, "fan@example.com", false)
	adminToken, _, err := tokens.Issue(admin)
	require.NoError(t, err)
	memberToken, _, err := tokens.Issue(member)
	require.NoError(t, err)

	return &testServer{t: t, db: database, handler: handler, adminToken: adminToken, memberToken: memberToken}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[httputil.ErrorBody](t, rec).Error
}

// createTournament seeds count tagged sets and creates a tournament over them.
func (s *testServer) createTournament(tag string, count int) service.TournamentData {
	s.t.Helper()

	var base int64
	require.NoError(s.t, s.db.Get(&base, "SELECT COALESCE(MAX(set_id), 0) + 1 FROM sets"))
	for i := 0; i < count; i++ {
		testutil.SeedSet(s.t, s.db, base+int64(i), fmt.Sprintf("%s %d", tag, i), 20, 200, tag)
	}

	rec := s.do(http.MethodPost, "/api/tournaments", s.adminToken, map[string]any{
		"title":  "Best " + tag,
		"type":   "sets",
		"filter": map[string]any{"tag_names": []string{tag}},
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[service.TournamentData](s.t, rec)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, 5)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", "", nil).Code)

	s.do(http.MethodGet, "/api/tournaments", "", nil)
	rec := s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `brickbracket_operation_duration_seconds_count{operation="list_tournaments",outcome="ok"} 1`)
}

func TestCreateTournament_Access(t *testing.T) {
	s := newTestServer(t, 5)
	testutil.SeedSet(t, s.db, 1, "Castle", 20, 200, "castle")

	body := map[string]any{"title": "Castles", "type": "sets", "filter": map[string]any{"tag_names": []string{"castle"}}}

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{name: "anonymous", status: http.StatusUnauthorized},
		{name: "member", token: s.memberToken, status: http.StatusForbidden},
		{name: "bad token", token: "garbage", status: http.StatusUnauthorized},
		{name: "admin", token: s.adminToken, status: http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/tournaments", tt.token, body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestCreateTournament_Validation(t *testing.T) {
	s := newTestServer(t, 5)
	testutil.SeedSet(t, s.db, 1, "Castle", 20, 200, "castle")

	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{name: "unknown type", body: map[string]any{"title": "x", "type": "bricks"}, status: http.StatusBadRequest, code: "invalid_input"},
		{name: "no candidates", body: map[string]any{"title": "x", "type": "sets", "filter": map[string]any{"tag_names": []string{"space"}}}, status: http.StatusBadRequest, code: "no_candidates"},
		{name: "zero duration", body: map[string]any{"title": "x", "type": "sets", "stage_duration_hours": 0}, status: http.StatusBadRequest, code: "invalid_duration"},
		{name: "bad filter", body: map[string]any{"title": "x", "type": "sets", "filter": map[string]any{"tag_logic": "XOR"}}, status: http.StatusBadRequest, code: "invalid_filter"},
		{name: "unknown field", body: map[string]any{"title": "x", "type": "sets", "color": "red"}, status: http.StatusBadRequest, code: "bad_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/tournaments", s.adminToken, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestTournamentReads(t *testing.T) {
	s := newTestServer(t, 5)
	data := s.createTournament("castle", 3)

	assert.Equal(t, bracket.StageSemifinal, data.Tournament.CurrentStage)
	assert.Len(t, data.Participants, 3)
	require.Len(t, data.Pairs, 2)

	rec := s.do(http.MethodGet, "/api/tournaments", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]store.TournamentSummary](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, 3, list[0].ParticipantsCount)

	rec = s.do(http.MethodGet, "/api/tournaments?type=minifigures", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]store.TournamentSummary](t, rec))

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/tournaments?limit=abc", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/tournaments?limit=101", "", nil).Code)

	rec = s.do(http.MethodGet, "/api/tournaments/"+data.Tournament.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[service.TournamentData](t, rec)
	assert.Equal(t, data.Tournament.ID, got.Tournament.ID)

	rec = s.do(http.MethodGet, "/api/tournaments/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "tournament_not_found", errorCode(t, rec))
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/tournaments/not-a-uuid", "", nil).Code)

	rec = s.do(http.MethodGet, "/api/pairs/"+data.Pairs[0].ID.String(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pair := decode[service.PairData](t, rec)
	assert.Equal(t, data.Pairs[0].ID, pair.Pair.ID)

	rec = s.do(http.MethodGet, "/tournaments/"+data.Tournament.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Best castle")
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/tournaments/"+uuid.NewString(), "", nil).Code)
}

// fullPairOf returns the first pair that has two participants.
func fullPairOf(t *testing.T, data service.TournamentData) service.PairView {
	t.Helper()
	for _, p := range data.Pairs {
		if !p.IsWalkover() {
			return p
		}
	}
	t.Fatal("no full pair")
	return service.PairView{}
}

func TestVote(t *testing.T) {
	s := newTestServer(t, 5)
	data := s.createTournament("castle", 4)
	pair := fullPairOf(t, data)
	path := "/api/tournaments/" + data.Tournament.ID.String() + "/vote"
	body := map[string]any{"pair_id": pair.ID, "voted_for": pair.Participant1ID}

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, path, "", body).Code)

	rec := s.do(http.MethodPost, path, s.memberToken, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	vote := decode[bracket.Vote](t, rec)
	assert.Equal(t, pair.Participant1ID, vote.VotedFor)

	rec = s.do(http.MethodPost, path, s.memberToken, body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_vote", errorCode(t, rec))

	rec = s.do(http.MethodPost, path, s.adminToken, map[string]any{"pair_id": pair.ID, "voted_for": uuid.New()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_vote_target", errorCode(t, rec))

	testutil.ExpireStage(t, s.db, data.Tournament.ID)
	rec = s.do(http.MethodPost, path, s.adminToken, body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "voting_closed", errorCode(t, rec))
}

func TestVote_RateLimited(t *testing.T) {
	s := newTestServer(t, 1)
	data := s.createTournament("castle", 4)
	pair := fullPairOf(t, data)
	path := "/api/tournaments/" + data.Tournament.ID.String() + "/vote"
	body := map[string]any{"pair_id": pair.ID, "voted_for": pair.Participant1ID}

	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, path, s.memberToken, body).Code)
	rec := s.do(http.MethodPost, path, s.memberToken, body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", errorCode(t, rec))
}

func TestAdvanceAndWinner(t *testing.T) {
	s := newTestServer(t, 5)
	data := s.createTournament("castle", 2)
	id := data.Tournament.ID.String()
	advancePath := "/api/tournaments/" + id + "/advance"

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, advancePath, s.memberToken, nil).Code)

	rec := s.do(http.MethodPost, advancePath, s.adminToken, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "stage_not_over", errorCode(t, rec))

	testutil.ExpireStage(t, s.db, data.Tournament.ID)

	rec = s.do(http.MethodPost, advancePath, s.adminToken, map[string]any{"duration_hours": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_duration", errorCode(t, rec))

	pair := data.Pairs[0]
	rec = s.do(http.MethodPost, "/api/tournaments/"+id+"/winner", s.adminToken, map[string]any{"participant_id": pair.Participant1ID})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "tournament_not_completed", errorCode(t, rec))

	rec = s.do(http.MethodPost, advancePath, s.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[service.AdvanceResult](t, rec)
	assert.True(t, result.Completed)
	assert.Equal(t, bracket.StageFinal, result.PreviousStage)
	assert.Equal(t, bracket.StageCompleted, result.Stage)
	require.NotNil(t, result.ChampionID)

	rec = s.do(http.MethodPost, advancePath, s.adminToken, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "tournament_completed", errorCode(t, rec))

	rec = s.do(http.MethodGet, "/api/tournaments/"+id+"/winner", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/api/tournaments/"+id+"/winner", s.adminToken, map[string]any{
		"participant_id": result.ChampionID,
		"set_id":         1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/tournaments/"+id+"/winner", s.adminToken, map[string]any{"participant_id": result.ChampionID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	winner := decode[bracket.Winner](t, rec)
	assert.Equal(t, data.Tournament.ID, winner.TournamentID)

	rec = s.do(http.MethodPost, "/api/tournaments/"+id+"/winner", s.adminToken, map[string]any{"participant_id": result.ChampionID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_winner", errorCode(t, rec))

	winnerPath := "/api/winners/" + winner.ID.String()
	rec = s.do(http.MethodGet, winnerPath, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPatch, winnerPath, s.adminToken, map[string]any{"total_votes": 42})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 42, decode[bracket.Winner](t, rec).TotalVotes)

	rec = s.do(http.MethodPatch, winnerPath, s.adminToken, map[string]any{"minifigure_id": "cas001"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "kind_mismatch", errorCode(t, rec))

	rec = s.do(http.MethodGet, "/api/winners", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[service.WinnerList](t, rec)
	assert.Equal(t, 1, list.Total)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, winnerPath, s.adminToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, winnerPath, s.adminToken, nil).Code)

	page := s.do(http.MethodGet, "/tournaments/"+id, "", nil)
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "completed")
}

func TestDeleteTournament(t *testing.T) {
	s := newTestServer(t, 5)
	data := s.createTournament("castle", 2)
	path := "/api/tournaments/" + data.Tournament.ID.String()

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodDelete, path, s.memberToken, nil).Code)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, path, s.adminToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, path, "", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, path, s.adminToken, nil).Code)
}

func TestIssueToken(t *testing.T) {
	s := newTestServer(t, 5)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/auth/token", "", nil).Code)

	rec := s.do(http.MethodPost, "/auth/token", s.memberToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[tokenResponse](t, rec)
	assert.NotEmpty(t, resp.Token)
	assert.True(t, resp.ExpiresAt.After(time.Now()))

	// The fresh token authenticates too
	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/auth/token", resp.Token, nil).Code)
}

func TestLoginPage(t *testing.T) {
	s := newTestServer(t, 5)

	rec := s.do(http.MethodGet, "/login", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `href="/auth/discord"`)
	assert.Contains(t, rec.Body.String(), `href="/auth/google"`)
}
