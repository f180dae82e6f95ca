package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/AdamBeresnev/brick-bracket/internal/bracket"
	"github.com/AdamBeresnev/brick-bracket/internal/catalog"
	"github.com/AdamBeresnev/brick-bracket/internal/config"
	"github.com/AdamBeresnev/brick-bracket/internal/httputil"
	"github.com/AdamBeresnev/brick-bracket/internal/middleware"
	"github.com/AdamBeresnev/brick-bracket/internal/observe"
	"github.com/AdamBeresnev/brick-bracket/internal/service"
	"github.com/AdamBeresnev/brick-bracket/internal/store"
	"github.com/AdamBeresnev/brick-bracket/views"
	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/markbates/goth/gothic"
)

// app holds what the handlers need.
type app struct {
	cfg         *config.Config
	tournaments *service.TournamentService
	votes       *service.VoteService
	advance     *service.AdvanceService
	winners     *service.WinnerService
	users       *service.UserService
	sessions    *scs.SessionManager
	tokens      *middleware.TokenIssuer
	recorder    *observe.Recorder
}

func (a *app) urlID(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, r, "Invalid "+what+" ID", err)
		return uuid.Nil, false
	}
	return id, true
}

func listParams(r *http.Request) (service.ListParams, error) {
	q := r.URL.Query()
	p := service.ListParams{Kind: q.Get("type")}
	var err error
	if v := q.Get("skip"); v != "" {
		if p.Skip, err = strconv.Atoi(v); err != nil {
			return p, err
		}
	}
	if v := q.Get("limit"); v != "" {
		if p.Limit, err = strconv.Atoi(v); err != nil {
			return p, err
		}
	}
	return p, nil
}

func (a *app) listTournaments(w http.ResponseWriter, r *http.Request) {
	params, err := listParams(r)
	if err != nil {
		httputil.BadRequest(w, r, "skip and limit must be integers", err)
		return
	}

	var list []store.TournamentSummary
	err = a.recorder.Observe(r.Context(), "list_tournaments", func(ctx context.Context) error {
		var err error
		list, err = a.tournaments.ListTournaments(ctx, params)
		return err
	})
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if list == nil {
		list = []store.TournamentSummary{}
	}
	httputil.WriteJSON(w, r, http.StatusOK, list)
}

type createTournamentRequest struct {
	Title              string         `json:"title"`
	Type               string         `json:"type"`
	StageDurationHours *int           `json:"stage_duration_hours"`
	Filter             catalog.Filter `json:"filter"`
}

func (a *app) createTournament(w http.ResponseWriter, r *http.Request) {
	var req createTournamentRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, r, "Invalid request body", err)
		return
	}

	kind, err := bracket.ParseKind(req.Type)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	duration := a.cfg.DefaultStageHours
	if req.StageDurationHours != nil {
		duration = *req.StageDurationHours
	}

	in := service.CreateTournamentInput{
		Title:              req.Title,
		Kind:               kind,
		Filter:             req.Filter,
		StageDurationHours: duration,
	}
	if id, ok := middleware.GetUserIDFromContext(r.Context()); ok {
		in.OwnerID = &id
	}

	var data *service.TournamentData
	err = a.recorder.Observe(r.Context(), "create_tournament", func(ctx context.Context) error {
		var err error
		data, err = a.tournaments.CreateTournament(ctx, in)
		return err
	})
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusCreated, data)
}

func (a *app) getTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := a.urlID(w, r, "tournament")
	if !ok {
		return
	}

	var data *service.TournamentData
	err := a.recorder.Observe(r.Context(), "get_tournament", func(ctx context.Context) error {
		var err error
		data, err = a.tournaments.GetTournamentData(ctx, id)
		return err
	})
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, data)
}

func (a *app) deleteTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := a.urlID(w, r, "tournament")
	if !ok {
		return
	}

	err := a.recorder.Observe(r.Context(), "delete_tournament", func(ctx context.Context) error {
		return a.tournaments.DeleteTournament(ctx, id)
	})
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type voteRequest struct {
	PairID   uuid.UUID `json:"pair_id"`
	VotedFor uuid.UUID `json:"voted_for"`
}

func (a *app) vote(w http.ResponseWriter, r *http.Request) {
	id, ok := a.urlID(w, r, "tournament")
	if !ok {
		return
	}
	var req voteRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, r, "Invalid request body", err)
		return
	}

	user := middleware.GetAuthenticatedUser(r.Context())
	var vote *bracket.Vote
	err := a.recorder.Observe(r.Context(), "vote", func(ctx context.Context) error {
		var err error
		vote, err = a.votes.CastVote(ctx, service.CastVoteInput{
			TournamentID: id,
			PairID:       req.PairID,
			VoterID:      user.VoterID(),
			VotedFor:     req.VotedFor,
		})
		return err
	})
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusCreated, vote)
}

type advanceRequest struct {
	DurationHours *int `json:"duration_hours"`
}

func (a *app) advanceTournament(w http.ResponseWriter, r *http.Request) {
	id, ok := a.urlID(w, r, "tournament")
	if !ok {
		return
	}
	// The body is optional
	var req advanceRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(w, r, &req); err != nil {
			httputil.BadRequest(w, r, "Invalid request body", err)
			return
		}
	}

	var result *service.AdvanceResult
	err := a.recorder.Observe(r.Context(), "advance", func(ctx context.Context) error {
		var err error
		result, err = a.advance.Advance(ctx, id, req.DurationHours)
		return err
	})
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, result)
}

func (a *app) getPair(w http.ResponseWriter, r *http.Request) {
	id, ok := a.urlID(w, r, "pair")
	if !ok {
		return
	}

	var data *service.PairData
	err := a.recorder.Observe(r.Context(), "get_pair", func(ctx context.Context) error {
		var err error
		data, err = a.tournaments.GetPairData(ctx, id)
		return err
	})
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, data)
}

func (a *app) listWinners(w http.ResponseWriter, r *http.Request) {
	params, err := listParams(r)
	if err != nil {
		httputil.BadRequest(w, r, "skip and limit must be integers", err)
		return
	}

	var list *service.WinnerList
	err = a.recorder.Observe(r.Context(), "list_winners", func(ctx context.Context) error {
		var err error
		list, err = a.winners.List(ctx, params)
		return err
	})
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, list)
}

func (a *app) getWinner(w http.ResponseWriter, r *http.Request) {
	id, ok := a.urlID(w, r, "winner")
	if !ok {
		return
	}
	a.writeWinner(w, r, "get_winner", http.StatusOK, func(ctx context.Context) (*bracket.Winner, error) {
		return a.winners.Get(ctx, id)
	})
}

func (a *app) getTournamentWinner(w http.ResponseWriter, r *http.Request) {
	id, ok := a.urlID(w, r, "tournament")
	if !ok {
		return
	}
	a.writeWinner(w, r, "get_tournament_winner", http.StatusOK, func(ctx context.Context) (*bracket.Winner, error) {
		return a.winners.GetByTournament(ctx, id)
	})
}

type createWinnerRequest struct {
	ParticipantID *uuid.UUID `json:"participant_id"`
	SetID         *int64     `json:"set_id"`
	MinifigureID  *string    `json:"minifigure_id"`
	TotalVotes    int        `json:"total_votes"`
}

func (a *app) createWinner(w http.ResponseWriter, r *http.Request) {
	id, ok := a.urlID(w, r, "tournament")
	if !ok {
		return
	}
	var req createWinnerRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, r, "Invalid request body", err)
		return
	}

	if req.ParticipantID != nil {
		if req.SetID != nil || req.MinifigureID != nil {
			httputil.BadRequest(w, r, "participant_id cannot be combined with set_id or minifigure_id", nil)
			return
		}
		a.writeWinner(w, r, "create_winner", http.StatusCreated, func(ctx context.Context) (*bracket.Winner, error) {
			return a.winners.RecordFromParticipant(ctx, id, *req.ParticipantID)
		})
		return
	}

	item := bracket.ItemRef{SetID: req.SetID, MinifigureID: req.MinifigureID}
	a.writeWinner(w, r, "create_winner", http.StatusCreated, func(ctx context.Context) (*bracket.Winner, error) {
		return a.winners.RecordManual(ctx, id, item, req.TotalVotes)
	})
}

type updateWinnerRequest struct {
	SetID        *int64  `json:"set_id"`
	MinifigureID *string `json:"minifigure_id"`
	TotalVotes   *int    `json:"total_votes"`
}

func (a *app) updateWinner(w http.ResponseWriter, r *http.Request) {
	id, ok := a.urlID(w, r, "winner")
	if !ok {
		return
	}
	var req updateWinnerRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.BadRequest(w, r, "Invalid request body", err)
		return
	}

	update := service.WinnerUpdate{TotalVotes: req.TotalVotes}
	if req.SetID != nil || req.MinifigureID != nil {
		update.Item = &bracket.ItemRef{SetID: req.SetID, MinifigureID: req.MinifigureID}
	}
	a.writeWinner(w, r, "update_winner", http.StatusOK, func(ctx context.Context) (*bracket.Winner, error) {
		return a.winners.Update(ctx, id, update)
	})
}

func (a *app) deleteWinner(w http.ResponseWriter, r *http.Request) {
	id, ok := a.urlID(w, r, "winner")
	if !ok {
		return
	}

	err := a.recorder.Observe(r.Context(), "delete_winner", func(ctx context.Context) error {
		return a.winners.Delete(ctx, id)
	})
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *app) writeWinner(w http.ResponseWriter, r *http.Request, op string, status int, fn func(ctx context.Context) (*bracket.Winner, error)) {
	var winner *bracket.Winner
	err := a.recorder.Observe(r.Context(), op, func(ctx context.Context) error {
		var err error
		winner, err = fn(ctx)
		return err
	})
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, status, winner)
}

func (a *app) bracketPage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	data, err := a.tournaments.GetTournamentData(r.Context(), id)
	if err != nil {
		if errors.Is(err, bracket.ErrTournamentNotFound) {
			http.NotFound(w, r)
			return
		}
		httputil.InternalServerError(w, r, "Failed to get tournament", err)
		return
	}

	var winner *bracket.Winner
	if data.Tournament.Completed() {
		winner, err = a.winners.GetByTournament(r.Context(), id)
		if err != nil && !errors.Is(err, bracket.ErrWinnerNotFound) {
			httputil.InternalServerError(w, r, "Failed to get winner", err)
			return
		}
	}

	_ = views.Render(w, r, views.BracketPage(views.PrepareBracketData(data, winner, time.Now().UTC())))
}

func (a *app) loginPage(w http.ResponseWriter, r *http.Request) {
	_ = views.Render(w, r, views.LoginPage(oauthProviders))
}

func (a *app) beginAuth(w http.ResponseWriter, r *http.Request) {
	r = gothic.GetContextWithProvider(r, chi.URLParam(r, "provider"))
	gothic.BeginAuthHandler(w, r)
}

func (a *app) authCallback(w http.ResponseWriter, r *http.Request) {
	r = gothic.GetContextWithProvider(r, chi.URLParam(r, "provider"))

	gothUser, err := gothic.CompleteUserAuth(w, r)
	if err != nil {
		httputil.BadRequest(w, r, "Authentication failure", err)
		return
	}

	user, err := a.users.FindOrCreateUserByProvider(r.Context(), gothUser)
	if err != nil {
		httputil.InternalServerError(w, r, "Failed to find or create user", err)
		return
	}

	if err := a.sessions.RenewToken(r.Context()); err != nil {
		httputil.InternalServerError(w, r, "Failed to renew session", err)
		return
	}
	a.sessions.Put(r.Context(), middleware.SessionUserKey, user.ID.String())

	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *app) logout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Destroy(r.Context()); err != nil {
		httputil.InternalServerError(w, r, "Failed to destroy session", err)
		return
	}
	if r.Header.Get("HX-Request") != "" {
		w.Header().Set("HX-Redirect", "/login")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (a *app) issueToken(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetAuthenticatedUser(r.Context())
	token, expires, err := a.tokens.Issue(user)
	if err != nil {
		httputil.InternalServerError(w, r, "Failed to issue token", err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, tokenResponse{Token: token, ExpiresAt: expires})
}
