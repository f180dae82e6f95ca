package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/AdamBeresnev/brick-bracket/internal/bracket"
	"github.com/AdamBeresnev/brick-bracket/internal/catalog"
	"github.com/AdamBeresnev/brick-bracket/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

const maxTitleLength = 200

// CandidatePool resolves a catalog filter to the items a bracket is seeded from.
type CandidatePool interface {
	FindCandidates(ctx context.Context, kind bracket.Kind, filter catalog.Filter) ([]bracket.ItemRef, error)
}

type TournamentService struct {
	db     *sqlx.DB
	store  *store.TournamentStore
	votes  *store.VoteStore
	pool   CandidatePool
	logger zerolog.Logger

	shuffle func(n int, swap func(i, j int))
	now     func() time.Time
}

func NewTournamentService(db *sqlx.DB, store *store.TournamentStore, votes *store.VoteStore, pool CandidatePool, logger zerolog.Logger) *TournamentService {
	return &TournamentService{
		db:      db,
		store:   store,
		votes:   votes,
		pool:    pool,
		logger:  logger.With().Str("component", "tournaments").Logger(),
		shuffle: rand.Shuffle,
		now:     utcNow,
	}
}

type CreateTournamentInput struct {
	Title              string
	Kind               bracket.Kind
	Filter             catalog.Filter
	StageDurationHours int
	OwnerID            *uuid.UUID
}

// PairView is a pair together with the ballots cast in it.
type PairView struct {
	bracket.Pair
	Votes             []bracket.Vote `json:"votes"`
	VotesParticipant1 int            `json:"votes_participant1"`
	VotesParticipant2 int            `json:"votes_participant2"`
}

type TournamentData struct {
	Tournament   *bracket.Tournament   `json:"tournament"`
	Participants []bracket.Participant `json:"participants"`
	Pairs        []PairView            `json:"pairs"`
}

// PairData is a single pair with both participants and its live tally.
type PairData struct {
	Pair              *bracket.Pair        `json:"pair"`
	Participant1      *bracket.Participant `json:"participant1"`
	Participant2      *bracket.Participant `json:"participant2,omitempty"`
	Tally             bracket.Tally        `json:"tally"`
	VotesParticipant1 int                  `json:"votes_participant1"`
	VotesParticipant2 int                  `json:"votes_participant2"`
}

// CreateTournament seeds a new bracket from the catalog items matching the
// filter and persists the tournament, its participants and the opening
// stage pairs in one transaction.
func (s *TournamentService) CreateTournament(ctx context.Context, in CreateTournamentInput) (*TournamentData, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || len(title) > maxTitleLength {
		return nil, fmt.Errorf("%w: title must be between 1 and %d characters", bracket.ErrInvalidInput, maxTitleLength)
	}
	if !in.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q, expected sets or minifigures", bracket.ErrInvalidInput, in.Kind)
	}
	if !bracket.ValidStageHours(in.StageDurationHours) {
		return nil, bracket.ErrInvalidDuration
	}

	candidates, err := s.pool.FindCandidates(ctx, in.Kind, in.Filter)
	if err != nil {
		if bracket.ClassOf(err) != nil {
			return nil, err
		}
		return nil, fmt.Errorf("failed to resolve candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, bracket.ErrNoCandidates
	}
	if len(candidates) > bracket.MaxBracketSize {
		return nil, fmt.Errorf("%w: %d candidates, at most %d are supported; narrow the filter",
			bracket.ErrPoolTooLarge, len(candidates), bracket.MaxBracketSize)
	}

	s.shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	size := bracket.BracketSize(len(candidates))
	stage, err := bracket.StartingStage(size)
	if err != nil {
		return nil, err
	}

	now := s.now()
	tournament := bracket.Tournament{
		ID:            uuid.New(),
		OwnerID:       in.OwnerID,
		Title:         title,
		Kind:          in.Kind,
		CurrentStage:  stage,
		StageDeadline: now.Add(hours(in.StageDurationHours)),
		CreatedAt:     now,
	}

	participants := make([]bracket.Participant, len(candidates))
	for i, ref := range candidates {
		participants[i] = bracket.Participant{
			ID:           uuid.New(),
			TournamentID: tournament.ID,
			ItemRef:      ref,
			Position:     i + 1,
		}
	}

	pairs := bracket.FirstStagePairs(tournament.ID, stage, participants, size, now)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.store.CreateTournament(ctx, tx, &tournament); err != nil {
		return nil, storeErr("create tournament", err)
	}
	if err := s.store.CreateParticipants(ctx, tx, participants); err != nil {
		return nil, storeErr("create participants", err)
	}
	if err := s.store.CreatePairs(ctx, tx, pairs); err != nil {
		return nil, storeErr("create pairs", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit tournament: %w", err)
	}

	s.logger.Info().
		Str("tournament_id", tournament.ID.String()).
		Str("kind", string(tournament.Kind)).
		Str("stage", string(stage)).
		Int("participants", len(participants)).
		Int("bracket_size", size).
		Time("stage_deadline", tournament.StageDeadline).
		Msg("tournament created")

	return s.GetTournamentData(ctx, tournament.ID)
}

func (s *TournamentService) ListTournaments(ctx context.Context, params ListParams) ([]store.TournamentSummary, error) {
	filter, err := params.filter()
	if err != nil {
		return nil, err
	}
	tournaments, err := s.store.ListTournaments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	return tournaments, nil
}

func (s *TournamentService) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	tournament, err := s.store.GetTournament(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bracket.ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}
	return tournament, nil
}

// GetTournamentData loads the whole bracket: participants, every pair of
// every stage and the votes cast in each pair.
func (s *TournamentService) GetTournamentData(ctx context.Context, id uuid.UUID) (*TournamentData, error) {
	tournament, err := s.GetTournament(ctx, id)
	if err != nil {
		return nil, err
	}

	participants, err := s.store.GetParticipants(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}

	pairs, err := s.store.GetPairs(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get pairs: %w", err)
	}

	votes, err := s.votes.GetTournamentVotes(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get votes: %w", err)
	}

	byPair := make(map[uuid.UUID][]bracket.Vote)
	for _, v := range votes {
		byPair[v.PairID] = append(byPair[v.PairID], v)
	}

	views := make([]PairView, 0, len(pairs))
	for _, p := range pairs {
		view := PairView{Pair: p, Votes: byPair[p.ID]}
		if view.Votes == nil {
			view.Votes = []bracket.Vote{}
		}
		for _, v := range view.Votes {
			switch {
			case v.VotedFor == p.Participant1ID:
				view.VotesParticipant1++
			case p.Participant2ID != nil && v.VotedFor == *p.Participant2ID:
				view.VotesParticipant2++
			}
		}
		views = append(views, view)
	}

	return &TournamentData{
		Tournament:   tournament,
		Participants: participants,
		Pairs:        views,
	}, nil
}

func (s *TournamentService) GetPairData(ctx context.Context, pairID uuid.UUID) (*PairData, error) {
	pair, err := s.store.GetPair(ctx, pairID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bracket.ErrPairNotFound
		}
		return nil, fmt.Errorf("failed to get pair: %w", err)
	}

	participant1, err := s.store.GetParticipant(ctx, pair.Participant1ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant 1: %w", err)
	}

	var participant2 *bracket.Participant
	if pair.Participant2ID != nil {
		participant2, err = s.store.GetParticipant(ctx, *pair.Participant2ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get participant 2: %w", err)
		}
	}

	tally, err := s.votes.Tally(ctx, pairID)
	if err != nil {
		return nil, fmt.Errorf("failed to tally pair: %w", err)
	}

	data := &PairData{
		Pair:              pair,
		Participant1:      participant1,
		Participant2:      participant2,
		Tally:             tally,
		VotesParticipant1: tally.For(pair.Participant1ID),
	}
	if pair.Participant2ID != nil {
		data.VotesParticipant2 = tally.For(*pair.Participant2ID)
	}
	return data, nil
}

func (s *TournamentService) DeleteTournament(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.store.DeleteTournament(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete tournament: %w", err)
	}
	if !deleted {
		return bracket.ErrTournamentNotFound
	}

	s.logger.Info().Str("tournament_id", id.String()).Msg("tournament deleted")
	return nil
}
