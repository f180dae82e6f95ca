package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AdamBeresnev/brick-bracket/internal/bracket"
	"github.com/AdamBeresnev/brick-bracket/internal/db"
	"github.com/AdamBeresnev/brick-bracket/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

type VoteService struct {
	db          *sqlx.DB
	tournaments *store.TournamentStore
	votes       *store.VoteStore
	logger      zerolog.Logger

	now func() time.Time
}

func NewVoteService(db *sqlx.DB, tournaments *store.TournamentStore, votes *store.VoteStore, logger zerolog.Logger) *VoteService {
	return &VoteService{
		db:          db,
		tournaments: tournaments,
		votes:       votes,
		logger:      logger.With().Str("component", "votes").Logger(),
		now:         utcNow,
	}
}

type CastVoteInput struct {
	TournamentID uuid.UUID
	PairID       uuid.UUID
	VoterID      string
	VotedFor     uuid.UUID
}

// CastVote records one ballot. A voter gets a single ballot per pair; the
// UNIQUE(pair_id, voter_id) constraint backs up the explicit check.
func (s *VoteService) CastVote(ctx context.Context, in CastVoteInput) (*bracket.Vote, error) {
	voterID := strings.TrimSpace(in.VoterID)
	if voterID == "" {
		return nil, fmt.Errorf("%w: voter identity is required", bracket.ErrInvalidInput)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	tournament, err := s.tournaments.GetTournamentTx(ctx, tx, in.TournamentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bracket.ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}

	now := s.now()
	if tournament.Completed() {
		return nil, bracket.ErrTournamentCompleted
	}
	if !tournament.VotingOpen(now) {
		return nil, fmt.Errorf("%w: stage %s ended at %s", bracket.ErrVotingClosed,
			tournament.CurrentStage, tournament.StageDeadline.Format(time.RFC3339))
	}

	pair, err := s.tournaments.GetPairTx(ctx, tx, in.PairID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get pair: %w", err)
	}
	if pair == nil || pair.TournamentID != tournament.ID || pair.Stage != tournament.CurrentStage {
		return nil, bracket.ErrPairNotFound
	}

	if !pair.Has(in.VotedFor) {
		return nil, bracket.ErrInvalidVoteTarget
	}

	voted, err := s.votes.HasVotedTx(ctx, tx, pair.ID, voterID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing vote: %w", err)
	}
	if voted {
		return nil, bracket.ErrDuplicateVote
	}

	vote := &bracket.Vote{
		ID:        uuid.New(),
		PairID:    pair.ID,
		VoterID:   voterID,
		VotedFor:  in.VotedFor,
		CreatedAt: now,
	}
	if err := s.votes.CreateVote(ctx, tx, vote); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, bracket.ErrDuplicateVote
		}
		return nil, storeErr("create vote", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit vote: %w", err)
	}

	s.logger.Debug().
		Str("tournament_id", tournament.ID.String()).
		Str("pair_id", pair.ID.String()).
		Str("voted_for", vote.VotedFor.String()).
		Msg("vote recorded")
	return vote, nil
}

// Tally counts the votes per participant of a pair.
func (s *VoteService) Tally(ctx context.Context, pairID uuid.UUID) (bracket.Tally, error) {
	if _, err := s.tournaments.GetPair(ctx, pairID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bracket.ErrPairNotFound
		}
		return nil, fmt.Errorf("failed to get pair: %w", err)
	}

	tally, err := s.votes.Tally(ctx, pairID)
	if err != nil {
		return nil, fmt.Errorf("failed to tally pair: %w", err)
	}
	return tally, nil
}
