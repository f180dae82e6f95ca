package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AdamBeresnev/brick-bracket/internal/bracket"
	"github.com/AdamBeresnev/brick-bracket/internal/db"
	"github.com/AdamBeresnev/brick-bracket/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// DefaultStageHours is used when advance is called without a duration.
const DefaultStageHours = 24

type AdvanceService struct {
	db          *sqlx.DB
	tournaments *store.TournamentStore
	votes       *store.VoteStore
	logger      zerolog.Logger

	choose func(n int) int
	now    func() time.Time
}

func NewAdvanceService(db *sqlx.DB, tournaments *store.TournamentStore, votes *store.VoteStore, logger zerolog.Logger) *AdvanceService {
	return &AdvanceService{
		db:          db,
		tournaments: tournaments,
		votes:       votes,
		logger:      logger.With().Str("component", "advance").Logger(),
		choose:      bracket.DefaultChooser,
		now:         utcNow,
	}
}

type PairResolution struct {
	PairID     uuid.UUID          `json:"pair_id"`
	WinnerID   uuid.UUID          `json:"winner_id"`
	Resolution bracket.Resolution `json:"resolution"`
}

type AdvanceResult struct {
	TournamentID  uuid.UUID        `json:"tournament_id"`
	PreviousStage bracket.Stage    `json:"previous_stage"`
	Stage         bracket.Stage    `json:"stage"`
	StageDeadline time.Time        `json:"stage_deadline"`
	Completed     bool             `json:"completed"`
	ChampionID    *uuid.UUID       `json:"champion_id,omitempty"`
	Resolutions   []PairResolution `json:"resolutions"`
	Message       string           `json:"message"`
}

// Advance closes the current stage of a tournament: every pair gets a winner
// and either the next stage is seeded from those winners or, after the
// final, the tournament is marked completed. nextStageHours defaults to
// DefaultStageHours when nil.
//
// Everything happens in one transaction. The stage update only succeeds
// while current_stage still holds the stage that was resolved, so two
// concurrent calls cannot both seed the next stage.
func (s *AdvanceService) Advance(ctx context.Context, tournamentID uuid.UUID, nextStageHours *int) (*AdvanceResult, error) {
	duration := DefaultStageHours
	if nextStageHours != nil {
		if !bracket.ValidStageHours(*nextStageHours) {
			return nil, bracket.ErrInvalidDuration
		}
		duration = *nextStageHours
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	tournament, err := s.tournaments.GetTournamentTx(ctx, tx, tournamentID)
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
	if !tournament.StageOver(now) {
		return nil, fmt.Errorf("%w: %s remaining", bracket.ErrStageNotYetOver,
			tournament.Remaining(now).Round(time.Second))
	}

	pairs, err := s.tournaments.GetStagePairsTx(ctx, tx, tournament.ID, tournament.CurrentStage)
	if err != nil {
		return nil, fmt.Errorf("failed to get stage pairs: %w", err)
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: %s", bracket.ErrNoPairsForStage, tournament.CurrentStage)
	}

	resolutions, err := s.resolvePairs(ctx, tx, pairs)
	if err != nil {
		return nil, err
	}

	next, ok := tournament.CurrentStage.Next()
	if !ok {
		return nil, fmt.Errorf("%w: stage %q has no successor", bracket.ErrIntegrity, tournament.CurrentStage)
	}

	result := &AdvanceResult{
		TournamentID:  tournament.ID,
		PreviousStage: tournament.CurrentStage,
		Stage:         next,
		Resolutions:   resolutions,
	}

	if next == bracket.StageCompleted {
		result.StageDeadline = now
		result.Completed = true
		champion := resolutions[0].WinnerID
		result.ChampionID = &champion
		result.Message = "Tournament completed"
	} else {
		result.StageDeadline = now.Add(hours(duration))
		result.Message = fmt.Sprintf("Tournament advanced to stage %s", next)
	}

	advanced, err := s.tournaments.AdvanceStage(ctx, tx, tournament.ID, tournament.CurrentStage, next, result.StageDeadline)
	if err != nil {
		return nil, storeErr("update tournament stage", err)
	}
	if !advanced {
		return nil, bracket.ErrAdvanceConflict
	}

	if !result.Completed {
		winners := make([]uuid.UUID, len(resolutions))
		for i, r := range resolutions {
			winners[i] = r.WinnerID
		}
		nextPairs := bracket.NextStagePairs(tournament.ID, next, winners, now)
		if err := s.tournaments.CreatePairs(ctx, tx, nextPairs); err != nil {
			if db.IsUniqueViolation(err) {
				return nil, fmt.Errorf("%w: next stage pairs already exist", bracket.ErrIntegrity)
			}
			return nil, storeErr("create next stage pairs", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit advance: %w", err)
	}

	event := s.logger.Info().
		Str("tournament_id", tournament.ID.String()).
		Str("from", string(result.PreviousStage)).
		Str("to", string(result.Stage)).
		Int("pairs", len(pairs))
	if result.Completed {
		event.Str("champion_id", result.ChampionID.String()).Msg("tournament completed")
	} else {
		event.Time("stage_deadline", result.StageDeadline).Msg("stage advanced")
	}

	return result, nil
}

// resolvePairs picks and stores a winner for every pair, in pair order.
// Pairs resolved by an earlier call keep their winner.
func (s *AdvanceService) resolvePairs(ctx context.Context, tx *sqlx.Tx, pairs []bracket.Pair) ([]PairResolution, error) {
	resolutions := make([]PairResolution, 0, len(pairs))
	for i := range pairs {
		pair := &pairs[i]

		if pair.Resolved() {
			how := bracket.ResolvedStored
			if pair.IsWalkover() {
				how = bracket.ResolvedWalkover
			}
			resolutions = append(resolutions, PairResolution{PairID: pair.ID, WinnerID: *pair.WinnerID, Resolution: how})
			continue
		}

		var tally bracket.Tally
		if !pair.IsWalkover() {
			var err error
			tally, err = s.votes.TallyTx(ctx, tx, pair.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to tally pair %s: %w", pair.ID, err)
			}
		}

		winner, how := bracket.ResolvePair(pair, tally, s.choose)
		if err := s.tournaments.SetPairWinner(ctx, tx, pair.ID, winner); err != nil {
			return nil, storeErr("store pair winner", err)
		}

		if how == bracket.ResolvedTieBreak {
			s.logger.Info().
				Str("pair_id", pair.ID.String()).
				Str("winner_id", winner.String()).
				Int("votes_each", tally.For(winner)).
				Msg("tie broken by coin flip")
		}
		resolutions = append(resolutions, PairResolution{PairID: pair.ID, WinnerID: winner, Resolution: how})
	}
	return resolutions, nil
}

// DueTournaments lists unfinished tournaments whose current stage has ended.
func (s *AdvanceService) DueTournaments(ctx context.Context) ([]bracket.Tournament, error) {
	tournaments, err := s.tournaments.ListDueTournaments(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list due tournaments: %w", err)
	}
	return tournaments, nil
}
