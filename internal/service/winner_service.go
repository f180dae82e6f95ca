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

type WinnerService struct {
	db          *sqlx.DB
	tournaments *store.TournamentStore
	votes       *store.VoteStore
	winners     *store.WinnerStore
	logger      zerolog.Logger

	now func() time.Time
}

func NewWinnerService(db *sqlx.DB, tournaments *store.TournamentStore, votes *store.VoteStore, winners *store.WinnerStore, logger zerolog.Logger) *WinnerService {
	return &WinnerService{
		db:          db,
		tournaments: tournaments,
		votes:       votes,
		winners:     winners,
		logger:      logger.With().Str("component", "winners").Logger(),
		now:         utcNow,
	}
}

// WinnerUpdate lists the fields an override may change. Nil fields are kept.
type WinnerUpdate struct {
	Item       *bracket.ItemRef
	TotalVotes *int
}

type WinnerList struct {
	Winners []bracket.Winner `json:"winners"`
	Total   int              `json:"total"`
}

// RecordFromParticipant stores the winner record of a completed tournament
// from one of its participants. total_votes counts every ballot the
// participant received in any stage.
func (s *WinnerService) RecordFromParticipant(ctx context.Context, tournamentID, participantID uuid.UUID) (*bracket.Winner, error) {
	return s.record(ctx, tournamentID, func(tx *sqlx.Tx, t *bracket.Tournament) (bracket.ItemRef, int, error) {
		participant, err := s.tournaments.GetParticipantTx(ctx, tx, participantID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return bracket.ItemRef{}, 0, bracket.ErrParticipantNotFound
			}
			return bracket.ItemRef{}, 0, fmt.Errorf("failed to get participant: %w", err)
		}
		if participant.TournamentID != t.ID {
			return bracket.ItemRef{}, 0, bracket.ErrParticipantNotFound
		}

		total, err := s.votes.CountVotesForTx(ctx, tx, participant.ID)
		if err != nil {
			return bracket.ItemRef{}, 0, fmt.Errorf("failed to count votes: %w", err)
		}
		return participant.ItemRef, total, nil
	})
}

// RecordManual stores an explicitly chosen item as the winner record.
func (s *WinnerService) RecordManual(ctx context.Context, tournamentID uuid.UUID, item bracket.ItemRef, totalVotes int) (*bracket.Winner, error) {
	if totalVotes < 0 {
		return nil, fmt.Errorf("%w: total_votes must not be negative", bracket.ErrInvalidInput)
	}
	if _, err := item.Kind(); err != nil {
		return nil, err
	}
	return s.record(ctx, tournamentID, func(tx *sqlx.Tx, t *bracket.Tournament) (bracket.ItemRef, int, error) {
		if err := item.MatchKind(t.Kind); err != nil {
			return bracket.ItemRef{}, 0, err
		}
		if err := s.checkItem(ctx, tx, item); err != nil {
			return bracket.ItemRef{}, 0, err
		}
		return item, totalVotes, nil
	})
}

type winnerSource func(tx *sqlx.Tx, t *bracket.Tournament) (bracket.ItemRef, int, error)

func (s *WinnerService) record(ctx context.Context, tournamentID uuid.UUID, source winnerSource) (*bracket.Winner, error) {
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
	if !tournament.Completed() {
		return nil, bracket.ErrTournamentNotCompleted
	}

	if _, err := s.winners.GetWinnerByTournamentTx(ctx, tx, tournamentID); err == nil {
		return nil, bracket.ErrDuplicateWinner
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check existing winner: %w", err)
	}

	item, total, err := source(tx, tournament)
	if err != nil {
		return nil, err
	}

	winner := &bracket.Winner{
		ID:           uuid.New(),
		TournamentID: tournamentID,
		ItemRef:      item,
		TotalVotes:   total,
		WonAt:        s.now(),
	}
	if err := s.winners.CreateWinner(ctx, tx, winner); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, bracket.ErrDuplicateWinner
		}
		return nil, storeErr("create winner", err)
	}

	stored, err := s.winners.GetWinnerTx(ctx, tx, winner.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload winner: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit winner: %w", err)
	}

	s.logger.Info().
		Str("tournament_id", tournamentID.String()).
		Str("winner_id", stored.ID.String()).
		Str("item", stored.ItemRef.String()).
		Int("total_votes", stored.TotalVotes).
		Msg("winner recorded")

	return stored, nil
}

// Update applies an override to an existing winner record. A new item must
// match the kind of the record's tournament and replaces both references.
func (s *WinnerService) Update(ctx context.Context, winnerID uuid.UUID, update WinnerUpdate) (*bracket.Winner, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	winner, err := s.winners.GetWinnerTx(ctx, tx, winnerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bracket.ErrWinnerNotFound
		}
		return nil, fmt.Errorf("failed to get winner: %w", err)
	}

	if err := applyWinnerUpdate(winner, update); err != nil {
		return nil, err
	}
	if update.Item != nil {
		if err := s.checkItem(ctx, tx, winner.ItemRef); err != nil {
			return nil, err
		}
	}

	if err := s.winners.UpdateWinner(ctx, tx, winner); err != nil {
		return nil, storeErr("update winner", err)
	}

	updated, err := s.winners.GetWinnerTx(ctx, tx, winnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload winner: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit winner update: %w", err)
	}

	s.logger.Info().
		Str("winner_id", winnerID.String()).
		Str("item", updated.ItemRef.String()).
		Int("total_votes", updated.TotalVotes).
		Msg("winner updated")

	return updated, nil
}

func (s *WinnerService) checkItem(ctx context.Context, tx *sqlx.Tx, item bracket.ItemRef) error {
	exists, err := s.winners.ItemExistsTx(ctx, tx, item)
	if err != nil {
		return fmt.Errorf("failed to look up item: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", bracket.ErrItemNotFound, item)
	}
	return nil
}

// applyWinnerUpdate merges the mutable fields of update into w. The stored
// record carries the kind of its tournament.
func applyWinnerUpdate(w *bracket.Winner, update WinnerUpdate) error {
	if update.Item != nil {
		if err := update.Item.MatchKind(w.Kind); err != nil {
			return err
		}
		w.ItemRef = bracket.ItemRef{
			SetID:        update.Item.SetID,
			MinifigureID: update.Item.MinifigureID,
		}
	}
	if update.TotalVotes != nil {
		if *update.TotalVotes < 0 {
			return fmt.Errorf("%w: total_votes must not be negative", bracket.ErrInvalidInput)
		}
		w.TotalVotes = *update.TotalVotes
	}
	return nil
}

func (s *WinnerService) Delete(ctx context.Context, winnerID uuid.UUID) error {
	deleted, err := s.winners.DeleteWinner(ctx, winnerID)
	if err != nil {
		return fmt.Errorf("failed to delete winner: %w", err)
	}
	if !deleted {
		return bracket.ErrWinnerNotFound
	}
	s.logger.Info().Str("winner_id", winnerID.String()).Msg("winner deleted")
	return nil
}

func (s *WinnerService) Get(ctx context.Context, winnerID uuid.UUID) (*bracket.Winner, error) {
	winner, err := s.winners.GetWinner(ctx, winnerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bracket.ErrWinnerNotFound
		}
		return nil, fmt.Errorf("failed to get winner: %w", err)
	}
	return winner, nil
}

func (s *WinnerService) GetByTournament(ctx context.Context, tournamentID uuid.UUID) (*bracket.Winner, error) {
	winner, err := s.winners.GetWinnerByTournament(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bracket.ErrWinnerNotFound
		}
		return nil, fmt.Errorf("failed to get winner: %w", err)
	}
	return winner, nil
}

func (s *WinnerService) List(ctx context.Context, params ListParams) (*WinnerList, error) {
	filter, err := params.filter()
	if err != nil {
		return nil, err
	}
	winners, total, err := s.winners.ListWinners(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list winners: %w", err)
	}
	return &WinnerList{Winners: winners, Total: total}, nil
}
