package store

import (
	"context"

	"github.com/AdamBeresnev/brick-bracket/internal/bracket"
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type WinnerStore struct {
	db *sqlx.DB
}

func NewWinnerStore(db *sqlx.DB) *WinnerStore {
	return &WinnerStore{db: db}
}

const (
	winnerColumns = `w.id, w.tournament_id, w.set_id, w.minifigure_id, w.total_votes, w.won_at, t.kind,
		COALESCE(s.name, m.name, '') AS item_name`
	winnerJoins = `tournament_winners w
		JOIN tournaments t ON t.id = w.tournament_id
		LEFT JOIN sets s ON s.set_id = w.set_id
		LEFT JOIN minifigures m ON m.minifigure_id = w.minifigure_id`

	createWinnerQuery = `INSERT INTO tournament_winners (id, tournament_id, set_id, minifigure_id, total_votes, won_at)
		VALUES (:id, :tournament_id, :set_id, :minifigure_id, :total_votes, :won_at)`
	updateWinnerQuery = `UPDATE tournament_winners SET
		set_id = :set_id,
		minifigure_id = :minifigure_id,
		total_votes = :total_votes
		WHERE id = :id`
	getWinnerQuery             = "SELECT " + winnerColumns + " FROM " + winnerJoins + " WHERE w.id = ?"
	getWinnerByTournamentQuery = "SELECT " + winnerColumns + " FROM " + winnerJoins + " WHERE w.tournament_id = ?"
	deleteWinnerQuery          = "DELETE FROM tournament_winners WHERE id = ?"
	setExistsQuery             = "SELECT EXISTS (SELECT 1 FROM sets WHERE set_id = ?)"
	minifigureExistsQuery      = "SELECT EXISTS (SELECT 1 FROM minifigures WHERE minifigure_id = ?)"
)

func (s *WinnerStore) CreateWinner(ctx context.Context, tx *sqlx.Tx, winner *bracket.Winner) error {
	_, err := tx.NamedExecContext(ctx, createWinnerQuery, winner)
	return err
}

func (s *WinnerStore) UpdateWinner(ctx context.Context, tx *sqlx.Tx, winner *bracket.Winner) error {
	_, err := tx.NamedExecContext(ctx, updateWinnerQuery, winner)
	return err
}

func (s *WinnerStore) GetWinner(ctx context.Context, id uuid.UUID) (*bracket.Winner, error) {
	return getWinner(ctx, s.db, getWinnerQuery, id)
}

func (s *WinnerStore) GetWinnerTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Winner, error) {
	return getWinner(ctx, tx, getWinnerQuery, id)
}

func (s *WinnerStore) GetWinnerByTournament(ctx context.Context, tournamentID uuid.UUID) (*bracket.Winner, error) {
	return getWinner(ctx, s.db, getWinnerByTournamentQuery, tournamentID)
}

func (s *WinnerStore) GetWinnerByTournamentTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (*bracket.Winner, error) {
	return getWinner(ctx, tx, getWinnerByTournamentQuery, tournamentID)
}

// ItemExistsTx reports whether the catalog holds the referenced item. The
// reference must name exactly one id.
func (s *WinnerStore) ItemExistsTx(ctx context.Context, tx *sqlx.Tx, ref bracket.ItemRef) (bool, error) {
	var exists bool
	var err error
	if ref.SetID != nil {
		err = tx.GetContext(ctx, &exists, setExistsQuery, *ref.SetID)
	} else {
		err = tx.GetContext(ctx, &exists, minifigureExistsQuery, *ref.MinifigureID)
	}
	return exists, err
}

func getWinner(ctx context.Context, q sqlx.QueryerContext, query string, id uuid.UUID) (*bracket.Winner, error) {
	var winner bracket.Winner
	if err := sqlx.GetContext(ctx, q, &winner, query, id); err != nil {
		return nil, err
	}
	return &winner, nil
}

// ListWinners returns one page of winners, most recent first, and the total
// number of winners matching the filter.
func (s *WinnerStore) ListWinners(ctx context.Context, filter ListFilter) ([]bracket.Winner, int, error) {
	page := sq.Select(winnerColumns).
		From(winnerJoins).
		OrderBy("w.won_at DESC", "w.id ASC").
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Skip))
	count := sq.Select("COUNT(*)").From(winnerJoins)
	if filter.Kind != "" {
		page = page.Where(sq.Eq{"t.kind": string(filter.Kind)})
		count = count.Where(sq.Eq{"t.kind": string(filter.Kind)})
	}

	pageSQL, pageArgs, err := page.ToSql()
	if err != nil {
		return nil, 0, err
	}
	countSQL, countArgs, err := count.ToSql()
	if err != nil {
		return nil, 0, err
	}

	winners := []bracket.Winner{}
	if err := s.db.SelectContext(ctx, &winners, pageSQL, pageArgs...); err != nil {
		return nil, 0, err
	}
	var total int
	if err := s.db.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return nil, 0, err
	}
	return winners, total, nil
}

func (s *WinnerStore) DeleteWinner(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, deleteWinnerQuery, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
