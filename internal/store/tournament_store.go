package store

import (
	"context"
	"sort"
	"time"

	"github.com/AdamBeresnev/brick-bracket/internal/bracket"
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

// TournamentSummary is a list row with its participant count.
type TournamentSummary struct {
	bracket.Tournament
	ParticipantsCount int `db:"participants_count" json:"participants_count"`
}

// ListFilter pages through tournaments or winners, optionally by kind.
type ListFilter struct {
	Kind  bracket.Kind
	Skip  int
	Limit int
}

const (
	tournamentColumns  = "t.id, t.owner_id, t.title, t.kind, t.current_stage, t.stage_deadline, t.created_at"
	participantColumns = `p.id, p.tournament_id, p.set_id, p.minifigure_id, p.position,
		COALESCE(s.name, m.name, '') AS item_name`
	participantJoins = `tournament_participants p
		LEFT JOIN sets s ON s.set_id = p.set_id
		LEFT JOIN minifigures m ON m.minifigure_id = p.minifigure_id`
	pairColumns = "id, tournament_id, stage, pair_order, participant1_id, participant2_id, winner_id, created_at"

	createTournamentQuery = `INSERT INTO tournaments (id, owner_id, title, kind, current_stage, stage_deadline, created_at)
        VALUES (:id, :owner_id, :title, :kind, :current_stage, :stage_deadline, :created_at)`
	createParticipantsQuery = `INSERT INTO tournament_participants (id, tournament_id, set_id, minifigure_id, position)
        VALUES (:id, :tournament_id, :set_id, :minifigure_id, :position)`
	createPairsQuery = `INSERT INTO tournament_pairs (id, tournament_id, stage, pair_order, participant1_id, participant2_id, winner_id, created_at)
		VALUES (:id, :tournament_id, :stage, :pair_order, :participant1_id, :participant2_id, :winner_id, :created_at)`

	getTournamentQuery    = "SELECT " + tournamentColumns + " FROM tournaments t WHERE t.id = ?"
	dueTournamentsQuery   = "SELECT " + tournamentColumns + " FROM tournaments t WHERE t.current_stage <> ? AND t.stage_deadline <= ? ORDER BY t.stage_deadline ASC"
	getParticipantsQuery  = "SELECT " + participantColumns + " FROM " + participantJoins + " WHERE p.tournament_id = ? ORDER BY p.position ASC"
	getParticipantQuery   = "SELECT " + participantColumns + " FROM " + participantJoins + " WHERE p.id = ?"
	getPairsQuery         = "SELECT " + pairColumns + " FROM tournament_pairs WHERE tournament_id = ? ORDER BY pair_order ASC"
	getStagePairsQuery    = "SELECT " + pairColumns + " FROM tournament_pairs WHERE tournament_id = ? AND stage = ? ORDER BY pair_order ASC"
	getPairQuery          = "SELECT " + pairColumns + " FROM tournament_pairs WHERE id = ?"
	setPairWinnerQuery    = "UPDATE tournament_pairs SET winner_id = ? WHERE id = ?"
	advanceStageQuery     = "UPDATE tournaments SET current_stage = ?, stage_deadline = ? WHERE id = ? AND current_stage = ?"
	deleteTournamentQuery = "DELETE FROM tournaments WHERE id = ?"
)

func (s *TournamentStore) CreateTournament(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) error {
	_, err := tx.NamedExecContext(ctx, createTournamentQuery, tournament)
	return err
}

func (s *TournamentStore) CreateParticipants(ctx context.Context, tx *sqlx.Tx, participants []bracket.Participant) error {
	if len(participants) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, createParticipantsQuery, participants)
	return err
}

func (s *TournamentStore) CreatePairs(ctx context.Context, tx *sqlx.Tx, pairs []bracket.Pair) error {
	if len(pairs) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, createPairsQuery, pairs)
	return err
}

func (s *TournamentStore) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	return getTournament(ctx, s.db, id)
}

func (s *TournamentStore) GetTournamentTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Tournament, error) {
	return getTournament(ctx, tx, id)
}

func getTournament(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	if err := sqlx.GetContext(ctx, q, &tournament, getTournamentQuery, id); err != nil {
		return nil, err
	}
	return &tournament, nil
}

func (s *TournamentStore) ListTournaments(ctx context.Context, filter ListFilter) ([]TournamentSummary, error) {
	query := sq.Select(tournamentColumns,
		"(SELECT COUNT(*) FROM tournament_participants p WHERE p.tournament_id = t.id) AS participants_count").
		From("tournaments t").
		OrderBy("t.created_at DESC", "t.id ASC").
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Skip))
	if filter.Kind != "" {
		query = query.Where(sq.Eq{"t.kind": string(filter.Kind)})
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	tournaments := []TournamentSummary{}
	err = sqlx.SelectContext(ctx, s.db, &tournaments, sqlStr, args...)
	return tournaments, err
}

// ListDueTournaments returns unfinished tournaments whose stage deadline is
// at or before now.
func (s *TournamentStore) ListDueTournaments(ctx context.Context, now time.Time) ([]bracket.Tournament, error) {
	var tournaments []bracket.Tournament
	err := s.db.SelectContext(ctx, &tournaments, dueTournamentsQuery, bracket.StageCompleted, now.UTC())
	return tournaments, err
}

func (s *TournamentStore) GetParticipants(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Participant, error) {
	participants := []bracket.Participant{}
	err := s.db.SelectContext(ctx, &participants, getParticipantsQuery, tournamentID)
	return participants, err
}

func (s *TournamentStore) GetParticipant(ctx context.Context, id uuid.UUID) (*bracket.Participant, error) {
	return getParticipant(ctx, s.db, id)
}

func (s *TournamentStore) GetParticipantTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Participant, error) {
	return getParticipant(ctx, tx, id)
}

func getParticipant(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*bracket.Participant, error) {
	var participant bracket.Participant
	if err := sqlx.GetContext(ctx, q, &participant, getParticipantQuery, id); err != nil {
		return nil, err
	}
	return &participant, nil
}

// GetPairs returns every pair of a tournament, earliest stage first.
func (s *TournamentStore) GetPairs(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Pair, error) {
	pairs := []bracket.Pair{}
	if err := s.db.SelectContext(ctx, &pairs, getPairsQuery, tournamentID); err != nil {
		return nil, err
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].Stage.Index() < pairs[j].Stage.Index()
	})
	return pairs, nil
}

func (s *TournamentStore) GetStagePairsTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, stage bracket.Stage) ([]bracket.Pair, error) {
	var pairs []bracket.Pair
	err := tx.SelectContext(ctx, &pairs, getStagePairsQuery, tournamentID, stage)
	return pairs, err
}

func (s *TournamentStore) GetPair(ctx context.Context, id uuid.UUID) (*bracket.Pair, error) {
	return getPair(ctx, s.db, id)
}

func (s *TournamentStore) GetPairTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Pair, error) {
	return getPair(ctx, tx, id)
}

func getPair(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*bracket.Pair, error) {
	var pair bracket.Pair
	if err := sqlx.GetContext(ctx, q, &pair, getPairQuery, id); err != nil {
		return nil, err
	}
	return &pair, nil
}

func (s *TournamentStore) SetPairWinner(ctx context.Context, tx *sqlx.Tx, pairID, winnerID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, setPairWinnerQuery, winnerID, pairID)
	return err
}

// AdvanceStage moves the tournament from one stage to the next only if it is
// still in from. It reports false when another caller got there first.
func (s *TournamentStore) AdvanceStage(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, from, to bracket.Stage, deadline time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx, advanceStageQuery, to, deadline.UTC(), id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *TournamentStore) DeleteTournament(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, deleteTournamentQuery, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
