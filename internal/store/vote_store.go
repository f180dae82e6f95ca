package store

import (
	"context"

	"github.com/AdamBeresnev/brick-bracket/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type VoteStore struct {
	db *sqlx.DB
}

func NewVoteStore(db *sqlx.DB) *VoteStore {
	return &VoteStore{db: db}
}

const (
	voteColumns     = "v.id, v.pair_id, v.voter_id, v.voted_for, v.created_at"
	createVoteQuery = `INSERT INTO tournament_votes (id, pair_id, voter_id, voted_for, created_at)
		VALUES (:id, :pair_id, :voter_id, :voted_for, :created_at)`
	hasVotedQuery        = "SELECT EXISTS (SELECT 1 FROM tournament_votes WHERE pair_id = ? AND voter_id = ?)"
	tallyPairQuery       = "SELECT voted_for, COUNT(*) AS votes FROM tournament_votes WHERE pair_id = ? GROUP BY voted_for"
	votesForQuery        = "SELECT COUNT(*) FROM tournament_votes WHERE voted_for = ?"
	tournamentVotesQuery = "SELECT " + voteColumns + ` FROM tournament_votes v
		JOIN tournament_pairs p ON p.id = v.pair_id
		WHERE p.tournament_id = ?
		ORDER BY v.created_at ASC`
)

type tallyRow struct {
	ParticipantID uuid.UUID `db:"voted_for"`
	Votes         int       `db:"votes"`
}

func (s *VoteStore) CreateVote(ctx context.Context, tx *sqlx.Tx, vote *bracket.Vote) error {
	_, err := tx.NamedExecContext(ctx, createVoteQuery, vote)
	return err
}

func (s *VoteStore) HasVotedTx(ctx context.Context, tx *sqlx.Tx, pairID uuid.UUID, voterID string) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists, hasVotedQuery, pairID, voterID)
	return exists, err
}

func (s *VoteStore) Tally(ctx context.Context, pairID uuid.UUID) (bracket.Tally, error) {
	return tally(ctx, s.db, pairID)
}

func (s *VoteStore) TallyTx(ctx context.Context, tx *sqlx.Tx, pairID uuid.UUID) (bracket.Tally, error) {
	return tally(ctx, tx, pairID)
}

func tally(ctx context.Context, q sqlx.QueryerContext, pairID uuid.UUID) (bracket.Tally, error) {
	var rows []tallyRow
	if err := sqlx.SelectContext(ctx, q, &rows, tallyPairQuery, pairID); err != nil {
		return nil, err
	}
	result := make(bracket.Tally, len(rows))
	for _, r := range rows {
		result[r.ParticipantID] = r.Votes
	}
	return result, nil
}

// CountVotesForTx counts every vote a participant received in any stage.
func (s *VoteStore) CountVotesForTx(ctx context.Context, tx *sqlx.Tx, participantID uuid.UUID) (int, error) {
	var n int
	err := tx.GetContext(ctx, &n, votesForQuery, participantID)
	return n, err
}

func (s *VoteStore) GetTournamentVotes(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Vote, error) {
	votes := []bracket.Vote{}
	err := s.db.SelectContext(ctx, &votes, tournamentVotesQuery, tournamentID)
	return votes, err
}
