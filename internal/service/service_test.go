package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/AdamBeresnev/brick-bracket/internal/bracket"
	"github.com/AdamBeresnev/brick-bracket/internal/catalog"
	"github.com/AdamBeresnev/brick-bracket/internal/store"
	"github.com/AdamBeresnev/brick-bracket/internal/testutil"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type services struct {
	db          *sqlx.DB
	tournaments *TournamentService
	votes       *VoteService
	advance     *AdvanceService
	winners     *WinnerService
	store       *store.TournamentStore
}

func setupServices(t *testing.T) *services {
	t.Helper()

	db := testutil.NewDB(t)
	logger := zerolog.Nop()

	tournamentStore := store.NewTournamentStore(db)
	voteStore := store.NewVoteStore(db)
	winnerStore := store.NewWinnerStore(db)

	return &services{
		db:          db,
		tournaments: NewTournamentService(db, tournamentStore, voteStore, catalog.NewStore(db, logger), logger),
		votes:       NewVoteService(db, tournamentStore, voteStore, logger),
		advance:     NewAdvanceService(db, tournamentStore, voteStore, logger),
		winners:     NewWinnerService(db, tournamentStore, voteStore, winnerStore, logger),
		store:       tournamentStore,
	}
}

// createSetsTournament seeds count sets tagged with a fresh tag and builds a
// tournament over exactly those sets.
func (s *services) createSetsTournament(t *testing.T, count int) *TournamentData {
	t.Helper()

	tag := "tag-" + uuid.NewString()[:8]
	var base int64
	require.NoError(t, s.db.Get(&base, "SELECT COALESCE(MAX(set_id), 0) + 1 FROM sets"))
	for i := 0; i < count; i++ {
		id := base + int64(i)
		testutil.SeedSet(t, s.db, id, fmt.Sprintf("Set %d", id), 20, 500, tag)
	}

	data, err := s.tournaments.CreateTournament(context.Background(), CreateTournamentInput{
		Title:              "Test Tournament",
		Kind:               bracket.KindSets,
		Filter:             catalog.Filter{TagNames: []string{tag}},
		StageDurationHours: 24,
	})
	require.NoError(t, err)
	return data
}

func stagePairs(t *testing.T, s *services, tournamentID uuid.UUID, stage bracket.Stage) []bracket.Pair {
	t.Helper()

	pairs, err := s.store.GetPairs(context.Background(), tournamentID)
	require.NoError(t, err)

	var out []bracket.Pair
	for _, p := range pairs {
		if p.Stage == stage {
			out = append(out, p)
		}
	}
	return out
}

func countWalkovers(pairs []bracket.Pair) int {
	n := 0
	for i := range pairs {
		if pairs[i].IsWalkover() {
			n++
		}
	}
	return n
}
