package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/AdamBeresnev/brick-bracket/internal/bracket"
	"github.com/AdamBeresnev/brick-bracket/internal/testutil"
	"github.com/AdamBeresnev/brick-bracket/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvance_BeforeDeadline(t *testing.T) {
	s := setupServices(t)

	data := s.createSetsTournament(t, 4)

	_, err := s.advance.Advance(context.Background(), data.Tournament.ID, nil)
	require.ErrorIs(t, err, bracket.ErrStageNotYetOver)
	assert.ErrorIs(t, err, bracket.ErrInvalidState)
	assert.Contains(t, err.Error(), "remaining")

	// Nothing was resolved
	for _, p := range stagePairs(t, s, data.Tournament.ID, bracket.StageSemifinal) {
		assert.Nil(t, p.WinnerID)
	}
}

func TestAdvance_Guards(t *testing.T) {
	s := setupServices(t)
	ctx := context.Background()

	_, err := s.advance.Advance(ctx, uuid.New(), nil)
	assert.ErrorIs(t, err, bracket.ErrTournamentNotFound)

	data := s.createSetsTournament(t, 2)
	testutil.ExpireStage(t, s.db, data.Tournament.ID)

	_, err = s.advance.Advance(ctx, data.Tournament.ID, utils.Ptr(0))
	assert.ErrorIs(t, err, bracket.ErrInvalidDuration)
	_, err = s.advance.Advance(ctx, data.Tournament.ID, utils.Ptr(-5))
	assert.ErrorIs(t, err, bracket.ErrInvalidDuration)
	_, err = s.advance.Advance(ctx, data.Tournament.ID, utils.Ptr(3000000))
	assert.ErrorIs(t, err, bracket.ErrInvalidDuration)

	_, err = s.advance.Advance(ctx, data.Tournament.ID, nil)
	require.NoError(t, err)

	_, err = s.advance.Advance(ctx, data.Tournament.ID, nil)
	assert.ErrorIs(t, err, bracket.ErrTournamentCompleted)
}

func TestAdvance_NoPairsForStage(t *testing.T) {
	s := setupServices(t)

	data := s.createSetsTournament(t, 2)
	_, err := s.db.Exec("DELETE FROM tournament_pairs WHERE tournament_id = ?", data.Tournament.ID)
	require.NoError(t, err)
	testutil.ExpireStage(t, s.db, data.Tournament.ID)

	_, err = s.advance.Advance(context.Background(), data.Tournament.ID, nil)
	assert.ErrorIs(t, err, bracket.ErrNoPairsForStage)
}

func TestAdvance_MajorityWins(t *testing.T) {
	s := setupServices(t)
	ctx := context.Background()

	data := s.createSetsTournament(t, 4)
	pairs := pairsOf(data)
	require.Len(t, pairs, 2)

	// Pair 1 favours participant 2, pair 2 favours participant 1
	expected := []uuid.UUID{*pairs[0].Participant2ID, pairs[1].Participant1ID}
	for i, p := range pairs {
		for v := 0; v < 3; v++ {
			target := expected[i]
			if v == 2 {
				target = other(p, expected[i])
			}
			_, err := s.votes.CastVote(ctx, CastVoteInput{
				TournamentID: data.Tournament.ID, PairID: p.ID, VoterID: fmt.Sprintf("voter-%d", v), VotedFor: target,
			})
			require.NoError(t, err)
		}
	}

	testutil.ExpireStage(t, s.db, data.Tournament.ID)
	result, err := s.advance.Advance(ctx, data.Tournament.ID, utils.Ptr(12))
	require.NoError(t, err)

	assert.Equal(t, bracket.StageSemifinal, result.PreviousStage)
	assert.Equal(t, bracket.StageFinal, result.Stage)
	assert.False(t, result.Completed)
	assert.Nil(t, result.ChampionID)
	assert.Equal(t, "Tournament advanced to stage final", result.Message)
	require.Len(t, result.Resolutions, 2)
	for i, r := range result.Resolutions {
		assert.Equal(t, expected[i], r.WinnerID)
		assert.Equal(t, bracket.ResolvedMajority, r.Resolution)
	}

	resolved := stagePairs(t, s, data.Tournament.ID, bracket.StageSemifinal)
	for i, p := range resolved {
		require.NotNil(t, p.WinnerID)
		assert.Equal(t, expected[i], *p.WinnerID)
	}

	final := stagePairs(t, s, data.Tournament.ID, bracket.StageFinal)
	require.Len(t, final, 1)
	assert.Equal(t, expected[0], final[0].Participant1ID)
	require.NotNil(t, final[0].Participant2ID)
	assert.Equal(t, expected[1], *final[0].Participant2ID)

	tournament, err := s.tournaments.GetTournament(ctx, data.Tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.StageFinal, tournament.CurrentStage)
	assert.WithinDuration(t, result.StageDeadline, tournament.StageDeadline, time.Second)
	assert.InDelta(t, hours(12).Hours(), tournament.Remaining(utcNow()).Hours(), 0.01)
}

func TestAdvance_WalkoversCarryForward(t *testing.T) {
	s := setupServices(t)
	ctx := context.Background()

	// 3 participants: one full pair and one walkover in the semifinal
	data := s.createSetsTournament(t, 3)
	pairs := pairsOf(data)
	require.Len(t, pairs, 2)
	require.Equal(t, 1, countWalkovers(pairs))

	testutil.ExpireStage(t, s.db, data.Tournament.ID)
	result, err := s.advance.Advance(ctx, data.Tournament.ID, nil)
	require.NoError(t, err)

	for i, r := range result.Resolutions {
		assert.True(t, pairs[i].Has(r.WinnerID))
		if pairs[i].IsWalkover() {
			assert.Equal(t, bracket.ResolvedWalkover, r.Resolution)
			assert.Equal(t, pairs[i].Participant1ID, r.WinnerID)
		}
	}

	final := stagePairs(t, s, data.Tournament.ID, bracket.StageFinal)
	require.Len(t, final, 1)
	assert.False(t, final[0].IsWalkover())
}

func TestAdvance_KeepsStoredWinners(t *testing.T) {
	s := setupServices(t)
	ctx := context.Background()

	data := s.createSetsTournament(t, 3)
	pairs := pairsOf(data)
	require.Len(t, pairs, 2)

	// Record every winner up front; the full pair gets its second participant
	stored := make([]uuid.UUID, len(pairs))
	for i, p := range pairs {
		stored[i] = p.Participant1ID
		if !p.IsWalkover() {
			stored[i] = *p.Participant2ID
		}
		_, err := s.db.Exec("UPDATE tournament_pairs SET winner_id = ? WHERE id = ?", stored[i], p.ID)
		require.NoError(t, err)
	}

	testutil.ExpireStage(t, s.db, data.Tournament.ID)
	result, err := s.advance.Advance(ctx, data.Tournament.ID, nil)
	require.NoError(t, err)

	require.Len(t, result.Resolutions, 2)
	for i, r := range result.Resolutions {
		assert.Equal(t, stored[i], r.WinnerID)
		if pairs[i].IsWalkover() {
			assert.Equal(t, bracket.ResolvedWalkover, r.Resolution)
		} else {
			assert.Equal(t, bracket.ResolvedStored, r.Resolution)
		}
	}
}

func TestAdvance_TieIsBrokenAtRandom(t *testing.T) {
	s := setupServices(t)
	ctx := context.Background()

	const trials = 40
	firstWins, secondWins := 0, 0

	testutil.SeedSets(t, s.db, 1, 2)
	for i := 0; i < trials; i++ {
		data, err := s.tournaments.CreateTournament(ctx, CreateTournamentInput{
			Title: fmt.Sprintf("Tie %d", i), Kind: bracket.KindSets, StageDurationHours: 1,
		})
		require.NoError(t, err)
		pair := data.Pairs[0].Pair

		for v, target := range []uuid.UUID{pair.Participant1ID, *pair.Participant2ID} {
			_, err := s.votes.CastVote(ctx, CastVoteInput{
				TournamentID: data.Tournament.ID, PairID: pair.ID, VoterID: fmt.Sprintf("voter-%d", v), VotedFor: target,
			})
			require.NoError(t, err)
		}

		testutil.ExpireStage(t, s.db, data.Tournament.ID)
		result, err := s.advance.Advance(ctx, data.Tournament.ID, nil)
		require.NoError(t, err)
		require.Len(t, result.Resolutions, 1)

		r := result.Resolutions[0]
		assert.Equal(t, bracket.ResolvedTieBreak, r.Resolution)
		switch r.WinnerID {
		case pair.Participant1ID:
			firstWins++
		case *pair.Participant2ID:
			secondWins++
		default:
			t.Fatalf("winner %s is not part of the pair", r.WinnerID)
		}
	}

	assert.Positive(t, firstWins, "participant 1 never won a tie")
	assert.Positive(t, secondWins, "participant 2 never won a tie")
}

func TestAdvance_TieUsesChooser(t *testing.T) {
	s := setupServices(t)
	ctx := context.Background()

	s.advance.choose = func(int) int { return 1 }

	data := s.createSetsTournament(t, 2)
	pair := data.Pairs[0].Pair
	testutil.ExpireStage(t, s.db, data.Tournament.ID)

	result, err := s.advance.Advance(ctx, data.Tournament.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, *pair.Participant2ID, result.Resolutions[0].WinnerID)
}

func TestAdvance_FinalCompletesTournament(t *testing.T) {
	s := setupServices(t)
	ctx := context.Background()

	data := s.createSetsTournament(t, 2)
	pair := data.Pairs[0].Pair
	_, err := s.votes.CastVote(ctx, CastVoteInput{
		TournamentID: data.Tournament.ID, PairID: pair.ID, VoterID: "v", VotedFor: pair.Participant1ID,
	})
	require.NoError(t, err)

	testutil.ExpireStage(t, s.db, data.Tournament.ID)
	result, err := s.advance.Advance(ctx, data.Tournament.ID, nil)
	require.NoError(t, err)

	assert.True(t, result.Completed)
	assert.Equal(t, bracket.StageCompleted, result.Stage)
	assert.Equal(t, "Tournament completed", result.Message)
	require.NotNil(t, result.ChampionID)
	assert.Equal(t, pair.Participant1ID, *result.ChampionID)

	tournament, err := s.tournaments.GetTournament(ctx, data.Tournament.ID)
	require.NoError(t, err)
	assert.True(t, tournament.Completed())

	all, err := s.store.GetPairs(ctx, data.Tournament.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1, "completing the final must not create pairs")

	due, err := s.advance.DueTournaments(ctx)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestAdvance_Concurrent(t *testing.T) {
	s := setupServices(t)
	ctx := context.Background()

	data := s.createSetsTournament(t, 8)
	testutil.ExpireStage(t, s.db, data.Tournament.ID)

	const callers = 6
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.advance.Advance(ctx, data.Tournament.ID, nil)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		class := bracket.ClassOf(err)
		assert.True(t, class == bracket.ErrInvalidState || class == bracket.ErrConflict, "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)

	assert.Len(t, stagePairs(t, s, data.Tournament.ID, bracket.StageSemifinal), 2)
}

func TestDueTournaments(t *testing.T) {
	s := setupServices(t)

	running := s.createSetsTournament(t, 2)
	due := s.createSetsTournament(t, 2)
	testutil.ExpireStage(t, s.db, due.Tournament.ID)

	list, err := s.advance.DueTournaments(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, due.Tournament.ID, list[0].ID)
	assert.NotEqual(t, running.Tournament.ID, list[0].ID)
}

func other(p bracket.Pair, id uuid.UUID) uuid.UUID {
	if id == p.Participant1ID {
		return *p.Participant2ID
	}
	return p.Participant1ID
}
