package views

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/AdamBeresnev/brick-bracket/internal/bracket"
	"github.com/AdamBeresnev/brick-bracket/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func participant(t *bracket.Tournament, pos int, name string) bracket.Participant {
	return bracket.Participant{
		ID:           uuid.New(),
		TournamentID: t.ID,
		ItemRef:      bracket.SetRef(int64(pos)),
		Position:     pos,
		ItemName:     name,
	}
}

func sampleData(now time.Time) (*service.TournamentData, []bracket.Participant) {
	t := &bracket.Tournament{
		ID:            uuid.New(),
		Title:         "Castles <2024>",
		Kind:          bracket.KindSets,
		CurrentStage:  bracket.StageFinal,
		StageDeadline: now.Add(90 * time.Minute),
	}
	ps := []bracket.Participant{
		participant(t, 1, "Castle"),
		participant(t, 2, "Tower"),
		participant(t, 3, "Keep"),
	}

	semi1 := bracket.Pair{ID: uuid.New(), Stage: bracket.StageSemifinal, PairOrder: 1,
		Participant1ID: ps[0].ID, Participant2ID: &ps[2].ID, WinnerID: &ps[0].ID}
	semi2 := bracket.Pair{ID: uuid.New(), Stage: bracket.StageSemifinal, PairOrder: 2,
		Participant1ID: ps[1].ID, WinnerID: &ps[1].ID}
	final := bracket.Pair{ID: uuid.New(), Stage: bracket.StageFinal, PairOrder: 1,
		Participant1ID: ps[0].ID, Participant2ID: &ps[1].ID}

	return &service.TournamentData{
		Tournament:   t,
		Participants: ps,
		// Deliberately out of order
		Pairs: []service.PairView{
			{Pair: final, VotesParticipant1: 3, VotesParticipant2: 1},
			{Pair: semi2},
			{Pair: semi1, VotesParticipant1: 2},
		},
	}, ps
}

func TestPrepareBracketData(t *testing.T) {
	now := time.Now()
	data, ps := sampleData(now)

	bd := PrepareBracketData(data, nil, now)
	require.Len(t, bd.Stages, 2)

	semis := bd.Stages[0]
	assert.Equal(t, bracket.StageSemifinal, semis.Stage)
	assert.Equal(t, "Semifinals", semis.Label)
	assert.False(t, semis.Current)
	require.Len(t, semis.Pairs, 2)
	assert.Equal(t, 1, semis.Pairs[0].Order)
	assert.Equal(t, "Castle", semis.Pairs[0].First.Name)
	assert.True(t, semis.Pairs[0].First.Won)
	assert.Equal(t, 2, semis.Pairs[0].First.Votes)
	require.NotNil(t, semis.Pairs[0].Second)
	assert.Equal(t, "Keep", semis.Pairs[0].Second.Name)
	assert.Nil(t, semis.Pairs[1].Second, "walkover has no second slot")

	final := bd.Stages[1]
	assert.True(t, final.Current)
	assert.False(t, final.Pairs[0].Resolved)
	assert.Equal(t, ps[1].ID, final.Pairs[0].Second.ParticipantID)
	assert.Empty(t, bd.Champion)
	assert.InDelta(t, (90 * time.Minute).Seconds(), bd.Remaining.Seconds(), 1)
}

func TestPrepareBracketData_Champion(t *testing.T) {
	now := time.Now()
	data, ps := sampleData(now)
	data.Tournament.CurrentStage = bracket.StageCompleted
	data.Pairs[0].WinnerID = &ps[0].ID

	bd := PrepareBracketData(data, &bracket.Winner{TotalVotes: 5}, now)
	assert.Equal(t, "Castle", bd.Champion)
	for _, s := range bd.Stages {
		assert.False(t, s.Current)
	}
}

func TestBracketPage(t *testing.T) {
	now := time.Now()
	data, _ := sampleData(now)

	var buf bytes.Buffer
	require.NoError(t, BracketPage(PrepareBracketData(data, nil, now)).Render(context.Background(), &buf))
	html := buf.String()

	assert.Contains(t, html, "Castles &lt;2024&gt;")
	assert.NotContains(t, html, "Castles <2024>")
	assert.Contains(t, html, "Semifinals")
	assert.Contains(t, html, `class="stage current"`)
	assert.Contains(t, html, "walkover")
	assert.Contains(t, html, "left to vote")
	assert.Contains(t, html, `href="/login"`)
}

func TestLoginPage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, LoginPage([]string{"discord", "google"}).Render(context.Background(), &buf))

	assert.Contains(t, buf.String(), `href="/auth/discord"`)
	assert.Contains(t, buf.String(), "Continue with Google")
}
