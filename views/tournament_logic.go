package views

import (
	"sort"
	"time"

	"github.com/AdamBeresnev/brick-bracket/internal/bracket"
	"github.com/AdamBeresnev/brick-bracket/internal/service"
	"github.com/google/uuid"
)

// Slot is one side of a pair as shown on the bracket.
type Slot struct {
	ParticipantID uuid.UUID
	Name          string
	Votes         int
	Won           bool
}

type PairCard struct {
	ID       uuid.UUID
	Order    int
	First    Slot
	Second   *Slot
	Resolved bool
}

type StageColumn struct {
	Stage   bracket.Stage
	Label   string
	Current bool
	Pairs   []PairCard
}

type BracketData struct {
	Tournament *bracket.Tournament
	Stages     []StageColumn
	Champion   string
	Remaining  time.Duration
	Winner     *bracket.Winner
}

var stageLabels = map[bracket.Stage]string{
	bracket.StageRoundOf128:   "Round of 128",
	bracket.StageRoundOf64:    "Round of 64",
	bracket.StageRoundOf32:    "Round of 32",
	bracket.StageRoundOf16:    "Round of 16",
	bracket.StageQuarterfinal: "Quarterfinals",
	bracket.StageSemifinal:    "Semifinals",
	bracket.StageFinal:        "Final",
}

func StageLabel(s bracket.Stage) string {
	if l, ok := stageLabels[s]; ok {
		return l
	}
	return string(s)
}

// PrepareBracketData groups the pairs of a tournament into stage columns in
// play order. winner may be nil.
func PrepareBracketData(data *service.TournamentData, winner *bracket.Winner, now time.Time) BracketData {
	names := make(map[uuid.UUID]string, len(data.Participants))
	for _, p := range data.Participants {
		name := p.ItemName
		if name == "" {
			name = p.ItemRef.String()
		}
		names[p.ID] = name
	}

	byStage := make(map[bracket.Stage][]PairCard)
	champion := ""
	for _, pv := range data.Pairs {
		card := PairCard{
			ID:       pv.ID,
			Order:    pv.PairOrder,
			Resolved: pv.Resolved(),
			First: Slot{
				ParticipantID: pv.Participant1ID,
				Name:          names[pv.Participant1ID],
				Votes:         pv.VotesParticipant1,
				Won:           pv.IsWinner(pv.Participant1ID),
			},
		}
		if pv.Participant2ID != nil {
			card.Second = &Slot{
				ParticipantID: *pv.Participant2ID,
				Name:          names[*pv.Participant2ID],
				Votes:         pv.VotesParticipant2,
				Won:           pv.IsWinner(*pv.Participant2ID),
			}
		}
		if pv.Stage == bracket.StageFinal && pv.WinnerID != nil {
			champion = names[*pv.WinnerID]
		}
		byStage[pv.Stage] = append(byStage[pv.Stage], card)
	}

	var stages []StageColumn
	for _, s := range bracket.Stages() {
		pairs, ok := byStage[s]
		if !ok {
			continue
		}
		sort.Slice(pairs, func(i, j int) bool {
			return pairs[i].Order < pairs[j].Order
		})
		stages = append(stages, StageColumn{
			Stage:   s,
			Label:   StageLabel(s),
			Current: s == data.Tournament.CurrentStage,
			Pairs:   pairs,
		})
	}

	return BracketData{
		Tournament: data.Tournament,
		Stages:     stages,
		Champion:   champion,
		Remaining:  data.Tournament.Remaining(now),
		Winner:     winner,
	}
}
