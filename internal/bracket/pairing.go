package bracket

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// Resolution says how a pair winner was decided.
type Resolution string

const (
	ResolvedWalkover Resolution = "walkover"
	ResolvedMajority Resolution = "majority"
	ResolvedTieBreak Resolution = "tie_break"
	// ResolvedStored marks a pair whose winner was already on record.
	ResolvedStored Resolution = "stored"
)

// FirstStagePairs seats the shuffled participants for the opening stage. The
// first size/2 participants take the participant-1 slots in order, the rest
// fill participant-2 slots starting from the first pair. Pairs left without a
// second participant are walkovers.
func FirstStagePairs(tournamentID uuid.UUID, stage Stage, participants []Participant, size int, now time.Time) []Pair {
	pairCount := min(size/2, len(participants))
	pairs := make([]Pair, 0, pairCount)

	for i := 0; i < pairCount; i++ {
		pairs = append(pairs, Pair{
			ID:             uuid.New(),
			TournamentID:   tournamentID,
			Stage:          stage,
			PairOrder:      i + 1,
			Participant1ID: participants[i].ID,
			CreatedAt:      now,
		})
	}

	for i, p := range participants[pairCount:] {
		if i >= len(pairs) {
			break
		}
		id := p.ID
		pairs[i].Participant2ID = &id
	}

	return pairs
}

// NextStagePairs pairs stage winners consecutively in the order given. An odd
// count leaves the last winner in a walkover.
func NextStagePairs(tournamentID uuid.UUID, stage Stage, winners []uuid.UUID, now time.Time) []Pair {
	pairs := make([]Pair, 0, (len(winners)+1)/2)
	for i := 0; i < len(winners); i += 2 {
		p := Pair{
			ID:             uuid.New(),
			TournamentID:   tournamentID,
			Stage:          stage,
			PairOrder:      i/2 + 1,
			Participant1ID: winners[i],
			CreatedAt:      now,
		}
		if i+1 < len(winners) {
			second := winners[i+1]
			p.Participant2ID = &second
		}
		pairs = append(pairs, p)
	}
	return pairs
}

// ResolvePair decides the winner of a pair from its tally. choose(2) picks
// the side on an exact tie and must return 0 or 1.
func ResolvePair(p *Pair, tally Tally, choose func(n int) int) (uuid.UUID, Resolution) {
	if p.IsWalkover() {
		return p.Participant1ID, ResolvedWalkover
	}

	first, second := p.Participant1ID, *p.Participant2ID
	votes1, votes2 := tally.For(first), tally.For(second)
	switch {
	case votes1 > votes2:
		return first, ResolvedMajority
	case votes2 > votes1:
		return second, ResolvedMajority
	}

	if choose(2) == 0 {
		return first, ResolvedTieBreak
	}
	return second, ResolvedTieBreak
}

// DefaultChooser is a uniform random chooser for tie breaks.
func DefaultChooser(n int) int {
	return rand.IntN(n)
}
