package bracket

import (
	"time"

	"github.com/google/uuid"
)

type Vote struct {
	ID       uuid.UUID `db:"id" json:"id"`
	PairID   uuid.UUID `db:"pair_id" json:"pair_id"`
	VoterID  string    `db:"voter_id" json:"voter_id"`
	VotedFor uuid.UUID `db:"voted_for" json:"voted_for"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Tally is the number of votes per participant inside one pair.
type Tally map[uuid.UUID]int

func (t Tally) For(participantID uuid.UUID) int {
	return t[participantID]
}

func (t Tally) Total() int {
	total := 0
	for _, n := range t {
		total += n
	}
	return total
}
