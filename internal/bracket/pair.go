package bracket

import (
	"time"

	"github.com/google/uuid"
)

type Pair struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`
	Stage        Stage     `db:"stage" json:"stage"`
	// Position inside the stage; next-stage pairs are built in this order
	PairOrder int `db:"pair_order" json:"pair_order"`

	Participant1ID uuid.UUID  `db:"participant1_id" json:"participant1_id"`
	Participant2ID *uuid.UUID `db:"participant2_id" json:"participant2_id,omitempty"`
	WinnerID       *uuid.UUID `db:"winner_id" json:"winner_id,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// IsWalkover is true when the pair has a single participant.
func (p *Pair) IsWalkover() bool {
	return p.Participant2ID == nil
}

func (p *Pair) Has(participantID uuid.UUID) bool {
	return p.Participant1ID == participantID || (p.Participant2ID != nil && *p.Participant2ID == participantID)
}

func (p *Pair) Resolved() bool {
	return p.WinnerID != nil
}

func (p *Pair) IsWinner(participantID uuid.UUID) bool {
	return p.WinnerID != nil && *p.WinnerID == participantID
}
