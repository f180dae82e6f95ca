package bracket

import (
	"time"

	"github.com/google/uuid"
)

// Winner is the canonical result of a completed tournament.
type Winner struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`
	ItemRef
	TotalVotes int       `db:"total_votes" json:"total_votes"`
	WonAt      time.Time `db:"won_at" json:"won_at"`

	ItemName string `db:"item_name" json:"item_name,omitempty"`
	Kind     Kind   `db:"kind" json:"type,omitempty"`
}
