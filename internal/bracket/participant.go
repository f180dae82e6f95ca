package bracket

import "github.com/google/uuid"

type Participant struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`
	ItemRef
	// 1-based seeding position, display only after the opening stage
	Position int `db:"position" json:"position"`

	// Filled from the catalog on reads
	ItemName string `db:"item_name" json:"item_name,omitempty"`
}
