package bracket

import (
	"time"

	"github.com/google/uuid"
)

type Tournament struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	OwnerID       *uuid.UUID `db:"owner_id" json:"owner_id,omitempty"`
	Title         string     `db:"title" json:"title"`
	Kind          Kind       `db:"kind" json:"type"`
	CurrentStage  Stage      `db:"current_stage" json:"current_stage"`
	StageDeadline time.Time  `db:"stage_deadline" json:"stage_deadline"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

func (t *Tournament) Completed() bool {
	return t.CurrentStage == StageCompleted
}

// VotingOpen reports whether ballots are accepted at now.
func (t *Tournament) VotingOpen(now time.Time) bool {
	return !t.Completed() && now.Before(t.StageDeadline)
}

// StageOver reports whether the current stage may be resolved at now.
func (t *Tournament) StageOver(now time.Time) bool {
	return !now.Before(t.StageDeadline)
}

// Remaining is the time left in the current stage, never negative.
func (t *Tournament) Remaining(now time.Time) time.Duration {
	if d := t.StageDeadline.Sub(now); d > 0 {
		return d
	}
	return 0
}
