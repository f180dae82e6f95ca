package service

import (
	"fmt"
	"time"

	"github.com/AdamBeresnev/brick-bracket/internal/bracket"
	"github.com/AdamBeresnev/brick-bracket/internal/db"
)

// storeErr reports constraint failures that slipped past the pre-checks as
// ErrIntegrity and wraps anything else with the action that failed.
func storeErr(action string, err error) error {
	if db.IsConstraintViolation(err) {
		return fmt.Errorf("%w: failed to %s: %v", bracket.ErrIntegrity, action, err)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func hours(n int) time.Duration {
	return time.Duration(n) * time.Hour
}
