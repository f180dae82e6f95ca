// Package testutil builds throwaway databases for tests.
package testutil

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/AdamBeresnev/brick-bracket/internal/db"
	users "github.com/AdamBeresnev/brick-bracket/internal/user"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// NewDB creates a migrated SQLite database in a temp dir. A file is used
// instead of :memory: so concurrent connections share the same data.
func NewDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "Failed to open test DB")

	require.NoError(t, db.RunMigrations(database.DB), "Failed to apply migrations")

	t.Cleanup(func() { database.Close() })
	return database
}

// SeedSet inserts a catalog set with optional tags.
func SeedSet(t *testing.T, database *sqlx.DB, id int64, name string, price float64, pieces int, tags ...string) {
	t.Helper()

	_, err := database.Exec(`INSERT INTO sets (set_id, name, piece_count, release_year, theme, price)
		VALUES (?, ?, ?, 2020, 'Test', ?)`, id, name, pieces, price)
	require.NoError(t, err)

	for _, tag := range tags {
		tagID := seedTag(t, database, tag)
		_, err := database.Exec("INSERT INTO set_tags (set_id, tag_id) VALUES (?, ?)", id, tagID)
		require.NoError(t, err)
	}
}

// SeedSets inserts count plain sets with ids starting at firstID.
func SeedSets(t *testing.T, database *sqlx.DB, firstID int64, count int) []int64 {
	t.Helper()

	ids := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		id := firstID + int64(i)
		SeedSet(t, database, id, fmt.Sprintf("Set %d", id), 10+float64(i), 100*(i+1))
		ids = append(ids, id)
	}
	return ids
}

// SeedMinifigure inserts a catalog minifigure with optional tags.
func SeedMinifigure(t *testing.T, database *sqlx.DB, id, name string, price *float64, tags ...string) {
	t.Helper()

	_, err := database.Exec(`INSERT INTO minifigures (minifigure_id, character_name, name, price)
		VALUES (?, ?, ?, ?)`, id, name, name, price)
	require.NoError(t, err)

	for _, tag := range tags {
		tagID := seedTag(t, database, tag)
		_, err := database.Exec("INSERT INTO minifigure_tags (minifigure_id, tag_id) VALUES (?, ?)", id, tagID)
		require.NoError(t, err)
	}
}

func seedTag(t *testing.T, database *sqlx.DB, name string) int64 {
	t.Helper()

	_, err := database.Exec("INSERT INTO tags (name) VALUES (?) ON CONFLICT(name) DO NOTHING", name)
	require.NoError(t, err)

	var id int64
	require.NoError(t, database.Get(&id, "SELECT tag_id FROM tags WHERE name = ?", name))
	return id
}

// SeedUser inserts a user and returns it.
func SeedUser(t *testing.T, database *sqlx.DB, email string, admin bool) *users.User {
	t.Helper()

	user := &users.User{
		ID:        uuid.New(),
		Email:     email,
		Username:  email,
		CreatedAt: time.Now().UTC(),
		IsAdmin:   admin,
	}
	_, err := database.NamedExec(`INSERT INTO users (id, email, username, created_at, is_admin)
		VALUES (:id, :email, :username, :created_at, :is_admin)`, user)
	require.NoError(t, err)
	return user
}

// ExpireStage moves the stage deadline of a tournament into the past.
func ExpireStage(t *testing.T, database *sqlx.DB, tournamentID uuid.UUID) {
	t.Helper()

	res, err := database.Exec("UPDATE tournaments SET stage_deadline = ? WHERE id = ?",
		time.Now().UTC().Add(-time.Minute), tournamentID)
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	require.EqualValues(t, 1, n, "tournament %s not found", tournamentID)
}
