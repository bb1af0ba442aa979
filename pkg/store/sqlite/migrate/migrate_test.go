package migrate_test

import (
	"database/sql"
	"embed"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/nigeleke/cqrs/pkg/store/sqlite/migrate"
)

//go:embed testdata/*.sql
var testMigrations embed.FS

func newMigrator(t *testing.T) (*sql.DB, *migrate.Migrator) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	m := migrate.New(db, "schema_migrations")
	require.NoError(t, m.LoadFromFS(testMigrations, "testdata"))
	return db, m
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name,
	).Scan(&count)
	require.NoError(t, err)
	return count > 0
}

func TestUpAppliesAllPending(t *testing.T) {
	db, m := newMigrator(t)

	require.NoError(t, m.Up())

	version, err := m.Version()
	require.NoError(t, err)
	require.Equal(t, 2, version)
	require.True(t, tableExists(t, db, "widgets"))

	// The second migration added the color column.
	_, err = db.Exec("INSERT INTO widgets (id, name, color) VALUES ('w1', 'gear', 'red')")
	require.NoError(t, err)
}

func TestUpIsIdempotent(t *testing.T) {
	db, m := newMigrator(t)

	require.NoError(t, m.Up())
	require.NoError(t, m.Up())

	version, err := m.Version()
	require.NoError(t, err)
	require.Equal(t, 2, version)
	require.True(t, tableExists(t, db, "widgets"))
}

func TestDownRollsBackOneStep(t *testing.T) {
	db, m := newMigrator(t)
	require.NoError(t, m.Up())

	require.NoError(t, m.Down())
	version, err := m.Version()
	require.NoError(t, err)
	require.Equal(t, 1, version)
	require.True(t, tableExists(t, db, "widgets"))

	require.NoError(t, m.Down())
	version, err = m.Version()
	require.NoError(t, err)
	require.Equal(t, 0, version)
	require.False(t, tableExists(t, db, "widgets"))
}

func TestDownWithNothingAppliedFails(t *testing.T) {
	_, m := newMigrator(t)
	require.Error(t, m.Down())
}
