// Package testutil opens migrated SQLite databases for tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bolibooks/bolibooks/internal/infrastructure/persistence/sqlite"
	"github.com/bolibooks/bolibooks/migrations"
	"github.com/bolibooks/bolibooks/pkg/database"
)

// NewDB returns a migrated database file under t.TempDir, closed on cleanup
func NewDB(t *testing.T) *sqlite.DB {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "bolibooks.db"),
		MaxOpenConns: 4,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = database.NewMigrator(db, logger).Run(migrations.FS)
	require.NoError(t, err)

	return sqlite.NewDB(db.DB, logger)
}
