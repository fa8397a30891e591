package testhelpers

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/ekaya-inc/discograph/pkg/config"
	"github.com/ekaya-inc/discograph/pkg/database"
)

// NewSQLiteDB opens a fresh SQLite database in a temp directory with
// migrations applied. It is closed when the test ends.
func NewSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "discograph.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.RunMigrations(db, config.DriverSQLite, zap.NewNop()); err != nil {
		t.Fatalf("failed to run sqlite migrations: %v", err)
	}
	return db
}
