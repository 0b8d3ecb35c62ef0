// Package testutil holds helpers shared by package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tcg-companion/models"
)

// NewDB opens a migrated SQLite database in a temp directory that is removed with the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "sqlite:" + filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	db, err := models.Open(dsn)
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
