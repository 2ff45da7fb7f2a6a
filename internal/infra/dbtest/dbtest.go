// Package dbtest opens a migrated in-memory database for tests.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shahzaibimran219/pdf-scrapper/database"
)

// Open returns a fresh sqlite database private to t.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := database.Open(database.Config{Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
