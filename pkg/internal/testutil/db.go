package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/smith3v/quizsync/pkg/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupTestDB opens a private in-memory sqlite database with the local
// tables migrated. Extra models are migrated alongside.
func SetupTestDB(t *testing.T, models ...any) *gorm.DB {
	t.Helper()
	gdb := open(t, "local")
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	migrate(t, gdb, models)
	return gdb
}

// SetupBareDB opens a private in-memory sqlite database holding only the
// given models. Remote store tables share names with local ones, so they
// need a database of their own.
func SetupBareDB(t *testing.T, models ...any) *gorm.DB {
	t.Helper()
	gdb := open(t, "bare")
	migrate(t, gdb, models)
	return gdb
}

func open(t *testing.T, kind string) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, kind)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to access underlying DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		if err := sqlDB.Close(); err != nil {
			t.Fatalf("failed to close database: %v", err)
		}
	})
	return gdb
}

func migrate(t *testing.T, gdb *gorm.DB, models []any) {
	t.Helper()
	if len(models) == 0 {
		return
	}
	if err := gdb.AutoMigrate(models...); err != nil {
		t.Fatalf("failed to migrate extra schema: %v", err)
	}
}
