package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-rag-chat-backend/internal/domain"
)

// newTestDB opens a bare in-memory database, optionally migrating the given
// models. Useful for exercising missing-table error paths.
func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

// newRepoDB opens a fully migrated file database through OpenSQLite.
func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "repo.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

func seedConversation(t *testing.T, db *gorm.DB, id string, at time.Time) {
	t.Helper()
	if err := db.Create(&domain.Conversation{ID: id, Mode: domain.ModeOpen, CreatedAt: at}).Error; err != nil {
		t.Fatalf("seed conversation %s: %v", id, err)
	}
}

func seedDocument(t *testing.T, db *gorm.DB, id, content string, at time.Time) {
	t.Helper()
	if err := db.Create(&domain.Document{ID: id, Name: id, Content: content, CreatedAt: at}).Error; err != nil {
		t.Fatalf("seed document %s: %v", id, err)
	}
}

var bg = context.Background()
