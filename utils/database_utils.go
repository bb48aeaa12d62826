// database_utils should be the canonical place to put shared DB utils.
// It should not include:
// 1. Any util that doesn't manipulate DB
// 2. Any util that contains business logic
package utils

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Luismorlan/zsxqintel/model"
	Logger "github.com/Luismorlan/zsxqintel/utils/log"
)

const (
	TestDBFileName = "testonly.db"
)

// GetDBConnection connects to postgres when databaseUrl is set, otherwise to
// a local SQLite file at sqlitePath.
func GetDBConnection(databaseUrl string, sqlitePath string) (*gorm.DB, error) {
	if databaseUrl != "" {
		return getDB(postgres.Open(databaseUrl))
	}
	db, err := getDB(sqlite.Open(sqlitePath))
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer, keep everything on one connection.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// IsPostgres reports whether the connection talks to postgres.
func IsPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

// Create a temp DB for testing, note that this function should only be called
// in a testing environment with test state manager testing.T
// The database file lives in t.TempDir() and is removed with it, user
// will not need to drop the database explicitly.
func CreateTempDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := GetDBConnection("", filepath.Join(t.TempDir(), TestDBFileName))
	if err != nil {
		t.Fatalf("fail to create temp DB: %v", err)
	}
	if err := DatabaseSetupAndMigration(db); err != nil {
		t.Fatalf("fail to migrate temp DB: %v", err)
	}
	t.Cleanup(func() {
		// Proactively close the connection instead of deferring to GC, the temp
		// dir can't be removed on some platforms while the file is open.
		if conn, err := db.DB(); err == nil {
			conn.Close()
		}
	})
	return db
}

func getDB(dialector gorm.Dialector) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

// DatabaseSetupAndMigration creates the posts table when missing and runs the
// idempotent schema evolution steps. Safe to call on every start.
func DatabaseSetupAndMigration(db *gorm.DB) error {
	migrator := db.Migrator()
	if migrator.HasTable(&model.Post{}) {
		addSectionNameColumn(db)
	}
	if err := db.AutoMigrate(&model.Post{}); err != nil {
		return errors.Wrap(err, "fail to migrate investment_posts")
	}
	return nil
}

// Stores created before section labels existed lack the column. Adding it is
// best effort: a failure here usually means it already exists.
func addSectionNameColumn(db *gorm.DB) {
	if db.Migrator().HasColumn(&model.Post{}, "SectionName") {
		return
	}
	err := db.Exec("ALTER TABLE investment_posts ADD COLUMN section_name TEXT").Error
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "duplicate") {
		Logger.Log.Warnf("ignore failure when adding section_name column: %v", err)
		return
	}
	Logger.Log.Info("added section_name column to existing table")
}
