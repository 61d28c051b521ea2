// Package repo implements the data persistence layer for the activity ledger,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and Postgres, tracing, and schema migrations.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/izikdepth/MemeBot/internal/domain"
)

// Options selects and tunes the database.
type Options struct {
	// DatabaseURL selects Postgres when non-empty.
	DatabaseURL string
	// SQLitePath is used when DatabaseURL is empty.
	SQLitePath string
	// Tracing installs the OpenTelemetry GORM plugin.
	Tracing bool
	// LogLevel for the GORM logger; zero keeps GORM's default.
	LogLevel logger.LogLevel
}

// Open opens the configured database and installs optional tracing.
func Open(opts Options) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	if opts.DatabaseURL != "" {
		db, err = OpenPostgres(opts.DatabaseURL, opts.LogLevel)
	} else {
		db, err = OpenSQLite(opts.SQLitePath)
	}
	if err != nil {
		return nil, err
	}
	if opts.Tracing {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// OpenPostgres connects to Postgres using a libpq-style DSN or URL.
func OpenPostgres(dsn string, level logger.LogLevel) (*gorm.DB, error) {
	cfg := &gorm.Config{TranslateError: true}
	if level != 0 {
		cfg.Logger = logger.Default.LogMode(level)
	}
	db, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, nil
}

// legacyColumns are columns that older deployments may lack. They are added
// one at a time after checking the live schema, so re-running is harmless.
var legacyColumns = []struct {
	model  any
	column string
}{
	{&domain.Winner{}, "PointsEarned"},
	{&domain.Winner{}, "Status"},
	{&domain.Winner{}, "ClaimAddress"},
	{&domain.Winner{}, "Promoted"},
	{&domain.Winner{}, "PromotedAt"},
	{&domain.Winner{}, "SubmittedAt"},
	{&domain.User{}, "ClaimAddress"},
	{&domain.User{}, "LastActivity"},
}

// UpgradeLegacyColumns adds missing columns to tables that already exist.
// Tables that do not exist yet are left to AutoMigrate.
func UpgradeLegacyColumns(db *gorm.DB) error {
	m := db.Migrator()
	for _, lc := range legacyColumns {
		if !m.HasTable(lc.model) {
			continue
		}
		if m.HasColumn(lc.model, lc.column) {
			continue
		}
		if err := m.AddColumn(lc.model, lc.column); err != nil {
			return err
		}
	}
	return nil
}

// AutoMigrate upgrades legacy tables and then creates or updates the schema.
func AutoMigrate(db *gorm.DB) error {
	if err := UpgradeLegacyColumns(db); err != nil {
		return err
	}
	return db.AutoMigrate(
		&domain.User{},
		&domain.DailyTotal{},
		&domain.Winner{},
		&domain.ProcessedEvent{},
	)
}
