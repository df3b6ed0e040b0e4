package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/noah-isme/gema-grader/internal/models"
)

// ConnectPostgres establishes a connection to the PostgreSQL database using the provided DSN.
func ConnectPostgres(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn must not be empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access postgres pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// ConnectSQLite opens a local SQLite database file, used when no Postgres DSN is configured.
func ConnectSQLite(path string) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path must not be empty")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sqlite pool: %w", err)
	}
	// SQLite serialises writers.
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

// Open connects to Postgres when a DSN is given and falls back to SQLite otherwise.
func Open(databaseURL, sqlitePath string) (*gorm.DB, string, error) {
	if databaseURL != "" {
		db, err := ConnectPostgres(databaseURL)
		return db, "postgres", err
	}
	db, err := ConnectSQLite(sqlitePath)
	return db, "sqlite", err
}

// Migrate creates or updates the grader tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.GradedSubmission{}, &models.Professor{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
