package database

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open picks the driver from the URL scheme: postgres URLs go to PostgreSQL,
// anything else is treated as a SQLite DSN.
func Open(url string) (*gorm.DB, error) {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return ConnectPostgres(url)
	}
	return ConnectSQLite(url)
}

// ConnectPostgres opens the dev store on PostgreSQL with a small pool.
func ConnectPostgres(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn must not be empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access postgres pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// ConnectSQLite opens a SQLite database, typically a local file or a shared
// in-memory database in tests.
func ConnectSQLite(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlite dsn must not be empty")
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	return db, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
}
