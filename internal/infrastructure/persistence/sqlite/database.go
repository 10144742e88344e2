// Package sqlite provides SQLite database setup and configuration
package sqlite

import (
	"fmt"

	gormrepo "github.com/alchemorsel/recipe-studio/internal/infrastructure/persistence/gorm"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Config holds SQLite settings
type Config struct {
	// Path is the database file. Empty means an in-memory database.
	Path        string
	LogLevel    string
	AutoMigrate bool
}

// SetupDatabase opens the SQLite database and migrates the schema
func SetupDatabase(cfg Config, log *zap.Logger) (*gorm.DB, error) {
	dsn := cfg.Path
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormrepo.NewLogger(log, cfg.LogLevel, 0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows one writer at a time
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if cfg.AutoMigrate || cfg.Path == "" {
		if err := db.AutoMigrate(gormrepo.Models()...); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	log.Info("SQLite database ready", zap.String("path", dsn))
	return db, nil
}
