// Package database owns the schema of the Mindcare store.
package database

import (
	"fmt"
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"mindcare/backend/internal/models"
	"mindcare/backend/pkg/logger"
)

// schema lists every persisted model in dependency order.
func schema() []interface{} {
	return []interface{}{
		&models.User{},
		&models.VerificationToken{},
		&models.PasswordResetToken{},
		&models.ChatSession{},
		&models.Message{},
		&models.SystemPrompt{},
		&models.Event{},
		&models.Resource{},
		&models.Banner{},
		&models.RecommendationCard{},
	}
}

const analyticsIndex = "idx_messages_user_created"

// GetMigrator returns the versioned migrator for db.
func GetMigrator(db *gorm.DB) *gormigrate.Gormigrate {
	log := logger.GetGlobal().WithComponent("migrations")

	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "0001_initial",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(schema()...)
			},
		},
		{
			ID:       "0002_message_analytics_index",
			Migrate:  createAnalyticsIndex,
			Rollback: dropAnalyticsIndex,
		},
	})

	// Runs instead of the list above when the database is empty.
	m.InitSchema(func(tx *gorm.DB) error {
		log.Info("clean database detected, running full schema initialization")

		if isSQLite(tx) {
			if err := tx.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
				log.Error("error enabling foreign keys for SQLite", "error", err)
			}
		}

		if err := tx.AutoMigrate(schema()...); err != nil {
			return err
		}
		return createAnalyticsIndex(tx)
	})

	return m
}

// Migrate brings db up to the latest schema version.
func Migrate(db *gorm.DB) error {
	if err := GetMigrator(db).Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}

// OpenInMemory opens a private in-memory SQLite database with the full schema.
// It backs tests and local experiments.
func OpenInMemory() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// Every new connection to file::memory: would see an empty database.
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func createAnalyticsIndex(tx *gorm.DB) error {
	return tx.Exec("CREATE INDEX IF NOT EXISTS " + analyticsIndex + " ON messages (is_from_user, created_at)").Error
}

func dropAnalyticsIndex(tx *gorm.DB) error {
	return tx.Exec("DROP INDEX IF EXISTS " + analyticsIndex).Error
}

func isSQLite(db *gorm.DB) bool {
	name := db.Dialector.Name()
	return name == "sqlite" || name == "sqlite3"
}
