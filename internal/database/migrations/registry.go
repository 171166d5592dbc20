// Package migrations provides database migration management for mixarr.
package migrations

import (
	"github.com/jmylchreest/mixarr/internal/models"
	"gorm.io/gorm"
)

// AllMigrations returns all registered migrations in order.
// - 001: Schema creation using GORM AutoMigrate
// - 002: Backfill play_count for rows created before the default existed
func AllMigrations() []Migration {
	return []Migration{
		migration001Schema(),
		migration002BackfillPlayCounts(),
	}
}

// migration001Schema creates all database tables using GORM AutoMigrate.
func migration001Schema() Migration {
	return Migration{
		Version:     "001",
		Description: "Create all database tables",
		Up: func(tx *gorm.DB) error {
			// AutoMigrate all models in dependency order
			return tx.AutoMigrate(
				// Catalog
				&models.Track{},
				&models.TrackFeatures{},
				&models.LyricsAnalysis{},

				// Session state
				&models.Session{},
				&models.PlayHistoryEntry{},
				&models.Segment{},

				// Diagnostics
				&models.PlannerTrace{},
			)
		},
		Down: func(tx *gorm.DB) error {
			// Drop tables in reverse dependency order
			tables := []string{
				"planner_traces",
				"segments",
				"play_history",
				"sessions",
				"lyrics_analyses",
				"track_features",
				"tracks",
			}
			for _, table := range tables {
				if tx.Migrator().HasTable(table) {
					if err := tx.Migrator().DropTable(table); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
}

// migration002BackfillPlayCounts normalizes NULL play counts to zero so the
// candidate ordering (play_count asc, last_played_at asc) never has to reason
// about NULLs in the first sort key.
func migration002BackfillPlayCounts() Migration {
	return Migration{
		Version:     "002",
		Description: "Backfill NULL play_count values to 0",
		Up: func(tx *gorm.DB) error {
			return tx.Model(&models.Track{}).
				Where("play_count IS NULL").
				Update("play_count", 0).Error
		},
		Down: func(tx *gorm.DB) error {
			// No-op: zero is a valid value, nothing to restore
			return nil
		},
	}
}
