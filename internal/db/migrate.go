package db

import (
	"storypool/internal/models"
)

// AutoMigrate creates or updates the engine's five tables. The pool table
// is listed before its choice and bet children.
func (db *DB) AutoMigrate() error {
	if db == nil || db.Gorm == nil {
		return nil
	}
	return db.Gorm.AutoMigrate(
		&models.Pool{},
		&models.Choice{},
		&models.Bet{},
		&models.UserStreak{},
		&models.OddsSnapshot{},
	)
}
