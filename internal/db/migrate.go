package db

import (
	"contesttracker/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Contest{},
		&models.User{},
		&models.Reminder{},
		&models.SyncState{},
	)
}
