package database

import (
	"github.com/dimsprat/scanner-gateway/models"
	"gorm.io/gorm"
)

// Migrate menjalankan AutoMigrate untuk seluruh model gateway.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Ticket{},
		&models.SyncQueueEntry{},
		&models.CacheEntry{},
		&models.SyncMeta{},
	)
}
