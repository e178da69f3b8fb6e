package models

import "time"

// CacheEntry adalah satu pasangan request->response di dalam sebuah
// cache generation (precache, runtime-cache, atau api-cache).
type CacheEntry struct {
	ID          uint      `gorm:"primaryKey"`
	Generation  string    `gorm:"type:varchar(100);not null;index;uniqueIndex:idx_gen_request"`
	RequestKey  string    `gorm:"type:varchar(500);not null;uniqueIndex:idx_gen_request"`
	StatusCode  int       `gorm:"not null"`
	ContentType string    `gorm:"type:varchar(100)"`
	Body        []byte    `gorm:"type:blob"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}
