package models

import "time"

// User adalah operator scanner (admin atau petugas pintu).
type User struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"type:varchar(255); not null"`
	Email     string `gorm:"type:varchar(255); unique;not null"`
	Password  string `gorm:"type:varchar(255); not null"`
	Role      string `gorm:"type:varchar(255); not null"` // admin, scanner
	CreatedAt time.Time
	UpdatedAt time.Time
}
