package models

import "time"

// Status tiket pada replika lokal
const (
	TicketNotCheckedIn = "not_checked_in"
	TicketUsed         = "used"
	// TicketPendingSync adalah status transisi lokal: tiket sudah dipakai
	// di perangkat ini tetapi belum dikonfirmasi oleh server.
	TicketPendingSync = "pending_sync"
)

type Ticket struct {
	TicketID    string `gorm:"primaryKey;type:varchar(100)"`
	Name        string `gorm:"type:varchar(255)"`
	Type        string `gorm:"type:varchar(50)"`
	Event       string `gorm:"type:varchar(100)"`
	Status      string `gorm:"type:varchar(50);not null;default:'not_checked_in';index"`
	IsOTS       bool   `gorm:"not null;default:false"`
	UsedAt      *time.Time
	LastUpdated time.Time `gorm:"not null"`
}
