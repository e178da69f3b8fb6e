package models

import "time"

// Status item antrian sinkronisasi
const (
	QueuePending = "pending"
	QueueFailed  = "failed"
	// QueueDead: sudah melewati batas retry, tidak diproses lagi secara otomatis.
	QueueDead = "dead"
)

// Action yang dikenali reconciler
const (
	ActionMarkTicketUsed = "markTicketUsed"
	ActionAddOtsTicket   = "addOtsTicket"
)

type SyncQueueEntry struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	Action      string    `gorm:"type:varchar(50);not null"`
	Data        string    `gorm:"type:text;not null"` // payload JSON milik action
	Status      string    `gorm:"type:varchar(20);not null;default:'pending';index"`
	RetryCount  int       `gorm:"not null;default:0"`
	LastError   string    `gorm:"type:text"`
	NextRetryAt time.Time `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null;index"`
	UpdatedAt   time.Time `gorm:"not null"`
}
