package store

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/dimsprat/scanner-gateway/models"
	"github.com/dimsprat/scanner-gateway/utils"
	"gorm.io/gorm"
)

const (
	baseRetryDelay = 30 * time.Second
	maxRetryDelay  = time.Hour
)

// SyncQueue adalah antrian kerja untuk mutasi offline. Satu entry per
// mutasi; entry yang sukses dihapus (bukan audit trail).
type SyncQueue struct {
	DB         *gorm.DB
	MaxRetries int
}

func NewSyncQueue(db *gorm.DB, maxRetries int) *SyncQueue {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &SyncQueue{DB: db, MaxRetries: maxRetries}
}

// Enqueue menambahkan entry baru dengan status pending. Kegagalan di sini
// dipropagasikan sebagai StorageError keras: gagal menulis antrian berarti
// aksi offline hilang diam-diam.
func (q *SyncQueue) Enqueue(action string, data interface{}) (*models.SyncQueueEntry, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, &utils.StorageError{Op: "encode queue payload", Err: err}
	}

	entry := &models.SyncQueueEntry{
		Action:      action,
		Data:        string(payload),
		Status:      models.QueuePending,
		RetryCount:  0,
		NextRetryAt: time.Now(),
	}
	if err := q.DB.Create(entry).Error; err != nil {
		return nil, &utils.StorageError{Op: "enqueue sync entry", Err: err}
	}
	return entry, nil
}

// ListPending mengembalikan entry pending dan failed yang jadwal retry-nya
// sudah lewat, urut createdAt menaik (FIFO). Entry dead tidak ikut.
func (q *SyncQueue) ListPending() ([]models.SyncQueueEntry, error) {
	var entries []models.SyncQueueEntry
	err := q.DB.
		Where("status IN ?", []string{models.QueuePending, models.QueueFailed}).
		Where("next_retry_at <= ?", time.Now()).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, &utils.StorageError{Op: "list pending entries", Err: err}
	}
	return entries, nil
}

// MarkOutcome mencatat hasil satu percobaan remote. Sukses -> entry
// dihapus. Gagal -> status failed, retryCount naik, lastError terisi,
// jadwal retry berikutnya dihitung dengan backoff eksponensial ber-cap.
// Setelah MaxRetries percobaan entry pindah ke dead-letter.
func (q *SyncQueue) MarkOutcome(id uint, cause error) error {
	if cause == nil {
		if err := q.DB.Delete(&models.SyncQueueEntry{}, id).Error; err != nil {
			return &utils.StorageError{Op: "delete queue entry", Err: err}
		}
		return nil
	}

	var entry models.SyncQueueEntry
	if err := q.DB.First(&entry, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &utils.NotFoundError{Entity: "sync entry", Key: itoa(id)}
		}
		return &utils.StorageError{Op: "load queue entry", Err: err}
	}

	entry.RetryCount++
	entry.LastError = cause.Error()
	if entry.RetryCount >= q.MaxRetries {
		entry.Status = models.QueueDead
	} else {
		entry.Status = models.QueueFailed
		entry.NextRetryAt = time.Now().Add(backoffDelay(entry.RetryCount))
	}

	if err := q.DB.Save(&entry).Error; err != nil {
		return &utils.StorageError{Op: "update queue entry", Err: err}
	}
	return nil
}

// MarkDead memindahkan entry langsung ke dead-letter, untuk kegagalan
// permanen seperti action yang tidak dikenali.
func (q *SyncQueue) MarkDead(id uint, reason string) error {
	res := q.DB.Model(&models.SyncQueueEntry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.QueueDead,
			"last_error": reason,
		})
	if res.Error != nil {
		return &utils.StorageError{Op: "dead-letter queue entry", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return &utils.NotFoundError{Entity: "sync entry", Key: itoa(id)}
	}
	return nil
}

// Retry mengembalikan entry dead ke pending atas permintaan eksplisit
// operator; retry otomatis berhenti di MaxRetries.
func (q *SyncQueue) Retry(id uint) error {
	res := q.DB.Model(&models.SyncQueueEntry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.QueuePending,
			"retry_count":   0,
			"last_error":    "",
			"next_retry_at": time.Now(),
		})
	if res.Error != nil {
		return &utils.StorageError{Op: "retry queue entry", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return &utils.NotFoundError{Entity: "sync entry", Key: itoa(id)}
	}
	return nil
}

// All mengembalikan seluruh isi antrian (termasuk dead-letter) untuk UI.
func (q *SyncQueue) All() ([]models.SyncQueueEntry, error) {
	var entries []models.SyncQueueEntry
	if err := q.DB.Order("created_at ASC, id ASC").Find(&entries).Error; err != nil {
		return nil, &utils.StorageError{Op: "list queue", Err: err}
	}
	return entries, nil
}

// Counts mengembalikan jumlah entry per status.
func (q *SyncQueue) Counts() (map[string]int64, error) {
	type row struct {
		Status string
		Total  int64
	}
	var rows []row
	err := q.DB.Model(&models.SyncQueueEntry{}).
		Select("status, count(*) as total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, &utils.StorageError{Op: "count queue", Err: err}
	}
	counts := map[string]int64{
		models.QueuePending: 0,
		models.QueueFailed:  0,
		models.QueueDead:    0,
	}
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}

// backoffDelay: 30s * 2^(n-1), cap 1 jam.
func backoffDelay(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	delay := baseRetryDelay << uint(retryCount-1)
	if delay > maxRetryDelay || delay <= 0 {
		return maxRetryDelay
	}
	return delay
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
