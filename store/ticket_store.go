package store

import (
	"errors"
	"time"

	"github.com/dimsprat/scanner-gateway/models"
	"github.com/dimsprat/scanner-gateway/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TicketStore adalah replika lokal database tiket. Semua operasi bersifat
// transaksional pada level satu entity; tidak ada jaminan atomik lintas
// tiket dan antrian (rekonsiliasi idempoten memperbaiki divergensi).
type TicketStore struct {
	DB *gorm.DB
}

func NewTicketStore(db *gorm.DB) *TicketStore {
	return &TicketStore{DB: db}
}

// Put -> insert-or-replace berdasarkan TicketID. Idempoten.
func (s *TicketStore) Put(ticket *models.Ticket) error {
	ticket.LastUpdated = time.Now()
	err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ticket_id"}},
		UpdateAll: true,
	}).Create(ticket).Error
	if err != nil {
		return &utils.StorageError{Op: "put ticket", Err: err}
	}
	return nil
}

// Get mengembalikan tiket atau NotFoundError; absence bukan fault.
func (s *TicketStore) Get(ticketID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := s.DB.First(&ticket, "ticket_id = ?", ticketID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &utils.NotFoundError{Entity: "ticket", Key: ticketID}
	}
	if err != nil {
		return nil, &utils.StorageError{Op: "get ticket", Err: err}
	}
	return &ticket, nil
}

// UpdateStatus mengganti status dan lastUpdated dalam satu UPDATE tunggal,
// sehingga pembaca tidak pernah melihat record setengah jadi.
func (s *TicketStore) UpdateStatus(ticketID, status string) error {
	res := s.DB.Model(&models.Ticket{}).
		Where("ticket_id = ?", ticketID).
		Updates(map[string]interface{}{
			"status":       status,
			"last_updated": time.Now(),
		})
	if res.Error != nil {
		return &utils.StorageError{Op: "update ticket status", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return &utils.NotFoundError{Entity: "ticket", Key: ticketID}
	}
	return nil
}

// MarkUsedLocally menandai tiket dipakai di perangkat ini: status menjadi
// pending_sync sampai server mengkonfirmasi.
func (s *TicketStore) MarkUsedLocally(ticketID string) error {
	now := time.Now()
	res := s.DB.Model(&models.Ticket{}).
		Where("ticket_id = ?", ticketID).
		Updates(map[string]interface{}{
			"status":       models.TicketPendingSync,
			"used_at":      now,
			"last_updated": now,
		})
	if res.Error != nil {
		return &utils.StorageError{Op: "mark ticket used", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return &utils.NotFoundError{Entity: "ticket", Key: ticketID}
	}
	return nil
}

// List mengembalikan isi replika, opsional difilter status.
func (s *TicketStore) List(status string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	q := s.DB.Order("ticket_id ASC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&tickets).Error; err != nil {
		return nil, &utils.StorageError{Op: "list tickets", Err: err}
	}
	return tickets, nil
}

// CountByStatus untuk statistik check-in di UI scanner.
func (s *TicketStore) CountByStatus() (map[string]int64, error) {
	type row struct {
		Status string
		Total  int64
	}
	var rows []row
	err := s.DB.Model(&models.Ticket{}).
		Select("status, count(*) as total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, &utils.StorageError{Op: "count tickets", Err: err}
	}
	counts := map[string]int64{
		models.TicketNotCheckedIn: 0,
		models.TicketUsed:         0,
		models.TicketPendingSync:  0,
	}
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}

// ReplaceAll mengosongkan replika lalu mengisi ulang dari hasil full pull,
// dalam satu transaksi. Tiket yang masih pending_sync dipertahankan supaya
// check-in offline yang belum terkirim tidak tertimpa data server.
func (s *TicketStore) ReplaceAll(tickets []models.Ticket) error {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("status <> ?", models.TicketPendingSync).
			Delete(&models.Ticket{}).Error; err != nil {
			return err
		}
		now := time.Now()
		for i := range tickets {
			tickets[i].LastUpdated = now
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "ticket_id"}},
				DoNothing: true,
			}).Create(&tickets[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &utils.StorageError{Op: "replace replica", Err: err}
	}
	return nil
}
