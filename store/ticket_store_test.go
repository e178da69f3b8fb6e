package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/dimsprat/scanner-gateway/models"
	"github.com/dimsprat/scanner-gateway/utils"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB -> SQLite in-memory dengan nama unik per test supaya
// state tidak bocor antar test
func setupTestDB(t *testing.T) *gorm.DB {
	utils.InitLogger()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	if err := db.AutoMigrate(&models.Ticket{}, &models.SyncQueueEntry{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestPutIdempotent(t *testing.T) {
	s := NewTicketStore(setupTestDB(t))

	ticket := &models.Ticket{TicketID: "T-1", Name: "Andi", Status: models.TicketNotCheckedIn}
	assert.NoError(t, s.Put(ticket))

	// Put kedua dengan key sama harus replace, bukan duplikat
	again := &models.Ticket{TicketID: "T-1", Name: "Andi Revisi", Status: models.TicketNotCheckedIn}
	assert.NoError(t, s.Put(again))

	var count int64
	s.DB.Model(&models.Ticket{}).Count(&count)
	assert.Equal(t, int64(1), count)

	got, err := s.Get("T-1")
	assert.NoError(t, err)
	assert.Equal(t, "Andi Revisi", got.Name)
}

func TestGetNotFound(t *testing.T) {
	s := NewTicketStore(setupTestDB(t))

	got, err := s.Get("GHOST")
	assert.Nil(t, got)
	assert.True(t, utils.IsNotFound(err))
}

func TestUpdateStatus(t *testing.T) {
	s := NewTicketStore(setupTestDB(t))

	assert.NoError(t, s.Put(&models.Ticket{TicketID: "T-2", Status: models.TicketNotCheckedIn}))
	assert.NoError(t, s.UpdateStatus("T-2", models.TicketUsed))

	got, err := s.Get("T-2")
	assert.NoError(t, err)
	assert.Equal(t, models.TicketUsed, got.Status)
	assert.WithinDuration(t, time.Now(), got.LastUpdated, 5*time.Second)
}

func TestUpdateStatusNotFound(t *testing.T) {
	s := NewTicketStore(setupTestDB(t))

	err := s.UpdateStatus("GHOST", models.TicketUsed)
	assert.True(t, utils.IsNotFound(err))
}

func TestMarkUsedLocally(t *testing.T) {
	s := NewTicketStore(setupTestDB(t))

	assert.NoError(t, s.Put(&models.Ticket{TicketID: "T-3", Status: models.TicketNotCheckedIn}))
	assert.NoError(t, s.MarkUsedLocally("T-3"))

	got, err := s.Get("T-3")
	assert.NoError(t, err)
	assert.Equal(t, models.TicketPendingSync, got.Status)
	assert.NotNil(t, got.UsedAt)
}

func TestReplaceAllKeepsPendingSync(t *testing.T) {
	s := NewTicketStore(setupTestDB(t))

	// T-LOCAL dipakai offline dan belum terkirim; full pull tidak boleh
	// menimpanya dengan data server
	assert.NoError(t, s.Put(&models.Ticket{TicketID: "T-LOCAL", Status: models.TicketPendingSync}))
	assert.NoError(t, s.Put(&models.Ticket{TicketID: "T-OLD", Status: models.TicketNotCheckedIn}))

	err := s.ReplaceAll([]models.Ticket{
		{TicketID: "T-NEW", Status: models.TicketNotCheckedIn},
		{TicketID: "T-LOCAL", Status: models.TicketNotCheckedIn}, // versi server
	})
	assert.NoError(t, err)

	_, err = s.Get("T-OLD")
	assert.True(t, utils.IsNotFound(err))

	local, err := s.Get("T-LOCAL")
	assert.NoError(t, err)
	assert.Equal(t, models.TicketPendingSync, local.Status)

	fresh, err := s.Get("T-NEW")
	assert.NoError(t, err)
	assert.Equal(t, models.TicketNotCheckedIn, fresh.Status)
}

func TestCountByStatus(t *testing.T) {
	s := NewTicketStore(setupTestDB(t))

	assert.NoError(t, s.Put(&models.Ticket{TicketID: "T-A", Status: models.TicketUsed}))
	assert.NoError(t, s.Put(&models.Ticket{TicketID: "T-B", Status: models.TicketUsed}))
	assert.NoError(t, s.Put(&models.Ticket{TicketID: "T-C", Status: models.TicketNotCheckedIn}))

	counts, err := s.CountByStatus()
	assert.NoError(t, err)
	assert.Equal(t, int64(2), counts[models.TicketUsed])
	assert.Equal(t, int64(1), counts[models.TicketNotCheckedIn])
	assert.Equal(t, int64(0), counts[models.TicketPendingSync])
}
