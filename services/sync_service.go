package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dimsprat/scanner-gateway/hub"
	"github.com/dimsprat/scanner-gateway/models"
	"github.com/dimsprat/scanner-gateway/store"
	"github.com/dimsprat/scanner-gateway/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SyncService menjalankan rekonsiliasi: menguras antrian mutasi offline
// ke server, lalu menarik pembaruan replika bila ada.
type SyncService struct {
	DB     *gorm.DB
	Store  *store.TicketStore
	Queue  *store.SyncQueue
	Remote *RemoteClient
	Bus    *hub.Bus

	// IsOnline disuntik dari monitor konektivitas; nil berarti selalu online
	// (dipakai test).
	IsOnline func() bool

	inFlight atomic.Bool
	mu       sync.Mutex // menjaga lastSyncTime cache
	lastSync string
}

func NewSyncService(db *gorm.DB, ts *store.TicketStore, q *store.SyncQueue, rc *RemoteClient, bus *hub.Bus) *SyncService {
	s := &SyncService{
		DB:     db,
		Store:  ts,
		Queue:  q,
		Remote: rc,
		Bus:    bus,
	}
	s.lastSync = s.loadLastSyncTime()
	return s
}

func (s *SyncService) online() bool {
	if s.IsOnline == nil {
		return true
	}
	return s.IsOnline()
}

// Reconcile menjalankan satu pass sinkronisasi. Single-flight: pemanggil
// kedua saat pass masih berjalan (atau saat offline) langsung kembali
// tanpa melakukan apa pun, sehingga tidak ada submit ganda ke server.
func (s *SyncService) Reconcile(ctx context.Context) error {
	if !s.online() {
		return nil
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil
	}
	defer s.inFlight.Store(false)

	s.Bus.Emit(hub.EventSyncStarted, nil)

	if err := s.processQueue(ctx); err != nil {
		// processQueue hanya mengembalikan error storage; kegagalan remote
		// per-entry sudah dibukukan pada entry masing-masing.
		s.Bus.Emit(hub.EventSyncError, err.Error())
		return err
	}

	if err := s.pullUpdates(ctx); err != nil {
		utils.ErrorLogger.Printf("Update pull failed: %v", err)
		s.Bus.Emit(hub.EventSyncError, err.Error())
		return err
	}

	s.Bus.Emit(hub.EventSyncComplete, s.LastSyncTime())
	return nil
}

// processQueue memproses entry dalam urutan pembuatan. Satu percobaan
// remote per entry per pass; kegagalan satu entry tidak menghentikan
// entry berikutnya.
func (s *SyncService) processQueue(ctx context.Context) error {
	entries, err := s.Queue.ListPending()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	utils.InfoLogger.Printf("Processing %d pending sync entries", len(entries))

	for _, entry := range entries {
		err := s.dispatch(ctx, entry)
		switch {
		case err == nil:
			if err := s.Queue.MarkOutcome(entry.ID, nil); err != nil {
				return err
			}
		case errors.Is(err, errDeadLettered):
			// Entry sudah ditandai dead oleh dispatch; biarkan di antrian
			// supaya operator bisa melihat dan me-retry.
		default:
			utils.ErrorLogger.Printf("Sync entry %d (%s) failed: %v", entry.ID, entry.Action, err)
			if markErr := s.Queue.MarkOutcome(entry.ID, err); markErr != nil {
				return markErr
			}
		}
	}
	return nil
}

// errDeadLettered menandakan entry sudah dipindah ke dead-letter; bukan
// sukses dan bukan kegagalan yang perlu dibukukan lagi.
var errDeadLettered = errors.New("sync entry dead-lettered")

// dispatch mengirim satu entry ke server dan men-settle tiket terkait
// saat sukses. Action tak dikenal langsung ke dead-letter tanpa
// menggagalkan pass.
func (s *SyncService) dispatch(ctx context.Context, entry models.SyncQueueEntry) error {
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(entry.Data), &payload); err != nil {
		if markErr := s.Queue.MarkDead(entry.ID, fmt.Sprintf("malformed payload: %v", err)); markErr != nil {
			return markErr
		}
		return errDeadLettered
	}

	switch entry.Action {
	case models.ActionMarkTicketUsed, models.ActionAddOtsTicket:
		if _, err := s.Remote.PostAction(ctx, entry.Action, payload); err != nil {
			return err
		}
		if ticketID, ok := payload["ticketId"].(string); ok {
			if err := s.Store.UpdateStatus(ticketID, models.TicketUsed); err != nil && !utils.IsNotFound(err) {
				utils.ErrorLogger.Printf("Failed to settle ticket %s: %v", ticketID, err)
			}
		}
		return nil
	default:
		utils.ErrorLogger.Printf("Unknown sync action type: %s", entry.Action)
		if markErr := s.Queue.MarkDead(entry.ID, "unknown action type: "+entry.Action); markErr != nil {
			return markErr
		}
		return errDeadLettered
	}
}

// pullUpdates bertanya ke server apakah ada perubahan sejak lastSync dan
// bila ada melakukan full pull ke replika lokal.
func (s *SyncService) pullUpdates(ctx context.Context) error {
	needsUpdate, err := s.Remote.CheckForUpdates(ctx, s.LastSyncTime())
	if err != nil {
		return err
	}
	if !needsUpdate {
		return nil
	}
	return s.refreshReplica(ctx)
}

// refreshReplica menarik getTickets dan getOtsTickets secara paralel
// lalu mengganti isi replika dalam satu transaksi.
func (s *SyncService) refreshReplica(ctx context.Context) error {
	var (
		wg      sync.WaitGroup
		regular []models.Ticket
		ots     []models.Ticket
		errReg  error
		errOts  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		regular, errReg = s.Remote.FetchTickets(ctx, "getTickets")
	}()
	go func() {
		defer wg.Done()
		ots, errOts = s.Remote.FetchTickets(ctx, "getOtsTickets")
	}()
	wg.Wait()

	if errReg != nil {
		return errReg
	}
	if errOts != nil {
		return errOts
	}

	if err := s.Store.ReplaceAll(append(regular, ots...)); err != nil {
		return err
	}

	ts := time.Now().Format(time.RFC3339)
	if err := s.setLastSyncTime(ts); err != nil {
		return err
	}

	utils.InfoLogger.Printf("Local replica refreshed (%d tickets, %d OTS)", len(regular), len(ots))
	s.Bus.Emit(hub.EventDatabaseUpdated, ts)
	return nil
}

// ForceResync membuang replika lokal beserta lastSyncTime lalu menarik
// ulang seluruh data. Antrian mutasi tidak disentuh.
func (s *SyncService) ForceResync(ctx context.Context) error {
	if !s.online() {
		return &utils.TransportError{Err: fmt.Errorf("cannot resync while offline")}
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("status <> ?", models.TicketPendingSync).
			Delete(&models.Ticket{}).Error; err != nil {
			return err
		}
		return tx.Where("key = ?", models.MetaLastSyncTime).
			Delete(&models.SyncMeta{}).Error
	})
	if err != nil {
		return &utils.StorageError{Op: "reset replica", Err: err}
	}

	s.mu.Lock()
	s.lastSync = ""
	s.mu.Unlock()

	return s.refreshReplica(ctx)
}

// InFlight melaporkan apakah sebuah pass sedang berjalan.
func (s *SyncService) InFlight() bool { return s.inFlight.Load() }

// LastSyncTime mengembalikan waktu sinkronisasi terakhir (RFC3339, kosong
// bila belum pernah).
func (s *SyncService) LastSyncTime() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync
}

func (s *SyncService) loadLastSyncTime() string {
	var meta models.SyncMeta
	if err := s.DB.First(&meta, "key = ?", models.MetaLastSyncTime).Error; err != nil {
		return ""
	}
	return meta.Value
}

func (s *SyncService) setLastSyncTime(ts string) error {
	meta := models.SyncMeta{Key: models.MetaLastSyncTime, Value: ts}
	err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&meta).Error
	if err != nil {
		return &utils.StorageError{Op: "persist lastSyncTime", Err: err}
	}

	s.mu.Lock()
	s.lastSync = ts
	s.mu.Unlock()
	return nil
}
