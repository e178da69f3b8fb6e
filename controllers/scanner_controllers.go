package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/dimsprat/scanner-gateway/models"
	"github.com/dimsprat/scanner-gateway/services"
	"github.com/dimsprat/scanner-gateway/store"
	"github.com/dimsprat/scanner-gateway/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ScannerController melayani UI scanner dari replika lokal, jadi semua
// endpoint di sini tetap berfungsi tanpa jaringan. Mutasi tidak pernah
// menunggu server: tulis lokal, antrikan, biarkan reconciler mengejar.
type ScannerController struct {
	Store *store.TicketStore
	Queue *store.SyncQueue
	Sync  *services.SyncService
}

func NewScannerController(ts *store.TicketStore, q *store.SyncQueue, sync *services.SyncService) *ScannerController {
	return &ScannerController{Store: ts, Queue: q, Sync: sync}
}

// ValidateTicket -> cek tiket terhadap replika lokal
func (sc *ScannerController) ValidateTicket(c *gin.Context) {
	var req struct {
		TicketID string `json:"ticket_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	ticket, err := sc.Store.Get(req.TicketID)
	if err != nil {
		if utils.IsNotFound(err) {
			utils.RespondJSON(c, http.StatusOK, "Ticket not found", gin.H{
				"valid": false,
			})
			return
		}
		utils.RespondTypedError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Ticket found", gin.H{
		"valid":  ticket.Status == models.TicketNotCheckedIn,
		"ticket": ticket,
	})
}

// CheckIn -> tandai tiket dipakai secara lokal dan antrikan markTicketUsed
func (sc *ScannerController) CheckIn(c *gin.Context) {
	var req struct {
		TicketID string `json:"ticket_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		// input struktural kurang -> blokir dengan pesan eksplisit
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	ticket, err := sc.Store.Get(req.TicketID)
	if err != nil {
		utils.RespondTypedError(c, err)
		return
	}

	if ticket.Status != models.TicketNotCheckedIn {
		utils.RespondError(c, http.StatusConflict, errors.New("ticket already used"))
		return
	}

	if err := sc.Store.MarkUsedLocally(ticket.TicketID); err != nil {
		utils.RespondTypedError(c, err)
		return
	}

	// Enqueue WAJIB berhasil; gagal di sini berarti aksi offline hilang
	entry, err := sc.Queue.Enqueue(models.ActionMarkTicketUsed, gin.H{
		"ticketId": ticket.TicketID,
	})
	if err != nil {
		utils.RespondTypedError(c, err)
		return
	}

	utils.InfoLogger.Printf("Ticket %s checked in locally (queue entry %d)", ticket.TicketID, entry.ID)
	sc.kickSync()

	utils.RespondJSON(c, http.StatusOK, "Ticket checked in", gin.H{
		"ticket_id": ticket.TicketID,
		"status":    models.TicketPendingSync,
		"queue_id":  entry.ID,
	})
}

// AddOtsTicket -> buat tiket walk-in (on-the-spot) dan antrikan addOtsTicket
func (sc *ScannerController) AddOtsTicket(c *gin.Context) {
	var req struct {
		Name  string `json:"name" binding:"required"`
		Type  string `json:"type" binding:"required"`
		Event string `json:"event"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	ticket := models.Ticket{
		TicketID: "OTS-" + uuid.New().String(),
		Name:     req.Name,
		Type:     req.Type,
		Event:    req.Event,
		Status:   models.TicketPendingSync,
		IsOTS:    true,
	}
	if err := sc.Store.Put(&ticket); err != nil {
		utils.RespondTypedError(c, err)
		return
	}

	entry, err := sc.Queue.Enqueue(models.ActionAddOtsTicket, gin.H{
		"ticketId": ticket.TicketID,
		"name":     ticket.Name,
		"type":     ticket.Type,
		"event":    ticket.Event,
	})
	if err != nil {
		utils.RespondTypedError(c, err)
		return
	}

	utils.InfoLogger.Printf("OTS ticket %s created (queue entry %d)", ticket.TicketID, entry.ID)
	sc.kickSync()

	utils.RespondJSON(c, http.StatusCreated, "OTS ticket created", ticket)
}

// GetStats -> statistik check-in dari replika lokal
func (sc *ScannerController) GetStats(c *gin.Context) {
	counts, err := sc.Store.CountByStatus()
	if err != nil {
		utils.RespondTypedError(c, err)
		return
	}

	var total int64
	for _, n := range counts {
		total += n
	}

	utils.RespondJSON(c, http.StatusOK, "Event statistics", gin.H{
		"total":           total,
		"not_checked_in":  counts[models.TicketNotCheckedIn],
		"used":            counts[models.TicketUsed],
		"pending_sync":    counts[models.TicketPendingSync],
		"checked_in":      counts[models.TicketUsed] + counts[models.TicketPendingSync],
	})
}

// ListTickets -> isi replika, opsional ?status=
func (sc *ScannerController) ListTickets(c *gin.Context) {
	tickets, err := sc.Store.List(c.Query("status"))
	if err != nil {
		utils.RespondTypedError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of tickets", tickets)
}

// kickSync mencoba rekonsiliasi segera setelah mutasi; no-op saat offline
// atau pass lain sedang jalan.
func (sc *ScannerController) kickSync() {
	if sc.Sync == nil {
		return
	}
	go sc.Sync.Reconcile(context.Background())
}
