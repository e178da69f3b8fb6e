package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dimsprat/scanner-gateway/services"
	"github.com/dimsprat/scanner-gateway/store"
	"github.com/dimsprat/scanner-gateway/utils"
	"github.com/gin-gonic/gin"
)

type SyncController struct {
	Sync    *services.SyncService
	Queue   *store.SyncQueue
	Monitor *services.ConnectivityMonitor
}

func NewSyncController(sync *services.SyncService, q *store.SyncQueue, mon *services.ConnectivityMonitor) *SyncController {
	return &SyncController{Sync: sync, Queue: q, Monitor: mon}
}

// TriggerSync -> jalankan satu pass rekonsiliasi di background
func (sc *SyncController) TriggerSync(c *gin.Context) {
	go sc.Sync.Reconcile(context.Background())
	utils.RespondJSON(c, http.StatusAccepted, "Sync triggered", nil)
}

// GetStatus -> status sinkronisasi untuk banner UI
func (sc *SyncController) GetStatus(c *gin.Context) {
	counts, err := sc.Queue.Counts()
	if err != nil {
		utils.RespondTypedError(c, err)
		return
	}

	online := true
	if sc.Monitor != nil {
		online = sc.Monitor.Online()
	}

	utils.RespondJSON(c, http.StatusOK, "Sync status", gin.H{
		"online":    online,
		"in_flight": sc.Sync.InFlight(),
		"last_sync": sc.Sync.LastSyncTime(),
		"queue":     counts,
	})
}

// GetQueue -> seluruh isi antrian, termasuk dead-letter
func (sc *SyncController) GetQueue(c *gin.Context) {
	entries, err := sc.Queue.All()
	if err != nil {
		utils.RespondTypedError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Sync queue", entries)
}

// RetryEntry -> operator mengembalikan entry dead-letter ke antrian
func (sc *SyncController) RetryEntry(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("entry_id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if err := sc.Queue.Retry(uint(id)); err != nil {
		utils.RespondTypedError(c, err)
		return
	}

	utils.InfoLogger.Printf("Queue entry %d re-armed by operator", id)
	go sc.Sync.Reconcile(context.Background())
	utils.RespondJSON(c, http.StatusOK, "Entry queued for retry", nil)
}

// ForceResync -> buang replika lokal dan tarik ulang dari server
func (sc *SyncController) ForceResync(c *gin.Context) {
	if err := sc.Sync.ForceResync(c.Request.Context()); err != nil {
		utils.RespondTypedError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Replica resynced", gin.H{
		"last_sync": sc.Sync.LastSyncTime(),
	})
}
