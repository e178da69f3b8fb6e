package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dimsprat/scanner-gateway/hub"
	"github.com/dimsprat/scanner-gateway/utils"
)

// ConnectivityMonitor memeriksa keterjangkauan server secara berkala.
// Transisi offline->online memicu tepat satu percobaan rekonsiliasi
// (aturan single-flight di SyncService tetap berlaku).
type ConnectivityMonitor struct {
	Remote   *RemoteClient
	Bus      *hub.Bus
	Interval time.Duration
	StopChan chan struct{}

	// OnOnline dipanggil pada setiap transisi ke online; di produksi
	// diisi trigger Reconcile.
	OnOnline func()

	online atomic.Bool
}

func NewConnectivityMonitor(rc *RemoteClient, bus *hub.Bus, interval time.Duration) *ConnectivityMonitor {
	return &ConnectivityMonitor{
		Remote:   rc,
		Bus:      bus,
		Interval: interval,
		StopChan: make(chan struct{}),
	}
}

func (cm *ConnectivityMonitor) Start() {
	// Probe pertama langsung, supaya status awal tidak menunggu satu interval
	cm.check()

	go func() {
		ticker := time.NewTicker(cm.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				cm.check()
			case <-cm.StopChan:
				return
			}
		}
	}()
}

func (cm *ConnectivityMonitor) Stop() {
	close(cm.StopChan)
}

// Online melaporkan status konektivitas terakhir yang diketahui.
func (cm *ConnectivityMonitor) Online() bool {
	return cm.online.Load()
}

func (cm *ConnectivityMonitor) check() {
	ctx, cancel := context.WithTimeout(context.Background(), cm.Interval)
	defer cancel()

	nowOnline := cm.Remote.Ping(ctx)
	wasOnline := cm.online.Swap(nowOnline)

	switch {
	case nowOnline && !wasOnline:
		utils.InfoLogger.Println("Connectivity restored, triggering sync")
		cm.Bus.Emit(hub.EventOnline, nil)
		if cm.OnOnline != nil {
			go cm.OnOnline()
		}
	case !nowOnline && wasOnline:
		utils.InfoLogger.Println("Connectivity lost, entering offline mode")
		cm.Bus.Emit(hub.EventOffline, nil)
	}
}
