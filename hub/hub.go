package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/dimsprat/scanner-gateway/utils"
	"github.com/gorilla/websocket"
)

// Tipe pesan proxy-ke-halaman
const (
	MsgSWActivated  = "SW_ACTIVATED"
	MsgSyncStarted  = "SYNC_STARTED"
	MsgSyncComplete = "SYNC_COMPLETE"
	MsgSyncError    = "SYNC_ERROR"
)

// Message adalah pesan terstruktur yang dikirim ke halaman scanner yang
// sedang terbuka.
type Message struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp,omitempty"`
	Message   string `json:"message,omitempty"`
}

// StatusHub menampung semua koneksi halaman scanner dan menyiarkan
// pesan status ke seluruhnya.
type StatusHub struct {
	clients map[*websocket.Conn]string // conn -> role
	mutex   sync.Mutex
}

func NewStatusHub() *StatusHub {
	return &StatusHub{
		clients: make(map[*websocket.Conn]string),
	}
}

// Register -> menambahkan connection ke set dengan role
func (h *StatusHub) Register(conn *websocket.Conn, role string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.clients[conn] = role
}

// Unregister -> melepaskan connection
func (h *StatusHub) Unregister(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(h.clients, conn)
	conn.Close()
}

// ClientCount untuk status endpoint.
func (h *StatusHub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Broadcast mengirim pesan bertipe ke semua halaman terbuka.
func (h *StatusHub) Broadcast(msgType, text string) {
	h.broadcast(Message{
		Type:      msgType,
		Timestamp: time.Now().Format(time.RFC3339),
		Message:   text,
	})
}

func (h *StatusHub) broadcast(msg Message) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		utils.ErrorLogger.Printf("Error marshaling hub message: %v", err)
		return
	}

	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			utils.ErrorLogger.Printf("Error sending message to client: %v", err)
			continue
		}
	}
}
