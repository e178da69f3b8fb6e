package hub

import "sync"

// Nama event internal
const (
	EventSyncStarted     = "sync-started"
	EventSyncComplete    = "sync-complete"
	EventSyncError       = "sync-error"
	EventOnline          = "online"
	EventOffline         = "offline"
	EventDatabaseUpdated = "database-updated"
	EventCacheActivated  = "cache-activated"
)

// Event adalah payload bertipe yang dikirim lewat bus.
type Event struct {
	Name    string
	Payload interface{}
}

type Handler func(Event)

// Bus adalah publish/subscribe minimal antar komponen dalam proses,
// pengganti wiring listener ala DOM. Handler dipanggil sinkron pada
// goroutine pemanggil Emit.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// On mendaftarkan handler untuk satu nama event.
func (b *Bus) On(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// Emit mengirim event ke semua handler yang terdaftar untuk nama itu.
func (b *Bus) Emit(name string, payload interface{}) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[name]...)
	b.mu.RUnlock()

	ev := Event{Name: name, Payload: payload}
	for _, h := range handlers {
		h(ev)
	}
}
