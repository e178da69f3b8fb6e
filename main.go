package main

import (
	"context"
	"log"
	"os"

	"github.com/dimsprat/scanner-gateway/cache"
	"github.com/dimsprat/scanner-gateway/config"
	"github.com/dimsprat/scanner-gateway/database"
	"github.com/dimsprat/scanner-gateway/hub"
	"github.com/dimsprat/scanner-gateway/middlewares"
	"github.com/dimsprat/scanner-gateway/router"
	"github.com/dimsprat/scanner-gateway/services"
	"github.com/dimsprat/scanner-gateway/store"
	"github.com/dimsprat/scanner-gateway/utils"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func init() {
	// Load .env file di awal sebelum apapun
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or error loading: %v", err)
	}

	utils.InitLogger()
}

func main() {
	cfg := config.Load()

	// Initialize DB (replika lokal)
	db, err := config.InitDB()
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to open local replica: %v", err)
	}
	utils.InitDB(db)

	// Set gin mode
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := database.Migrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}
	utils.InfoLogger.Println("AutoMigrate completed.")

	// Event bus + status hub
	bus := hub.NewBus()
	statusHub := hub.NewStatusHub()
	bridgeBusToHub(bus, statusHub)

	// Komponen inti
	remote := services.NewRemoteClient(cfg.RemoteAPIURL, cfg.RemoteTimeout)
	ticketStore := store.NewTicketStore(db)
	syncQueue := store.NewSyncQueue(db, cfg.MaxRetries)
	syncService := services.NewSyncService(db, ticketStore, syncQueue, remote, bus)

	monitor := services.NewConnectivityMonitor(remote, bus, cfg.SyncInterval)
	monitor.OnOnline = func() {
		if err := syncService.Reconcile(context.Background()); err != nil {
			utils.ErrorLogger.Printf("Reconcile failed: %v", err)
		}
	}
	syncService.IsOnline = monitor.Online

	// Cache proxy: install precache lalu aktifkan (purge generasi lama).
	// Gagal install bukan fatal: proxy tetap pass-through dan install
	// diulang saat koneksi kembali.
	manifest, err := cache.LoadManifest(cfg.ManifestPath)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to load precache manifest: %v", err)
	}
	cacheManager := cache.NewManager(db, manifest, cfg.AssetBaseURL, cfg.CacheVersion, cfg.RemoteTimeout)
	if err := installAndActivate(cacheManager, bus); err != nil {
		utils.ErrorLogger.Printf("Precache install failed, serving pass-through: %v", err)
		bus.On(hub.EventOnline, func(hub.Event) {
			if cacheManager.Active() {
				return
			}
			if err := installAndActivate(cacheManager, bus); err != nil {
				utils.ErrorLogger.Printf("Precache install retry failed: %v", err)
			}
		})
	}

	monitor.Start()
	defer monitor.Stop()

	// Setup router
	r := router.SetupRouter(router.Deps{
		DB:      db,
		Store:   ticketStore,
		Queue:   syncQueue,
		Cache:   cacheManager,
		Remote:  remote,
		Sync:    syncService,
		Monitor: monitor,
		Hub:     statusHub,
	})

	rateLimiter := middlewares.NewRateLimiter(50, 1)
	r.Use(rateLimiter.RateLimit())

	r.SetTrustedProxies([]string{"127.0.0.1", "localhost"})

	utils.InfoLogger.Printf("Listening on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		utils.ErrorLogger.Fatal(err)
	}
}

// bridgeBusToHub meneruskan event internal ke halaman scanner yang
// terbuka sebagai pesan status bertipe.
func bridgeBusToHub(bus *hub.Bus, statusHub *hub.StatusHub) {
	bus.On(hub.EventSyncStarted, func(hub.Event) {
		statusHub.Broadcast(hub.MsgSyncStarted, "Sinkronisasi dimulai")
	})
	bus.On(hub.EventSyncComplete, func(ev hub.Event) {
		msg := "Sinkronisasi selesai"
		if ts, ok := ev.Payload.(string); ok && ts != "" {
			msg = "Sinkronisasi selesai pada " + ts
		}
		statusHub.Broadcast(hub.MsgSyncComplete, msg)
	})
	bus.On(hub.EventSyncError, func(ev hub.Event) {
		msg := "Sinkronisasi gagal"
		if detail, ok := ev.Payload.(string); ok && detail != "" {
			msg = detail
		}
		statusHub.Broadcast(hub.MsgSyncError, msg)
	})
	bus.On(hub.EventCacheActivated, func(hub.Event) {
		statusHub.Broadcast(hub.MsgSWActivated, "Cache versi baru aktif")
	})
}

func installAndActivate(cm *cache.Manager, bus *hub.Bus) error {
	if err := cm.Install(context.Background()); err != nil {
		return err
	}
	if err := cm.Activate(); err != nil {
		return err
	}
	bus.Emit(hub.EventCacheActivated, nil)
	return nil
}
