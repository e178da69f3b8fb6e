package router

import (
	"net/http"

	"github.com/dimsprat/scanner-gateway/cache"
	"github.com/dimsprat/scanner-gateway/controllers"
	"github.com/dimsprat/scanner-gateway/hub"
	"github.com/dimsprat/scanner-gateway/middlewares"
	"github.com/dimsprat/scanner-gateway/services"
	"github.com/dimsprat/scanner-gateway/store"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps adalah context object yang dibangun sekali di startup dan dioper
// eksplisit; tidak ada komponen yang mengambil dependensi dari state
// global modul.
type Deps struct {
	DB      *gorm.DB
	Store   *store.TicketStore
	Queue   *store.SyncQueue
	Cache   *cache.Manager
	Remote  *services.RemoteClient
	Sync    *services.SyncService
	Monitor *services.ConnectivityMonitor
	Hub     *hub.StatusHub
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.Default()

	// Apply security middlewares
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares())
	r.Use(middlewares.LoggerMiddleware())

	// Inisialisasi controller
	userCtrl := controllers.NewUserController(d.DB)
	scannerCtrl := controllers.NewScannerController(d.Store, d.Queue, d.Sync)
	syncCtrl := controllers.NewSyncController(d.Sync, d.Queue, d.Monitor)
	proxyCtrl := controllers.NewProxyController(d.Cache, d.Remote)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Rate limiter untuk login/register
	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/register", userCtrl.Register)
		public.POST("/login", userCtrl.Login)
	}

	// Halaman scanner dimuat sebelum login, jadi proxy aset dan API
	// terbuka (perilaku service worker).
	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/app/index.html")
	})
	r.GET("/app/*filepath", proxyCtrl.HandleAsset)
	r.Any("/gas", proxyCtrl.HandleAPI)

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	auth := r.Group("/api")
	auth.Use(middlewares.AuthMiddleware())

	auth.GET("/profile", userCtrl.GetProfile)

	// SCANNER (replika lokal, tetap jalan saat offline)
	auth.POST("/scanner/validate", scannerCtrl.ValidateTicket)
	auth.POST("/scanner/check-in", scannerCtrl.CheckIn)
	auth.POST("/scanner/ots", scannerCtrl.AddOtsTicket)
	auth.GET("/scanner/stats", scannerCtrl.GetStats)
	auth.GET("/scanner/tickets", scannerCtrl.ListTickets)

	// SYNC
	auth.POST("/sync/trigger", syncCtrl.TriggerSync)
	auth.GET("/sync/status", syncCtrl.GetStatus)
	auth.GET("/sync/queue", syncCtrl.GetQueue)
	auth.POST("/sync/queue/:entry_id/retry", syncCtrl.RetryEntry)
	auth.POST("/sync/resync", syncCtrl.ForceResync)

	// WebSocket endpoint dengan middleware khusus
	wsGroup := r.Group("/ws")
	wsGroup.Use(middlewares.WebSocketAuthMiddleware())
	{
		wsGroup.GET("/status", controllers.StatusWSHandler(d.Hub))
	}

	return r
}
