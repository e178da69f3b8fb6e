package controllers

import (
	"io"
	"net/http"
	"strings"

	"github.com/dimsprat/scanner-gateway/cache"
	"github.com/dimsprat/scanner-gateway/services"
	"github.com/dimsprat/scanner-gateway/utils"
	"github.com/gin-gonic/gin"
)

// offlineAPIBody adalah response sintetis saat API tidak terjangkau dan
// tidak ada snapshot di api-cache. Dikirim 200 dengan status machine-
// readable supaya halaman bisa membedakan "server menolak" dari "sedang
// offline" dan degradasi dengan baik, bukan crash.
const offlineAPIBody = `{"status":"error","message":"Tidak dapat terhubung ke server. Anda sedang offline."}`

// ProxyController adalah lapisan intersepsi request: cache-first untuk
// aset, network-first untuk API, dengan fallback offline.
type ProxyController struct {
	Cache  *cache.Manager
	Remote *services.RemoteClient
}

func NewProxyController(cm *cache.Manager, rc *services.RemoteClient) *ProxyController {
	return &ProxyController{Cache: cm, Remote: rc}
}

// HandleAPI meneruskan request ke API tiket remote.
//   - non-GET: diteruskan apa adanya, tanpa intersepsi cache
//   - GET: network-first; sukses -> simpan last-known-good per request
//     persis, gagal -> snapshot cache, terakhir -> response offline sintetis
func (pc *ProxyController) HandleAPI(c *gin.Context) {
	ctx := c.Request.Context()

	if c.Request.Method != http.MethodGet {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
		status, ctype, respBody, err := pc.Remote.ProxyRequest(ctx,
			c.Request.Method, c.Request.URL.RawQuery, c.ContentType(), body)
		if err != nil {
			// tanpa intersepsi: kegagalan transport dipropagasikan sebagai 502
			utils.RespondError(c, http.StatusBadGateway, err)
			return
		}
		c.Data(status, ctype, respBody)
		return
	}

	key := apiRequestKey(c)

	status, ctype, respBody, err := pc.Remote.ProxyRequest(ctx,
		http.MethodGet, c.Request.URL.RawQuery, "", nil)
	if err == nil {
		if putErr := pc.Cache.Put(cache.RoleAPI, key, status, ctype, respBody); putErr != nil {
			utils.ErrorLogger.Printf("API cache put failed: %v", putErr)
		}
		c.Data(status, ctype, respBody)
		return
	}

	if entry, matchErr := pc.Cache.Match(cache.RoleAPI, key); matchErr == nil {
		c.Data(entry.StatusCode, entry.ContentType, entry.Body)
		return
	}

	c.Data(http.StatusOK, "application/json", []byte(offlineAPIBody))
}

// HandleAsset melayani aset statis dan navigasi.
//   - sebelum Activate selesai, tidak ada intersepsi: langsung ke origin
//   - aset manifest: cache-first di precache generation, write-through on miss
//   - aset lain: cache-first di runtime-cache, write-through on miss
//   - fetch gagal: navigasi -> halaman offline, selain itu -> 503 sintetis
func (pc *ProxyController) HandleAsset(c *gin.Context) {
	ctx := c.Request.Context()
	key := strings.TrimPrefix(c.Param("filepath"), "/")
	if key == "" {
		key = "index.html"
	}

	if !pc.Cache.Active() {
		entry, err := pc.Cache.FetchLive(ctx, key)
		if err != nil {
			c.String(http.StatusServiceUnavailable, "Service starting, please retry")
			return
		}
		c.Data(entry.StatusCode, entry.ContentType, entry.Body)
		return
	}

	generation := cache.RoleRuntime
	if pc.Cache.Manifest().Contains(key) {
		generation = pc.Cache.PrecacheName()
	}

	if entry, err := pc.Cache.Match(generation, key); err == nil {
		c.Data(entry.StatusCode, entry.ContentType, entry.Body)
		return
	}

	entry, err := pc.Cache.FetchAsset(ctx, generation, key)
	if err == nil {
		c.Data(entry.StatusCode, entry.ContentType, entry.Body)
		return
	}

	if isNavigation(c.Request) {
		if offline, offErr := pc.Cache.OfflinePage(); offErr == nil {
			c.Data(http.StatusOK, offline.ContentType, offline.Body)
			return
		}
	}
	c.String(http.StatusServiceUnavailable, "You are offline and the requested resource is not in cache.")
}

// apiRequestKey -> identitas request persis: method + query mentah.
func apiRequestKey(c *gin.Context) string {
	return c.Request.Method + " ?" + c.Request.URL.RawQuery
}

// isNavigation mendeteksi request navigasi halaman.
func isNavigation(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
