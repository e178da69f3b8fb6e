package cache

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dimsprat/scanner-gateway/models"
	"github.com/dimsprat/scanner-gateway/utils"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	utils.InitLogger()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	if err := db.AutoMigrate(&models.CacheEntry{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

// newAssetServer -> origin palsu yang melayani aset statis
func newAssetServer(assets map[string]string) *httptest.Server {
	mux := http.NewServeMux()
	for path, body := range assets {
		content := body
		mux.HandleFunc("/"+path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, content)
		})
	}
	return httptest.NewServer(mux)
}

func testManifest() *Manifest {
	return &Manifest{
		OfflinePage: "offline.html",
		Assets:      []string{"index.html", "offline.html", "Assets/style.css"},
	}
}

func TestInstallAndMatch(t *testing.T) {
	srv := newAssetServer(map[string]string{
		"index.html":       "<html>index</html>",
		"offline.html":     "<html>offline</html>",
		"Assets/style.css": "body{}",
	})
	defer srv.Close()

	db := setupTestDB(t)
	m := NewManager(db, testManifest(), srv.URL, "v1", 2*time.Second)

	assert.NoError(t, m.Install(context.Background()))

	entry, err := m.Match(m.PrecacheName(), "index.html")
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, entry.StatusCode)
	assert.Equal(t, "<html>index</html>", string(entry.Body))

	offline, err := m.OfflinePage()
	assert.NoError(t, err)
	assert.Equal(t, "<html>offline</html>", string(offline.Body))
}

func TestInstallAllOrNothing(t *testing.T) {
	// style.css sengaja tidak disajikan -> 404 -> install harus gagal
	// total tanpa satu baris pun tertulis
	srv := newAssetServer(map[string]string{
		"index.html":   "<html>index</html>",
		"offline.html": "<html>offline</html>",
	})
	defer srv.Close()

	db := setupTestDB(t)
	m := NewManager(db, testManifest(), srv.URL, "v1", 2*time.Second)

	err := m.Install(context.Background())
	assert.Error(t, err)

	var count int64
	db.Model(&models.CacheEntry{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestActivatePurgesStaleGenerations(t *testing.T) {
	srv := newAssetServer(map[string]string{
		"index.html":       "<html>v2</html>",
		"offline.html":     "<html>offline</html>",
		"Assets/style.css": "body{}",
	})
	defer srv.Close()

	db := setupTestDB(t)

	// Sisa precache versi lama plus runtime dan api-cache
	for _, e := range []models.CacheEntry{
		{Generation: "offline-scanner-v1", RequestKey: "index.html", StatusCode: 200, Body: []byte("<html>v1</html>")},
		{Generation: RoleRuntime, RequestKey: "logo.png", StatusCode: 200, Body: []byte("png")},
		{Generation: RoleAPI, RequestKey: "GET ?action=getTickets", StatusCode: 200, Body: []byte("{}")},
	} {
		entry := e
		assert.NoError(t, db.Create(&entry).Error)
	}

	m := NewManager(db, testManifest(), srv.URL, "v2", 2*time.Second)
	assert.NoError(t, m.Install(context.Background()))
	assert.False(t, m.Active())
	assert.NoError(t, m.Activate())
	assert.True(t, m.Active())

	generations, err := m.Generations()
	assert.NoError(t, err)
	assert.NotContains(t, generations, "offline-scanner-v1")
	assert.Contains(t, generations, "offline-scanner-v2")
	assert.Contains(t, generations, RoleRuntime)
	assert.Contains(t, generations, RoleAPI)
}

func TestPutOverwritesLastKnownGood(t *testing.T) {
	db := setupTestDB(t)
	m := NewManager(db, testManifest(), "http://127.0.0.1:0", "v1", time.Second)

	key := "GET ?action=getTickets"
	assert.NoError(t, m.Put(RoleAPI, key, 200, "application/json", []byte(`{"data":[1]}`)))
	assert.NoError(t, m.Put(RoleAPI, key, 200, "application/json", []byte(`{"data":[1,2]}`)))

	var count int64
	db.Model(&models.CacheEntry{}).Count(&count)
	assert.Equal(t, int64(1), count)

	entry, err := m.Match(RoleAPI, key)
	assert.NoError(t, err)
	assert.Equal(t, `{"data":[1,2]}`, string(entry.Body))
}

func TestMatchMiss(t *testing.T) {
	db := setupTestDB(t)
	m := NewManager(db, testManifest(), "http://127.0.0.1:0", "v1", time.Second)

	entry, err := m.Match(RoleAPI, "GET ?action=ghost")
	assert.Nil(t, entry)
	assert.True(t, utils.IsNotFound(err))
}

func TestFetchAssetWriteThrough(t *testing.T) {
	srv := newAssetServer(map[string]string{"logo.png": "pngbytes"})
	defer srv.Close()

	db := setupTestDB(t)
	m := NewManager(db, testManifest(), srv.URL, "v1", 2*time.Second)

	live, err := m.FetchAsset(context.Background(), RoleRuntime, "logo.png")
	assert.NoError(t, err)
	assert.Equal(t, "pngbytes", string(live.Body))

	cached, err := m.Match(RoleRuntime, "logo.png")
	assert.NoError(t, err)
	assert.Equal(t, "pngbytes", string(cached.Body))
}

func TestFetchLiveDoesNotCache(t *testing.T) {
	srv := newAssetServer(map[string]string{"logo.png": "pngbytes"})
	defer srv.Close()

	db := setupTestDB(t)
	m := NewManager(db, testManifest(), srv.URL, "v1", 2*time.Second)

	live, err := m.FetchLive(context.Background(), "logo.png")
	assert.NoError(t, err)
	assert.Equal(t, "pngbytes", string(live.Body))

	_, err = m.Match(RoleRuntime, "logo.png")
	assert.True(t, utils.IsNotFound(err))
}

func TestFetchAssetOffline(t *testing.T) {
	srv := newAssetServer(nil)
	srv.Close() // origin mati

	db := setupTestDB(t)
	m := NewManager(db, testManifest(), srv.URL, "v1", time.Second)

	entry, err := m.FetchAsset(context.Background(), RoleRuntime, "logo.png")
	assert.Nil(t, entry)
	assert.True(t, utils.IsTransport(err))
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "precache.yaml")
	raw := "offline_page: offline.html\nassets:\n  - index.html\n  - offline.html\nexternal:\n  - https://cdn.example.com/lib.js\n"
	assert.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	m, err := LoadManifest(path)
	assert.NoError(t, err)
	assert.Equal(t, "offline.html", m.OfflinePage)
	assert.True(t, m.Contains("index.html"))
	assert.True(t, m.Contains("https://cdn.example.com/lib.js"))
	assert.False(t, m.Contains("missing.js"))
	assert.Len(t, m.Keys(), 3)
}
