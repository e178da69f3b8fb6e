package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dimsprat/scanner-gateway/models"
	"github.com/dimsprat/scanner-gateway/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Peran cache generation. Precache diberi nama per versi; runtime dan
// api-cache tidak berversi (mengikuti perilaku service worker aslinya).
const (
	RoleRuntime    = "runtime-cache"
	RoleAPI        = "api-cache"
	precachePrefix = "offline-scanner-"
)

// Manager memiliki seluruh cache generation secara eksklusif; komponen
// lain tidak menulis ke tabel cache secara langsung.
type Manager struct {
	db        *gorm.DB
	client    *http.Client
	manifest  *Manifest
	assetBase string
	version   string
	active    atomic.Bool
}

func NewManager(db *gorm.DB, manifest *Manifest, assetBase, version string, timeout time.Duration) *Manager {
	return &Manager{
		db:        db,
		client:    &http.Client{Timeout: timeout},
		manifest:  manifest,
		assetBase: strings.TrimRight(assetBase, "/"),
		version:   version,
	}
}

// PrecacheName -> nama generation precache untuk versi yang berjalan.
func (m *Manager) PrecacheName() string {
	return precachePrefix + m.version
}

func (m *Manager) whitelist() []string {
	return []string{m.PrecacheName(), RoleRuntime, RoleAPI}
}

// Manifest mengekspos manifest untuk routing proxy.
func (m *Manager) Manifest() *Manifest { return m.manifest }

// Install mengisi precache generation dengan SELURUH aset manifest.
// Gagal fetch satu aset saja menggagalkan install secara keseluruhan:
// precache parsial akan merusak navigasi offline. Tidak ada satu baris
// pun yang ditulis kecuali semua aset berhasil diunduh.
func (m *Manager) Install(ctx context.Context) error {
	keys := m.manifest.Keys()
	entries := make([]models.CacheEntry, 0, len(keys))

	for _, key := range keys {
		status, ctype, body, err := m.fetchAsset(ctx, key)
		if err != nil {
			return fmt.Errorf("precache install: asset %q: %w", key, err)
		}
		if status != http.StatusOK {
			return fmt.Errorf("precache install: asset %q returned status %d", key, status)
		}
		entries = append(entries, models.CacheEntry{
			Generation:  m.PrecacheName(),
			RequestKey:  key,
			StatusCode:  status,
			ContentType: ctype,
			Body:        body,
		})
	}

	err := m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("generation = ?", m.PrecacheName()).
			Delete(&models.CacheEntry{}).Error; err != nil {
			return err
		}
		for i := range entries {
			if err := tx.Create(&entries[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &utils.StorageError{Op: "persist precache", Err: err}
	}

	utils.InfoLogger.Printf("Precache %s installed (%d assets)", m.PrecacheName(), len(entries))
	return nil
}

// Activate menghapus setiap generation yang tidak ada di whitelist versi
// berjalan, lalu (dan baru setelah itu) menyalakan flag serving. Halaman
// lama tidak pernah dilayani dari campuran cache lama dan baru.
func (m *Manager) Activate() error {
	generations, err := m.Generations()
	if err != nil {
		return err
	}

	keep := m.whitelist()
	for _, gen := range generations {
		stale := true
		for _, w := range keep {
			if gen == w {
				stale = false
				break
			}
		}
		if stale {
			if err := m.db.Where("generation = ?", gen).
				Delete(&models.CacheEntry{}).Error; err != nil {
				return &utils.StorageError{Op: "purge stale cache", Err: err}
			}
			utils.InfoLogger.Printf("Deleted old cache generation: %s", gen)
		}
	}

	m.active.Store(true)
	return nil
}

// Active melaporkan apakah proxy sudah boleh melakukan intersepsi.
func (m *Manager) Active() bool { return m.active.Load() }

// Generations mengembalikan nama seluruh generation yang ada.
func (m *Manager) Generations() ([]string, error) {
	var names []string
	err := m.db.Model(&models.CacheEntry{}).
		Distinct("generation").
		Pluck("generation", &names).Error
	if err != nil {
		return nil, &utils.StorageError{Op: "list cache generations", Err: err}
	}
	return names, nil
}

// Match mencari entry pada satu generation; NotFoundError saat miss.
func (m *Manager) Match(generation, key string) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	err := m.db.
		Where("generation = ? AND request_key = ?", generation, key).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &utils.NotFoundError{Entity: "cache entry", Key: key}
	}
	if err != nil {
		return nil, &utils.StorageError{Op: "cache match", Err: err}
	}
	return &entry, nil
}

// Put menyimpan (atau menimpa) snapshot response untuk key tersebut.
// Untuk api-cache ini berarti last-known-good per request.
func (m *Manager) Put(generation, key string, statusCode int, contentType string, body []byte) error {
	entry := models.CacheEntry{
		Generation:  generation,
		RequestKey:  key,
		StatusCode:  statusCode,
		ContentType: contentType,
		Body:        body,
	}
	err := m.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "generation"}, {Name: "request_key"}},
		UpdateAll: true,
	}).Create(&entry).Error
	if err != nil {
		return &utils.StorageError{Op: "cache put", Err: err}
	}
	return nil
}

// OfflinePage mengambil dokumen fallback navigasi dari precache.
func (m *Manager) OfflinePage() (*models.CacheEntry, error) {
	return m.Match(m.PrecacheName(), m.manifest.OfflinePage)
}

// FetchAsset mengambil aset dari origin dan menuliskannya write-through
// ke generation yang diminta.
func (m *Manager) FetchAsset(ctx context.Context, generation, key string) (*models.CacheEntry, error) {
	status, ctype, body, err := m.fetchAsset(ctx, key)
	if err != nil {
		return nil, &utils.TransportError{Err: err}
	}
	if status == http.StatusOK {
		if err := m.Put(generation, key, status, ctype, body); err != nil {
			// cache penuh bukan alasan menggagalkan response live
			utils.ErrorLogger.Printf("Write-through failed for %s: %v", key, err)
		}
	}
	return &models.CacheEntry{
		Generation:  generation,
		RequestKey:  key,
		StatusCode:  status,
		ContentType: ctype,
		Body:        body,
	}, nil
}

// FetchLive mengambil aset dari origin tanpa menyentuh cache. Dipakai
// proxy sebelum Activate: murni pass-through.
func (m *Manager) FetchLive(ctx context.Context, key string) (*models.CacheEntry, error) {
	status, ctype, body, err := m.fetchAsset(ctx, key)
	if err != nil {
		return nil, &utils.TransportError{Err: err}
	}
	return &models.CacheEntry{
		RequestKey:  key,
		StatusCode:  status,
		ContentType: ctype,
		Body:        body,
	}, nil
}

func (m *Manager) fetchAsset(ctx context.Context, key string) (int, string, []byte, error) {
	url := key
	if !strings.HasPrefix(key, "http://") && !strings.HasPrefix(key, "https://") {
		url = m.assetBase + "/" + strings.TrimLeft(key, "/")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", nil, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return 0, "", nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", nil, err
	}
	return resp.StatusCode, resp.Header.Get("Content-Type"), body, nil
}
