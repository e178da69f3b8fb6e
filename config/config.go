package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Config menampung seluruh pengaturan gateway. Dibangun sekali di startup
// dan dioper eksplisit ke komponen yang membutuhkannya.
type Config struct {
	RemoteAPIURL  string        // endpoint API tiket (Apps Script / spreadsheet backend)
	AssetBaseURL  string        // origin tempat aset statis di-fetch saat precache
	CacheVersion  string        // versi cache generation, naikkan saat deploy aset baru
	ManifestPath  string        // daftar aset precache (yaml)
	SyncInterval  time.Duration // interval probe konektivitas
	RemoteTimeout time.Duration // batas waktu setiap panggilan remote
	MaxRetries    int           // batas retry item antrian sebelum dead-letter
	Port          string
}

func Load() *Config {
	return &Config{
		RemoteAPIURL:  getEnv("REMOTE_API_URL", "https://script.google.com/macros/s/dev/exec"),
		AssetBaseURL:  getEnv("ASSET_BASE_URL", "http://localhost:9000"),
		CacheVersion:  getEnv("CACHE_VERSION", "v1"),
		ManifestPath:  getEnv("PRECACHE_MANIFEST", "precache.yaml"),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", 30*time.Second),
		RemoteTimeout: getEnvDuration("REMOTE_TIMEOUT", 5*time.Second),
		MaxRetries:    getEnvInt("SYNC_MAX_RETRIES", 3),
		Port:          getEnv("PORT", "8080"),
	}
}

// InitDB membuka replika lokal. Default sqlite (satu file di perangkat);
// DB_DRIVER=mysql tersedia untuk deployment yang selalu terhubung.
func InitDB() (*gorm.DB, error) {
	switch os.Getenv("DB_DRIVER") {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			getEnv("DB_USER", "root"),
			os.Getenv("DB_PASSWORD"),
			getEnv("DB_HOST", "127.0.0.1"),
			getEnv("DB_PORT", "3306"),
			getEnv("DB_NAME", "scanner_gateway"),
		)
		return gorm.Open(mysql.Open(dsn), &gorm.Config{})
	default:
		path := getEnv("DB_PATH", "scanner.db")
		return gorm.Open(sqlite.Open(path), &gorm.Config{})
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
