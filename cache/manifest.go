package cache

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest adalah daftar aset precache yang di-bake saat build.
// Assets adalah path relatif terhadap ASSET_BASE_URL; External adalah
// URL penuh (font, library CDN) yang ikut di-precache.
type Manifest struct {
	OfflinePage string   `yaml:"offline_page"`
	Assets      []string `yaml:"assets"`
	External    []string `yaml:"external"`
}

func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read precache manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse precache manifest: %w", err)
	}
	if m.OfflinePage == "" {
		m.OfflinePage = "offline.html"
	}
	return &m, nil
}

// Keys mengembalikan seluruh request key yang tercakup manifest,
// termasuk halaman offline fallback.
func (m *Manifest) Keys() []string {
	keys := make([]string, 0, len(m.Assets)+len(m.External)+1)
	keys = append(keys, m.Assets...)
	keys = append(keys, m.External...)

	found := false
	for _, k := range m.Assets {
		if k == m.OfflinePage {
			found = true
			break
		}
	}
	if !found {
		keys = append(keys, m.OfflinePage)
	}
	return keys
}

// Contains melaporkan apakah key termasuk daftar precache.
func (m *Manifest) Contains(key string) bool {
	for _, k := range m.Keys() {
		if k == key {
			return true
		}
	}
	return false
}
