// Package cache holds the caches shared by every dataset of a server: an
// expiring byte cache for encoded pattern cells and gene diagrams, and an
// LRU of encoded store records read from the durable backend.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Config sizes the caches. FragmentTTL bounds how long a cell list or
// diagram is served without being rebuilt.
type Config struct {
	FragmentCacheSizeMB int
	FragmentTTL         time.Duration
	RecordCacheSize     int
}

// Manager owns the fragment and record caches.
type Manager struct {
	fragmentCache *bigcache.BigCache
	recordCache   *lru.Cache[string, []byte]
}

// NewManager creates both caches.
func NewManager(cfg Config) (*Manager, error) {
	fragmentCacheConfig := bigcache.Config{
		Shards:             64, // keeps each shard large enough for diagram PNGs
		LifeWindow:         cfg.FragmentTTL,
		CleanWindow:        cfg.FragmentTTL / 2,
		MaxEntriesInWindow: 10000,
		MaxEntrySize:       16 * 1024,
		HardMaxCacheSize:   cfg.FragmentCacheSizeMB,
		Verbose:            false,
	}

	fragmentCache, err := bigcache.New(context.Background(), fragmentCacheConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create fragment cache: %w", err)
	}

	recordCache, err := lru.New[string, []byte](cfg.RecordCacheSize)
	if err != nil {
		fragmentCache.Close()
		return nil, fmt.Errorf("failed to create record cache: %w", err)
	}

	return &Manager{
		fragmentCache: fragmentCache,
		recordCache:   recordCache,
	}, nil
}

// GetFragment returns the cached cells JSON or diagram bytes under key.
func (m *Manager) GetFragment(key string) ([]byte, bool) {
	data, err := m.fragmentCache.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetFragment caches cells JSON or diagram bytes until the TTL passes.
func (m *Manager) SetFragment(key string, data []byte) error {
	return m.fragmentCache.Set(key, data)
}

// GetRecord returns the JSON of a hit, cluster or meta record.
func (m *Manager) GetRecord(key string) ([]byte, bool) {
	return m.recordCache.Get(key)
}

// SetRecord caches the JSON of a record, evicting the least recently used.
func (m *Manager) SetRecord(key string, value []byte) {
	m.recordCache.Add(key, value)
}

// CellsKey is the key of a cluster's encoded pattern cells.
func CellsKey(dataset string, clusterID int) string {
	return fmt.Sprintf("cells:%s:%d", dataset, clusterID)
}

// DiagramKey is the key of a cluster diagram in one format and colormap.
func DiagramKey(dataset string, clusterID int, format, colormap string) string {
	return fmt.Sprintf("diagram:%s:%d.%s:%s", dataset, clusterID, format, colormap)
}

// Stats reports cache sizes and fragment hit counts.
func (m *Manager) Stats() map[string]interface{} {
	fs := m.fragmentCache.Stats()
	return map[string]interface{}{
		"fragment_cache_len":    m.fragmentCache.Len(),
		"fragment_cache_cap":    m.fragmentCache.Capacity(),
		"fragment_cache_hits":   fs.Hits,
		"fragment_cache_misses": fs.Misses,
		"record_cache_len":      m.recordCache.Len(),
	}
}

// Close releases the fragment cache.
func (m *Manager) Close() error {
	return m.fragmentCache.Close()
}
