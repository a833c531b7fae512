// Package config handles configuration loading for the clusterview server.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Data   DataConfig   `yaml:"data"`
	Store  StoreConfig  `yaml:"store"`
	Cache  CacheConfig  `yaml:"cache"`
	Render RenderConfig `yaml:"render"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	Title       string   `yaml:"title"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// DatasetConfig describes one result document.
type DatasetConfig struct {
	// Source is a file path (JSON, gzip/zstd JSON, or HTML with embedded data) or an http(s) URL.
	Source string `yaml:"source"`
	// StorePath overrides the durable store location for this dataset.
	StorePath string `yaml:"store_path"`
}

// DataConfig contains the configured datasets in file order.
type DataConfig struct {
	DefaultDataset string
	Datasets       map[string]DatasetConfig
	order          []string
}

// DatasetIDs returns dataset IDs in config order.
func (d DataConfig) DatasetIDs() []string {
	return d.order
}

// UnmarshalYAML accepts either a single legacy dataset
// (`data: {source: ...}`) or a mapping of dataset ID to DatasetConfig.
func (d *DataConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("data: expected mapping, got %v", value.Tag)
	}

	d.Datasets = make(map[string]DatasetConfig)
	d.order = nil

	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i].Value
		if key == "source" || key == "store_path" {
			var legacy DatasetConfig
			if err := value.Decode(&legacy); err != nil {
				return err
			}
			d.Datasets = map[string]DatasetConfig{"default": legacy}
			d.order = []string{"default"}
			d.DefaultDataset = "default"
			return nil
		}
	}

	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i].Value
		if key == "default_dataset" {
			d.DefaultDataset = value.Content[i+1].Value
			continue
		}
		var ds DatasetConfig
		if err := value.Content[i+1].Decode(&ds); err != nil {
			return fmt.Errorf("data.%s: %w", key, err)
		}
		d.Datasets[key] = ds
		d.order = append(d.order, key)
	}
	return nil
}

// StoreConfig selects the durable backend.
type StoreConfig struct {
	// Backend is "sqlite" or "memory".
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
}

// CacheConfig contains caching settings.
type CacheConfig struct {
	FragmentSizeMB     int `yaml:"fragment_size_mb"`
	FragmentTTLMinutes int `yaml:"fragment_ttl_minutes"`
	RecordCacheSize    int `yaml:"record_cache_size"`
	ViewCacheSize      int `yaml:"view_cache_size"`
}

// RenderConfig contains rendering settings.
type RenderConfig struct {
	Colormap       string  `yaml:"colormap"`
	ArrowHeight    float64 `yaml:"arrow_height"`
	ArrowHeadWidth float64 `yaml:"arrow_head_width"`
	DiagramWidth   int     `yaml:"diagram_width"`
	DiagramHeight  int     `yaml:"diagram_height"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		return DefaultConfig(), nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			Title:       "clusterview",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Data: DataConfig{
			DefaultDataset: "default",
			Datasets: map[string]DatasetConfig{
				"default": {Source: "./data/results.json"},
			},
			order: []string{"default"},
		},
		Store: StoreConfig{
			Backend: "sqlite",
			Dir:     "./data/store",
		},
		Cache: CacheConfig{
			FragmentSizeMB:     64,
			FragmentTTLMinutes: 30,
			RecordCacheSize:    10000,
			ViewCacheSize:      256,
		},
		Render: RenderConfig{
			Colormap:       "blues",
			ArrowHeight:    100,
			ArrowHeadWidth: 50,
			DiagramWidth:   800,
			DiagramHeight:  60,
		},
	}
}

// StorePath returns where the dataset's durable store lives, or "" when the
// memory backend is configured.
func (c *Config) StorePath(datasetID string) string {
	if c.Store.Backend == "memory" {
		return ""
	}
	if ds, ok := c.Data.Datasets[datasetID]; ok && ds.StorePath != "" {
		return ds.StorePath
	}
	return filepath.Join(c.Store.Dir, datasetID+".sqlite")
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if cfg.Server.Title == "" {
		cfg.Server.Title = defaults.Server.Title
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if len(cfg.Data.Datasets) == 0 {
		cfg.Data = defaults.Data
	}
	if _, ok := cfg.Data.Datasets[cfg.Data.DefaultDataset]; !ok {
		cfg.Data.DefaultDataset = cfg.Data.order[0]
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = defaults.Store.Backend
	}
	if cfg.Store.Dir == "" {
		cfg.Store.Dir = defaults.Store.Dir
	}
	if cfg.Cache.FragmentSizeMB == 0 {
		cfg.Cache.FragmentSizeMB = defaults.Cache.FragmentSizeMB
	}
	if cfg.Cache.FragmentTTLMinutes == 0 {
		cfg.Cache.FragmentTTLMinutes = defaults.Cache.FragmentTTLMinutes
	}
	if cfg.Cache.RecordCacheSize == 0 {
		cfg.Cache.RecordCacheSize = defaults.Cache.RecordCacheSize
	}
	if cfg.Cache.ViewCacheSize == 0 {
		cfg.Cache.ViewCacheSize = defaults.Cache.ViewCacheSize
	}
	if cfg.Render.Colormap == "" {
		cfg.Render.Colormap = defaults.Render.Colormap
	}
	if cfg.Render.ArrowHeight == 0 {
		cfg.Render.ArrowHeight = defaults.Render.ArrowHeight
	}
	if cfg.Render.ArrowHeadWidth == 0 {
		cfg.Render.ArrowHeadWidth = defaults.Render.ArrowHeadWidth
	}
	if cfg.Render.DiagramWidth == 0 {
		cfg.Render.DiagramWidth = defaults.Render.DiagramWidth
	}
	if cfg.Render.DiagramHeight == 0 {
		cfg.Render.DiagramHeight = defaults.Render.DiagramHeight
	}
}
