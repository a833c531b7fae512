package api

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/clusterview/server/internal/render"
	"github.com/clusterview/server/internal/store"
)

// DatasetInfo contains information about a dataset for the API response.
type DatasetInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Loaded bool   `json:"loaded"`
	Error  string `json:"error,omitempty"`
}

// Dataset is one served result document. LoadErr is set when the document
// could not be loaded; such a dataset has no engine.
type Dataset struct {
	ID      string
	Engine  *render.Engine
	Store   *store.Store
	LoadErr error

	views *lru.Cache[string, *render.View]
}

// NewView builds a fresh view and keeps it for later toggle and hover calls.
func (d *Dataset) NewView(ctx context.Context) (*render.View, error) {
	if d.Engine == nil {
		return nil, fmt.Errorf("dataset %s: %w", d.ID, d.LoadErr)
	}
	v, err := d.Engine.NewView(ctx, uuid.NewString())
	if err != nil {
		return nil, err
	}
	d.views.Add(v.ID, v)
	return v, nil
}

// View returns a live view by id.
func (d *Dataset) View(id string) (*render.View, bool) {
	return d.views.Get(id)
}

// DatasetRegistry holds the engines of all configured datasets.
type DatasetRegistry struct {
	datasets       map[string]*Dataset
	defaultDataset string
	datasetOrder   []string
	title          string
	viewCacheSize  int
}

// NewDatasetRegistry creates a new dataset registry.
func NewDatasetRegistry(defaultDataset string, order []string, title string, viewCacheSize int) *DatasetRegistry {
	if viewCacheSize <= 0 {
		viewCacheSize = 256
	}
	return &DatasetRegistry{
		datasets:       make(map[string]*Dataset),
		defaultDataset: defaultDataset,
		datasetOrder:   order,
		title:          title,
		viewCacheSize:  viewCacheSize,
	}
}

// Register adds a dataset.
func (r *DatasetRegistry) Register(ds *Dataset) error {
	views, err := lru.New[string, *render.View](r.viewCacheSize)
	if err != nil {
		return fmt.Errorf("failed to create view cache for %s: %w", ds.ID, err)
	}
	ds.views = views
	r.datasets[ds.ID] = ds
	return nil
}

// Get returns a dataset, or nil if not found.
func (r *DatasetRegistry) Get(datasetID string) *Dataset {
	return r.datasets[datasetID]
}

// Default returns the default dataset.
func (r *DatasetRegistry) Default() *Dataset {
	return r.datasets[r.defaultDataset]
}

// DefaultDatasetID returns the default dataset ID.
func (r *DatasetRegistry) DefaultDatasetID() string {
	return r.defaultDataset
}

// DatasetIDs returns all dataset IDs in config order.
func (r *DatasetRegistry) DatasetIDs() []string {
	return r.datasetOrder
}

// Title returns the configured site title.
func (r *DatasetRegistry) Title() string {
	if r.title != "" {
		return r.title
	}
	return "clusterview"
}

// Datasets returns dataset info for all registered datasets.
func (r *DatasetRegistry) Datasets() []DatasetInfo {
	infos := make([]DatasetInfo, 0, len(r.datasetOrder))
	for _, id := range r.datasetOrder {
		ds, ok := r.datasets[id]
		if !ok {
			continue
		}
		info := DatasetInfo{ID: id, Name: id, Loaded: ds.LoadErr == nil}
		if ds.LoadErr != nil {
			info.Error = ds.LoadErr.Error()
		}
		infos = append(infos, info)
	}
	return infos
}

// Close releases every dataset store.
func (r *DatasetRegistry) Close() {
	for _, ds := range r.datasets {
		if ds.Store != nil {
			ds.Store.Close()
		}
	}
}
