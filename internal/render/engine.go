// Package render builds the hierarchical cluster grid: ordered top-level
// cluster rows, lazily expanded group members, hit-pattern cell encodings,
// the hover popup and gene-arrow diagrams.
package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clusterview/server/internal/cache"
	"github.com/clusterview/server/internal/model"
	"github.com/clusterview/server/internal/store"
	"github.com/clusterview/server/pkg/colormap"
)

// resolveLimit bounds concurrent store lookups per fan-out.
const resolveLimit = 16

// FragmentCache caches rendered, immutable fragments.
type FragmentCache interface {
	GetFragment(key string) ([]byte, bool)
	SetFragment(key string, data []byte) error
}

// EngineConfig contains engine dependencies.
type EngineConfig struct {
	DatasetID  string
	Store      *store.Store
	Queries    []model.Query
	Clustering [][]int
	Templates  *Templates
	Cache      FragmentCache
	Diagrams   *DiagramRenderer
}

// Engine renders one dataset. It is shared by every view of that dataset.
type Engine struct {
	datasetID  string
	store      *store.Store
	queries    []model.Query
	clustering [][]int
	templates  *Templates
	cache      FragmentCache
	diagrams   *DiagramRenderer
}

// NewEngine creates a rendering engine.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Templates == nil {
		cfg.Templates = MustLoadTemplates()
	}
	if cfg.Diagrams == nil {
		cfg.Diagrams = NewDiagramRenderer(DiagramConfig{})
	}
	return &Engine{
		datasetID:  cfg.DatasetID,
		store:      cfg.Store,
		queries:    cfg.Queries,
		clustering: cfg.Clustering,
		templates:  cfg.Templates,
		cache:      cfg.Cache,
		diagrams:   cfg.Diagrams,
	}
}

// DatasetID returns the dataset this engine renders.
func (e *Engine) DatasetID() string {
	return e.datasetID
}

// Store returns the result store.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Queries returns the query columns.
func (e *Engine) Queries() []model.Query {
	return e.queries
}

// Templates returns the fragment templates.
func (e *Engine) Templates() *Templates {
	return e.templates
}

// Group is a clustering group with its representative's score.
type Group struct {
	// Index is the group's position in the loaded clustering.
	Index      int     `json:"index"`
	ClusterIDs []int   `json:"cluster_ids"`
	Score      float64 `json:"score"`
	// Missing is set when the representative cluster could not be found.
	Missing bool `json:"missing,omitempty"`
}

// Order resolves every group's representative score concurrently and
// returns the groups sorted by score, descending, ties in load order.
// Groups whose representative is missing follow all scored groups.
func (e *Engine) Order(ctx context.Context) ([]Group, error) {
	scores := make([]float64, len(e.clustering))
	resolved := make([]bool, len(e.clustering))
	missing := make([]bool, len(e.clustering))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveLimit)
	for i, ids := range e.clustering {
		if len(ids) == 0 {
			continue
		}
		g.Go(func() error {
			c, err := e.store.Cluster(gctx, ids[0])
			if errors.Is(err, store.ErrNotFound) {
				log.Printf("[Render] group %d has no representative: %v", i, err)
				missing[i] = true
				return nil
			}
			if err != nil {
				return err
			}
			scores[i] = c.Score
			resolved[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to resolve group scores: %w", err)
	}

	groups := make([]Group, 0, len(e.clustering))
	for i, ids := range e.clustering {
		if !resolved[i] && !missing[i] {
			continue
		}
		groups = append(groups, Group{Index: i, ClusterIDs: ids, Score: scores[i], Missing: missing[i]})
	}
	sort.SliceStable(groups, func(a, b int) bool {
		if groups[a].Missing != groups[b].Missing {
			return !groups[a].Missing
		}
		return groups[a].Score > groups[b].Score
	})
	return groups, nil
}

// BuildRow resolves a cluster and its pattern cells into a row. Cluster and
// member rows are built the same way.
func (e *Engine) BuildRow(ctx context.Context, clusterID int, kind RowKind) (*Row, error) {
	c, err := e.store.Cluster(ctx, clusterID)
	if err != nil {
		return nil, err
	}
	cells, err := e.Cells(ctx, c)
	if err != nil {
		return nil, err
	}
	return &Row{Kind: kind, ClusterID: c.ID, Cluster: c, Cells: cells}, nil
}

// Cells builds one pattern cell per query column. Columns are resolved
// concurrently; a column that fails to resolve only affects its own cell.
func (e *Engine) Cells(ctx context.Context, c model.Cluster) ([]Cell, error) {
	key := cache.CellsKey(e.datasetID, c.ID)
	if e.cache != nil {
		if data, ok := e.cache.GetFragment(key); ok {
			var cells []Cell
			if err := json.Unmarshal(data, &cells); err == nil {
				return cells, nil
			}
		}
	}

	cells := make([]Cell, len(c.Hits))
	var g errgroup.Group
	g.SetLimit(resolveLimit)
	for q := range c.Hits {
		g.Go(func() error {
			cells[q] = e.buildCell(ctx, c, q)
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if e.cache != nil && complete(cells) {
		if data, err := json.Marshal(cells); err == nil {
			if err := e.cache.SetFragment(key, data); err != nil {
				log.Printf("[Render] failed to cache cells for cluster %d: %v", c.ID, err)
			}
		}
	}
	return cells, nil
}

func complete(cells []Cell) bool {
	for _, c := range cells {
		if c.State == CellMissing {
			return false
		}
	}
	return true
}

func (e *Engine) buildCell(ctx context.Context, c model.Cluster, q int) Cell {
	cell := Cell{
		ClusterID:  c.ID,
		QueryIndex: q,
		Count:      len(c.Hits[q]),
		State:      CellHidden,
	}
	if cell.Count == 0 {
		return cell
	}

	hits, err := e.store.ResolveColumn(ctx, c, q)
	if err != nil {
		log.Printf("[Render] cell unavailable: %v", err)
		cell.State = CellMissing
		return cell
	}

	maxIdentity := 0.0
	names := make([]string, 0, len(hits))
	for _, h := range hits {
		if id := h.Identity / 100; id > maxIdentity {
			maxIdentity = id
		}
		names = append(names, h.Name)
	}

	rgba, err := colormap.ScoreToColor(maxIdentity)
	if err != nil {
		log.Printf("[Render] cluster %d query %d: %v", c.ID, q, err)
		cell.State = CellMissing
		return cell
	}

	cell.State = CellFilled
	cell.MaxIdentity = maxIdentity
	cell.Background = colormap.CSS(rgba)
	cell.TextColor = colormap.ContrastingTextColor(rgba.R, rgba.G, rgba.B)
	cell.HitNames = names
	return cell
}

// NewView builds a fresh view: every group collapsed, cluster rows in score
// order, rendered sequentially after ordering.
func (e *Engine) NewView(ctx context.Context, id string) (*View, error) {
	groups, err := e.Order(ctx)
	if err != nil {
		return nil, err
	}

	header := make([]string, len(e.queries))
	for i, q := range e.queries {
		header[i] = q.Name
	}

	v := &View{
		ID:        id,
		CreatedAt: time.Now(),
		engine:    e,
		grid:      NewGrid(header),
		byIndex:   make(map[int]*GroupRow, len(groups)),
	}

	rows := make([]*Row, 0, len(groups))
	for _, g := range groups {
		row, err := e.BuildRow(ctx, g.ClusterIDs[0], RowCluster)
		if errors.Is(err, store.ErrNotFound) {
			row = &Row{Kind: RowCluster, ClusterID: g.ClusterIDs[0], Missing: true}
		} else if err != nil {
			return nil, err
		}
		row.ID = v.nextRowID()
		row.Group = g.Index
		gr := &GroupRow{Group: g, Row: row, state: Collapsed}
		v.groups = append(v.groups, gr)
		v.byIndex[g.Index] = gr
		rows = append(rows, row)
	}
	v.grid.Append(rows...)
	return v, nil
}

// Diagram renders the gene-arrow diagram of a cluster as "svg" or "png".
func (e *Engine) Diagram(ctx context.Context, clusterID int, format string) ([]byte, error) {
	if format != "svg" && format != "png" {
		return nil, fmt.Errorf("unsupported diagram format %q: %w", format, store.ErrInvalidArgument)
	}

	key := cache.DiagramKey(e.datasetID, clusterID, format, e.diagrams.ColormapName())
	if e.cache != nil {
		if data, ok := e.cache.GetFragment(key); ok {
			return data, nil
		}
	}

	c, err := e.store.Cluster(ctx, clusterID)
	if err != nil {
		return nil, err
	}
	ids := c.HitIDs()
	hits := make([]model.Hit, 0, len(ids))
	for _, id := range ids {
		h, err := e.store.Hit(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("cluster %d: %w", clusterID, err)
		}
		hits = append(hits, h)
	}

	var data []byte
	if format == "svg" {
		data = []byte(e.diagrams.SVG(hits))
	} else {
		data, err = e.diagrams.PNG(hits)
		if err != nil {
			return nil, err
		}
	}

	if e.cache != nil {
		if err := e.cache.SetFragment(key, data); err != nil {
			log.Printf("[Render] failed to cache diagram for cluster %d: %v", clusterID, err)
		}
	}
	return data, nil
}
