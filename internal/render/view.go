package render

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clusterview/server/internal/store"
)

// GroupState is the expansion state of a group.
type GroupState string

const (
	Collapsed GroupState = "collapsed"
	Expanded  GroupState = "expanded"
)

// GroupRow is a group's top-level row plus the member rows it inserted
// while expanded.
type GroupRow struct {
	Group Group
	Row   *Row

	mu      sync.Mutex
	state   GroupState
	members []*Row
}

// State returns the current expansion state.
func (g *GroupRow) State() GroupState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// ToggleLabel is the toggle button text for the current state.
func (g *GroupRow) ToggleLabel() string {
	return toggleLabel(len(g.Group.ClusterIDs), g.State() == Expanded)
}

// ToggleHidden reports whether the toggle is hidden. Single-member groups
// have nothing to expand.
func (g *GroupRow) ToggleHidden() bool {
	return len(g.Group.ClusterIDs) <= 1
}

func (g *GroupRow) toggleView() toggleView {
	return toggleView{
		Label:    g.ToggleLabel(),
		Hidden:   g.ToggleHidden(),
		Expanded: g.State() == Expanded,
	}
}

// View is one session's grid: the visible rows, the group states and the
// hover popup.
type View struct {
	ID        string
	CreatedAt time.Time

	engine  *Engine
	grid    *Grid
	groups  []*GroupRow
	byIndex map[int]*GroupRow
	rowSeq  atomic.Uint64

	popup atomic.Pointer[Popup]
}

func (v *View) nextRowID() string {
	return rowID(v.rowSeq.Add(1))
}

// Engine returns the engine that built the view.
func (v *View) Engine() *Engine {
	return v.engine
}

// Grid returns the visible rows.
func (v *View) Grid() *Grid {
	return v.grid
}

// Groups returns the groups in display order.
func (v *View) Groups() []*GroupRow {
	return v.groups
}

// Group returns a group by its clustering index.
func (v *View) Group(index int) (*GroupRow, bool) {
	g, ok := v.byIndex[index]
	return g, ok
}

// RowIDs returns the ids of the visible rows in order.
func (v *View) RowIDs() []string {
	rows := v.grid.Rows()
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids
}

// ToggleResult describes the grid change made by a toggle.
type ToggleResult struct {
	Group  int        `json:"group"`
	State  GroupState `json:"state"`
	Label  string     `json:"label"`
	Hidden bool       `json:"hidden"`
	// Anchor is the id of the group's cluster row.
	Anchor   string   `json:"anchor"`
	Inserted []*Row   `json:"-"`
	Removed  []string `json:"removed,omitempty"`
}

// Toggle expands a collapsed group or collapses an expanded one.
func (v *View) Toggle(ctx context.Context, groupIndex int) (*ToggleResult, error) {
	g, ok := v.byIndex[groupIndex]
	if !ok {
		return nil, fmt.Errorf("group %d: %w", groupIndex, store.ErrNotFound)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	res := &ToggleResult{Group: groupIndex, Anchor: g.Row.ID, Hidden: g.ToggleHidden()}
	if g.ToggleHidden() {
		res.State = g.state
		res.Label = toggleLabel(len(g.Group.ClusterIDs), g.state == Expanded)
		return res, nil
	}

	switch g.state {
	case Expanded:
		v.grid.Remove(g.members)
		for _, m := range g.members {
			res.Removed = append(res.Removed, m.ID)
		}
		g.members = nil
		g.state = Collapsed
	default:
		members, err := v.resolveMembers(ctx, g)
		if err != nil {
			return nil, err
		}
		if err := v.grid.InsertAfter(g.Row, members); err != nil {
			return nil, fmt.Errorf("group %d: %w", groupIndex, err)
		}
		g.members = members
		g.state = Expanded
		res.Inserted = members
	}
	res.State = g.state
	res.Label = toggleLabel(len(g.Group.ClusterIDs), g.state == Expanded)
	return res, nil
}

// resolveMembers builds every member row after the representative, in
// group order. Members that cannot be found become placeholder rows.
func (v *View) resolveMembers(ctx context.Context, g *GroupRow) ([]*Row, error) {
	ids := g.Group.ClusterIDs[1:]
	rows := make([]*Row, len(ids))

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(resolveLimit)
	for i, id := range ids {
		eg.Go(func() error {
			row, err := v.engine.BuildRow(egctx, id, RowMember)
			if errors.Is(err, store.ErrNotFound) {
				log.Printf("[Render] group %d member %d unavailable: %v", g.Group.Index, id, err)
				row = &Row{Kind: RowMember, ClusterID: id, Missing: true}
				err = nil
			}
			if err != nil {
				return err
			}
			rows[i] = row
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("failed to expand group %d: %w", g.Group.Index, err)
	}

	for _, r := range rows {
		r.ID = v.nextRowID()
		r.ParentID = g.Row.ID
		r.Group = g.Group.Index
	}
	return rows, nil
}

// ExpandAll expands every collapsed group.
func (v *View) ExpandAll(ctx context.Context) error {
	for _, g := range v.groups {
		if g.ToggleHidden() || g.State() == Expanded {
			continue
		}
		if _, err := v.Toggle(ctx, g.Group.Index); err != nil {
			return err
		}
	}
	return nil
}

// RowHTML renders a visible row as a fragment.
func (v *View) RowHTML(r *Row) (template.HTML, error) {
	return v.rowHTML(r, false)
}

// rowHTML renders r. Static pages show every toggle collapsed; the page
// script reveals member rows client-side.
func (v *View) rowHTML(r *Row, static bool) (template.HTML, error) {
	if r.Kind == RowMember {
		return v.engine.templates.Clone(TemplateMemberRow, r.view(toggleView{}))
	}
	g, ok := v.byIndex[r.Group]
	if !ok {
		return "", fmt.Errorf("row %s: group %d: %w", r.ID, r.Group, store.ErrNotFound)
	}
	tv := g.toggleView()
	if static {
		tv.Expanded = false
		tv.Label = toggleLabel(len(g.Group.ClusterIDs), false)
	}
	return v.engine.templates.Clone(TemplateClusterRow, r.view(tv))
}

// RowsHTML renders rows in order.
func (v *View) RowsHTML(rows []*Row) ([]template.HTML, error) {
	out := make([]template.HTML, 0, len(rows))
	for _, r := range rows {
		html, err := v.RowHTML(r)
		if err != nil {
			return nil, err
		}
		out = append(out, html)
	}
	return out, nil
}
