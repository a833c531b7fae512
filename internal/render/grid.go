package render

import (
	"container/list"
	"errors"
	"sync"
)

// ErrNotInGrid is returned when an anchor row is not part of the grid.
var ErrNotInGrid = errors.New("row is not in the grid")

// Grid is the ordered list of visible rows plus the query header.
// Insertions happen in whole batches so no partial group is ever visible.
type Grid struct {
	mu     sync.RWMutex
	rows   *list.List
	header []string
}

// NewGrid creates an empty grid with one header label per query.
func NewGrid(header []string) *Grid {
	return &Grid{rows: list.New(), header: header}
}

// Header returns the query labels.
func (g *Grid) Header() []string {
	return g.header
}

// Append adds rows at the end of the grid.
func (g *Grid) Append(rows ...*Row) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range rows {
		r.elem = g.rows.PushBack(r)
		r.owner = g
	}
}

// InsertAfter places rows, in order, immediately after anchor.
func (g *Grid) InsertAfter(anchor *Row, rows []*Row) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if anchor.owner != g || anchor.elem == nil {
		return ErrNotInGrid
	}
	mark := anchor.elem
	for _, r := range rows {
		mark = g.rows.InsertAfter(r, mark)
		r.elem = mark
		r.owner = g
	}
	return nil
}

// Remove detaches rows from the grid. Rows not in the grid are ignored.
func (g *Grid) Remove(rows []*Row) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range rows {
		if r.owner != g || r.elem == nil {
			continue
		}
		g.rows.Remove(r.elem)
		r.elem = nil
		r.owner = nil
	}
}

// Rows returns a snapshot of the visible rows in order.
func (g *Grid) Rows() []*Row {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Row, 0, g.rows.Len())
	for e := g.rows.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*Row))
	}
	return out
}

// Len returns the number of visible rows.
func (g *Grid) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rows.Len()
}
