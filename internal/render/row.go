package render

import (
	"container/list"
	"html/template"
	"strconv"
	"strings"

	"github.com/clusterview/server/internal/model"
)

// RowKind distinguishes top-level cluster rows from group member rows.
type RowKind string

const (
	RowCluster RowKind = "cluster"
	RowMember  RowKind = "member"
)

// CellState is the visual state of a pattern cell.
type CellState string

const (
	// CellFilled cells are colored by max identity.
	CellFilled CellState = "blue"
	// CellHidden cells have no hits.
	CellHidden CellState = "hidden"
	// CellMissing cells could not be resolved.
	CellMissing CellState = "missing"
)

// Cell is one query column of a row's hit pattern.
type Cell struct {
	ClusterID   int       `json:"cluster_id"`
	QueryIndex  int       `json:"query_index"`
	Count       int       `json:"count"`
	State       CellState `json:"state"`
	MaxIdentity float64   `json:"max_identity,omitempty"`
	Background  string    `json:"background,omitempty"`
	TextColor   string    `json:"text_color,omitempty"`
	HitNames    []string  `json:"hit_names,omitempty"`
}

// Row is a handle to one rendered grid row. Rows are compared by identity.
type Row struct {
	ID        string
	Kind      RowKind
	ParentID  string
	Group     int
	ClusterID int
	Cluster   model.Cluster
	Cells     []Cell
	// Missing rows stand in for clusters that could not be resolved.
	Missing bool

	owner *Grid
	elem  *list.Element
}

type cellView struct {
	ClusterID  int
	QueryIndex int
	Count      int
	State      CellState
	Style      template.CSS
	Title      string
}

type toggleView struct {
	Label    string
	Hidden   bool
	Expanded bool
}

type rowView struct {
	ID            string
	ParentID      string
	Group         int
	ClusterID     int
	Missing       bool
	Organism      string
	OrganismShort string
	Strain        string
	Scaffold      string
	ScaffoldURL   string
	Start         int
	End           int
	Length        int
	Score         string
	Cells         []cellView
	Toggle        toggleView
}

func (r *Row) view(toggle toggleView) rowView {
	c := r.Cluster
	v := rowView{
		ID:            r.ID,
		ParentID:      r.ParentID,
		Group:         r.Group,
		ClusterID:     r.ClusterID,
		Missing:       r.Missing,
		Organism:      c.OrganismName,
		OrganismShort: ShortenOrganismName(c.OrganismName),
		Strain:        c.OrganismStrain,
		Scaffold:      c.Scaffold,
		ScaffoldURL:   ScaffoldURL(c.Scaffold, c.Start, c.End),
		Start:         c.Start,
		End:           c.End,
		Length:        c.Length(),
		Score:         fixed2(c.Score),
		Toggle:        toggle,
	}
	for _, cell := range r.Cells {
		cv := cellView{
			ClusterID:  cell.ClusterID,
			QueryIndex: cell.QueryIndex,
			Count:      cell.Count,
			State:      cell.State,
			Title:      strings.Join(cell.HitNames, ", "),
		}
		if cell.State == CellFilled {
			cv.Style = template.CSS("background-color: " + cell.Background + "; color: " + cell.TextColor)
		}
		v.Cells = append(v.Cells, cv)
	}
	return v
}

func rowID(seq uint64) string {
	return "row-" + strconv.FormatUint(seq, 10)
}
