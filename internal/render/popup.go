package render

import (
	"context"
	"errors"
	"html/template"
	"strconv"
	"sync"

	"github.com/clusterview/server/internal/model"
)

// ErrSuperseded is returned by a hover that a newer hover replaced before
// it finished.
var ErrSuperseded = errors.New("hover superseded")

// popupOffset is the distance between the hovered cell and the popup.
const popupOffset = 10

// Position is a point in page pixels.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PopupContent is what the popup currently shows.
type PopupContent struct {
	ClusterID  int           `json:"cluster_id"`
	QueryIndex int           `json:"query_index"`
	Cluster    model.Cluster `json:"cluster"`
	Hits       []model.Hit   `json:"hits"`
	Position   Position      `json:"position"`
	HTML       template.HTML `json:"-"`
}

// Popup is the single hover popup of a view. Only the latest hover may
// replace its content.
type Popup struct {
	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	content    *PopupContent
}

// begin starts a new hover, cancelling the previous one.
func (p *Popup) begin(ctx context.Context) (context.Context, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
	p.generation++
	hctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	return hctx, p.generation
}

// commit stores content if gen is still the latest hover.
func (p *Popup) commit(gen uint64, content *PopupContent) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		return false
	}
	p.content = content
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	return true
}

// Content returns the displayed content, or nil before the first hover.
func (p *Popup) Content() *PopupContent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.content
}

// Popup returns the view's popup, creating it on first use.
func (v *View) Popup() *Popup {
	if p := v.popup.Load(); p != nil {
		return p
	}
	v.popup.CompareAndSwap(nil, &Popup{})
	return v.popup.Load()
}

// HasPopup reports whether the popup was created.
func (v *View) HasPopup() bool {
	return v.popup.Load() != nil
}

type tooltipRow struct {
	Header   bool
	Name     string
	Start    string
	End      string
	Identity string
	Coverage string
	Bitscore string
	Evalue   string
}

type tooltipView struct {
	Left        string
	Top         string
	Organism    string
	Strain      string
	Scaffold    string
	ScaffoldURL string
	Rows        []tooltipRow
}

// Hover resolves the hits of one cell and shows them in the popup next to
// anchor. If another hover starts before this one finishes, ErrSuperseded
// is returned and the popup keeps the newer content.
func (v *View) Hover(ctx context.Context, clusterID, queryIndex int, anchor Position) (*PopupContent, error) {
	p := v.Popup()
	hctx, gen := p.begin(ctx)

	st := v.engine.store
	c, err := st.Cluster(hctx, clusterID)
	if err != nil {
		return nil, hoverErr(p, gen, err)
	}
	hits, err := st.ResolveColumn(hctx, c, queryIndex)
	if err != nil {
		return nil, hoverErr(p, gen, err)
	}

	content := &PopupContent{
		ClusterID:  clusterID,
		QueryIndex: queryIndex,
		Cluster:    c,
		Hits:       hits,
		Position:   Position{X: anchor.X + popupOffset, Y: anchor.Y + popupOffset},
	}
	content.HTML, err = v.engine.templates.Clone(TemplateTooltip, newTooltipView(content))
	if err != nil {
		return nil, err
	}

	if !p.commit(gen, content) {
		return nil, ErrSuperseded
	}
	return content, nil
}

// latest reports whether gen is the newest hover.
func (p *Popup) latest(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return gen == p.generation
}

func hoverErr(p *Popup, gen uint64, err error) error {
	if !p.latest(gen) {
		return ErrSuperseded
	}
	return err
}

func newTooltipView(c *PopupContent) tooltipView {
	tv := tooltipView{
		Left:        strconv.FormatFloat(c.Position.X, 'f', -1, 64),
		Top:         strconv.FormatFloat(c.Position.Y, 'f', -1, 64),
		Organism:    c.Cluster.OrganismName,
		Strain:      c.Cluster.OrganismStrain,
		Scaffold:    c.Cluster.Scaffold,
		ScaffoldURL: ScaffoldURL(c.Cluster.Scaffold, c.Cluster.Start, c.Cluster.End),
	}
	tv.Rows = append(tv.Rows, tooltipRow{
		Header:   true,
		Name:     "Name",
		Start:    "Start",
		End:      "End",
		Identity: "Identity",
		Coverage: "Coverage",
		Bitscore: "Bitscore",
		Evalue:   "E-value",
	})
	for _, h := range c.Hits {
		tv.Rows = append(tv.Rows, tooltipRow{
			Name:     h.Name,
			Start:    strconv.Itoa(h.Start),
			End:      strconv.Itoa(h.End),
			Identity: fixed2(h.Identity),
			Coverage: fixed2(h.Coverage),
			Bitscore: strconv.FormatFloat(h.Bitscore, 'f', -1, 64),
			Evalue:   fixed2(h.Evalue),
		})
	}
	return tv
}
