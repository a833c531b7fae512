package render

import (
	"context"
	"html/template"
	"log"
	"strconv"
)

// PageOptions controls full page rendering.
type PageOptions struct {
	Title string
	// BasePath prefixes the view endpoints used by the page script.
	BasePath string
	// Static pages carry every row and need no server.
	Static bool
}

type pageView struct {
	Title    string
	Static   bool
	ViewID   string
	BasePath string
	Header   []string
	Rows     []template.HTML
	Tooltips []tooltipFragment
}

// tooltipFragment is a pre-rendered popup for one cell of a static page,
// keyed "clusterID:queryIndex".
type tooltipFragment struct {
	Key  string
	HTML template.HTML
}

// RenderPage renders the full grid page with the currently visible rows.
// Static pages also carry the popup of every filled cell so hovering works
// without a server.
func (v *View) RenderPage(ctx context.Context, opts PageOptions) ([]byte, error) {
	rows := v.grid.Rows()
	pv := pageView{
		Title:    opts.Title,
		Static:   opts.Static,
		ViewID:   v.ID,
		BasePath: opts.BasePath,
		Header:   v.grid.Header(),
		Rows:     make([]template.HTML, 0, len(rows)),
	}
	for _, r := range rows {
		html, err := v.rowHTML(r, opts.Static)
		if err != nil {
			return nil, err
		}
		pv.Rows = append(pv.Rows, html)
	}
	if opts.Static {
		tooltips, err := v.staticTooltips(ctx, rows)
		if err != nil {
			return nil, err
		}
		pv.Tooltips = tooltips
	}

	html, err := v.engine.templates.Clone(TemplatePage, pv)
	if err != nil {
		return nil, err
	}
	return []byte(html), nil
}

func tooltipKey(clusterID, queryIndex int) string {
	return strconv.Itoa(clusterID) + ":" + strconv.Itoa(queryIndex)
}

// staticTooltips renders one popup per distinct filled cell. A cell whose
// hits cannot be resolved gets no popup.
func (v *View) staticTooltips(ctx context.Context, rows []*Row) ([]tooltipFragment, error) {
	seen := make(map[string]bool)
	var out []tooltipFragment
	for _, r := range rows {
		if r.Missing {
			continue
		}
		for _, cell := range r.Cells {
			if cell.State != CellFilled {
				continue
			}
			key := tooltipKey(cell.ClusterID, cell.QueryIndex)
			if seen[key] {
				continue
			}
			seen[key] = true

			hits, err := v.engine.store.ResolveColumn(ctx, r.Cluster, cell.QueryIndex)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				log.Printf("[Render] no popup for cell %s: %v", key, err)
				continue
			}
			html, err := v.engine.templates.Clone(TemplateTooltip, newTooltipView(&PopupContent{
				ClusterID:  cell.ClusterID,
				QueryIndex: cell.QueryIndex,
				Cluster:    r.Cluster,
				Hits:       hits,
			}))
			if err != nil {
				return nil, err
			}
			out = append(out, tooltipFragment{Key: key, HTML: html})
		}
	}
	return out, nil
}
