package render

import (
	"bytes"
	"fmt"
	"html"
	"image/color"
	"image/png"
	"strings"
	"sync"

	"github.com/fogleman/gg"

	"github.com/clusterview/server/internal/model"
	"github.com/clusterview/server/pkg/colormap"
)

// diagramPadding is the extra width to the right of the last gene.
const diagramPadding = 50

// DiagramConfig contains diagram renderer configuration.
type DiagramConfig struct {
	// Width and Height are the PNG size in pixels.
	Width          int
	Height         int
	ArrowHeight    float64
	ArrowHeadWidth float64
	Colormap       string
}

// DiagramRenderer draws gene-arrow diagrams of a cluster's hits.
type DiagramRenderer struct {
	config      DiagramConfig
	cmap        colormap.Colormap
	contextPool sync.Pool
	bufferPool  sync.Pool
}

// NewDiagramRenderer creates a diagram renderer. Zero config fields take
// their defaults.
func NewDiagramRenderer(cfg DiagramConfig) *DiagramRenderer {
	if cfg.Width <= 0 {
		cfg.Width = 800
	}
	if cfg.Height <= 0 {
		cfg.Height = 60
	}
	if cfg.ArrowHeight <= 0 {
		cfg.ArrowHeight = 100
	}
	if cfg.ArrowHeadWidth <= 0 {
		cfg.ArrowHeadWidth = 50
	}
	cmap, ok := colormap.Named(cfg.Colormap)
	if !ok {
		cfg.Colormap = "blues"
		cmap = colormap.Blues
	}

	return &DiagramRenderer{
		config: cfg,
		cmap:   cmap,
		contextPool: sync.Pool{
			New: func() interface{} {
				return gg.NewContext(cfg.Width, cfg.Height)
			},
		},
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 16*1024))
			},
		},
	}
}

// ColormapName returns the fill colormap in use.
func (r *DiagramRenderer) ColormapName() string {
	return r.config.Colormap
}

func span(hits []model.Hit) (minStart, maxEnd int) {
	if len(hits) == 0 {
		return 0, 0
	}
	minStart, maxEnd = hits[0].Start, hits[0].End
	for _, h := range hits[1:] {
		minStart = min(minStart, h.Start)
		maxEnd = max(maxEnd, h.End)
	}
	return minStart, maxEnd
}

func (r *DiagramRenderer) fill(h model.Hit) color.Color {
	t := h.Identity / 100
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return r.cmap.At(t)
}

// SVG returns a standalone SVG document with one arrow path per hit. The
// view box starts at the leftmost gene.
func (r *DiagramRenderer) SVG(hits []model.Hit) string {
	minStart, maxEnd := span(hits)
	width := maxEnd - minStart + diagramPadding

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %s">`,
		width, formatCoord(r.config.ArrowHeight))
	for _, h := range hits {
		outline := GeneArrowOutline(h, minStart, r.config.ArrowHeight, r.config.ArrowHeadWidth)
		fmt.Fprintf(&b, `<path class="gene-%s" d="%s" fill="%s" stroke="#000" stroke-width="1"/>`,
			html.EscapeString(h.Name), outline.SVGPath(), colormap.Hex(r.fill(h)))
	}
	b.WriteString("</svg>")
	return b.String()
}

// PNG rasterizes the diagram at the configured size.
func (r *DiagramRenderer) PNG(hits []model.Hit) ([]byte, error) {
	dc := r.contextPool.Get().(*gg.Context)
	defer r.contextPool.Put(dc)

	dc.SetColor(color.White)
	dc.Clear()

	minStart, maxEnd := span(hits)
	if len(hits) > 0 {
		sx := float64(r.config.Width) / float64(maxEnd-minStart+diagramPadding)
		sy := float64(r.config.Height) / r.config.ArrowHeight
		for _, h := range hits {
			outline := GeneArrowOutline(h, minStart, r.config.ArrowHeight, r.config.ArrowHeadWidth).Scale(sx, sy, 0, 0)
			dc.NewSubPath()
			for i, p := range outline {
				if i == 0 {
					dc.MoveTo(p.X, p.Y)
				} else {
					dc.LineTo(p.X, p.Y)
				}
			}
			dc.ClosePath()
			dc.SetColor(r.fill(h))
			dc.FillPreserve()
			dc.SetColor(color.Black)
			dc.SetLineWidth(1)
			dc.Stroke()
		}
	}

	return r.encodeContext(dc)
}

func (r *DiagramRenderer) encodeContext(dc *gg.Context) ([]byte, error) {
	buf := r.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		r.bufferPool.Put(buf)
	}()

	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, dc.Image()); err != nil {
		return nil, err
	}

	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}
