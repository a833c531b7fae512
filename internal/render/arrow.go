package render

import (
	"strconv"
	"strings"

	"github.com/clusterview/server/internal/model"
)

// Point is a vertex in diagram space: x in bases from the diagram start,
// y in arrow-height units from the top.
type Point struct {
	X, Y float64
}

// Outline is a closed polygon; the last vertex connects back to the first.
type Outline []Point

// IsForward reports whether a strand value is drawn pointing right. Only
// strand 1 counts as forward; -1, 0 and unset all point left.
func IsForward(strand int) bool {
	return strand == 1
}

// GeneArrowOutline returns the five-vertex arrow covering gene, shifted left
// by minStart. The head is arrowHeadWidth wide and is not clamped to the
// gene length.
func GeneArrowOutline(gene model.Hit, minStart int, arrowHeight, arrowHeadWidth float64) Outline {
	mid := arrowHeight / 2
	start := float64(gene.Start - minStart)
	end := float64(gene.End - minStart)

	if IsForward(gene.Strand) {
		bodyEnd := end - arrowHeadWidth
		return Outline{
			{start, 0},
			{bodyEnd, 0},
			{end, mid},
			{bodyEnd, arrowHeight},
			{start, arrowHeight},
		}
	}

	bodyStart := start + arrowHeadWidth
	return Outline{
		{start, mid},
		{bodyStart, 0},
		{end, 0},
		{end, arrowHeight},
		{bodyStart, arrowHeight},
	}
}

// SVGPath formats the outline as SVG path data.
func (o Outline) SVGPath() string {
	if len(o) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range o {
		if i == 0 {
			b.WriteString("M ")
		} else {
			b.WriteString(" L ")
		}
		b.WriteString(formatCoord(p.X))
		b.WriteByte(',')
		b.WriteString(formatCoord(p.Y))
	}
	b.WriteString(" Z")
	return b.String()
}

// Scale returns a copy of the outline with x and y multiplied and shifted.
func (o Outline) Scale(sx, sy, dx, dy float64) Outline {
	out := make(Outline, len(o))
	for i, p := range o {
		out[i] = Point{X: p.X*sx + dx, Y: p.Y*sy + dy}
	}
	return out
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
