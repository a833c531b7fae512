package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clusterview/server/internal/model"
)

func TestGeneArrowOutlineForward(t *testing.T) {
	gene := model.Hit{Start: 100, End: 400, Strand: 1}
	got := GeneArrowOutline(gene, 100, 100, 50)

	assert.Equal(t, Outline{{0, 0}, {250, 0}, {300, 50}, {250, 100}, {0, 100}}, got)
	assert.Equal(t, "M 0,0 L 250,0 L 300,50 L 250,100 L 0,100 Z", got.SVGPath())
}

func TestGeneArrowOutlineReverse(t *testing.T) {
	gene := model.Hit{Start: 500, End: 900, Strand: -1}
	got := GeneArrowOutline(gene, 100, 100, 50)

	assert.Equal(t, Outline{{400, 50}, {450, 0}, {800, 0}, {800, 100}, {450, 100}}, got)
}

func TestGeneArrowOutlineUnsetStrandPointsLeft(t *testing.T) {
	for _, strand := range []int{0, -1, 2} {
		got := GeneArrowOutline(model.Hit{Start: 0, End: 10, Strand: strand}, 0, 10, 5)
		assert.Equal(t, Point{0, 5}, got[0], "strand %d", strand)
	}
	assert.True(t, IsForward(1))
	assert.False(t, IsForward(0))
}

func TestGeneArrowHeadNotClamped(t *testing.T) {
	got := GeneArrowOutline(model.Hit{Start: 0, End: 20, Strand: 1}, 0, 10, 50)
	assert.Equal(t, -30.0, got[1].X)
}

func TestOutlineScale(t *testing.T) {
	o := Outline{{10, 20}}
	assert.Equal(t, Outline{{6, 42}}, o.Scale(0.5, 2, 1, 2))
	assert.Equal(t, "", Outline{}.SVGPath())
}

func TestShortenOrganismName(t *testing.T) {
	tests := map[string]string{
		"Escherichia coli":           "E. coli",
		"Escherichia coli str. K-12": "E. coli",
		"Bacterium":                  "Bacterium",
		"":                           "",
	}
	for in, want := range tests {
		assert.Equal(t, want, ShortenOrganismName(in), in)
	}
}

func TestScaffoldURL(t *testing.T) {
	assert.Equal(t,
		"https://www.ncbi.nlm.nih.gov/nuccore/NC_000913?from=100&report=graph&to=1300",
		ScaffoldURL("NC_000913", 100, 1300))
}

func TestToggleLabel(t *testing.T) {
	assert.Equal(t, "▼ 4", toggleLabel(4, false))
	assert.Equal(t, "▲ 4", toggleLabel(4, true))
}
