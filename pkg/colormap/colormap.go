// Package colormap provides color schemes for cluster visualization.
package colormap

import (
	"errors"
	"fmt"
	"image/color"
	"math"
)

// ErrInvalidScore is returned when a score lies outside [0, 1].
var ErrInvalidScore = errors.New("score must be between 0 and 1")

// Label colors chosen by ContrastingTextColor.
const (
	DarkText  = "#000"
	LightText = "#fff"
)

// luminanceThreshold splits bright backgrounds from dark ones.
const luminanceThreshold = 128

// Colormap maps normalized values [0, 1] to colors.
type Colormap interface {
	At(t float64) color.Color
}

// LinearColormap is a linear interpolation colormap.
type LinearColormap struct {
	colors []color.RGBA
}

// At returns the color at position t (0-1), clamping outside values.
func (c LinearColormap) At(t float64) color.Color {
	return c.rgba(t)
}

func (c LinearColormap) rgba(t float64) color.RGBA {
	if t <= 0 {
		return c.colors[0]
	}
	if t >= 1 {
		return c.colors[len(c.colors)-1]
	}

	idx := t * float64(len(c.colors)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(c.colors) {
		upper = len(c.colors) - 1
	}

	frac := idx - float64(lower)
	return interpolate(c.colors[lower], c.colors[upper], frac)
}

// Channels round to the nearest integer.
func interpolate(c1, c2 color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: uint8(math.Round(float64(c1.R) + t*(float64(c2.R)-float64(c1.R)))),
		G: uint8(math.Round(float64(c1.G) + t*(float64(c2.G)-float64(c1.G)))),
		B: uint8(math.Round(float64(c1.B) + t*(float64(c2.B)-float64(c1.B)))),
		A: 255,
	}
}

// Blues runs from white to dark blue and encodes hit identity.
var Blues = LinearColormap{
	colors: []color.RGBA{
		{255, 255, 255, 255},
		{8, 48, 107, 255},
	},
}

// Viridis colormap (matplotlib viridis)
var Viridis = LinearColormap{
	colors: []color.RGBA{
		{68, 1, 84, 255},
		{72, 35, 116, 255},
		{64, 67, 135, 255},
		{52, 94, 141, 255},
		{41, 120, 142, 255},
		{32, 144, 140, 255},
		{34, 167, 132, 255},
		{68, 190, 112, 255},
		{121, 209, 81, 255},
		{189, 222, 38, 255},
		{253, 231, 37, 255},
	},
}

// Named returns the colormap registered under name.
func Named(name string) (Colormap, bool) {
	switch name {
	case "blues":
		return Blues, true
	case "viridis":
		return Viridis, true
	}
	return nil, false
}

// ScoreToColor interpolates between white (score 0) and dark blue (score 1).
func ScoreToColor(score float64) (color.RGBA, error) {
	if math.IsNaN(score) || score < 0 || score > 1 {
		return color.RGBA{}, fmt.Errorf("%w: got %v", ErrInvalidScore, score)
	}
	return Blues.rgba(score), nil
}

// Luminance computes the BT.601 weighted brightness of a color.
func Luminance(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// ContrastingTextColor picks a label color readable on the given background.
func ContrastingTextColor(r, g, b uint8) string {
	if Luminance(r, g, b) > luminanceThreshold {
		return DarkText
	}
	return LightText
}

// CSS formats c as an opaque rgba() value.
func CSS(c color.RGBA) string {
	return fmt.Sprintf("rgba(%d, %d, %d, 1)", c.R, c.G, c.B)
}

// Hex formats c as #rrggbb.
func Hex(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}
