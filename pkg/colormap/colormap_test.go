package colormap

import (
	"errors"
	"image/color"
	"testing"
)

func TestScoreToColorEndpoints(t *testing.T) {
	t.Parallel()

	c0, err := ScoreToColor(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c0 != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Fatalf("unexpected ScoreToColor(0): %#v", c0)
	}

	c1, err := ScoreToColor(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c1 != (color.RGBA{R: 8, G: 48, B: 107, A: 255}) {
		t.Fatalf("unexpected ScoreToColor(1): %#v", c1)
	}
}

func TestScoreToColorRounding(t *testing.T) {
	t.Parallel()

	// 255 + (8-255)*0.5 = 131.5, 255 + (48-255)*0.5 = 151.5, 255 + (107-255)*0.5 = 181
	c, err := ScoreToColor(0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := color.RGBA{R: 132, G: 152, B: 181, A: 255}
	if c != want {
		t.Fatalf("expected %#v, got %#v", want, c)
	}
}

func TestScoreToColorMonotonic(t *testing.T) {
	t.Parallel()

	prev, _ := ScoreToColor(0)
	for i := 1; i <= 100; i++ {
		c, err := ScoreToColor(float64(i) / 100)
		if err != nil {
			t.Fatalf("unexpected error at %d: %v", i, err)
		}
		if c.R > prev.R || c.G > prev.G || c.B > prev.B {
			t.Fatalf("channels increased between %d and %d: %#v -> %#v", i-1, i, prev, c)
		}
		prev = c
	}
}

func TestScoreToColorOutOfRange(t *testing.T) {
	t.Parallel()

	for _, s := range []float64{-0.01, 1.5, 100} {
		if _, err := ScoreToColor(s); !errors.Is(err, ErrInvalidScore) {
			t.Errorf("expected ErrInvalidScore for %v, got %v", s, err)
		}
	}
}

func TestContrastingTextColor(t *testing.T) {
	t.Parallel()

	if got := ContrastingTextColor(8, 48, 107); got != LightText {
		t.Errorf("expected light text on dark blue, got %q", got)
	}
	if got := ContrastingTextColor(255, 255, 255); got != DarkText {
		t.Errorf("expected dark text on white, got %q", got)
	}
	if got := ContrastingTextColor(120, 120, 120); got != LightText {
		t.Errorf("expected light text on grey, got %q", got)
	}
}

func TestNamedAndFormatting(t *testing.T) {
	t.Parallel()

	cm, ok := Named("viridis")
	if !ok {
		t.Fatal("expected viridis to be registered")
	}
	if got := Hex(cm.At(0)); got != "#440154" {
		t.Errorf("unexpected viridis start: %s", got)
	}
	if _, ok := Named("jet"); ok {
		t.Error("did not expect jet to be registered")
	}
	if got := CSS(color.RGBA{R: 8, G: 48, B: 107}); got != "rgba(8, 48, 107, 1)" {
		t.Errorf("unexpected css: %s", got)
	}
}
