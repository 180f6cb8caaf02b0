package vision

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

// gradientTemplate builds a textured template whose pattern is unlikely
// to correlate with a flat background.
func gradientTemplate(w, h int) *image.Gray {
	tpl := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			tpl.SetGray(x, y, color.Gray{Y: uint8((x*31 + y*17) % 251)})
		}
	}
	return tpl
}

// screenWithTemplate plants tpl into a uniform screen at the given point.
func screenWithTemplate(sw, sh int, tpl *image.Gray, at image.Point) *image.Gray {
	screen := image.NewGray(image.Rect(0, 0, sw, sh))
	for i := range screen.Pix {
		screen.Pix[i] = 128
	}
	for y := 0; y < tpl.Bounds().Dy(); y++ {
		for x := 0; x < tpl.Bounds().Dx(); x++ {
			screen.SetGray(at.X+x, at.Y+y, tpl.GrayAt(x, y))
		}
	}
	return screen
}

func TestNCCMatcher_FindsPlantedTemplate(t *testing.T) {
	tpl := gradientTemplate(16, 12)
	at := image.Pt(37, 21)
	screen := screenWithTemplate(120, 80, tpl, at)

	score, loc, err := NCCMatcher{}.Match(screen, tpl)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}

	if score < 0.99 {
		t.Errorf("Match() score = %v, want near 1.0 for exact plant", score)
	}
	if loc != at {
		t.Errorf("Match() location = %v, want %v", loc, at)
	}
}

func TestNCCMatcher_FlatTemplateScoresZero(t *testing.T) {
	flat := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range flat.Pix {
		flat.Pix[i] = 42
	}
	screen := gradientTemplate(64, 64)

	score, _, err := NCCMatcher{}.Match(screen, flat)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if score != 0 {
		t.Errorf("Match() score for flat template = %v, want 0", score)
	}
}

func TestNCCMatcher_TemplateTooLarge(t *testing.T) {
	screen := image.NewGray(image.Rect(0, 0, 10, 10))
	tpl := gradientTemplate(20, 20)

	_, _, err := NCCMatcher{}.Match(screen, tpl)
	if !errors.Is(err, ErrTemplateTooLarge) {
		t.Errorf("Match() error = %v, want ErrTemplateTooLarge", err)
	}
}

func TestNCCMatcher_StrideAlignedHit(t *testing.T) {
	tpl := gradientTemplate(16, 16)
	at := image.Pt(40, 24) // on the stride-2 grid
	screen := screenWithTemplate(100, 100, tpl, at)

	score, loc, err := NCCMatcher{Stride: 2}.Match(screen, tpl)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if score < 0.99 || loc != at {
		t.Errorf("Match() = %v at %v, want near-1.0 at %v", score, loc, at)
	}
}

func TestNCCMatcher_ShiftedOriginInputs(t *testing.T) {
	tpl := gradientTemplate(8, 8)
	at := image.Pt(12, 9)
	base := screenWithTemplate(48, 40, tpl, at)

	// Re-home the screen at a non-zero origin; results must not change.
	shifted := image.NewGray(image.Rect(100, 200, 148, 240))
	for y := 0; y < 40; y++ {
		for x := 0; x < 48; x++ {
			shifted.SetGray(100+x, 200+y, base.GrayAt(x, y))
		}
	}

	score, loc, err := NCCMatcher{}.Match(shifted, tpl)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if score < 0.99 || loc != at {
		t.Errorf("Match() = %v at %v, want near-1.0 at %v", score, loc, at)
	}
}

func TestToGray(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 6, 4))
	rgba.Set(2, 1, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	g := ToGray(rgba)
	if g.Bounds().Dx() != 6 || g.Bounds().Dy() != 4 {
		t.Fatalf("ToGray() bounds = %v, want 6x4", g.Bounds())
	}
	if g.GrayAt(2, 1).Y < 200 {
		t.Errorf("ToGray() white pixel = %d, want bright", g.GrayAt(2, 1).Y)
	}

	// Gray input already at the origin passes through.
	if got := ToGray(g); got != g {
		t.Error("ToGray() copied an already-normalized gray image")
	}
}
