package vision

import (
	"errors"
	"image"
	"testing"
)

// scriptedMatcher returns canned results in call order and records the
// template it was handed each time.
type scriptedMatcher struct {
	scores []float64
	locs   []image.Point
	errs   []error
	calls  int
	tpls   []*image.Gray
}

func (m *scriptedMatcher) Match(_, tpl *image.Gray) (float64, image.Point, error) {
	i := m.calls
	m.calls++
	m.tpls = append(m.tpls, tpl)
	var (
		score float64
		loc   image.Point
		err   error
	)
	if i < len(m.scores) {
		score = m.scores[i]
	}
	if i < len(m.locs) {
		loc = m.locs[i]
	}
	if i < len(m.errs) {
		err = m.errs[i]
	}
	return score, loc, err
}

func TestFindBestMatch_PicksHighestScore(t *testing.T) {
	m := &scriptedMatcher{scores: []float64{0.82, 0.91, 0.85}}
	screen := image.NewGray(image.Rect(0, 0, 200, 200))
	tpl := gradientTemplate(20, 20)

	got := FindBestMatch(m, screen, tpl, 0.8, []float64{1.0, 0.8, 1.2}, nil)

	if !got.Found {
		t.Fatal("FindBestMatch() found nothing, want match at scale 0.8")
	}
	if got.Confidence != 0.91 {
		t.Errorf("Confidence = %v, want 0.91", got.Confidence)
	}
	if got.Scale != 0.8 {
		t.Errorf("Scale = %v, want 0.8", got.Scale)
	}
	if m.calls != 3 {
		t.Errorf("matcher calls = %d, want all 3 scales tried", m.calls)
	}
}

func TestFindBestMatch_ThresholdIsExclusive(t *testing.T) {
	m := &scriptedMatcher{scores: []float64{0.8}}
	screen := image.NewGray(image.Rect(0, 0, 100, 100))
	tpl := gradientTemplate(10, 10)

	got := FindBestMatch(m, screen, tpl, 0.8, []float64{1.0}, nil)
	if got.Found {
		t.Errorf("FindBestMatch() = %+v, want no match when score equals threshold", got)
	}
}

func TestFindBestMatch_NothingAboveThreshold(t *testing.T) {
	m := &scriptedMatcher{scores: []float64{0.3, 0.5, 0.1}}
	screen := image.NewGray(image.Rect(0, 0, 100, 100))
	tpl := gradientTemplate(10, 10)

	got := FindBestMatch(m, screen, tpl, 0.8, []float64{1.0, 0.8, 1.2}, nil)
	if got.Found {
		t.Errorf("FindBestMatch() = %+v, want no match", got)
	}
	if got.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0 on miss", got.Confidence)
	}
}

func TestFindBestMatch_TieKeepsEarlierScale(t *testing.T) {
	m := &scriptedMatcher{scores: []float64{0.9, 0.9}}
	screen := image.NewGray(image.Rect(0, 0, 100, 100))
	tpl := gradientTemplate(10, 10)

	got := FindBestMatch(m, screen, tpl, 0.8, []float64{1.0, 0.8}, nil)
	if !got.Found || got.Scale != 1.0 {
		t.Errorf("FindBestMatch() scale = %v, want first scale kept on tie", got.Scale)
	}
}

func TestFindBestMatch_ErrorAtOneScaleContinues(t *testing.T) {
	m := &scriptedMatcher{
		scores: []float64{0, 0.88},
		errs:   []error{errors.New("window failure"), nil},
	}
	screen := image.NewGray(image.Rect(0, 0, 100, 100))
	tpl := gradientTemplate(10, 10)

	got := FindBestMatch(m, screen, tpl, 0.8, []float64{1.0, 0.8}, nil)
	if !got.Found {
		t.Fatal("FindBestMatch() found nothing, want match from surviving scale")
	}
	if got.Scale != 0.8 || got.Confidence != 0.88 {
		t.Errorf("FindBestMatch() = %+v, want confidence 0.88 at scale 0.8", got)
	}
}

func TestFindBestMatch_SkipsOversizeScale(t *testing.T) {
	m := &scriptedMatcher{scores: []float64{0.9}}
	screen := image.NewGray(image.Rect(0, 0, 30, 30))
	tpl := gradientTemplate(20, 20)

	// Scale 2.0 would make the template 40x40 and outgrow the screen.
	got := FindBestMatch(m, screen, tpl, 0.8, []float64{2.0, 1.0}, nil)
	if m.calls != 1 {
		t.Errorf("matcher calls = %d, want oversize scale skipped before matching", m.calls)
	}
	if !got.Found || got.Scale != 1.0 {
		t.Errorf("FindBestMatch() = %+v, want match at scale 1.0", got)
	}
}

func TestFindBestMatch_IdentityScaleSkipsResize(t *testing.T) {
	m := &scriptedMatcher{scores: []float64{0.9, 0.9}}
	screen := image.NewGray(image.Rect(0, 0, 100, 100))
	tpl := gradientTemplate(10, 10)

	FindBestMatch(m, screen, tpl, 0.8, []float64{1.0, 0.5}, nil)

	if len(m.tpls) != 2 {
		t.Fatalf("matcher calls = %d, want 2", len(m.tpls))
	}
	if m.tpls[0] != tpl {
		t.Error("scale 1.0 resized the template, want original passed through")
	}
	if m.tpls[1] == tpl {
		t.Error("scale 0.5 passed the original template, want resized copy")
	}
	if got := m.tpls[1].Bounds(); got.Dx() != 5 || got.Dy() != 5 {
		t.Errorf("scale 0.5 template = %v, want 5x5", got)
	}
}

func TestFindBestMatch_CenterFromScaledDims(t *testing.T) {
	m := &scriptedMatcher{
		scores: []float64{0.95},
		locs:   []image.Point{image.Pt(10, 20)},
	}
	screen := image.NewGray(image.Rect(0, 0, 100, 100))
	tpl := gradientTemplate(8, 6)

	got := FindBestMatch(m, screen, tpl, 0.8, []float64{1.0}, nil)
	if !got.Found {
		t.Fatal("FindBestMatch() found nothing")
	}
	if want := image.Pt(14, 23); got.Center != want {
		t.Errorf("Center = %v, want %v", got.Center, want)
	}
	if want := image.Rect(10, 20, 18, 26); got.Box != want {
		t.Errorf("Box = %v, want %v", got.Box, want)
	}
}

func TestFindBestMatch_EndToEndWithNCC(t *testing.T) {
	tpl := gradientTemplate(16, 12)
	at := image.Pt(30, 44)
	screen := screenWithTemplate(120, 100, tpl, at)

	got := FindBestMatch(NCCMatcher{}, screen, tpl, 0.8, []float64{1.0, 0.8, 1.2}, nil)
	if !got.Found {
		t.Fatal("FindBestMatch() found nothing, want planted template")
	}
	if got.Scale != 1.0 {
		t.Errorf("Scale = %v, want exact-size match to win", got.Scale)
	}
	if want := image.Pt(at.X+8, at.Y+6); got.Center != want {
		t.Errorf("Center = %v, want %v", got.Center, want)
	}
	if got.Confidence < 0.99 {
		t.Errorf("Confidence = %v, want near 1.0", got.Confidence)
	}
}

func TestResize(t *testing.T) {
	tests := []struct {
		name  string
		w, h  int
		scale float64
		wantW int
		wantH int
	}{
		{"downscale", 10, 10, 0.5, 5, 5},
		{"upscale", 10, 10, 1.2, 12, 12},
		{"rounding", 7, 5, 0.8, 6, 4},
		{"floor of one", 2, 2, 0.1, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resize(gradientTemplate(tt.w, tt.h), tt.scale)
			if got.Bounds().Dx() != tt.wantW || got.Bounds().Dy() != tt.wantH {
				t.Errorf("Resize(%dx%d, %v) = %v, want %dx%d",
					tt.w, tt.h, tt.scale, got.Bounds(), tt.wantW, tt.wantH)
			}
		})
	}
}
