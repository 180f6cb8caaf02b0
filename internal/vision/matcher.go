package vision

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Matcher scores a template against a screen image.
//
// Implementations return the peak correlation score and the top-left
// location of the window that produced it. Higher scores mean more
// similar; normalized correlation semantics put perfect matches near 1.0.
type Matcher interface {
	Match(screen, tpl *image.Gray) (float64, image.Point, error)
}

// NCCMatcher implements Matcher with zero-mean normalized cross-correlation
// over a sliding window. Pure Go, grayscale input.
type NCCMatcher struct {
	// Stride is the sliding-window step in pixels. 1 checks every
	// position; larger values trade localisation accuracy for speed.
	// Values below 1 are treated as 1.
	Stride int
}

// Match scans every window position and returns the best raw NCC score in
// [-1, 1] with its top-left location. Callers decide what score counts as
// a match; thresholds are applied upstream.
//
// A template with zero variance (a flat patch) correlates with nothing
// meaningful and scores 0 at the origin.
func (m NCCMatcher) Match(screen, tpl *image.Gray) (float64, image.Point, error) {
	if screen == nil || tpl == nil {
		return 0, image.Point{}, fmt.Errorf("vision: match requires both images")
	}

	// Row access below indexes Pix directly; views with a shifted origin
	// are re-normalized first.
	screen = normalized(screen)
	tpl = normalized(tpl)

	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
	tw, th := tpl.Bounds().Dx(), tpl.Bounds().Dy()
	if tw > sw || th > sh {
		return 0, image.Point{}, fmt.Errorf("%w: %dx%d against %dx%d", ErrTemplateTooLarge, tw, th, sw, sh)
	}
	if tw == 0 || th == 0 {
		return 0, image.Point{}, fmt.Errorf("vision: empty template")
	}

	stride := m.Stride
	if stride < 1 {
		stride = 1
	}

	// Template deviations are position-independent, compute once.
	tdev, tnorm := templateStats(tpl)
	if tnorm == 0 {
		return 0, image.Point{}, nil
	}

	best := math.Inf(-1)
	var bestAt image.Point

	for wy := 0; wy+th <= sh; wy += stride {
		for wx := 0; wx+tw <= sw; wx += stride {
			score := windowScore(screen, wx, wy, tw, th, tdev, tnorm)
			if score > best {
				best = score
				bestAt = image.Point{X: wx, Y: wy}
			}
		}
	}

	return best, bestAt, nil
}

// templateStats returns per-pixel deviations from the template mean and
// the L2 norm of those deviations.
func templateStats(tpl *image.Gray) ([]float64, float64) {
	tw, th := tpl.Bounds().Dx(), tpl.Bounds().Dy()
	n := tw * th
	dev := make([]float64, n)

	var sum float64
	for j := 0; j < th; j++ {
		row := tpl.Pix[j*tpl.Stride : j*tpl.Stride+tw]
		for i := 0; i < tw; i++ {
			sum += float64(row[i])
		}
	}
	mean := sum / float64(n)

	var ss float64
	k := 0
	for j := 0; j < th; j++ {
		row := tpl.Pix[j*tpl.Stride : j*tpl.Stride+tw]
		for i := 0; i < tw; i++ {
			d := float64(row[i]) - mean
			dev[k] = d
			ss += d * d
			k++
		}
	}

	return dev, math.Sqrt(ss)
}

// windowScore computes the zero-mean NCC of one screen window against the
// precomputed template deviations.
func windowScore(screen *image.Gray, wx, wy, tw, th int, tdev []float64, tnorm float64) float64 {
	n := float64(tw * th)

	var sum float64
	for j := 0; j < th; j++ {
		off := (wy+j)*screen.Stride + wx
		row := screen.Pix[off : off+tw]
		for i := 0; i < tw; i++ {
			sum += float64(row[i])
		}
	}
	mean := sum / n

	var num, ss float64
	k := 0
	for j := 0; j < th; j++ {
		off := (wy+j)*screen.Stride + wx
		row := screen.Pix[off : off+tw]
		for i := 0; i < tw; i++ {
			d := float64(row[i]) - mean
			num += d * tdev[k]
			ss += d * d
			k++
		}
	}
	if ss == 0 {
		// Flat window against a textured template: no correlation.
		return 0
	}

	return num / (math.Sqrt(ss) * tnorm)
}

// ToGray converts any image to grayscale with a zero origin, the form the
// matcher and resizer operate on. Gray inputs already at the origin pass
// through unchanged.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}

// normalized rebases a grayscale image to a zero origin.
func normalized(g *image.Gray) *image.Gray {
	if g.Bounds().Min == (image.Point{}) {
		return g
	}
	out := image.NewGray(image.Rect(0, 0, g.Bounds().Dx(), g.Bounds().Dy()))
	draw.Draw(out, out.Bounds(), g, g.Bounds().Min, draw.Src)
	return out
}
