package vision

import (
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/droidstage/droidstage/internal/infrastructure/logging"
)

// Match is the outcome of a multi-scale template search. Box is the
// matched region at the winning scale, in screen coordinates.
type Match struct {
	Found      bool
	Center     image.Point
	Box        image.Rectangle
	Confidence float64
	Scale      float64
}

// scaleIdentityTolerance is how close a scale factor must be to 1.0 for
// the resize step to be skipped entirely.
const scaleIdentityTolerance = 1e-3

// FindBestMatch searches for the template at each scale factor in order
// and returns the best candidate that clears the threshold.
//
// Per scale: the template is resized (skipped near 1.0), scales whose
// resized template exceeds the screen are skipped, and a matcher error at
// one scale is logged and the search continues with the rest. A candidate
// replaces the current best only when its score exceeds both the
// threshold and the best score so far, so equal scores keep the earlier
// scale. The returned scale is always one of the supplied factors.
func FindBestMatch(m Matcher, screen, tpl *image.Gray, threshold float64, scales []float64, logger *logging.Logger) Match {
	if logger == nil {
		logger = logging.Default()
	}

	var best Match
	for _, scale := range scales {
		scaled := tpl
		if math.Abs(scale-1.0) >= scaleIdentityTolerance {
			scaled = Resize(tpl, scale)
		}

		if scaled.Bounds().Dx() > screen.Bounds().Dx() || scaled.Bounds().Dy() > screen.Bounds().Dy() {
			continue
		}

		score, loc, err := m.Match(screen, scaled)
		if err != nil {
			logger.Warn("template match failed at scale", "scale", scale, "error", err)
			continue
		}

		if score > threshold && score > best.Confidence {
			w, h := scaled.Bounds().Dx(), scaled.Bounds().Dy()
			best = Match{
				Found:      true,
				Center:     image.Point{X: loc.X + w/2, Y: loc.Y + h/2},
				Box:        image.Rect(loc.X, loc.Y, loc.X+w, loc.Y+h),
				Confidence: score,
				Scale:      scale,
			}
		}
	}

	return best
}

// Resize scales a grayscale image by the given factor. Dimensions round
// to the nearest pixel and never fall below 1.
func Resize(src *image.Gray, scale float64) *image.Gray {
	w := int(math.Round(float64(src.Bounds().Dx()) * scale))
	h := int(math.Round(float64(src.Bounds().Dy()) * scale))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}
