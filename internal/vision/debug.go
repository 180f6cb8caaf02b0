package vision

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/draw"
)

// artifactBoxColor is the overlay color for detection boxes.
var artifactBoxColor = color.RGBA{R: 255, G: 64, B: 64, A: 255}

// WriteArtifact saves an annotated copy of a screenshot for offline
// review. When box is non-empty it is drawn as a border overlay; an empty
// box still produces an artifact so missed detections can be inspected
// too. Returns the written file path.
func WriteArtifact(dir, serial, stage string, screen image.Image, box image.Rectangle) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("vision: creating artifact dir: %w", err)
	}

	b := screen.Bounds()
	annotated := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(annotated, annotated.Bounds(), screen, b.Min, draw.Src)

	if !box.Empty() {
		drawBox(annotated, box.Sub(b.Min))
	}

	name := fmt.Sprintf("%s_%s_%s.png",
		sanitizeFilename(serial),
		sanitizeFilename(stage),
		time.Now().Format("20060102_150405.000"))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("vision: creating artifact: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, annotated); err != nil {
		return "", fmt.Errorf("vision: encoding artifact: %w", err)
	}
	return path, nil
}

// drawBox paints a 3px border rectangle clipped to the image.
func drawBox(img *image.RGBA, box image.Rectangle) {
	const border = 3
	box = box.Intersect(img.Bounds())
	if box.Empty() {
		return
	}

	for t := 0; t < border; t++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			setClipped(img, x, box.Min.Y+t)
			setClipped(img, x, box.Max.Y-1-t)
		}
		for y := box.Min.Y; y < box.Max.Y; y++ {
			setClipped(img, box.Min.X+t, y)
			setClipped(img, box.Max.X-1-t, y)
		}
	}
}

func setClipped(img *image.RGBA, x, y int) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, artifactBoxColor)
	}
}

// sanitizeFilename replaces characters that are awkward in filenames.
// TCP serials like 192.168.1.50:5555 carry colons.
func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer(":", "-", "/", "-", "\\", "-", " ", "_")
	return replacer.Replace(s)
}
