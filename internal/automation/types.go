package automation

import (
	"context"
	"image"
	"time"

	"github.com/droidstage/droidstage/internal/adb"
	"github.com/droidstage/droidstage/internal/device"
)

// StageUnknown is the sentinel stage name reported when no configured
// stage clears the match threshold. It never has actions attached.
const StageUnknown = "unknown"

// StageDetection is the outcome of one stage scan over a screenshot.
// Confidence 0 with StageUnknown means nothing was recognized.
type StageDetection struct {
	Stage      string
	Confidence float64
	Template   string
	Box        image.Rectangle
	Scale      float64
}

// Unknown reports whether the detection found no configured stage.
func (d StageDetection) Unknown() bool {
	return d.Stage == StageUnknown
}

// WorkerResult is the terminal report of one device worker.
type WorkerResult struct {
	Serial     string
	State      device.WorkerState
	Iterations int
	Detections int
	Duration   time.Duration
	Err        error
}

// DeviceController is the device transport surface the engine needs.
// *adb.Client satisfies it; tests substitute fakes.
type DeviceController interface {
	// ListDevices reports connected devices and their authorization state.
	ListDevices(ctx context.Context) ([]adb.Device, error)

	// CaptureScreenshot grabs and decodes the current screen.
	CaptureScreenshot(ctx context.Context, serial string) (image.Image, error)

	// Tap issues a tap at absolute screen coordinates.
	Tap(ctx context.Context, serial string, x, y int) error

	// RunCommand forwards a shell command verbatim to the device.
	RunCommand(ctx context.Context, serial, command string) (string, error)
}

// TemplateSource resolves template names to decoded grayscale images.
// *vision.Store satisfies it.
type TemplateSource interface {
	Get(name string) (*image.Gray, error)
}
