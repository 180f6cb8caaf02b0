package adb

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png" // screencap -p emits PNG
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/droidstage/droidstage/internal/infrastructure/config"
	"github.com/droidstage/droidstage/internal/infrastructure/logging"
)

// runner executes one adb invocation and returns its separated output
// streams. Screenshot capture depends on stdout staying binary-clean, so
// stderr is never merged into it. Tests substitute a stub runner.
type runner func(ctx context.Context, path string, args ...string) (stdout, stderr []byte, err error)

// Client is the adb-backed device transport.
//
// Every operation shells out to the adb binary with a per-invocation
// timeout from config. The client itself holds no connection state; the
// adb server owns the device links.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	path    string
	timeout time.Duration
	logger  *logging.Logger
	run     runner
}

// New creates a Client after resolving the adb binary.
//
// Parameters:
//   - cfg: ADB settings (binary name/path, command timeout)
//   - logger: Logger for invocation-level warnings
//
// Returns:
//   - *Client: Ready transport
//   - error: ErrBinaryNotFound if the binary cannot be resolved
func New(cfg config.ADBConfig, logger *logging.Logger) (*Client, error) {
	path, err := exec.LookPath(cfg.Binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrBinaryNotFound, cfg.Binary, err)
	}

	if logger == nil {
		logger = logging.Default()
	}

	return &Client{
		path:    path,
		timeout: time.Duration(cfg.CommandTimeout) * time.Second,
		logger:  logger,
		run:     execRunner,
	}, nil
}

// ListDevices returns every device the adb server knows about, including
// unauthorized and offline entries. Callers filter on Selectable.
func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	stdout, stderr, err := c.invoke(ctx, "devices", "-l")
	if err != nil {
		return nil, commandError("devices", err, stderr)
	}
	return parseDevices(stdout), nil
}

// CaptureScreenshot grabs the current screen of one device as a decoded
// image. exec-out keeps the PNG byte stream unmangled by a pty.
func (c *Client) CaptureScreenshot(ctx context.Context, serial string) (image.Image, error) {
	stdout, stderr, err := c.invoke(ctx, "-s", serial, "exec-out", "screencap", "-p")
	if err != nil {
		return nil, commandError("screencap", err, stderr)
	}

	img, _, err := image.Decode(bytes.NewReader(stdout))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScreenshotDecode, err)
	}
	return img, nil
}

// Tap issues a tap at the given screen coordinates.
func (c *Client) Tap(ctx context.Context, serial string, x, y int) error {
	_, stderr, err := c.invoke(ctx, "-s", serial, "shell", "input", "tap",
		strconv.Itoa(x), strconv.Itoa(y))
	if err != nil {
		return commandError("input tap", err, stderr)
	}
	return nil
}

// RunCommand runs a shell command on the device and returns its output.
// The command string is forwarded verbatim; the device shell does its own
// word splitting. A non-zero exit wraps ErrCommandFailed and still
// carries whatever output was produced.
func (c *Client) RunCommand(ctx context.Context, serial, command string) (string, error) {
	stdout, stderr, err := c.invoke(ctx, "-s", serial, "shell", command)
	output := strings.TrimRight(string(stdout), "\n")
	if err != nil {
		return output, commandError("shell", err, stderr)
	}
	return output, nil
}

// invoke runs adb with the per-invocation timeout applied.
func (c *Client) invoke(ctx context.Context, args ...string) (stdout, stderr []byte, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Debug("adb invocation", "args", strings.Join(args, " "))
	return c.run(ctx, c.path, args...)
}

// commandError wraps an invocation failure with the first line of stderr
// when adb produced one.
func commandError(op string, err error, stderr []byte) error {
	if detail := strings.TrimSpace(string(stderr)); detail != "" {
		return fmt.Errorf("%w: %s: %w (%s)", ErrCommandFailed, op, err, firstLine(detail))
	}
	return fmt.Errorf("%w: %s: %w", ErrCommandFailed, op, err)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
