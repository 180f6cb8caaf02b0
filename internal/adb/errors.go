package adb

import "errors"

// Sentinel errors for adb transport operations.
var (
	// ErrBinaryNotFound indicates the adb executable could not be resolved.
	ErrBinaryNotFound = errors.New("adb: binary not found")

	// ErrCommandFailed indicates an adb invocation exited non-zero.
	ErrCommandFailed = errors.New("adb: command failed")

	// ErrScreenshotDecode indicates screencap output was not a decodable image.
	ErrScreenshotDecode = errors.New("adb: screenshot decode failed")
)
