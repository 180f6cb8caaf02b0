// Package adb is the device transport: every interaction with an Android
// device goes through the adb command-line tool.
//
// # Architecture
//
//	┌────────────┐   exec    ┌─────────────┐   usb/tcp   ┌─────────┐
//	│ adb.Client │──────────▶│ adb server  │────────────▶│ device  │
//	└────────────┘           └─────────────┘             └─────────┘
//
// The client is stateless: the adb server daemon (started by the binary
// itself) owns device connections, so each operation is a short-lived
// invocation with its own timeout. There is no resident child process to
// supervise.
//
// # Operations
//
//   - ListDevices: `adb devices -l`, parsed including unauthorized and
//     offline entries so callers can report why a device was skipped
//   - CaptureScreenshot: `adb exec-out screencap -p`, decoded before
//     return so a truncated transfer surfaces as an error here
//   - Tap: `adb shell input tap X Y`
//   - RunCommand: `adb shell <command>`, forwarded verbatim
//
// # Error Handling
//
// Non-zero exits wrap ErrCommandFailed with the first stderr line.
// Undecodable screenshots wrap ErrScreenshotDecode. Both are transient
// from the caller's perspective: workers log, back off, and retry.
package adb
