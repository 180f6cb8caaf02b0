// Droidstage - stage-aware Android device automation.
//
// This is the main entry point for the droidstage binary. Droidstage
// polls connected Android devices over adb, recognises the UI stage
// each device is showing via template matching, and dispatches the
// actions configured for that stage. It is built for:
//   - Unattended fleet runs (one worker per device, bounded concurrency)
//   - Deterministic shutdown (interrupt finishes cleanly, deadline caps runaway devices)
//   - Observability while running (REST/WebSocket status, MQTT, InfluxDB)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/droidstage/droidstage/internal/cli"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

func main() {
	// Cancels on Ctrl+C and SIGTERM so workers shut down gracefully
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	info := cli.BuildInfo{Version: version, Commit: commit, Date: date}
	if err := cli.Execute(ctx, info); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
