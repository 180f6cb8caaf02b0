package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/droidstage/droidstage/internal/automation"
	"github.com/droidstage/droidstage/internal/device"
)

// executeCommand runs a cobra command with args and returns captured output.
func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// writeTestConfig writes a minimal loadable config into a temp dir and
// returns its path. Defaults fill everything the file omits.
func writeTestConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	content := `
detection:
  template_dir: "` + dir + `"

stages:
  - name: main_menu
    templates: [main.png]
`
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

// =============================================================================
// Command Registration Tests
// =============================================================================

func TestRootCommand_Subcommands(t *testing.T) {
	expected := []string{"run", "devices", "version"}

	registered := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		registered[cmd.Name()] = true
	}

	for _, name := range expected {
		if !registered[name] {
			t.Errorf("expected subcommand %q not registered", name)
		}
	}
}

func TestRunCommand_Flags(t *testing.T) {
	for _, name := range []string{"dry-run", "devices", "debug-artifacts", "timeout"} {
		if runCmd.Flags().Lookup(name) == nil {
			t.Errorf("run command missing flag --%s", name)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(rootCmd, "version")
	if err != nil {
		t.Fatalf("version command error: %v", err)
	}
	if !strings.Contains(out, "droidstage "+build.Version) {
		t.Errorf("version output = %q, want it to contain %q", out, "droidstage "+build.Version)
	}
}

// =============================================================================
// Config Path Resolution Tests
// =============================================================================

func TestConfigPath_FlagWins(t *testing.T) {
	orig := cfgFile
	defer func() { cfgFile = orig }()

	cfgFile = "/from/flag.yaml"
	t.Setenv("DROIDSTAGE_CONFIG", "/from/env.yaml")

	if got := configPath(); got != "/from/flag.yaml" {
		t.Errorf("configPath() = %q, want /from/flag.yaml", got)
	}
}

func TestConfigPath_EnvFallback(t *testing.T) {
	orig := cfgFile
	defer func() { cfgFile = orig }()

	cfgFile = ""
	t.Setenv("DROIDSTAGE_CONFIG", "/from/env.yaml")

	if got := configPath(); got != "/from/env.yaml" {
		t.Errorf("configPath() = %q, want /from/env.yaml", got)
	}
}

func TestConfigPath_Default(t *testing.T) {
	orig := cfgFile
	defer func() { cfgFile = orig }()

	cfgFile = ""
	t.Setenv("DROIDSTAGE_CONFIG", "")

	if got := configPath(); got != "config.yaml" {
		t.Errorf("configPath() = %q, want config.yaml", got)
	}
}

// =============================================================================
// Run Command Tests
// =============================================================================

func TestRun_InvalidConfigPath(t *testing.T) {
	_, err := executeCommand(rootCmd, "run", "--config", "/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("run should fail with nonexistent config path")
	}
}

func TestRun_TimeoutFlagBelowFloor(t *testing.T) {
	cfgPath := writeTestConfig(t)

	_, err := executeCommand(rootCmd, "run", "--config", cfgPath, "--timeout", "500ms")
	if err == nil {
		t.Fatal("run should reject --timeout below 1s")
	}
	if !strings.Contains(err.Error(), "--timeout") {
		t.Errorf("error = %v, want it to mention --timeout", err)
	}
}

func TestRun_TimeoutFlagAccepted(t *testing.T) {
	cfgPath := writeTestConfig(t)

	// The run may still fail later (no adb binary, no devices attached),
	// but never on the flag itself.
	_, err := executeCommand(rootCmd, "run", "--config", cfgPath, "--timeout", "1s")
	if err != nil && strings.Contains(err.Error(), "--timeout") {
		t.Errorf("error = %v, --timeout 1s should pass flag validation", err)
	}
}

// =============================================================================
// Run Report Tests
// =============================================================================

func TestWriteRunReport(t *testing.T) {
	results := []automation.WorkerResult{
		{
			Serial:     "emulator-5554",
			State:      device.StateCompleted,
			Iterations: 12,
			Detections: 3,
			Duration:   4200 * time.Millisecond,
		},
		{
			Serial:   "emulator-5556",
			State:    device.StateFailed,
			Duration: 900 * time.Millisecond,
			Err:      errors.New("screenshot decode failed"),
		},
	}

	var buf bytes.Buffer
	writeRunReport(&buf, results)
	out := buf.String()

	for _, want := range []string{
		"DEVICE", "STATE",
		"emulator-5554", string(device.StateCompleted),
		"emulator-5556", string(device.StateFailed), "screenshot decode failed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}

	// Workers without an error render a placeholder, not an empty cell.
	line := strings.SplitN(out, "emulator-5554", 2)[1]
	line = strings.SplitN(line, "\n", 2)[0]
	if !strings.Contains(line, "-") {
		t.Errorf("nil error should render as -, got line: %s", line)
	}
}

// =============================================================================
// Sink Tests
// =============================================================================

type captureSink struct {
	events []automation.Event
}

func (s *captureSink) Publish(ev automation.Event) {
	s.events = append(s.events, ev)
}

func TestRunStamp_SetsRunID(t *testing.T) {
	capture := &captureSink{}
	sink := runStamp{runID: "run-ab12cd34", next: capture}

	sink.Publish(automation.Event{
		Kind:   automation.EventStageDetected,
		Serial: "emulator-5554",
		Stage:  "main_menu",
	})

	if len(capture.events) != 1 {
		t.Fatalf("forwarded %d events, want 1", len(capture.events))
	}
	got := capture.events[0]
	if got.RunID != "run-ab12cd34" {
		t.Errorf("RunID = %q, want run-ab12cd34", got.RunID)
	}
	if got.Serial != "emulator-5554" || got.Stage != "main_menu" {
		t.Errorf("event fields not preserved: %+v", got)
	}
}
