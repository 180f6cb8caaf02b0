package automation

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/droidstage/droidstage/internal/adb"
	"github.com/droidstage/droidstage/internal/infrastructure/config"
)

type tapCall struct {
	serial string
	x, y   int
}

// fakeController records device transport calls and plays back canned
// responses. Safe for concurrent use.
type fakeController struct {
	mu       sync.Mutex
	devices  []adb.Device
	listErr  error
	screen   image.Image
	captures int

	// inFlight/maxInFlight track concurrent captures, a proxy for how
	// many workers are simultaneously inside their loop.
	inFlight    int
	maxInFlight int

	// captureErrs are consumed one per capture call.
	captureErrs []error
	// capturePanics makes every capture panic; panicSerial limits the
	// panic to one device.
	capturePanics bool
	panicSerial   string
	// onCapture runs after each capture with the total capture count.
	onCapture func(n int)
	// captureDelay simulates slow capture, honoring ctx.
	captureDelay time.Duration

	taps     []tapCall
	tapErr   error
	commands []string
	cmdErr   error
}

func newFakeController() *fakeController {
	return &fakeController{
		screen: image.NewGray(image.Rect(0, 0, 100, 100)),
	}
}

func (f *fakeController) ListDevices(context.Context) ([]adb.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devices, f.listErr
}

func (f *fakeController) CaptureScreenshot(ctx context.Context, serial string) (image.Image, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.captureDelay > 0 {
		timer := time.NewTimer(f.captureDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	f.mu.Lock()
	f.captures++
	n := f.captures
	var err error
	if len(f.captureErrs) > 0 {
		err = f.captureErrs[0]
		f.captureErrs = f.captureErrs[1:]
	}
	hook := f.onCapture
	panics := f.capturePanics || (f.panicSerial != "" && serial == f.panicSerial)
	screen := f.screen
	f.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if panics {
		panic("capture exploded")
	}
	if err != nil {
		return nil, err
	}
	return screen, nil
}

func (f *fakeController) Tap(_ context.Context, serial string, x, y int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tapErr != nil {
		return f.tapErr
	}
	f.taps = append(f.taps, tapCall{serial: serial, x: x, y: y})
	return nil
}

func (f *fakeController) RunCommand(_ context.Context, _ string, command string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cmdErr != nil {
		return "", f.cmdErr
	}
	f.commands = append(f.commands, command)
	return "", nil
}

func (f *fakeController) tapCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.taps)
}

// recordSink collects published events for assertions.
type recordSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordSink) Publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordSink) byKind(kind EventKind) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, ev := range s.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func TestExecuteStageActions_NoActionsIsNoOp(t *testing.T) {
	ctrl := newFakeController()
	cfg := detectorConfig(config.StageConfig{Name: "idle_screen"})
	e := NewActionExecutor(cfg, ctrl, newFakeTemplates(), newScoreMatcher(), nil, nil)

	if err := e.ExecuteStageActions(context.Background(), "emulator-5554", "idle_screen", testScreen()); err != nil {
		t.Fatalf("ExecuteStageActions() error = %v", err)
	}
	if err := e.ExecuteStageActions(context.Background(), "emulator-5554", "never_configured", testScreen()); err != nil {
		t.Fatalf("ExecuteStageActions() for unconfigured stage error = %v", err)
	}
	if ctrl.tapCount() != 0 || len(ctrl.commands) != 0 {
		t.Error("no-op stages reached the device transport")
	}
}

func TestExecuteStageActions_TapViaTemplateMatch(t *testing.T) {
	tpls := newFakeTemplates()
	matcher := newScoreMatcher()
	start := tpls.add("start_button.png")
	matcher.scores[start] = 0.9
	matcher.locs[start] = image.Pt(98, 198) // 4x4 template, center lands on (100, 200)

	ctrl := newFakeController()
	cfg := detectorConfig(config.StageConfig{
		Name:    "main_menu",
		Actions: []config.Action{{Type: config.ActionTap, Button: "start"}},
	})
	cfg.Buttons = []config.ButtonConfig{{Name: "start", Templates: []string{"start_button.png"}}}
	e := NewActionExecutor(cfg, ctrl, tpls, matcher, nil, nil)

	if err := e.ExecuteStageActions(context.Background(), "emulator-5554", "main_menu", testScreen()); err != nil {
		t.Fatalf("ExecuteStageActions() error = %v", err)
	}

	if len(ctrl.taps) != 1 {
		t.Fatalf("taps = %d, want 1", len(ctrl.taps))
	}
	if got := ctrl.taps[0]; got != (tapCall{serial: "emulator-5554", x: 100, y: 200}) {
		t.Errorf("tap = %+v, want matched center (100, 200)", got)
	}
}

func TestExecuteStageActions_TapFallsBackToStaticCoords(t *testing.T) {
	tpls := newFakeTemplates()
	matcher := newScoreMatcher()
	matcher.scores[tpls.add("skip_button.png")] = 0.2 // below threshold

	ctrl := newFakeController()
	cfg := detectorConfig(config.StageConfig{
		Name:    "ad_screen",
		Actions: []config.Action{{Type: config.ActionTap, Button: "skip"}},
	})
	cfg.Buttons = []config.ButtonConfig{{Name: "skip", Templates: []string{"skip_button.png"}}}
	cfg.Fallbacks = config.FallbackTable{
		"emulator-5554": {"skip": []int{900, 80}},
	}
	e := NewActionExecutor(cfg, ctrl, tpls, matcher, nil, nil)

	if err := e.ExecuteStageActions(context.Background(), "emulator-5554", "ad_screen", testScreen()); err != nil {
		t.Fatalf("ExecuteStageActions() error = %v", err)
	}

	if len(ctrl.taps) != 1 {
		t.Fatalf("taps = %d, want 1", len(ctrl.taps))
	}
	if got := ctrl.taps[0]; got.x != 900 || got.y != 80 {
		t.Errorf("tap = (%d, %d), want fallback coordinates (900, 80)", got.x, got.y)
	}
}

func TestExecuteStageActions_UnresolvableButtonSkipsTap(t *testing.T) {
	ctrl := newFakeController()
	cfg := detectorConfig(config.StageConfig{
		Name:    "popup",
		Actions: []config.Action{{Type: config.ActionTap, Button: "close"}},
	})
	e := NewActionExecutor(cfg, ctrl, newFakeTemplates(), newScoreMatcher(), nil, nil)

	if err := e.ExecuteStageActions(context.Background(), "emulator-5554", "popup", testScreen()); err != nil {
		t.Fatalf("ExecuteStageActions() error = %v", err)
	}
	if ctrl.tapCount() != 0 {
		t.Error("unresolvable button still produced a tap")
	}
}

func TestExecuteStageActions_DryRunSkipsTransport(t *testing.T) {
	ctrl := newFakeController()
	cfg := detectorConfig(config.StageConfig{
		Name: "main_menu",
		Actions: []config.Action{
			{Type: config.ActionTap, Button: "start"},
			{Type: config.ActionCommand, Command: "input keyevent 4"},
		},
	})
	cfg.Worker.DryRun = true
	cfg.Fallbacks = config.FallbackTable{
		"emulator-5554": {"start": []int{540, 1600}},
	}
	e := NewActionExecutor(cfg, ctrl, newFakeTemplates(), newScoreMatcher(), nil, nil)

	if err := e.ExecuteStageActions(context.Background(), "emulator-5554", "main_menu", testScreen()); err != nil {
		t.Fatalf("ExecuteStageActions() error = %v", err)
	}

	if ctrl.tapCount() != 0 {
		t.Error("dry run issued a physical tap")
	}
	if len(ctrl.commands) != 0 {
		t.Error("dry run executed a device command")
	}
}

func TestExecuteStageActions_JitterStaysWithinRadius(t *testing.T) {
	ctrl := newFakeController()
	cfg := detectorConfig(config.StageConfig{
		Name:    "stage",
		Actions: []config.Action{{Type: config.ActionTap, Button: "btn"}},
	})
	cfg.Worker.JitterPx = 5
	cfg.Fallbacks = config.FallbackTable{"serial": {"btn": []int{100, 100}}}
	e := NewActionExecutor(cfg, ctrl, newFakeTemplates(), newScoreMatcher(), nil, nil)

	for i := 0; i < 200; i++ {
		if err := e.ExecuteStageActions(context.Background(), "serial", "stage", testScreen()); err != nil {
			t.Fatalf("ExecuteStageActions() error = %v", err)
		}
	}

	for _, tap := range ctrl.taps {
		if tap.x < 95 || tap.x > 105 || tap.y < 95 || tap.y > 105 {
			t.Fatalf("tap (%d, %d) outside jitter radius 5 around (100, 100)", tap.x, tap.y)
		}
	}
}

func TestExecuteStageActions_ZeroJitterIsExact(t *testing.T) {
	ctrl := newFakeController()
	cfg := detectorConfig(config.StageConfig{
		Name:    "stage",
		Actions: []config.Action{{Type: config.ActionTap, Button: "btn"}},
	})
	cfg.Fallbacks = config.FallbackTable{"serial": {"btn": []int{540, 1600}}}
	e := NewActionExecutor(cfg, ctrl, newFakeTemplates(), newScoreMatcher(), nil, nil)

	for i := 0; i < 20; i++ {
		if err := e.ExecuteStageActions(context.Background(), "serial", "stage", testScreen()); err != nil {
			t.Fatalf("ExecuteStageActions() error = %v", err)
		}
	}

	for _, tap := range ctrl.taps {
		if tap.x != 540 || tap.y != 1600 {
			t.Fatalf("tap (%d, %d) with zero jitter, want exactly (540, 1600)", tap.x, tap.y)
		}
	}
}

func TestExecuteStageActions_FailureDoesNotAbortSequence(t *testing.T) {
	ctrl := newFakeController()
	ctrl.cmdErr = errors.New("exit status 1")
	cfg := detectorConfig(config.StageConfig{
		Name: "stage",
		Actions: []config.Action{
			{Type: config.ActionCommand, Command: "false"},
			{Type: config.ActionTap, Button: "btn"},
		},
	})
	cfg.Fallbacks = config.FallbackTable{"serial": {"btn": []int{10, 10}}}
	sink := &recordSink{}
	e := NewActionExecutor(cfg, ctrl, newFakeTemplates(), newScoreMatcher(), sink, nil)

	if err := e.ExecuteStageActions(context.Background(), "serial", "stage", testScreen()); err != nil {
		t.Fatalf("ExecuteStageActions() error = %v, want nil despite action failure", err)
	}

	if ctrl.tapCount() != 1 {
		t.Error("action after a failed command did not run")
	}

	events := sink.byKind(EventActionExecuted)
	if len(events) != 2 {
		t.Fatalf("action events = %d, want 2", len(events))
	}
	if events[0].Error == "" {
		t.Error("failed action event carries no error")
	}
	if events[1].Error != "" {
		t.Errorf("successful action event carries error %q", events[1].Error)
	}
}

func TestExecuteStageActions_TimedOutCommandDoesNotAbortSequence(t *testing.T) {
	ctrl := newFakeController()
	ctrl.cmdErr = fmt.Errorf("%w: shell: %w", adb.ErrCommandFailed, context.DeadlineExceeded)
	cfg := detectorConfig(config.StageConfig{
		Name: "stage",
		Actions: []config.Action{
			{Type: config.ActionCommand, Command: "input keyevent 25"},
			{Type: config.ActionTap, Button: "btn"},
		},
	})
	cfg.Fallbacks = config.FallbackTable{"serial": {"btn": []int{10, 10}}}
	e := NewActionExecutor(cfg, ctrl, newFakeTemplates(), newScoreMatcher(), nil, nil)

	if err := e.ExecuteStageActions(context.Background(), "serial", "stage", testScreen()); err != nil {
		t.Fatalf("ExecuteStageActions() error = %v, want nil when only the call timed out", err)
	}
	if ctrl.tapCount() != 1 {
		t.Error("action after a timed-out command did not run")
	}
}

func TestExecuteStageActions_WaitHonorsCancellation(t *testing.T) {
	ctrl := newFakeController()
	cfg := detectorConfig(config.StageConfig{
		Name: "stage",
		Actions: []config.Action{
			{Type: config.ActionWait, DurationMS: 5000},
			{Type: config.ActionTap, Button: "btn"},
		},
	})
	cfg.Fallbacks = config.FallbackTable{"serial": {"btn": []int{10, 10}}}
	e := NewActionExecutor(cfg, ctrl, newFakeTemplates(), newScoreMatcher(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := e.ExecuteStageActions(ctx, "serial", "stage", testScreen())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ExecuteStageActions() error = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancellation took %v, want prompt unwind", elapsed)
	}
	if ctrl.tapCount() != 0 {
		t.Error("action after cancellation still ran")
	}
}

func TestExecuteStageActions_WaitCompletes(t *testing.T) {
	ctrl := newFakeController()
	cfg := detectorConfig(config.StageConfig{
		Name:    "stage",
		Actions: []config.Action{{Type: config.ActionWait, DurationMS: 20}},
	})
	e := NewActionExecutor(cfg, ctrl, newFakeTemplates(), newScoreMatcher(), nil, nil)

	start := time.Now()
	if err := e.ExecuteStageActions(context.Background(), "serial", "stage", testScreen()); err != nil {
		t.Fatalf("ExecuteStageActions() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("wait returned after %v, want at least the configured 20ms", elapsed)
	}
}

func TestExecuteStageActions_CommandForwardedVerbatim(t *testing.T) {
	ctrl := newFakeController()
	command := "am start -n com.example/.MainActivity && input keyevent 4"
	cfg := detectorConfig(config.StageConfig{
		Name:    "stage",
		Actions: []config.Action{{Type: config.ActionCommand, Command: command}},
	})
	e := NewActionExecutor(cfg, ctrl, newFakeTemplates(), newScoreMatcher(), nil, nil)

	if err := e.ExecuteStageActions(context.Background(), "serial", "stage", testScreen()); err != nil {
		t.Fatalf("ExecuteStageActions() error = %v", err)
	}

	if len(ctrl.commands) != 1 || ctrl.commands[0] != command {
		t.Errorf("commands = %v, want the exact configured string", ctrl.commands)
	}
}

func TestFindButtonByName(t *testing.T) {
	cfg := detectorConfig()
	cfg.Buttons = []config.ButtonConfig{
		{Name: "start", Templates: []string{"start.png"}},
		{Name: "skip", Templates: []string{"skip.png"}},
	}
	e := NewActionExecutor(cfg, newFakeController(), newFakeTemplates(), newScoreMatcher(), nil, nil)

	if got, ok := e.FindButtonByName("skip"); !ok || got.Name != "skip" {
		t.Errorf("FindButtonByName(skip) = %+v, %v, want the skip button", got, ok)
	}
	if _, ok := e.FindButtonByName("missing"); ok {
		t.Error("FindButtonByName() found a button that is not configured")
	}
}
