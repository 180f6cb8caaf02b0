package automation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/droidstage/droidstage/internal/adb"
	"github.com/droidstage/droidstage/internal/device"
	"github.com/droidstage/droidstage/internal/infrastructure/config"
)

func newTestScheduler(cfg *config.Config, ctrl *fakeController, tpls *fakeTemplates, matcher *scoreMatcher) (*Scheduler, *device.Registry) {
	registry := device.NewRegistry()
	detector := NewStageDetector(cfg, tpls, matcher, nil)
	executor := NewActionExecutor(cfg, ctrl, tpls, matcher, nil, nil)
	return NewScheduler(cfg, ctrl, detector, executor, registry, nil, nil), registry
}

func connectedDevices(serials ...string) []adb.Device {
	devices := make([]adb.Device, len(serials))
	for i, s := range serials {
		devices[i] = adb.Device{Serial: s, State: adb.StateDevice}
	}
	return devices
}

func TestScheduler_NoStages(t *testing.T) {
	cfg := detectorConfig()
	cfg.Stages = nil
	s, _ := newTestScheduler(cfg, newFakeController(), newFakeTemplates(), newScoreMatcher())

	_, err := s.RunAll(context.Background())
	if !errors.Is(err, ErrNoStages) {
		t.Errorf("RunAll() error = %v, want ErrNoStages", err)
	}
}

func TestScheduler_NoEligibleDevices(t *testing.T) {
	cfg := detectorConfig(config.StageConfig{Name: "s", Templates: []string{"t.png"}})
	ctrl := newFakeController()
	ctrl.devices = []adb.Device{
		{Serial: "locked", State: adb.StateUnauthorized},
		{Serial: "gone", State: adb.StateOffline},
	}
	s, _ := newTestScheduler(cfg, ctrl, newFakeTemplates(), newScoreMatcher())

	_, err := s.RunAll(context.Background())
	if !errors.Is(err, device.ErrNoDevices) {
		t.Errorf("RunAll() error = %v, want device.ErrNoDevices", err)
	}
}

func TestScheduler_ListDevicesError(t *testing.T) {
	cfg := detectorConfig(config.StageConfig{Name: "s", Templates: []string{"t.png"}})
	ctrl := newFakeController()
	ctrl.listErr = errors.New("adb server not running")
	s, _ := newTestScheduler(cfg, ctrl, newFakeTemplates(), newScoreMatcher())

	_, err := s.RunAll(context.Background())
	if err == nil || !errors.Is(err, ctrl.listErr) {
		t.Errorf("RunAll() error = %v, want wrapped list error", err)
	}
}

func TestScheduler_AllowlistRestrictsRun(t *testing.T) {
	cfg := detectorConfig(config.StageConfig{Name: "s", Templates: []string{"t.png"}})
	cfg.Worker.Devices = []string{"b"}
	ctrl := newFakeController()
	ctrl.devices = connectedDevices("a", "b", "c")

	s, registry := newTestScheduler(cfg, ctrl, newFakeTemplates(), newScoreMatcher())

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // workers finish immediately with Completed

	results, err := s.RunAll(ctx)
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}
	if len(results) != 1 || results[0].Serial != "b" {
		t.Fatalf("RunAll() results = %+v, want only device b", results)
	}
	if registry.Count() != 1 {
		t.Errorf("registry count = %d, want 1", registry.Count())
	}
}

func TestScheduler_ConcurrencyCap(t *testing.T) {
	cfg := detectorConfig(config.StageConfig{Name: "s", Templates: []string{"t.png"}})
	cfg.Worker.MaxWorkers = 2
	cfg.Worker.PollIntervalMS = 5

	ctrl := newFakeController()
	ctrl.devices = connectedDevices("d1", "d2", "d3", "d4", "d5", "d6")
	ctrl.captureDelay = 20 * time.Millisecond

	s, _ := newTestScheduler(cfg, ctrl, newFakeTemplates(), newScoreMatcher())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(300 * time.Millisecond)
		cancel()
	}()

	results, err := s.RunAll(ctx)
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}
	if len(results) != 6 {
		t.Fatalf("results = %d, want 6", len(results))
	}

	ctrl.mu.Lock()
	max := ctrl.maxInFlight
	ctrl.mu.Unlock()
	if max > 2 {
		t.Errorf("max concurrent captures = %d, want at most the worker cap 2", max)
	}
	if max == 0 {
		t.Error("no captures observed, cap assertion proves nothing")
	}
}

func TestScheduler_ReturnsAfterAllWorkersTerminal(t *testing.T) {
	cfg := detectorConfig(config.StageConfig{Name: "s", Templates: []string{"t.png"}})
	cfg.Worker.PollIntervalMS = 5
	ctrl := newFakeController()
	ctrl.devices = connectedDevices("d1", "d2", "d3")

	s, registry := newTestScheduler(cfg, ctrl, newFakeTemplates(), newScoreMatcher())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	results, err := s.RunAll(ctx)
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}

	for _, r := range results {
		if !r.State.Terminal() {
			t.Errorf("worker %s returned non-terminal state %q", r.Serial, r.State)
		}
	}
	for _, st := range registry.List() {
		if !st.State.Terminal() {
			t.Errorf("registry still shows %s in state %q after RunAll returned", st.Serial, st.State)
		}
	}
}

func TestScheduler_PanickingWorkerDoesNotAffectSiblings(t *testing.T) {
	cfg := detectorConfig(config.StageConfig{Name: "s", Templates: []string{"t.png"}})
	cfg.Worker.PollIntervalMS = 5
	ctrl := newFakeController()
	ctrl.devices = connectedDevices("healthy-1", "doomed", "healthy-2")
	ctrl.panicSerial = "doomed"

	s, _ := newTestScheduler(cfg, ctrl, newFakeTemplates(), newScoreMatcher())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(60 * time.Millisecond)
		cancel()
	}()

	results, err := s.RunAll(ctx)
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}

	states := make(map[string]device.WorkerState, len(results))
	for _, r := range results {
		states[r.Serial] = r.State
	}
	if states["doomed"] != device.StateFailed {
		t.Errorf("doomed worker state = %q, want %q", states["doomed"], device.StateFailed)
	}
	for _, serial := range []string{"healthy-1", "healthy-2"} {
		if states[serial] == device.StateFailed {
			t.Errorf("sibling %s failed alongside the panicking worker", serial)
		}
	}
}
