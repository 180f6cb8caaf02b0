package automation

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/droidstage/droidstage/internal/device"
	"github.com/droidstage/droidstage/internal/infrastructure/config"
	"github.com/droidstage/droidstage/internal/infrastructure/logging"
	"github.com/droidstage/droidstage/internal/vision"
)

// transientBackoffFloor is the minimum delay after a failed iteration.
// Short poll intervals would otherwise hammer a device that is
// mid-reboot or has a wedged adb connection.
const transientBackoffFloor = 2 * time.Second

// Worker runs the capture → detect → act → sleep loop for one device
// until its deadline passes or the shared cancellation signal fires.
//
// Each worker owns its loop state exclusively; the only cross-worker
// touch points are the read-only configuration and the status registry.
type Worker struct {
	serial     string
	controller DeviceController
	detector   *StageDetector
	executor   *ActionExecutor
	registry   *device.Registry
	sink       EventSink
	logger     *logging.Logger

	pollInterval time.Duration
	timeout      time.Duration
	retryLimit   int
	debugDir     string
}

// NewWorker builds a worker for one device serial.
func NewWorker(serial string, cfg *config.Config, controller DeviceController, detector *StageDetector, executor *ActionExecutor, registry *device.Registry, sink EventSink, logger *logging.Logger) *Worker {
	if sink == nil {
		sink = DiscardSink
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{
		serial:       serial,
		controller:   controller,
		detector:     detector,
		executor:     executor,
		registry:     registry,
		sink:         sink,
		logger:       logger.With("device", serial),
		pollInterval: cfg.GetPollInterval(),
		timeout:      cfg.GetDeviceTimeout(),
		retryLimit:   cfg.Worker.RetryLimit,
		debugDir:     cfg.Detection.DebugDir,
	}
}

// Run drives the polling loop until a terminal state is reached and
// returns the worker's final report. The per-device deadline counts
// from this call.
//
// A panic anywhere in the loop is recovered and converts to a Failed
// result for this worker only; sibling workers keep running.
func (w *Worker) Run(ctx context.Context) (result WorkerResult) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("worker panicked",
				"panic", r, "stack", string(debug.Stack()))
			result = w.finish(start, device.StateFailed, fmt.Errorf("automation: worker panic: %v", r))
		}
	}()

	w.logger.Info("worker started",
		"poll_interval_ms", w.pollInterval.Milliseconds(),
		"timeout_s", int(w.timeout.Seconds()))

	for {
		// Cancellation observed between iterations is a clean finish,
		// not an interruption.
		select {
		case <-ctx.Done():
			if timedOut(ctx) {
				return w.finish(start, device.StateTimedOut, nil)
			}
			return w.finish(start, device.StateCompleted, nil)
		default:
		}

		w.registry.RecordPoll(w.serial)

		err := w.iterate(ctx)
		switch {
		case err == nil:
			if sleepErr := w.sleep(ctx, w.pollInterval); sleepErr != nil {
				return w.finish(start, w.interruptedState(ctx), nil)
			}
		case ctx.Err() != nil:
			// Deadline or shared cancellation surfaced mid-iteration.
			return w.finish(start, w.interruptedState(ctx), nil)
		default:
			backoff := w.pollInterval
			if backoff < transientBackoffFloor {
				backoff = transientBackoffFloor
			}
			w.logger.Warn("iteration failed, backing off",
				"error", err, "backoff_ms", backoff.Milliseconds())
			if sleepErr := w.sleep(ctx, backoff); sleepErr != nil {
				return w.finish(start, w.interruptedState(ctx), nil)
			}
		}
	}
}

// iterate runs one capture → detect → act cycle. Run classifies its
// error by the worker context's own state, not the error chain: the
// transport bounds each adb call with its own timeout, so an error can
// carry a deadline while this worker is healthy and should retry.
func (w *Worker) iterate(ctx context.Context) error {
	w.registry.SetState(w.serial, device.StatePolling)
	img, err := w.controller.CaptureScreenshot(ctx, w.serial)
	if err != nil {
		return fmt.Errorf("capturing screenshot: %w", err)
	}
	screen := vision.ToGray(img)

	w.registry.SetState(w.serial, device.StateDetecting)
	det := w.detector.Detect(screen)

	if w.debugDir != "" {
		if path, artErr := vision.WriteArtifact(w.debugDir, w.serial, det.Stage, screen, det.Box); artErr != nil {
			w.logger.Warn("debug artifact write failed", "error", artErr)
		} else {
			w.logger.Debug("debug artifact written", "path", path)
		}
	}

	if det.Unknown() {
		misses := w.registry.RecordMiss(w.serial)
		w.logger.Debug("no stage recognized", "misses", misses)
		if misses >= w.retryLimit {
			w.logger.Warn("stage detection misses reached retry limit",
				"misses", misses, "retry_limit", w.retryLimit)
			w.registry.ResetMisses(w.serial)
		}
		return nil
	}

	w.registry.RecordDetection(w.serial, det.Stage, det.Confidence)
	w.logger.Info("stage detected",
		"stage", det.Stage,
		"confidence", det.Confidence,
		"template", det.Template,
		"scale", det.Scale)
	w.sink.Publish(Event{
		Kind:       EventStageDetected,
		Serial:     w.serial,
		Stage:      det.Stage,
		Confidence: det.Confidence,
		Timestamp:  time.Now().UTC(),
	})

	w.registry.SetState(w.serial, device.StateActing)
	return w.executor.ExecuteStageActions(ctx, w.serial, det.Stage, screen)
}

// sleep pauses between iterations, honoring cancellation.
func (w *Worker) sleep(ctx context.Context, d time.Duration) error {
	w.registry.SetState(w.serial, device.StateSleeping)
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// interruptedState distinguishes the deadline from the shared
// cancellation signal when the loop stops mid-iteration.
func (w *Worker) interruptedState(ctx context.Context) device.WorkerState {
	if timedOut(ctx) {
		return device.StateTimedOut
	}
	return device.StateCancelled
}

func timedOut(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded)
}

// finish records the terminal state, publishes the final event, and
// assembles the worker's report.
func (w *Worker) finish(start time.Time, state device.WorkerState, err error) WorkerResult {
	w.registry.SetState(w.serial, state)
	status, _ := w.registry.Get(w.serial)

	ev := Event{
		Kind:       EventWorkerState,
		Serial:     w.serial,
		State:      string(state),
		Iterations: status.Iterations,
		Detections: status.Detections,
		Timestamp:  time.Now().UTC(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	w.sink.Publish(ev)

	w.logger.Info("worker finished",
		"state", state,
		"iterations", status.Iterations,
		"detections", status.Detections,
		"duration_ms", time.Since(start).Milliseconds())

	return WorkerResult{
		Serial:     w.serial,
		State:      state,
		Iterations: status.Iterations,
		Detections: status.Detections,
		Duration:   time.Since(start),
		Err:        err,
	}
}
