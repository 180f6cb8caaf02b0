package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/droidstage/droidstage/internal/device"
	"github.com/droidstage/droidstage/internal/infrastructure/config"
	"github.com/droidstage/droidstage/internal/infrastructure/logging"
)

// Scheduler launches one worker per selected device under a global
// concurrency cap and waits for every worker to reach a terminal state.
type Scheduler struct {
	cfg        *config.Config
	controller DeviceController
	detector   *StageDetector
	executor   *ActionExecutor
	registry   *device.Registry
	sink       EventSink
	logger     *logging.Logger
}

// NewScheduler wires a scheduler from the run configuration and its
// collaborators. A nil sink discards events.
func NewScheduler(cfg *config.Config, controller DeviceController, detector *StageDetector, executor *ActionExecutor, registry *device.Registry, sink EventSink, logger *logging.Logger) *Scheduler {
	if sink == nil {
		sink = DiscardSink
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		cfg:        cfg,
		controller: controller,
		detector:   detector,
		executor:   executor,
		registry:   registry,
		sink:       sink,
		logger:     logger,
	}
}

// RunAll discovers devices, applies the configured allowlist, and runs
// one worker per eligible device. At most MaxWorkers workers are inside
// their polling loop at any instant; the rest wait for a slot. RunAll
// returns after every launched worker has terminated.
//
// Returns:
//   - []WorkerResult: Per-device terminal reports, in selection order
//   - error: ErrNoStages or device.ErrNoDevices before any worker
//     starts; device discovery failures are wrapped
func (s *Scheduler) RunAll(ctx context.Context) ([]WorkerResult, error) {
	if len(s.cfg.Stages) == 0 {
		return nil, ErrNoStages
	}

	devices, err := s.controller.ListDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	serials := device.Select(devices, s.cfg.Worker.Devices)
	if missing := device.Missing(devices, s.cfg.Worker.Devices); len(missing) > 0 {
		s.logger.Warn("allowlisted devices not available", "serials", missing)
	}
	if len(serials) == 0 {
		return nil, device.ErrNoDevices
	}

	models := make(map[string]string, len(devices))
	for _, d := range devices {
		models[d.Serial] = d.Model
	}

	s.logger.Info("run starting",
		"devices", len(serials),
		"max_workers", s.cfg.Worker.MaxWorkers,
		"dry_run", s.cfg.Worker.DryRun)

	start := time.Now()
	sem := semaphore.NewWeighted(int64(s.cfg.Worker.MaxWorkers))
	results := make([]WorkerResult, len(serials))
	var wg sync.WaitGroup

	for i, serial := range serials {
		s.registry.Register(serial, models[serial])

		wg.Add(1)
		go func(idx int, serial string) {
			defer wg.Done()

			// The admission gate keeps at most MaxWorkers inside their
			// loop. The device deadline starts after admission, so
			// waiting for a slot costs a device none of its run time.
			if err := sem.Acquire(ctx, 1); err != nil {
				s.logger.Info("cancelled before acquiring worker slot", "device", serial)
				s.registry.SetState(serial, device.StateCancelled)
				results[idx] = WorkerResult{Serial: serial, State: device.StateCancelled}
				s.sink.Publish(Event{
					Kind:      EventWorkerState,
					Serial:    serial,
					State:     string(device.StateCancelled),
					Timestamp: time.Now().UTC(),
				})
				return
			}
			defer sem.Release(1)

			w := NewWorker(serial, s.cfg, s.controller, s.detector, s.executor, s.registry, s.sink, s.logger)
			results[idx] = w.Run(ctx)
		}(i, serial)
	}

	wg.Wait()

	byState := make(map[device.WorkerState]int, len(results))
	for _, r := range results {
		byState[r.State]++
	}
	s.logger.Info("run finished",
		"devices", len(results),
		"completed", byState[device.StateCompleted],
		"timed_out", byState[device.StateTimedOut],
		"cancelled", byState[device.StateCancelled],
		"failed", byState[device.StateFailed],
		"duration_ms", time.Since(start).Milliseconds())

	return results, nil
}
