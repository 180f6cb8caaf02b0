package automation

import (
	"context"
	"fmt"
	"image"
	"math/rand/v2"
	"time"

	"github.com/droidstage/droidstage/internal/infrastructure/config"
	"github.com/droidstage/droidstage/internal/infrastructure/logging"
	"github.com/droidstage/droidstage/internal/vision"
)

// ActionExecutor dispatches the configured action sequence for a
// detected stage: taps resolved via button templates or static fallback
// coordinates, cancellable waits, and verbatim device commands.
//
// One action's failure is logged and does not abort the remaining
// actions. Only context cancellation stops a sequence early.
type ActionExecutor struct {
	controller DeviceController
	templates  TemplateSource
	matcher    vision.Matcher
	actions    map[string][]config.Action
	buttons    []config.ButtonConfig
	fallbacks  config.FallbackTable
	threshold  float64
	scales     []float64
	jitter     int
	dryRun     bool
	sink       EventSink
	logger     *logging.Logger
}

// NewActionExecutor builds an executor from the run configuration.
// A nil sink discards events.
func NewActionExecutor(cfg *config.Config, controller DeviceController, templates TemplateSource, matcher vision.Matcher, sink EventSink, logger *logging.Logger) *ActionExecutor {
	if sink == nil {
		sink = DiscardSink
	}
	if logger == nil {
		logger = logging.Default()
	}

	actions := make(map[string][]config.Action, len(cfg.Stages))
	for _, stage := range cfg.Stages {
		actions[stage.Name] = stage.Actions
	}

	return &ActionExecutor{
		controller: controller,
		templates:  templates,
		matcher:    matcher,
		actions:    actions,
		buttons:    cfg.Buttons,
		fallbacks:  cfg.Fallbacks,
		threshold:  cfg.Detection.MatchThreshold,
		scales:     cfg.Detection.Scales,
		jitter:     cfg.Worker.JitterPx,
		dryRun:     cfg.Worker.DryRun,
		sink:       sink,
		logger:     logger,
	}
}

// ExecuteStageActions runs the action list configured for the stage, in
// order. A stage with no actions is a no-op. The screen is the
// screenshot the stage was detected on; button taps resolve against it.
//
// Returns an error only when the context is cancelled mid-sequence;
// individual action failures are logged and swallowed.
func (e *ActionExecutor) ExecuteStageActions(ctx context.Context, serial, stage string, screen *image.Gray) error {
	actions, ok := e.actions[stage]
	if !ok || len(actions) == 0 {
		return nil
	}

	log := e.logger.With("device", serial, "stage", stage)
	for i, action := range actions {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Only the run's own interruption ends the sequence. A slow
		// adb call returns an error carrying the per-invocation
		// deadline; with the worker context healthy that is a normal
		// action failure.
		err := e.execute(ctx, serial, action, screen, log)
		if err != nil && ctx.Err() != nil {
			return err
		}

		ev := Event{
			Kind:      EventActionExecuted,
			Serial:    serial,
			Stage:     stage,
			Action:    action.String(),
			Timestamp: time.Now().UTC(),
		}
		if err != nil {
			ev.Error = err.Error()
			log.Warn("action failed, continuing sequence",
				"action", action.String(), "index", i, "error", err)
		}
		e.sink.Publish(ev)
	}
	return nil
}

// execute dispatches one action.
func (e *ActionExecutor) execute(ctx context.Context, serial string, action config.Action, screen *image.Gray, log *logging.Logger) error {
	switch action.Type {
	case config.ActionTap:
		return e.executeTap(ctx, serial, action.Button, screen, log)
	case config.ActionWait:
		return e.executeWait(ctx, action.WaitDuration(), log)
	case config.ActionCommand:
		return e.executeCommand(ctx, serial, action.Command, log)
	default:
		return fmt.Errorf("automation: unsupported action type %q", action.Type)
	}
}

// executeTap resolves the button to screen coordinates and taps it.
//
// Resolution order: button template match against the current screen
// first, then the device's static fallback coordinates. When neither
// resolves, the tap is skipped with a warning. Jitter is applied to the
// resolved point before tapping.
func (e *ActionExecutor) executeTap(ctx context.Context, serial, button string, screen *image.Gray, log *logging.Logger) error {
	target, resolved := e.resolveButton(serial, button, screen, log)
	if !resolved {
		log.Warn("button not resolvable, skipping tap", "button", button)
		return nil
	}

	target = e.jittered(target)
	if e.dryRun {
		log.Info("dry run tap", "button", button, "x", target.X, "y", target.Y)
		return nil
	}

	log.Debug("tapping", "button", button, "x", target.X, "y", target.Y)
	if err := e.controller.Tap(ctx, serial, target.X, target.Y); err != nil {
		return fmt.Errorf("tapping %q: %w", button, err)
	}
	return nil
}

// resolveButton finds tap coordinates for a button name.
func (e *ActionExecutor) resolveButton(serial, button string, screen *image.Gray, log *logging.Logger) (image.Point, bool) {
	if cfg, ok := e.FindButtonByName(button); ok {
		for _, name := range cfg.Templates {
			tpl, err := e.templates.Get(name)
			if err != nil {
				log.Warn("button template unavailable",
					"button", button, "template", name, "error", err)
				continue
			}
			if m := vision.FindBestMatch(e.matcher, screen, tpl, e.threshold, e.scales, e.logger); m.Found {
				log.Debug("button located by template",
					"button", button, "template", name, "confidence", m.Confidence, "scale", m.Scale)
				return m.Center, true
			}
		}
	}

	if coords, ok := e.fallbacks.Lookup(serial, button); ok {
		log.Debug("button resolved from fallback table",
			"button", button, "x", coords[0], "y", coords[1])
		return image.Pt(coords[0], coords[1]), true
	}

	return image.Point{}, false
}

// FindButtonByName returns the button configuration for name. The second
// return is false when no such button is configured.
func (e *ActionExecutor) FindButtonByName(name string) (config.ButtonConfig, bool) {
	for _, b := range e.buttons {
		if b.Name == name {
			return b, true
		}
	}
	return config.ButtonConfig{}, false
}

// jittered offsets a point by an independent uniform jitter in
// [-jitter, +jitter] per axis. Zero jitter returns the point unchanged;
// results never go negative.
func (e *ActionExecutor) jittered(p image.Point) image.Point {
	if e.jitter <= 0 {
		return p
	}
	span := 2*e.jitter + 1
	p.X += rand.IntN(span) - e.jitter
	p.Y += rand.IntN(span) - e.jitter
	if p.X < 0 {
		p.X = 0
	}
	if p.Y < 0 {
		p.Y = 0
	}
	return p
}

// executeWait suspends the worker for the configured duration. The wait
// runs even in dry-run mode so sequence pacing stays realistic.
func (e *ActionExecutor) executeWait(ctx context.Context, d time.Duration, log *logging.Logger) error {
	log.Debug("waiting", "duration_ms", d.Milliseconds())
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// executeCommand forwards a shell command verbatim to the device.
func (e *ActionExecutor) executeCommand(ctx context.Context, serial, command string, log *logging.Logger) error {
	if e.dryRun {
		log.Info("dry run command", "command", command)
		return nil
	}

	out, err := e.controller.RunCommand(ctx, serial, command)
	if err != nil {
		return fmt.Errorf("running %q: %w", command, err)
	}
	if out != "" {
		log.Debug("command output", "command", command, "output", out)
	}
	return nil
}
