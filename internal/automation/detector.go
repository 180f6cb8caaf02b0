package automation

import (
	"image"

	"github.com/droidstage/droidstage/internal/infrastructure/config"
	"github.com/droidstage/droidstage/internal/infrastructure/logging"
	"github.com/droidstage/droidstage/internal/vision"
)

// StageDetector classifies a screenshot against the configured stages.
//
// Stages are scanned in configuration order, each template in its listed
// order, and the globally best match across everything scanned so far is
// tracked. Once a stage has accumulated the required number of template
// hits and also owns the current best match, scanning stops early. The
// early exit is purely a scan-shortening optimization: whatever result
// the detector returns is always the best match known at that point.
type StageDetector struct {
	stages    []config.StageConfig
	templates TemplateSource
	matcher   vision.Matcher
	threshold float64
	scales    []float64
	required  int
	logger    *logging.Logger
}

// NewStageDetector builds a detector from the run configuration.
func NewStageDetector(cfg *config.Config, templates TemplateSource, matcher vision.Matcher, logger *logging.Logger) *StageDetector {
	if logger == nil {
		logger = logging.Default()
	}
	return &StageDetector{
		stages:    cfg.Stages,
		templates: templates,
		matcher:   matcher,
		threshold: cfg.Detection.MatchThreshold,
		scales:    cfg.Detection.Scales,
		required:  cfg.Detection.RequiredMatches,
		logger:    logger,
	}
}

// Detect scans the screen for all configured stages and returns the best
// match, or the unknown sentinel with confidence 0 when no template
// clears the threshold.
//
// A template that cannot be loaded is logged and skipped; detection
// continues with the remaining templates. Equal confidences keep the
// first-found result, so configuration order breaks ties.
func (d *StageDetector) Detect(screen *image.Gray) StageDetection {
	best := StageDetection{Stage: StageUnknown}

	for _, stage := range d.stages {
		hits := 0
		for _, name := range stage.Templates {
			tpl, err := d.templates.Get(name)
			if err != nil {
				d.logger.Warn("stage template unavailable",
					"stage", stage.Name, "template", name, "error", err)
				continue
			}

			m := vision.FindBestMatch(d.matcher, screen, tpl, d.threshold, d.scales, d.logger)
			if !m.Found {
				continue
			}

			hits++
			if m.Confidence > best.Confidence {
				best = StageDetection{
					Stage:      stage.Name,
					Confidence: m.Confidence,
					Template:   name,
					Box:        m.Box,
					Scale:      m.Scale,
				}
			}

			if hits >= d.required && best.Stage == stage.Name {
				return best
			}
		}
	}

	return best
}
