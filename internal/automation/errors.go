package automation

import "errors"

// Domain errors for the automation package.
var (
	// ErrNoStages is returned when a run is started with no configured stages.
	ErrNoStages = errors.New("automation: no stages configured")
)
