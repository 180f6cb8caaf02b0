package device

import "time"

// WorkerState describes where a device worker is in its lifecycle.
// The run states cycle while the worker loops; terminal states never
// transition further.
type WorkerState string

// Run states.
const (
	StateIdle      WorkerState = "idle"
	StatePolling   WorkerState = "polling"
	StateDetecting WorkerState = "detecting"
	StateActing    WorkerState = "acting"
	StateSleeping  WorkerState = "sleeping"
)

// Terminal states.
const (
	StateCompleted WorkerState = "completed"
	StateTimedOut  WorkerState = "timed_out"
	StateCancelled WorkerState = "cancelled"
	StateFailed    WorkerState = "failed"
)

// Terminal reports whether the state ends a worker's run.
func (s WorkerState) Terminal() bool {
	switch s {
	case StateCompleted, StateTimedOut, StateCancelled, StateFailed:
		return true
	}
	return false
}

// AllWorkerStates returns all valid worker state values.
func AllWorkerStates() []WorkerState {
	return []WorkerState{
		StateIdle, StatePolling, StateDetecting, StateActing, StateSleeping,
		StateCompleted, StateTimedOut, StateCancelled, StateFailed,
	}
}

// WorkerStatus is a point-in-time snapshot of one device worker.
// The registry hands out value copies, so holders can read fields
// freely without locking.
type WorkerStatus struct {
	Serial         string      `json:"serial"`
	Model          string      `json:"model,omitempty"`
	State          WorkerState `json:"state"`
	LastStage      string      `json:"last_stage,omitempty"`
	LastConfidence float64     `json:"last_confidence,omitempty"`
	Misses         int         `json:"misses"`
	Iterations     int         `json:"iterations"`
	Detections     int         `json:"detections"`
	StartedAt      time.Time   `json:"started_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}
