package device

import (
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry tracks the live status of every device worker in a run.
// Workers write only their own serial's entry; readers (API handlers,
// final reports) get value copies and never see partial updates.
//
// All public methods are thread-safe.
type Registry struct {
	mu      sync.RWMutex
	workers map[string]*WorkerStatus
	logger  Logger
}

// NewRegistry creates an empty worker registry.
func NewRegistry() *Registry {
	return &Registry{
		workers: make(map[string]*WorkerStatus),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Register creates the status entry for a worker about to start.
// Registering a serial twice resets its entry.
func (r *Registry) Register(serial, model string) {
	now := time.Now().UTC()

	r.mu.Lock()
	r.workers[serial] = &WorkerStatus{
		Serial:    serial,
		Model:     model,
		State:     StateIdle,
		StartedAt: now,
		UpdatedAt: now,
	}
	r.mu.Unlock()

	r.logger.Debug("worker registered", "serial", serial)
}

// SetState records a worker's state transition.
// Unknown serials are ignored.
func (r *Registry) SetState(serial string, state WorkerState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.workers[serial]
	if !ok {
		return
	}
	w.State = state
	w.UpdatedAt = time.Now().UTC()
}

// RecordPoll counts one loop iteration for a worker.
func (r *Registry) RecordPoll(serial string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.workers[serial]
	if !ok {
		return
	}
	w.Iterations++
	w.UpdatedAt = time.Now().UTC()
}

// RecordDetection records a successful stage detection and clears the
// consecutive miss counter.
func (r *Registry) RecordDetection(serial, stage string, confidence float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.workers[serial]
	if !ok {
		return
	}
	w.LastStage = stage
	w.LastConfidence = confidence
	w.Detections++
	w.Misses = 0
	w.UpdatedAt = time.Now().UTC()
}

// RecordMiss counts one poll with no recognized stage and returns the
// new consecutive miss total.
func (r *Registry) RecordMiss(serial string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.workers[serial]
	if !ok {
		return 0
	}
	w.Misses++
	w.UpdatedAt = time.Now().UTC()
	return w.Misses
}

// ResetMisses clears a worker's consecutive miss counter.
func (r *Registry) ResetMisses(serial string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.workers[serial]
	if !ok {
		return
	}
	w.Misses = 0
	w.UpdatedAt = time.Now().UTC()
}

// Get retrieves a copy of one worker's status.
func (r *Registry) Get(serial string) (WorkerStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.workers[serial]
	if !ok {
		return WorkerStatus{}, false
	}
	return *w, true
}

// List returns copies of all worker statuses, sorted by serial for
// stable output.
func (r *Registry) List() []WorkerStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	statuses := make([]WorkerStatus, 0, len(r.workers))
	for _, w := range r.workers {
		statuses = append(statuses, *w)
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Serial < statuses[j].Serial
	})
	return statuses
}

// Count returns the number of registered workers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workers)
}

// Stats holds registry statistics for monitoring.
type Stats struct {
	Total      int                 `json:"total"`
	Active     int                 `json:"active"`
	ByState    map[WorkerState]int `json:"by_state"`
	Detections int                 `json:"detections"`
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		Total:   len(r.workers),
		ByState: make(map[WorkerState]int),
	}
	for _, w := range r.workers {
		stats.ByState[w.State]++
		stats.Detections += w.Detections
		if !w.State.Terminal() {
			stats.Active++
		}
	}
	return stats
}
