package automation

import "time"

// EventKind names the run events the engine emits.
type EventKind string

// Event kinds.
const (
	EventStageDetected  EventKind = "stage.detected"
	EventActionExecuted EventKind = "action.executed"
	EventWorkerState    EventKind = "worker.state"
)

// Event is one observability record from a running worker. Sinks fan
// events out to WebSocket clients, InfluxDB, and MQTT.
//
// RunID scopes the event to one scheduler invocation. Workers leave it
// empty; the composition root stamps it before fan-out.
type Event struct {
	RunID      string    `json:"run_id,omitempty"`
	Kind       EventKind `json:"kind"`
	Serial     string    `json:"serial"`
	Stage      string    `json:"stage,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Action     string    `json:"action,omitempty"`
	State      string    `json:"state,omitempty"`
	Iterations int       `json:"iterations,omitempty"`
	Detections int       `json:"detections,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// EventSink receives engine events. Implementations must not block:
// workers publish from their hot loop.
type EventSink interface {
	Publish(Event)
}

// DiscardSink drops every event. Used when no observability surface is
// enabled.
var DiscardSink EventSink = discardSink{}

type discardSink struct{}

func (discardSink) Publish(Event) {}

// MultiSink fans events out to several sinks. Nil entries are skipped.
func MultiSink(sinks ...EventSink) EventSink {
	active := make([]EventSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	if len(active) == 0 {
		return DiscardSink
	}
	if len(active) == 1 {
		return active[0]
	}
	return multiSink(active)
}

type multiSink []EventSink

func (m multiSink) Publish(ev Event) {
	for _, s := range m {
		s.Publish(ev)
	}
}
