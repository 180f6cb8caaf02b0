package cli

import (
	"errors"

	"github.com/droidstage/droidstage/internal/api"
	"github.com/droidstage/droidstage/internal/automation"
	"github.com/droidstage/droidstage/internal/infrastructure/influxdb"
	"github.com/droidstage/droidstage/internal/infrastructure/logging"
	"github.com/droidstage/droidstage/internal/infrastructure/mqtt"
)

// mqttSinkBuffer is the event queue depth between workers and the MQTT
// publisher goroutine.
const mqttSinkBuffer = 256

// runStamp tags every event with the run identifier before fan-out, so
// subscribers can correlate events from overlapping or successive runs.
type runStamp struct {
	runID string
	next  automation.EventSink
}

func (s runStamp) Publish(ev automation.Event) {
	ev.RunID = s.runID
	s.next.Publish(ev)
}

// hubSink forwards engine events to WebSocket clients. Hub channel
// names are the event kinds, so clients subscribe by kind directly.
type hubSink struct {
	hub *api.Hub
}

func (s *hubSink) Publish(ev automation.Event) {
	s.hub.Broadcast(string(ev.Kind), ev)
}

// mqttSink publishes engine events to the per-kind MQTT topics.
//
// Broker round-trips block, so events pass through a buffered queue
// serviced by a single goroutine and workers never wait on the wire.
// When the queue is full the event is dropped.
type mqttSink struct {
	client *mqtt.Client
	logger *logging.Logger
	queue  chan automation.Event
	done   chan struct{}
}

func newMQTTSink(client *mqtt.Client, logger *logging.Logger) *mqttSink {
	s := &mqttSink{
		client: client,
		logger: logger,
		queue:  make(chan automation.Event, mqttSinkBuffer),
		done:   make(chan struct{}),
	}
	go s.drain()
	return s
}

func (s *mqttSink) Publish(ev automation.Event) {
	select {
	case s.queue <- ev:
	default:
		s.logger.Debug("mqtt event queue full, dropping event",
			"kind", ev.Kind, "serial", ev.Serial)
	}
}

// Close drains the remaining queued events and stops the publisher.
// Callers must not publish after Close. Call before disconnecting the
// MQTT client so terminal worker events still reach the broker.
func (s *mqttSink) Close() {
	close(s.queue)
	<-s.done
}

func (s *mqttSink) drain() {
	defer close(s.done)
	for ev := range s.queue {
		s.publish(ev)
	}
}

func (s *mqttSink) publish(ev automation.Event) {
	topics := s.client.Topics()

	var topic string
	switch ev.Kind {
	case automation.EventStageDetected:
		topic = topics.StageDetected(ev.Serial)
	case automation.EventActionExecuted:
		topic = topics.ActionExecuted(ev.Serial)
	case automation.EventWorkerState:
		topic = topics.WorkerState(ev.Serial)
	default:
		return
	}

	if err := s.client.PublishJSON(topic, ev); err != nil {
		s.logger.Warn("publishing event", "topic", topic, "error", err)
	}
}

// influxSink records engine events as time-series points. The write
// API batches asynchronously, so writes never block the caller.
type influxSink struct {
	client *influxdb.Client
}

func (s *influxSink) Publish(ev automation.Event) {
	switch ev.Kind {
	case automation.EventStageDetected:
		s.client.WriteDetection(ev.Serial, ev.Stage, ev.Confidence)
	case automation.EventActionExecuted:
		var actionErr error
		if ev.Error != "" {
			actionErr = errors.New(ev.Error)
		}
		s.client.WriteAction(ev.Serial, ev.Stage, ev.Action, actionErr)
	case automation.EventWorkerState:
		s.client.WriteWorkerEvent(ev.Serial, ev.State, ev.Iterations, ev.Detections)
	}
}
