package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDetection records a stage detection for a device.
//
// Measurement: stage_detection
// Tags: device (serial), stage
// Fields: confidence (float)
//
// Non-blocking: the point is buffered and batched by the write API.
// Errors are reported asynchronously via the SetOnError callback.
func (c *Client) WriteDetection(serial, stage string, confidence float64) {
	if !c.IsConnected() {
		return
	}

	p := write.NewPoint(
		"stage_detection",
		map[string]string{
			"device": serial,
			"stage":  stage,
		},
		map[string]interface{}{
			"confidence": confidence,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(p)
}

// WriteAction records an executed automation action.
//
// Measurement: action
// Tags: device (serial), stage, type (tap/wait/command)
// Fields: success (bool), error (string, empty on success)
func (c *Client) WriteAction(serial, stage, actionType string, actionErr error) {
	if !c.IsConnected() {
		return
	}

	errStr := ""
	if actionErr != nil {
		errStr = actionErr.Error()
	}

	p := write.NewPoint(
		"action",
		map[string]string{
			"device": serial,
			"stage":  stage,
			"type":   actionType,
		},
		map[string]interface{}{
			"success": actionErr == nil,
			"error":   errStr,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(p)
}

// WriteWorkerEvent records a device worker lifecycle transition.
//
// Measurement: worker
// Tags: device (serial), state (completed/timed_out/cancelled/failed)
// Fields: iterations (int), detections (int)
func (c *Client) WriteWorkerEvent(serial, state string, iterations, detections int) {
	if !c.IsConnected() {
		return
	}

	p := write.NewPoint(
		"worker",
		map[string]string{
			"device": serial,
			"state":  state,
		},
		map[string]interface{}{
			"iterations": iterations,
			"detections": detections,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(p)
}

// WritePoint writes a custom metric point with arbitrary tags and fields.
//
// Use this for metrics that don't fit the standard helpers.
//
// Parameters:
//   - measurement: The measurement name (table equivalent)
//   - tags: Indexed metadata (device serial, stage, etc.)
//   - fields: The actual values
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	p := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(p)
}

// WritePointWithTime writes a metric point with a specific timestamp.
//
// Useful for backfilling or recording events that occurred in the past.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, t time.Time) {
	if !c.IsConnected() {
		return
	}

	p := write.NewPoint(measurement, tags, fields, t)
	c.writeAPI.WritePoint(p)
}
