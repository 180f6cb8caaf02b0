package mqtt

import "fmt"

// DefaultTopicPrefix is used when topic_prefix is unset in config.
const DefaultTopicPrefix = "droidstage"

// Topics provides builders for droidstage MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
// All topics live under a configurable prefix:
//
//	topics := mqtt.NewTopics("droidstage")
//	topic := topics.StageDetected("emulator-5554")
//	// Returns: "droidstage/events/stage/emulator-5554"
type Topics struct {
	prefix string
}

// NewTopics returns topic builders bound to the given prefix.
// An empty prefix falls back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the configured topic prefix.
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// =============================================================================
// Event Topics
// =============================================================================

// StageDetected returns the topic for stage detection events from a device.
//
// Example: droidstage/events/stage/emulator-5554
func (t Topics) StageDetected(serial string) string {
	return fmt.Sprintf("%s/events/stage/%s", t.Prefix(), serial)
}

// ActionExecuted returns the topic for action execution events from a device.
//
// Example: droidstage/events/action/emulator-5554
func (t Topics) ActionExecuted(serial string) string {
	return fmt.Sprintf("%s/events/action/%s", t.Prefix(), serial)
}

// WorkerState returns the topic for worker lifecycle events for a device.
//
// Example: droidstage/events/worker/emulator-5554
func (t Topics) WorkerState(serial string) string {
	return fmt.Sprintf("%s/events/worker/%s", t.Prefix(), serial)
}

// =============================================================================
// Status Topics
// =============================================================================

// SystemStatus returns the process status topic (online/offline, LWT).
//
// Example: droidstage/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", t.Prefix())
}

// DeviceStatus returns the retained per-device worker status topic.
//
// Example: droidstage/devices/emulator-5554/status
func (t Topics) DeviceStatus(serial string) string {
	return fmt.Sprintf("%s/devices/%s/status", t.Prefix(), serial)
}

// =============================================================================
// Wildcard Patterns for Subscribers
// =============================================================================

// AllStageEvents returns a pattern matching stage events from all devices.
//
// Pattern: droidstage/events/stage/+
func (t Topics) AllStageEvents() string {
	return fmt.Sprintf("%s/events/stage/+", t.Prefix())
}

// AllEvents returns a pattern matching all event topics.
//
// Pattern: droidstage/events/#
func (t Topics) AllEvents() string {
	return fmt.Sprintf("%s/events/#", t.Prefix())
}

// AllTopics returns a pattern matching all droidstage topics.
//
// Pattern: droidstage/#
func (t Topics) AllTopics() string {
	return fmt.Sprintf("%s/#", t.Prefix())
}
