// Package mqtt provides optional event publishing to an MQTT broker.
//
// # Architecture
//
//	┌──────────────┐     ┌──────────────┐     ┌──────────────┐
//	│ Automation   │     │ mqtt.Client  │     │ MQTT Broker  │
//	│ Events       │────>│ (LWT, auto-  │────>│ (Mosquitto,  │
//	│ (stage,      │     │  reconnect)  │     │  EMQX, ...)  │
//	│  action)     │     └──────────────┘     └──────────────┘
//	└──────────────┘
//
// # Key Types
//
//   - Client: Connection lifecycle, publish with QoS, status topics
//   - Topics: Topic builders bound to the configured prefix
//
// # Topic Hierarchy
//
//	<prefix>/status                     process online/offline (retained, LWT)
//	<prefix>/events/stage/<serial>      stage detections
//	<prefix>/events/action/<serial>     executed actions
//	<prefix>/events/worker/<serial>     worker lifecycle transitions
//	<prefix>/devices/<serial>/status    per-device worker status (retained)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := client.Topics().StageDetected("emulator-5554")
//	client.PublishJSON(topic, event)
//
// # Thread Safety
//
// All Client methods are safe for concurrent use. The client is
// publish-only: droidstage never subscribes, so there is no handler
// dispatch or re-subscription machinery.
package mqtt
