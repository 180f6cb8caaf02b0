// Package influxdb provides time-series metric recording for automation runs.
//
// # Architecture
//
//	┌──────────────┐     ┌──────────────┐     ┌──────────────┐
//	│ Device       │     │ influxdb     │     │ InfluxDB v2  │
//	│ Workers      │────>│ Client       │────>│ Server       │
//	│ (detections, │     │ (batched,    │     │ (buckets,    │
//	│  actions)    │     │  async)      │     │  retention)  │
//	└──────────────┘     └──────────────┘     └──────────────┘
//
// # Key Types
//
//   - Client: Connection lifecycle, batched non-blocking writes, health checks
//
// # Measurements
//
//   - stage_detection: per-device stage matches with confidence
//   - action: executed taps/waits/commands with success flag
//   - worker: worker lifecycle transitions with iteration counts
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    if errors.Is(err, influxdb.ErrDisabled) {
//	        // run without metrics
//	    }
//	}
//	defer client.Close()
//
//	client.WriteDetection("emulator-5554", "main_menu", 0.92)
//
// # Thread Safety
//
// All Client methods are safe for concurrent use. Writes are buffered
// and flushed in batches; failures surface through the SetOnError
// callback rather than the write call itself.
package influxdb
