// Package device tracks the Android devices a run operates on and the
// live status of their workers.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                       Worker Registry                        │
//	│                                                              │
//	│  ┌──────────────────┐        ┌──────────────────┐            │
//	│  │     Registry     │        │     Select       │            │
//	│  │  (registry.go)   │        │   (select.go)    │            │
//	│  │                  │        │                  │            │
//	│  │ • Status entries │        │ • Allowlist ∩    │            │
//	│  │ • State machine  │        │   connected      │            │
//	│  │ • Thread safety  │        │ • Order-stable   │            │
//	│  └──────────────────┘        └──────────────────┘            │
//	│           │                                                  │
//	└───────────│──────────────────────────────────────────────────┘
//	            │
//	            ▼
//	┌──────────────────────┐
//	│  REST API / reports  │
//	│  • GET /devices      │
//	│  • WebSocket status  │
//	└──────────────────────┘
//
// # Key Types
//
//   - WorkerState: Worker lifecycle state (polling, detecting, acting, ...)
//   - WorkerStatus: Point-in-time snapshot of one worker
//   - Registry: Thread-safe status store, one entry per serial
//
// # Usage
//
//	registry := device.NewRegistry()
//	registry.SetLogger(log)
//
//	serials := device.Select(devices, cfg.Worker.Devices)
//	for _, serial := range serials {
//	    registry.Register(serial, "")
//	}
//
//	// From a worker loop
//	registry.SetState(serial, device.StatePolling)
//	registry.RecordDetection(serial, "main_menu", 0.93)
//
// # Thread Safety
//
// The Registry is safe for concurrent use. Workers mutate only their
// own serial's entry; all reads return value copies.
package device
