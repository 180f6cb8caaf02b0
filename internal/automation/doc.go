// Package automation provides the device automation engine for droidstage.
//
// A run drives one polling state machine per Android device: screenshot
// the device, classify the visible application stage by template
// matching, dispatch that stage's configured actions, sleep, repeat.
// The scheduler bounds how many devices run concurrently and propagates
// one cancellation signal to every worker.
//
// Architecture:
//
//	┌────────────────────────────────────────────────────────────┐
//	│                 Scheduler (scheduler.go)                    │
//	│  Device selection, admission gate, terminal-state join      │
//	│        │                                                    │
//	│        ▼  one goroutine per device                          │
//	│  ┌──────────────────────────────────────────────┐           │
//	│  │  Worker (worker.go)                          │           │
//	│  │  Polling → Detecting → Acting → Sleeping     │           │
//	│  │     │            │          │                │           │
//	│  │     ▼            ▼          ▼                │           │
//	│  │  adb capture  StageDetector ActionExecutor   │           │
//	│  │               (detector.go) (executor.go)    │           │
//	│  └──────────────────────────────────────────────┘           │
//	│        │                                                    │
//	│        ▼                                                    │
//	│  EventSink (events.go): WebSocket / InfluxDB / MQTT         │
//	└────────────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - StageDetector: Classifies a screenshot against configured stages
//   - ActionExecutor: Dispatches tap/wait/command sequences
//   - Worker: Per-device polling state machine with timeout and backoff
//   - Scheduler: Bounded-concurrency launcher, one worker per device
//   - Event/EventSink: Observability fan-out from the worker hot loop
//
// # Concurrency
//
// Workers share nothing mutable except the status registry and the
// admission gate. Within one device, iterations are strictly
// sequential; across devices no ordering is guaranteed. All blocking
// points (capture, waits, command execution, inter-poll sleep) honor
// context cancellation.
//
// # Usage
//
//	store, _ := vision.NewStore(cfg.Detection.TemplateDir, log)
//	detector := automation.NewStageDetector(cfg, store, vision.NCCMatcher{}, log)
//	executor := automation.NewActionExecutor(cfg, adbClient, store, vision.NCCMatcher{}, sink, log)
//	sched := automation.NewScheduler(cfg, adbClient, detector, executor, registry, sink, log)
//
//	results, err := sched.RunAll(ctx)
package automation
