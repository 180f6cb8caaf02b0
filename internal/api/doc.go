// Package api implements the read-only HTTP status server for droidstage.
//
// This package provides:
//   - REST endpoints exposing the worker registry and run summary
//   - WebSocket hub for real-time automation event broadcasts
//   - Middleware stack (request ID, logging, recovery)
//
// # Architecture
//
// The server sits beside the automation run: device workers report into
// the registry and publish events, the API exposes both to dashboards
// and scripts watching a run. Nothing mutates run state through HTTP;
// control stays with the CLI process.
//
//	┌──────────────┐     ┌──────────────┐     ┌──────────────┐
//	│ Device       │     │ api.Server   │     │ Dashboards,  │
//	│ Workers      │────>│ /status      │────>│ curl, wscat  │
//	│ (registry,   │     │ /devices     │     │              │
//	│  events)     │     │ /ws          │     │              │
//	└──────────────┘     └──────────────┘     └──────────────┘
//
// # WebSocket Protocol
//
// Clients connect to /api/v1/ws and send a subscribe message naming the
// channels they want ("stage.detected", "action.executed",
// "worker.state"). Events arrive as JSON WSMessage frames with the
// channel in event_type.
//
// # Graceful Degradation
//
// The server is optional: runs work identically with api.enabled false,
// and a hub with zero clients drops broadcasts without blocking workers.
package api
