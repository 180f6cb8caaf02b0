// Package logging provides structured logging for droidstage.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - Text output for interactive runs (human-readable)
//   - JSON output for machine ingestion
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # text, json
//	  output: "stderr"   # stderr, stdout
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("run starting", "devices", 3)
//	logger.Error("capture failed", "device", serial, "error", err)
//
// Per-device workers derive child loggers carrying the device serial so
// every record from a worker is attributable:
//
//	workerLog := logger.With("device", serial)
//
// # Security
//
// Never log secrets, tokens, or broker passwords.
package logging
