// Package config handles loading and validating droidstage configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields and cross-references
//   - Default value handling
//
// The configuration is immutable for the duration of a run: it is loaded
// once at startup and shared read-only across all device workers. Stage
// order in the file is significant — the detector scans stages in the
// order they appear, and ties between equal-confidence matches resolve to
// the earlier entry.
//
// Security Considerations:
//   - Sensitive values (MQTT credentials, InfluxDB tokens) should be set
//     via environment variables rather than committed to the file
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Detection.MatchThreshold)
package config
