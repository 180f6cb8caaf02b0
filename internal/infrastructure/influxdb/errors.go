package influxdb

import "errors"

// Sentinel errors for InfluxDB operations.
//
// Use errors.Is to check for these conditions:
//
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics are switched off in config, not a failure
//	}
var (
	// ErrNotConnected indicates the client is not connected to InfluxDB.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed indicates the initial connection could not be established.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrWriteFailed indicates a metric write was rejected.
	ErrWriteFailed = errors.New("influxdb: write failed")

	// ErrDisabled indicates InfluxDB is disabled in configuration.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
