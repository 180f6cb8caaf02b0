package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrNoDevices) {
//	    // nothing to run against
//	}
var (
	// ErrNoDevices is returned when device selection yields an empty set.
	ErrNoDevices = errors.New("device: no eligible devices")
)
