package device

import "github.com/droidstage/droidstage/internal/adb"

// Select returns the serials eligible for automation.
//
// Only devices adb reports in the "device" state qualify; unauthorized
// and offline entries are excluded. A non-empty allowlist further
// restricts the result to listed serials. The returned order follows
// adb's reported order, which decides worker start order.
//
// Allowlist entries with no matching connected device are silently
// ignored; the caller can diff against the allowlist to warn about them.
func Select(available []adb.Device, allowlist []string) []string {
	allowed := make(map[string]bool, len(allowlist))
	for _, serial := range allowlist {
		allowed[serial] = true
	}

	var serials []string
	for _, d := range available {
		if !d.Selectable() {
			continue
		}
		if len(allowlist) > 0 && !allowed[d.Serial] {
			continue
		}
		serials = append(serials, d.Serial)
	}
	return serials
}

// Missing returns allowlist entries that matched no selectable device.
// Useful for warning about misconfigured or disconnected serials.
func Missing(available []adb.Device, allowlist []string) []string {
	selectable := make(map[string]bool, len(available))
	for _, d := range available {
		if d.Selectable() {
			selectable[d.Serial] = true
		}
	}

	var missing []string
	for _, serial := range allowlist {
		if !selectable[serial] {
			missing = append(missing, serial)
		}
	}
	return missing
}
