package adb

import "strings"

// DeviceState is the connection state adb reports for a device.
type DeviceState string

// Device states as printed by `adb devices`.
const (
	StateDevice       DeviceState = "device"
	StateOffline      DeviceState = "offline"
	StateUnauthorized DeviceState = "unauthorized"
	StateRecovery     DeviceState = "recovery"
	StateSideload     DeviceState = "sideload"
	StateNoPermission DeviceState = "no permissions"
)

// Device is one row of `adb devices -l` output.
type Device struct {
	Serial string
	State  DeviceState
	Model  string
}

// Selectable reports whether the device can accept shell commands.
// Unauthorized and offline devices are never selectable.
func (d Device) Selectable() bool {
	return d.State == StateDevice
}

// parseDevices parses `adb devices -l` output.
//
// Expected shape:
//
//	List of devices attached
//	emulator-5554   device product:sdk_gphone64 model:sdk_gphone64_x86_64 transport_id:1
//	0123456789AB    unauthorized usb:1-1 transport_id:2
//
// The header, daemon startup chatter (lines starting with "*") and
// malformed lines are skipped.
func parseDevices(out []byte) []Device {
	var devices []Device

	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "*") || strings.HasPrefix(line, "List of devices") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		dev := Device{
			Serial: fields[0],
			State:  DeviceState(fields[1]),
		}

		// "no permissions" splits into two fields; adb prints the reason
		// in parentheses after it.
		if fields[1] == "no" && len(fields) > 2 && strings.HasPrefix(fields[2], "permissions") {
			dev.State = StateNoPermission
		}

		for _, f := range fields[2:] {
			if v, ok := strings.CutPrefix(f, "model:"); ok {
				dev.Model = v
			}
		}

		devices = append(devices, dev)
	}

	return devices
}
