package adb

import "testing"

func TestParseDevices(t *testing.T) {
	out := `* daemon not running; starting now at tcp:5037
* daemon started successfully
List of devices attached
emulator-5554	device product:sdk_gphone64 model:sdk_gphone64_x86_64 device:emu64xa transport_id:1
R58M123ABC	unauthorized usb:1-4 transport_id:2
192.168.1.50:5555	offline transport_id:3
garbage-line-without-state
`
	devices := parseDevices([]byte(out))

	if len(devices) != 3 {
		t.Fatalf("len(devices) = %d, want 3", len(devices))
	}

	tests := []struct {
		serial string
		state  DeviceState
		model  string
	}{
		{"emulator-5554", StateDevice, "sdk_gphone64_x86_64"},
		{"R58M123ABC", StateUnauthorized, ""},
		{"192.168.1.50:5555", StateOffline, ""},
	}

	for i, want := range tests {
		got := devices[i]
		if got.Serial != want.serial {
			t.Errorf("devices[%d].Serial = %q, want %q", i, got.Serial, want.serial)
		}
		if got.State != want.state {
			t.Errorf("devices[%d].State = %q, want %q", i, got.State, want.state)
		}
		if got.Model != want.model {
			t.Errorf("devices[%d].Model = %q, want %q", i, got.Model, want.model)
		}
	}
}

func TestParseDevices_Empty(t *testing.T) {
	if got := parseDevices([]byte("List of devices attached\n\n")); len(got) != 0 {
		t.Errorf("parseDevices(empty list) = %v, want none", got)
	}
}

func TestDevice_Selectable(t *testing.T) {
	tests := []struct {
		state DeviceState
		want  bool
	}{
		{StateDevice, true},
		{StateOffline, false},
		{StateUnauthorized, false},
		{StateRecovery, false},
		{StateNoPermission, false},
	}

	for _, tt := range tests {
		d := Device{Serial: "x", State: tt.state}
		if got := d.Selectable(); got != tt.want {
			t.Errorf("Selectable() with state %q = %v, want %v", tt.state, got, tt.want)
		}
	}
}
