package mqtt

import "testing"

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"device state", topics.DeviceState("box-a1b2c3d4"), "boxbuddy/device/box-a1b2c3d4/state"},
		{"device event", topics.DeviceEvent("box-a1b2c3d4"), "boxbuddy/device/box-a1b2c3d4/event"},
		{"device command", topics.DeviceCommand("box-a1b2c3d4"), "boxbuddy/device/box-a1b2c3d4/command"},
		{"core event", topics.Event("code.redeemed"), "boxbuddy/event/code.redeemed"},
		{"notification", topics.Notification(), "boxbuddy/notify/event"},
		{"system status", topics.SystemStatus(), "boxbuddy/system/status"},
		{"all device events", topics.AllDeviceEvents(), "boxbuddy/device/+/event"},
		{"all device states", topics.AllDeviceStates(), "boxbuddy/device/+/state"},
		{"all topics", topics.AllTopics(), "boxbuddy/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
