package api

import (
	"net/http"
	"testing"

	"github.com/boxbuddy/boxbuddy-core/internal/device"
)

func TestCreateAndGetDevice(t *testing.T) {
	f := newFixture(t)

	dev := f.createDevice(t, "Porch Box", "standard")
	if dev.Variant != device.VariantStandard {
		t.Errorf("variant = %q, want standard", dev.Variant)
	}
	if !dev.Online || !dev.Locked || dev.DoorOpen {
		t.Errorf("factory state = online=%t locked=%t door=%t", dev.Online, dev.Locked, dev.DoorOpen)
	}
	if dev.BatteryPct != 100 {
		t.Errorf("battery = %v, want 100", dev.BatteryPct)
	}

	var got device.Device
	resp := f.do(t, http.MethodGet, "/api/v1/devices/"+dev.ID, "", &got)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	if got.ID != dev.ID || got.Name != "Porch Box" {
		t.Errorf("got = %+v", got)
	}
}

func TestCreateDevice_InvalidVariant(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/devices", `{"variant":"teleporter"}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestListDevices(t *testing.T) {
	f := newFixture(t)
	f.createDevice(t, "A", "standard")
	f.createDevice(t, "B", "cooling")

	var body struct {
		Devices []device.Device `json:"devices"`
		Count   int             `json:"count"`
	}
	resp := f.do(t, http.MethodGet, "/api/v1/devices", "", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body.Count != 2 || len(body.Devices) != 2 {
		t.Errorf("count = %d, devices = %d", body.Count, len(body.Devices))
	}
}

func TestToggleLock(t *testing.T) {
	f := newFixture(t)
	dev := f.createDevice(t, "Porch Box", "standard")

	var toggled device.Device
	resp := f.do(t, http.MethodPost, "/api/v1/devices/"+dev.ID+"/lock", "", &toggled)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if toggled.Locked {
		t.Error("device should be unlocked after toggle")
	}
}

func TestToggleLock_GuardViolationsReturnConflict(t *testing.T) {
	f := newFixture(t)

	t.Run("offline device", func(t *testing.T) {
		dev := f.createDevice(t, "Offline Box", "standard")
		f.do(t, http.MethodPatch, "/api/v1/devices/"+dev.ID+"/telemetry", `{"online":false}`, nil)

		resp := f.do(t, http.MethodPost, "/api/v1/devices/"+dev.ID+"/lock", "", nil)
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("status = %d, want 409", resp.StatusCode)
		}
	})

	t.Run("locking with door open", func(t *testing.T) {
		dev := f.createDevice(t, "Open Box", "standard")
		// Unlock, then open the door.
		f.do(t, http.MethodPost, "/api/v1/devices/"+dev.ID+"/lock", "", nil)
		f.do(t, http.MethodPost, "/api/v1/devices/"+dev.ID+"/events", `{"type":"door_opened"}`, nil)

		resp := f.do(t, http.MethodPost, "/api/v1/devices/"+dev.ID+"/lock", "", nil)
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("status = %d, want 409", resp.StatusCode)
		}
	})

	t.Run("unknown device", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/api/v1/devices/box-missing/lock", "", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})
}

func TestToggleCooling(t *testing.T) {
	f := newFixture(t)

	t.Run("cooling variant toggles off", func(t *testing.T) {
		dev := f.createDevice(t, "Kitchen Box", "cooling")
		if dev.TempC == nil || *dev.TempC != 4.0 {
			t.Fatalf("factory temp = %v, want 4.0", dev.TempC)
		}

		var toggled device.Device
		resp := f.do(t, http.MethodPost, "/api/v1/devices/"+dev.ID+"/cooling", "", &toggled)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if toggled.TempC != nil {
			t.Errorf("temp after cooling off = %v, want nil", toggled.TempC)
		}
	})

	t.Run("standard variant rejected", func(t *testing.T) {
		dev := f.createDevice(t, "Plain Box", "standard")
		resp := f.do(t, http.MethodPost, "/api/v1/devices/"+dev.ID+"/cooling", "", nil)
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("status = %d, want 409", resp.StatusCode)
		}
	})
}

func TestTelemetryPatch(t *testing.T) {
	f := newFixture(t)
	dev := f.createDevice(t, "Porch Box", "standard")

	var updated device.Device
	resp := f.do(t, http.MethodPatch, "/api/v1/devices/"+dev.ID+"/telemetry",
		`{"battery_pct":42.4567,"door_open":true}`, &updated)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if updated.BatteryPct != 42.5 {
		t.Errorf("battery = %v, want 42.5", updated.BatteryPct)
	}
	if !updated.DoorOpen {
		t.Error("door should be open")
	}
}

func TestDeviceNoteEvent(t *testing.T) {
	f := newFixture(t)
	dev := f.createDevice(t, "Porch Box", "standard")

	resp := f.do(t, http.MethodPost, "/api/v1/devices/"+dev.ID+"/events",
		`{"type":"note","text":"Firmware update available"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var result struct {
		Entries []struct {
			Kind string `json:"kind"`
			Text string `json:"text"`
		} `json:"entries"`
	}
	f.do(t, http.MethodGet, "/api/v1/audit?kind=info", "", &result)
	if len(result.Entries) != 1 || result.Entries[0].Text != "Firmware update available" {
		t.Errorf("info entries = %v", result.Entries)
	}

	resp = f.do(t, http.MethodPost, "/api/v1/devices/"+dev.ID+"/events", `{"type":"note"}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty note status = %d, want 400", resp.StatusCode)
	}
}

func TestDeleteDevice(t *testing.T) {
	f := newFixture(t)
	dev := f.createDevice(t, "Doomed Box", "standard")

	resp := f.do(t, http.MethodDelete, "/api/v1/devices/"+dev.ID, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	resp = f.do(t, http.MethodGet, "/api/v1/devices/"+dev.ID, "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", resp.StatusCode)
	}

	resp = f.do(t, http.MethodDelete, "/api/v1/devices/"+dev.ID, "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("double delete status = %d, want 404", resp.StatusCode)
	}
}

func TestDeviceStats(t *testing.T) {
	f := newFixture(t)
	f.createDevice(t, "A", "standard")
	f.createDevice(t, "B", "cooling")

	var stats device.Stats
	resp := f.do(t, http.MethodGet, "/api/v1/devices/stats", "", &stats)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if stats.TotalDevices != 2 || stats.Online != 2 {
		t.Errorf("stats = %+v", stats)
	}
}
