package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/boxbuddy/boxbuddy-core/internal/audit"
	"github.com/boxbuddy/boxbuddy-core/internal/device"
)

// handleListDevices returns all devices sorted by creation time.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.registry.List(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// createDeviceRequest is the request body for POST /devices.
type createDeviceRequest struct {
	Name    string `json:"name"`
	Variant string `json:"variant"`
}

// handleCreateDevice claims a new lockbox.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	dev, err := s.registry.Create(r.Context(), req.Name, device.Variant(req.Variant), actorFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dev)
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, err := s.registry.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleDeleteDevice removes a device. Its access codes are dropped and
// any pending re-lock against it is cancelled.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.registry.Delete(r.Context(), id, actorFrom(r.Context())); err != nil {
		writeDomainError(w, err)
		return
	}
	s.ledger.CancelDevice(id)

	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// handleToggleLock flips a device's lock state.
func (s *Server) handleToggleLock(w http.ResponseWriter, r *http.Request) {
	dev, err := s.registry.ToggleLock(r.Context(), chi.URLParam(r, "id"), actorFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleToggleCooling flips a cooling device's compressor state.
func (s *Server) handleToggleCooling(w http.ResponseWriter, r *http.Request) {
	dev, err := s.registry.ToggleCooling(r.Context(), chi.URLParam(r, "id"), actorFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// telemetryRequest is the request body for PATCH /devices/{id}/telemetry.
// Absent fields are left untouched. ClearTemp removes the temperature
// reading entirely (sensor lost).
type telemetryRequest struct {
	Online     *bool    `json:"online"`
	DoorOpen   *bool    `json:"door_open"`
	BatteryPct *float64 `json:"battery_pct"`
	TempC      *float64 `json:"temp_c"`
	ClearTemp  bool     `json:"clear_temp"`
}

// handleTelemetry applies a partial telemetry update reported by firmware.
// These writes bypass interaction guards: hardware reports facts, it does
// not ask permission.
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	var req telemetryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	var dev *device.Device
	var err error

	apply := func(fn func() (*device.Device, error)) bool {
		if err != nil {
			return false
		}
		dev, err = fn()
		return err == nil
	}

	if req.Online != nil {
		apply(func() (*device.Device, error) { return s.registry.SetOnline(ctx, id, *req.Online) })
	}
	if req.DoorOpen != nil {
		apply(func() (*device.Device, error) { return s.registry.SetDoorOpen(ctx, id, *req.DoorOpen) })
	}
	if req.BatteryPct != nil {
		apply(func() (*device.Device, error) { return s.registry.SetBattery(ctx, id, *req.BatteryPct) })
	}
	if req.TempC != nil || req.ClearTemp {
		temp := req.TempC
		if req.ClearTemp {
			temp = nil
		}
		apply(func() (*device.Device, error) { return s.registry.SetTemp(ctx, id, temp) })
	}

	if err != nil {
		writeDomainError(w, err)
		return
	}
	if dev == nil {
		// Empty body: nothing changed, return current state.
		dev, err = s.registry.Get(ctx, id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, dev)
}

// deviceEventRequest is the request body for POST /devices/{id}/events.
// Text is only used by "note" events.
type deviceEventRequest struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// handleDeviceEvent applies a discrete hardware event (door sensor,
// connectivity change) to the device, or records a free-form informational
// note on its timeline (firmware notices, courier proximity pings).
func (s *Server) handleDeviceEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	var req deviceEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	var dev *device.Device
	var err error
	switch req.Type {
	case "door_opened":
		dev, err = s.registry.SetDoorOpen(ctx, id, true)
	case "door_closed":
		dev, err = s.registry.SetDoorOpen(ctx, id, false)
	case "online":
		dev, err = s.registry.SetOnline(ctx, id, true)
	case "offline":
		dev, err = s.registry.SetOnline(ctx, id, false)
	case "note":
		if req.Text == "" {
			writeBadRequest(w, "note events require text")
			return
		}
		dev, err = s.registry.Get(ctx, id)
		if err == nil {
			_, err = s.audit.Record(ctx, audit.KindInfo, id, actorFrom(ctx), req.Text)
		}
	default:
		writeBadRequest(w, "unknown event type: "+req.Type)
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleDeviceStats returns aggregate fleet statistics.
func (s *Server) handleDeviceStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.GetStats())
}
