package device

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/boxbuddy/boxbuddy-core/internal/audit"
	"github.com/boxbuddy/boxbuddy-core/internal/clock"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Auditor records entries in the activity trail. Satisfied by *audit.Recorder.
type Auditor interface {
	Record(ctx context.Context, kind audit.Kind, deviceID, actor, text string) (audit.Entry, error)
}

// Notifier delivers user-facing notifications. Satisfied by the notify package.
type Notifier interface {
	Send(title, body string)
}

// MetricSink receives telemetry samples. Satisfied by *influxdb.Client.
type MetricSink interface {
	WriteDeviceMetric(deviceID, measurement string, value float64)
}

// Broadcaster pushes device state changes to connected clients.
type Broadcaster interface {
	DeviceStateChanged(d Device)
}

type noopAuditor struct{}

func (noopAuditor) Record(context.Context, audit.Kind, string, string, string) (audit.Entry, error) {
	return audit.Entry{}, nil
}

type noopNotifier struct{}

func (noopNotifier) Send(string, string) {}

type noopMetricSink struct{}

func (noopMetricSink) WriteDeviceMetric(string, string, float64) {}

type noopBroadcaster struct{}

func (noopBroadcaster) DeviceStateChanged(Device) {}

// maxNameLength bounds device display names.
const maxNameLength = 64

// Registry is the authoritative owner of device state. The in-memory map
// is the source of truth at runtime; every mutation is written through to
// the repository before the method returns.
//
// A single mutex serialises all mutations, so a guard check and the write
// it protects are atomic: two racing commands are applied one after the
// other against the latest state, never against a stale snapshot.
type Registry struct {
	repo    Repository
	clk     clock.Clock
	mu      sync.RWMutex
	devices map[string]*Device

	logger    Logger
	auditor   Auditor
	notifier  Notifier
	metrics   MetricSink
	broadcast Broadcaster
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; the registry owns the live state.
func NewRegistry(repo Repository, clk clock.Clock) *Registry {
	return &Registry{
		repo:      repo,
		clk:       clk,
		devices:   make(map[string]*Device),
		logger:    noopLogger{},
		auditor:   noopAuditor{},
		notifier:  noopNotifier{},
		metrics:   noopMetricSink{},
		broadcast: noopBroadcaster{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetAuditor sets the audit trail recorder.
func (r *Registry) SetAuditor(a Auditor) {
	r.auditor = a
}

// SetNotifier sets the notification sink.
func (r *Registry) SetNotifier(n Notifier) {
	r.notifier = n
}

// SetMetricSink sets the telemetry history sink.
func (r *Registry) SetMetricSink(m MetricSink) {
	r.metrics = m
}

// SetBroadcaster sets the state change broadcaster.
func (r *Registry) SetBroadcaster(b Broadcaster) {
	r.broadcast = b
}

// Load populates the registry from the repository.
// This should be called once on application startup.
func (r *Registry) Load(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.devices = make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i]
		r.devices[d.ID] = d.DeepCopy()
	}

	r.logger.Info("device registry loaded", "count", len(devices))
	return nil
}

// Get retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
// The returned device is a deep copy; callers can safely modify it.
func (r *Registry) Get(ctx context.Context, id string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return d.DeepCopy(), nil
}

// List retrieves all devices ordered by creation time.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) List(ctx context.Context) ([]Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, *d.DeepCopy())
	}
	sort.Slice(devices, func(i, j int) bool {
		if !devices[i].CreatedAt.Equal(devices[j].CreatedAt) {
			return devices[i].CreatedAt.Before(devices[j].CreatedAt)
		}
		return devices[i].ID < devices[j].ID
	})
	return devices, nil
}

// Create registers a new lockbox with factory-fresh state: full battery,
// locked, door closed, online, and the compartment at the cooling setpoint
// for cooling variants. An empty name gets the variant's default.
func (r *Registry) Create(ctx context.Context, name string, variant Variant, actor string) (*Device, error) {
	if !variant.Valid() {
		return nil, ErrInvalidVariant
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = variant.DefaultName()
	}
	if len(name) > maxNameLength {
		return nil, ErrInvalidName
	}

	now := r.clk.Now().UTC()
	d := &Device{
		ID:         "box-" + uuid.NewString()[:8],
		Name:       name,
		Variant:    variant,
		Online:     true,
		Locked:     true,
		DoorOpen:   false,
		BatteryPct: 100,
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if variant == VariantCooling {
		t := CoolingTargetC
		d.TempC = &t
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	r.devices[d.ID] = d.DeepCopy()

	r.recordAudit(ctx, audit.KindSystem, d.ID, actor, "Device claimed and online")
	r.broadcast.DeviceStateChanged(*d.DeepCopy())

	r.logger.Info("device created", "id", d.ID, "name", d.Name, "variant", variant)
	return d.DeepCopy(), nil
}

// Delete removes a device.
// Returns ErrDeviceNotFound if the device does not exist.
func (r *Registry) Delete(ctx context.Context, id, actor string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return ErrDeviceNotFound
	}

	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}
	delete(r.devices, id)

	r.recordAudit(ctx, audit.KindSystem, id, actor, fmt.Sprintf("Device %s removed", d.Name))

	r.logger.Info("device deleted", "id", id)
	return nil
}

// ToggleLock flips the lock state on behalf of actor.
//
// Guards:
//   - the device must be online
//   - locking is rejected while the door is open
//
// Unlocking an open box is allowed; the bolt simply retracts.
func (r *Registry) ToggleLock(ctx context.Context, id, actor string) (*Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	if !d.Online {
		return nil, ErrDeviceOffline
	}
	if !d.Locked && d.DoorOpen {
		return nil, ErrDoorOpen
	}

	d.Locked = !d.Locked
	d.UpdatedAt = r.clk.Now().UTC()

	if err := r.repo.Update(ctx, d); err != nil {
		return nil, err
	}

	text := fmt.Sprintf("Unlocked by %s", actor)
	if d.Locked {
		text = fmt.Sprintf("Locked by %s", actor)
	}
	r.recordAudit(ctx, audit.KindAction, id, actor, text)
	r.broadcast.DeviceStateChanged(*d.DeepCopy())

	r.logger.Info("lock toggled", "id", id, "locked", d.Locked, "actor", actor)
	return d.DeepCopy(), nil
}

// ToggleCooling switches the compressor on or off on behalf of actor.
//
// Guards:
//   - the device must be a cooling variant
//   - the device must be online
//   - the battery must be above the critical threshold
func (r *Registry) ToggleCooling(ctx context.Context, id, actor string) (*Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	if d.Variant != VariantCooling {
		return nil, ErrCoolingUnsupported
	}
	if !d.Online {
		return nil, ErrDeviceOffline
	}
	if d.BatteryPct <= CriticalBatteryThreshold {
		return nil, ErrBatteryLow
	}

	var text, body string
	if d.Cooling() {
		d.TempC = nil
		text = fmt.Sprintf("Cooling off by %s", actor)
		body = "Turned off"
	} else {
		t := CoolingTargetC
		d.TempC = &t
		text = fmt.Sprintf("Cooling on to %.0f°C by %s", CoolingTargetC, actor)
		body = fmt.Sprintf("Target %.0f°C", CoolingTargetC)
	}
	d.UpdatedAt = r.clk.Now().UTC()

	if err := r.repo.Update(ctx, d); err != nil {
		return nil, err
	}

	r.recordAudit(ctx, audit.KindCooling, id, actor, text)
	r.notifier.Send("Cooling updated", body)
	r.broadcast.DeviceStateChanged(*d.DeepCopy())

	r.logger.Info("cooling toggled", "id", id, "cooling", d.Cooling(), "actor", actor)
	return d.DeepCopy(), nil
}

// SetLocked sets the lock state directly, bypassing guards. Used by the
// access ledger for code-driven unlocks and deferred re-locks, where
// last-writer-wins semantics apply.
func (r *Registry) SetLocked(ctx context.Context, id string, locked bool) (*Device, error) {
	return r.apply(ctx, id, func(d *Device) {
		d.Locked = locked
	})
}

// SetOnline records a connectivity change reported by the device.
func (r *Registry) SetOnline(ctx context.Context, id string, online bool) (*Device, error) {
	return r.apply(ctx, id, func(d *Device) {
		d.Online = online
		if online {
			d.LastSeenAt = r.clk.Now().UTC()
		}
	})
}

// SetDoorOpen records a door sensor change reported by the device.
func (r *Registry) SetDoorOpen(ctx context.Context, id string, open bool) (*Device, error) {
	return r.apply(ctx, id, func(d *Device) {
		d.DoorOpen = open
		d.LastSeenAt = r.clk.Now().UTC()
	})
}

// SetBattery records a battery level reported by the device.
// The value is clamped to [0, 100] and rounded to one decimal place.
func (r *Registry) SetBattery(ctx context.Context, id string, pct float64) (*Device, error) {
	return r.apply(ctx, id, func(d *Device) {
		d.BatteryPct = clampBattery(pct)
		d.LastSeenAt = r.clk.Now().UTC()
	})
}

// SetTemp records a compartment temperature reported by the device.
// A nil value means the cooling loop is off.
func (r *Registry) SetTemp(ctx context.Context, id string, tempC *float64) (*Device, error) {
	return r.apply(ctx, id, func(d *Device) {
		if tempC == nil {
			d.TempC = nil
		} else {
			t := *tempC
			d.TempC = &t
		}
		d.LastSeenAt = r.clk.Now().UTC()
	})
}

// apply runs an unconditional mutation against a device under the registry
// mutex and writes it through to the repository.
func (r *Registry) apply(ctx context.Context, id string, mutate func(*Device)) (*Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}

	mutate(d)
	d.UpdatedAt = r.clk.Now().UTC()

	if err := r.repo.Update(ctx, d); err != nil {
		return nil, err
	}

	r.broadcast.DeviceStateChanged(*d.DeepCopy())
	return d.DeepCopy(), nil
}

// Tick advances every online device by one telemetry interval. Offline
// devices report nothing, so the tick skips them entirely:
//
//   - the battery drains by DrainCooling while the compressor runs,
//     DrainIdle otherwise, clamped to [0, 100] and rounded to one decimal
//   - the low_battery alert is raised once at or below LowBatteryThreshold
//   - at or below CriticalBatteryThreshold the compressor shuts down and,
//     if the door is closed, the box locks itself. The self-lock skips the
//     door guard: a closed box must never be left unlocked by a dead battery.
//   - last_seen_at advances to the tick time
//
// Per-device persistence failures are logged and do not stop the sweep.
func (r *Registry) Tick(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clk.Now().UTC()

	for _, d := range r.devices {
		if !d.Online {
			continue
		}

		drain := DrainIdle
		if d.Cooling() {
			drain = DrainCooling
		}
		d.BatteryPct = clampBattery(d.BatteryPct - drain)

		if d.BatteryPct <= LowBatteryThreshold {
			d.AddAlert(AlertLowBattery)
		}

		if d.BatteryPct <= CriticalBatteryThreshold {
			d.TempC = nil
			if !d.DoorOpen {
				d.Locked = true
			}
		}

		d.LastSeenAt = now
		d.UpdatedAt = now

		if err := r.repo.Update(ctx, d); err != nil {
			r.logger.Error("persisting tick state", "id", d.ID, "error", err)
			continue
		}

		r.metrics.WriteDeviceMetric(d.ID, "battery_pct", d.BatteryPct)
		if d.TempC != nil {
			r.metrics.WriteDeviceMetric(d.ID, "temp_c", *d.TempC)
		}

		r.broadcast.DeviceStateChanged(*d.DeepCopy())
	}
}

// recordAudit writes an audit entry, logging rather than failing the
// command: the state change has already been committed.
func (r *Registry) recordAudit(ctx context.Context, kind audit.Kind, deviceID, actor, text string) {
	if _, err := r.auditor.Record(ctx, kind, deviceID, actor, text); err != nil {
		r.logger.Error("recording audit entry", "device_id", deviceID, "error", err)
	}
}

// Count returns the number of registered devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Stats holds registry statistics for monitoring.
type Stats struct {
	TotalDevices int
	Online       int
	Cooling      int
	LowBattery   int
	ByVariant    map[Variant]int
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		TotalDevices: len(r.devices),
		ByVariant:    make(map[Variant]int),
	}

	for _, d := range r.devices {
		stats.ByVariant[d.Variant]++
		if d.Online {
			stats.Online++
		}
		if d.Cooling() {
			stats.Cooling++
		}
		if d.HasAlert(AlertLowBattery) {
			stats.LowBattery++
		}
	}

	return stats
}
