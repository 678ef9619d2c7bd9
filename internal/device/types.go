package device

import (
	"math"
	"sort"
	"time"
)

// Variant identifies the lockbox hardware model.
type Variant string

// Lockbox variants.
const (
	VariantStandard Variant = "standard" // single-compartment box
	VariantShared   Variant = "shared"   // multi-tenant lobby box
	VariantCooling  Variant = "cooling"  // refrigerated compartment
)

// Valid reports whether v is a known variant.
func (v Variant) Valid() bool {
	switch v {
	case VariantStandard, VariantShared, VariantCooling:
		return true
	}
	return false
}

// DefaultName returns the out-of-box display name for a variant.
func (v Variant) DefaultName() string {
	switch v {
	case VariantShared:
		return "Lobby Box"
	case VariantCooling:
		return "Kitchen Box"
	default:
		return "Porch Box"
	}
}

// State machine constants. These are contract values, not tuning knobs:
// changing them changes observable device behaviour.
const (
	// DrainCooling is the battery percentage drained per telemetry tick
	// while the compressor runs (TempC is set).
	DrainCooling = 0.2

	// DrainIdle is the battery percentage drained per telemetry tick
	// while cooling is off.
	DrainIdle = 0.05

	// LowBatteryThreshold is the level at or below which the low_battery
	// alert is raised.
	LowBatteryThreshold = 15.0

	// CriticalBatteryThreshold is the level at or below which cooling is
	// forced off and a closed box locks itself.
	CriticalBatteryThreshold = 5.0

	// CoolingTargetC is the fixed compartment setpoint when cooling is on.
	CoolingTargetC = 4.0
)

// AlertLowBattery is raised once when the battery crosses the low threshold.
const AlertLowBattery = "low_battery"

// Device is a single lockbox and its last reported state.
type Device struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Variant Variant `json:"variant"`

	// Connectivity. Offline devices reject commands but keep draining.
	Online bool `json:"online"`

	// Physical state.
	Locked     bool     `json:"locked"`
	DoorOpen   bool     `json:"door_open"`
	BatteryPct float64  `json:"battery_pct"`
	TempC      *float64 `json:"temp_c"` // nil when cooling is off

	// Alerts is a deduplicated set of raised alert names, sorted.
	Alerts []string `json:"alerts"`

	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Cooling reports whether the compressor is currently running.
func (d *Device) Cooling() bool {
	return d.TempC != nil
}

// HasAlert reports whether the named alert has been raised.
func (d *Device) HasAlert(name string) bool {
	for _, a := range d.Alerts {
		if a == name {
			return true
		}
	}
	return false
}

// AddAlert raises an alert. Adding an already-raised alert is a no-op,
// so repeated threshold crossings produce a single entry.
func (d *Device) AddAlert(name string) {
	if d.HasAlert(name) {
		return
	}
	d.Alerts = append(d.Alerts, name)
	sort.Strings(d.Alerts)
}

// DeepCopy creates a complete independent copy of the Device.
// Slice and pointer fields are cloned so modifications to the copy
// do not affect the original. This is essential for cache isolation.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d

	if d.TempC != nil {
		t := *d.TempC
		cpy.TempC = &t
	}

	if d.Alerts != nil {
		cpy.Alerts = make([]string, len(d.Alerts))
		copy(cpy.Alerts, d.Alerts)
	}

	return &cpy
}

// clampBattery bounds a battery level to [0, 100] and rounds it to one
// decimal place, matching what the device firmware reports.
func clampBattery(pct float64) float64 {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return math.Round(pct*10) / 10
}
