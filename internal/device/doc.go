// Package device implements the lockbox state machine and registry.
//
// The Registry owns the live state of every lockbox: lock and door state,
// connectivity, battery level, cooling, and raised alerts. All mutations
// go through the Registry, which serialises them under one mutex so that
// guard checks and the writes they protect are atomic, then writes the
// result through to a Repository (SQLite in production).
//
// # State machine
//
// Commands are guarded by the device's current state:
//
//   - ToggleLock requires the device online, and rejects locking while
//     the door is open
//   - ToggleCooling requires a cooling variant, the device online, and
//     battery above the critical threshold
//
// Guard rejections are sentinel errors recognised by IsGuardViolation;
// they mean "command understood, state forbids it", never a fault.
//
// The periodic Tick drains the battery, raises the low_battery alert once
// at the low threshold, and at the critical threshold shuts cooling down
// and locks a closed box, bypassing the door guard.
//
// Telemetry setters (SetOnline, SetDoorOpen, SetBattery, SetTemp) and the
// ledger-driven SetLocked are unconditional: they record what the device
// or the access ledger already decided, last writer wins.
package device
