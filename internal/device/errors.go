package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device with an ID that already exists.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidVariant is returned when a variant value is not recognised.
	ErrInvalidVariant = errors.New("device: invalid variant")
)

// Guard violations. A guard violation means the command was understood but
// the device's current state forbids it; the command has no effect.
var (
	// ErrDeviceOffline is returned when a command reaches a device that is
	// not connected.
	ErrDeviceOffline = errors.New("device: offline")

	// ErrDoorOpen is returned when locking is attempted while the door is open.
	ErrDoorOpen = errors.New("device: door open")

	// ErrBatteryLow is returned when cooling is toggled at or below the
	// critical battery threshold.
	ErrBatteryLow = errors.New("device: battery too low")

	// ErrCoolingUnsupported is returned when cooling is toggled on a
	// variant without a compressor.
	ErrCoolingUnsupported = errors.New("device: cooling unsupported")
)

// IsGuardViolation reports whether err is a state guard rejection rather
// than a hard failure. Callers typically map these to a conflict response
// instead of an internal error.
func IsGuardViolation(err error) bool {
	return errors.Is(err, ErrDeviceOffline) ||
		errors.Is(err, ErrDoorOpen) ||
		errors.Is(err, ErrBatteryLow) ||
		errors.Is(err, ErrCoolingUnsupported)
}
