package mqtt

import "fmt"

// Topic prefixes for the BoxBuddy MQTT namespace.
//
// Lockbox firmware publishes telemetry and hardware events under
// boxbuddy/device/{id}/..., and the core publishes canonical state,
// commands and notifications back out on the same hierarchy.
const (
	// TopicPrefix is the base for all BoxBuddy topics.
	TopicPrefix = "boxbuddy"

	// TopicPrefixDevice is the base for per-device topics.
	TopicPrefixDevice = "boxbuddy/device"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "boxbuddy/system"
)

// Topics provides builders for BoxBuddy MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("box-a1b2c3d4")
//	// Returns: "boxbuddy/device/box-a1b2c3d4/state"
type Topics struct{}

// DeviceState returns the canonical device state topic. The core publishes
// the full device snapshot here (retained) after every state change.
//
// Example: boxbuddy/device/box-a1b2c3d4/state
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixDevice, deviceID)
}

// DeviceEvent returns the topic lockbox firmware publishes hardware
// events on (door open/close, connectivity, battery, temperature).
//
// Example: boxbuddy/device/box-a1b2c3d4/event
func (Topics) DeviceEvent(deviceID string) string {
	return fmt.Sprintf("%s/%s/event", TopicPrefixDevice, deviceID)
}

// DeviceCommand returns the topic for commands to lockbox firmware
// (lock, unlock, cooling on/off).
//
// Example: boxbuddy/device/box-a1b2c3d4/command
func (Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/%s/command", TopicPrefixDevice, deviceID)
}

// Event returns the topic for core lifecycle events
// (code.issued, code.redeemed, delivery.completed).
//
// Example: boxbuddy/event/code.redeemed
func (Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefix, eventType)
}

// Notification returns the topic for user-facing notifications.
//
// Example: boxbuddy/notify/event
func (Topics) Notification() string {
	return fmt.Sprintf("%s/notify/event", TopicPrefix)
}

// SystemStatus returns the core online/offline status topic, also used
// for the Last Will and Testament.
//
// Example: boxbuddy/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllDeviceEvents returns a pattern matching hardware events from every
// lockbox.
//
// Pattern: boxbuddy/device/+/event
func (Topics) AllDeviceEvents() string {
	return fmt.Sprintf("%s/+/event", TopicPrefixDevice)
}

// AllDeviceStates returns a pattern matching all canonical device states.
//
// Pattern: boxbuddy/device/+/state
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/+/state", TopicPrefixDevice)
}

// AllTopics returns a pattern matching all BoxBuddy topics.
// Use with caution, this receives ALL traffic.
//
// Pattern: boxbuddy/#
func (Topics) AllTopics() string {
	return "boxbuddy/#"
}
