package mqttio

import "fmt"

// Topics builds the bridge's MQTT topic strings. The base prefix is
// "cyncbridge" throughout, mirroring a single-tenant deployment per
// site (spec §4.6).
type Topics struct{}

// SystemStatus is the bridge's own LWT / online-offline status topic.
func (Topics) SystemStatus() string {
	return "cyncbridge/system/status"
}

// DeviceState is the retained state topic for one device.
func (Topics) DeviceState(deviceID int) string {
	return fmt.Sprintf("cyncbridge/device/%d/state", deviceID)
}

// DeviceAvailability is the retained online/offline topic for one device.
func (Topics) DeviceAvailability(deviceID int) string {
	return fmt.Sprintf("cyncbridge/device/%d/availability", deviceID)
}

// DeviceCommand is the topic a device listens on for inbound commands.
func (Topics) DeviceCommand(deviceID int) string {
	return fmt.Sprintf("cyncbridge/device/%d/set", deviceID)
}

// DeviceCommandWildcard subscribes to every device's command topic.
func (Topics) DeviceCommandWildcard() string {
	return "cyncbridge/device/+/set"
}

// GroupState is the retained state topic for one group.
func (Topics) GroupState(groupID int) string {
	return fmt.Sprintf("cyncbridge/group/%d/state", groupID)
}

// GroupCommand is the topic a group listens on for inbound commands.
func (Topics) GroupCommand(groupID int) string {
	return fmt.Sprintf("cyncbridge/group/%d/set", groupID)
}

// GroupCommandWildcard subscribes to every group's command topic.
func (Topics) GroupCommandWildcard() string {
	return "cyncbridge/group/+/set"
}

// DiscoveryConfig builds a Home Assistant discovery config topic for a
// device's light/switch/fan entity under the given HA discovery prefix.
func (Topics) DiscoveryConfig(prefix, component string, deviceID int) string {
	return fmt.Sprintf("%s/%s/cyncbridge_%d/config", prefix, component, deviceID)
}
