package mqttio

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cyncbridge/cyncbridge/internal/config"
	"github.com/cyncbridge/cyncbridge/internal/device"
)

// lightDiscoveryPayload is the Home Assistant MQTT discovery document
// for a dimmable/tunable-white/RGB light, grounded on the original
// create_bridge_device / homeassistant_discovery behavior: one config
// topic per device, state/command topics pointed at our own topics,
// and suggested_area derived from the device's primary room group.
type lightDiscoveryPayload struct {
	Name              string   `json:"name"`
	UniqueID          string   `json:"unique_id"`
	StateTopic        string   `json:"state_topic"`
	CommandTopic      string   `json:"command_topic"`
	SchemaType        string   `json:"schema"`
	Brightness        bool     `json:"brightness,omitempty"`
	ColorTempKelvin   bool     `json:"color_temp_kelvin,omitempty"`
	SupportedColorModes []string `json:"supported_color_modes,omitempty"`
	AvailabilityTopic string   `json:"availability_topic"`
	PayloadAvailable  string   `json:"payload_available"`
	PayloadNotAvail   string   `json:"payload_not_available"`
	SuggestedArea     string   `json:"suggested_area,omitempty"`
	Device            haDevice `json:"device"`
}

type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	ViaDevice    string   `json:"via_device,omitempty"`
}

// stripNameSuffixes removes one trailing " Light"/" Switch"/" Plug"/" Fan" from a
// device's configured name before using it as the HA entity name,
// matching the original discovery name-suffix stripping.
func stripNameSuffixes(name string) string {
	for _, suffix := range []string{" Light", " Switch", " Plug", " Fan"} {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return name
}

// BuildLightDiscovery constructs the discovery payload for a single
// light/switch/plug/fan device.
func BuildLightDiscovery(d *device.Device, area string, bridgeID string) ([]byte, error) {
	uniqueID := fmt.Sprintf("cyncbridge_%d", d.ID)
	modes := []string{}
	if d.Caps.RGB {
		modes = append(modes, "rgb")
	}
	if d.Caps.TunableWhite {
		modes = append(modes, "color_temp")
	}
	if len(modes) == 0 && d.Caps.Dimmable {
		modes = append(modes, "brightness")
	}
	if len(modes) == 0 {
		modes = append(modes, "onoff")
	}

	payload := lightDiscoveryPayload{
		Name:                stripNameSuffixes(d.Name),
		UniqueID:            uniqueID,
		StateTopic:          (Topics{}).DeviceState(int(d.ID)),
		CommandTopic:        (Topics{}).DeviceCommand(int(d.ID)),
		SchemaType:          "json",
		Brightness:          d.Caps.Dimmable,
		ColorTempKelvin:     d.Caps.TunableWhite,
		SupportedColorModes: modes,
		AvailabilityTopic:   (Topics{}).DeviceAvailability(int(d.ID)),
		PayloadAvailable:    "online",
		PayloadNotAvail:     "offline",
		SuggestedArea:       area,
		Device: haDevice{
			Identifiers:  []string{uniqueID},
			Name:         d.Name,
			Manufacturer: "Cync",
			ViaDevice:    bridgeID,
		},
	}
	return json.Marshal(payload)
}

// ConfigTopic returns the discovery config topic for a device, choosing
// the "light" component unconditionally: plugs, switches and fans still
// publish as lights, with brightness and color support taken from the
// device's capabilities (dimmable switches get brightness), matching the
// original bridge's behavior of exposing everything through one
// component family for simplicity.
func ConfigTopic(cfg config.DiscoveryConfig, deviceID int) string {
	return (Topics{}).DiscoveryConfig(cfg.Prefix, "light", deviceID)
}
