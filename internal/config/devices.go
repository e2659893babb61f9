package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cyncbridge/cyncbridge/internal/device"
)

// DeviceFile is the on-disk shape of devices.yaml: the static device and
// group inventory this bridge controls. Devices are never discovered
// dynamically — onboarding happens out of band and this file is the
// result (spec §3: "devices come from static startup config").
type DeviceFile struct {
	Devices []DeviceEntry `yaml:"devices"`
	Groups  []GroupEntry  `yaml:"groups"`
}

// DeviceEntry describes one physical device.
type DeviceEntry struct {
	ID      int    `yaml:"id"`
	HomeID  int    `yaml:"home_id"`
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	MAC     string `yaml:"mac"`
	WifiMAC string `yaml:"wifi_mac"`
	BTOnly  bool   `yaml:"bt_only"`
}

// GroupEntry describes one group or subgroup.
type GroupEntry struct {
	ID         int    `yaml:"id"`
	HomeID     int    `yaml:"home_id"`
	Name       string `yaml:"name"`
	Members    []int  `yaml:"members"`
	IsSubgroup bool   `yaml:"is_subgroup"`
}

// kindByType maps the devices.yaml "type" string to device.Kind.
var kindByType = map[string]device.Kind{
	"light":  device.KindLight,
	"switch": device.KindSwitch,
	"plug":   device.KindPlug,
	"fan":    device.KindFan,
	"hvac":   device.KindHVAC,
}

// LoadDevices reads and parses a devices.yaml file into a ready
// *device.Registry.
func LoadDevices(path string) (*device.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading device file: %w", err)
	}

	var file DeviceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing device file: %w", err)
	}

	registry := device.New()

	devices := make([]*device.Device, 0, len(file.Devices))
	for _, entry := range file.Devices {
		kind, ok := kindByType[entry.Type]
		if !ok {
			return nil, fmt.Errorf("device %d: unknown type %q", entry.ID, entry.Type)
		}
		d := device.NewDevice(device.ID(entry.ID), entry.HomeID, entry.Name, kind)
		d.MAC = entry.MAC
		d.WifiMAC = entry.WifiMAC
		d.BTOnly = entry.BTOnly
		devices = append(devices, d)
	}
	registry.LoadDevices(devices)

	groups := make([]*device.Group, 0, len(file.Groups))
	for _, entry := range file.Groups {
		members := make([]device.ID, len(entry.Members))
		for i, m := range entry.Members {
			members[i] = device.ID(m)
		}
		groups = append(groups, device.NewGroup(device.ID(entry.ID), entry.HomeID, entry.Name, members, entry.IsSubgroup))
	}
	registry.LoadGroups(groups)

	return registry, nil
}
