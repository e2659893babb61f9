// Package device holds the Device and Group data model: per-device and
// per-group state, online hysteresis, the control-byte counter, and
// group aggregation. The Registry is the single explicit handle other
// packages borrow a reference to; there is no package-level singleton.
package device

import "sync"

// ID is a 16-bit device or group identifier. Device and group IDs share
// the numeric space but are disjoint by construction (spec §3).
type ID uint16

// Kind classifies a device's physical capabilities.
type Kind int

const (
	KindLight Kind = iota
	KindSwitch
	KindPlug
	KindFan
	KindHVAC
)

// Capabilities derived from Kind.
type Capabilities struct {
	Dimmable      bool
	TunableWhite  bool
	RGB           bool
	FanControl    bool
	PlugOnly      bool
}

func CapabilitiesFor(k Kind) Capabilities {
	switch k {
	case KindLight:
		return Capabilities{Dimmable: true, TunableWhite: true, RGB: true}
	case KindSwitch:
		return Capabilities{Dimmable: true}
	case KindPlug:
		return Capabilities{PlugOnly: true}
	case KindFan:
		return Capabilities{Dimmable: true, FanControl: true}
	case KindHVAC:
		return Capabilities{}
	default:
		return Capabilities{}
	}
}

// offlineThreshold is the number of consecutive offline reports required
// before a device flips from online to offline (spec §4.4 hysteresis).
const offlineThreshold = 3

// Device is one bridge-controlled peer: a light, switch, plug, or fan.
type Device struct {
	mu sync.Mutex

	ID       ID
	HomeID   int
	Name     string
	Type     Kind
	Caps     Capabilities
	MAC      string
	WifiMAC  string
	Firmware string
	BTOnly   bool

	On          bool
	Brightness  uint8 // 0-100 for lights/switches, 0-255 internally allowed for fans
	Temperature uint8 // 0-100 white range, 129 = effect, 254 = RGB mode
	R, G, B     uint8

	Online        bool
	offlineCount  int
	pendingCmd    bool // diagnostic only, see DESIGN.md — never used for synchronization

	ctrlLow   byte
	ctrlCarry byte
}

// NewDevice constructs a device defaulting to online with capabilities
// derived from kind.
func NewDevice(id ID, homeID int, name string, kind Kind) *Device {
	return &Device{
		ID:     id,
		HomeID: homeID,
		Name:   name,
		Type:   kind,
		Caps:   CapabilitiesFor(kind),
		Online: true,
	}
}

// NextControlByte increments and returns the device's outbound
// control-byte counter, a (low, carry) pair incremented mod 256 used
// both as a message id and folded into the inner-struct checksum.
func (d *Device) NextControlByte() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ctrlLow++
	if d.ctrlLow == 0 {
		d.ctrlCarry++
	}
	return d.ctrlLow
}

// ApplyOnlineByte applies the hysteresis rule for a reported online/
// offline byte, returning true if availability changed (i.e. callers
// should publish an availability update).
func (d *Device) ApplyOnlineByte(onlineByte uint8) (changed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if onlineByte != 0 {
		wasOffline := !d.Online
		d.offlineCount = 0
		d.Online = true
		return wasOffline
	}

	d.offlineCount++
	if d.offlineCount >= offlineThreshold && d.Online {
		d.Online = false
		return true
	}
	return false
}

// ApplyState writes through the reported fields, branching RGB-vs-white
// on temperature > 100 (spec §4.4). Must only be called when the device
// is online.
func (d *Device) ApplyState(state uint8, brightness, temperature, r, g, b uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.On = state != 0
	d.Brightness = brightness
	d.Temperature = temperature
	if temperature > 100 {
		d.R, d.G, d.B = r, g, b
	}
}

// Snapshot returns a value copy of the device's current state, safe to
// hand to callers without risking aliasing writes.
func (d *Device) Snapshot() Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *d
	cp.mu = sync.Mutex{}
	return cp
}

// SetPendingCommand records a purely diagnostic "a command is in
// flight for this device" marker. It is never consulted for
// synchronization — the command queue's single-worker property already
// serializes writes globally (spec §9).
func (d *Device) SetPendingCommand(pending bool) {
	d.mu.Lock()
	d.pendingCmd = pending
	d.mu.Unlock()
}

// PendingCommand reports the diagnostic marker set by SetPendingCommand.
func (d *Device) PendingCommand() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pendingCmd
}
