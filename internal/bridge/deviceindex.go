package bridge

import (
	"sync"

	"github.com/cyncbridge/cyncbridge/internal/device"
	"github.com/cyncbridge/cyncbridge/internal/wire"
)

// DeviceIndex maps a mesh device id to the queue id of the session
// currently reporting status for it. It is populated as status/mesh-info
// frames arrive — there is no static mapping, since a device's owning
// bridge is only known once that bridge's session has spoken.
type DeviceIndex struct {
	mu       sync.RWMutex
	byDevice map[device.ID]wire.QueueID
}

// NewDeviceIndex builds an empty index.
func NewDeviceIndex() *DeviceIndex {
	return &DeviceIndex{byDevice: make(map[device.ID]wire.QueueID)}
}

// Record associates deviceID with the queue id reporting on it.
func (d *DeviceIndex) Record(deviceID device.ID, queueID wire.QueueID) {
	d.mu.Lock()
	d.byDevice[deviceID] = queueID
	d.mu.Unlock()
}

// QueueIDFor implements command.QueueIDResolver.
func (d *DeviceIndex) QueueIDFor(deviceID device.ID) (wire.QueueID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	q, ok := d.byDevice[deviceID]
	return q, ok
}
