package reconcile

import (
	"sync"
	"testing"

	"github.com/cyncbridge/cyncbridge/internal/device"
	"github.com/cyncbridge/cyncbridge/internal/wire"
)

type fakePublisher struct {
	mu    sync.Mutex
	calls map[string][]byte
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{calls: make(map[string][]byte)}
}

func (f *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[topic] = payload
	return nil
}

func newTestRegistry() *device.Registry {
	reg := device.New()
	reg.LoadDevices([]*device.Device{
		device.NewDevice(1, 0, "lamp-a", device.KindLight),
		device.NewDevice(2, 0, "lamp-b", device.KindLight),
	})
	reg.LoadGroups([]*device.Group{
		device.NewGroup(100, 0, "room", []device.ID{1, 2}, false),
		device.NewGroup(200, 0, "subgroup", []device.ID{1, 2}, true),
	})
	return reg
}

func TestApplyStatusEntryUpdatesDeviceAndPublishes(t *testing.T) {
	reg := newTestRegistry()
	pub := newFakePublisher()
	r := New(reg, pub, nil)

	err := r.ApplyStatusEntry(wire.StatusEntry{ID: 1, State: 1, Brightness: 80, Temperature: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d, _ := reg.Device(1)
	snap := d.Snapshot()
	if !snap.On || snap.Brightness != 80 {
		t.Fatalf("expected device state applied, got %+v", snap)
	}

	if _, ok := pub.calls["cyncbridge/device/1/state"]; !ok {
		t.Fatalf("expected a device state publish")
	}
}

func TestApplyStatusEntryReaggregatesContainingSubgroups(t *testing.T) {
	reg := newTestRegistry()
	pub := newFakePublisher()
	r := New(reg, pub, nil)

	if err := r.ApplyStatusEntry(wire.StatusEntry{ID: 1, State: 1, Brightness: 100, Temperature: 40}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.ApplyStatusEntry(wire.StatusEntry{ID: 2, State: 1, Brightness: 50, Temperature: 60}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sub, err := reg.Group(200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap := sub.Snapshot()
	if snap.Brightness != 75 {
		t.Fatalf("expected aggregated brightness 75, got %d", snap.Brightness)
	}

	if _, ok := pub.calls["cyncbridge/group/200/state"]; !ok {
		t.Fatalf("expected a subgroup state publish")
	}
}

func TestApplyStatusEntryUnknownDeviceReturnsError(t *testing.T) {
	reg := newTestRegistry()
	r := New(reg, newFakePublisher(), nil)

	if err := r.ApplyStatusEntry(wire.StatusEntry{ID: 999, State: 1}); err == nil {
		t.Fatalf("expected an error for an unknown device id")
	}
}

func TestApplyStatusEntryOfflineHysteresisSuppressesStateWrite(t *testing.T) {
	reg := newTestRegistry()
	r := New(reg, newFakePublisher(), nil)

	for i := 0; i < 3; i++ {
		if err := r.ApplyStatusEntry(wire.StatusEntry{ID: 1, HasOnline: true, Online: 0}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	d, _ := reg.Device(1)
	if d.Snapshot().Online {
		t.Fatalf("expected device to be marked offline after 3 offline reports")
	}

	if err := r.ApplyStatusEntry(wire.StatusEntry{ID: 1, State: 1, Brightness: 99, HasOnline: true, Online: 0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Snapshot().Brightness == 99 {
		t.Fatalf("expected state write to be suppressed while device reports offline")
	}
}

func TestApplyMeshInfoUpdatesMultipleDevicesAndSubgroupOnce(t *testing.T) {
	reg := newTestRegistry()
	pub := newFakePublisher()
	r := New(reg, pub, nil)

	r.ApplyMeshInfo([]wire.MeshDeviceInfo{
		{DeviceID: 1, State: 1, Brightness: 20, Temperature: 30},
		{DeviceID: 2, State: 1, Brightness: 40, Temperature: 30},
	})

	sub, _ := reg.Group(200)
	if snap := sub.Snapshot(); snap.Brightness != 30 {
		t.Fatalf("expected aggregated brightness 30, got %d", snap.Brightness)
	}
	if _, ok := pub.calls["cyncbridge/group/200/state"]; !ok {
		t.Fatalf("expected subgroup state publish from mesh info ingestion")
	}
}
