package device

import "testing"

func newTestRegistry() *Registry {
	r := New()
	r.LoadDevices([]*Device{
		NewDevice(1, 0, "a", KindLight),
		NewDevice(2, 0, "b", KindLight),
		NewDevice(3, 0, "c", KindLight),
	})
	r.LoadGroups([]*Group{
		NewGroup(100, 0, "room", []ID{1, 2, 3}, false),
		NewGroup(200, 0, "subgroup-ab", []ID{1, 2}, true),
		NewGroup(201, 0, "subgroup-c", []ID{3}, true),
	})
	return r
}

func TestRegistryDeviceAndGroupLookup(t *testing.T) {
	r := newTestRegistry()

	if _, err := r.Device(1); err != nil {
		t.Fatalf("unexpected error looking up device 1: %v", err)
	}
	if _, err := r.Device(99); err == nil {
		t.Fatalf("expected error looking up unknown device")
	}
	if _, err := r.Group(100); err != nil {
		t.Fatalf("unexpected error looking up group 100: %v", err)
	}
	if _, err := r.Group(999); err == nil {
		t.Fatalf("expected error looking up unknown group")
	}
}

func TestRegistrySubgroupIndexRebuildsOnLoad(t *testing.T) {
	r := newTestRegistry()

	subs := r.SubgroupsContaining(1)
	if len(subs) != 1 || subs[0].ID != 200 {
		t.Fatalf("expected device 1 to belong to subgroup 200 only, got %+v", subs)
	}

	subs = r.SubgroupsContaining(3)
	if len(subs) != 1 || subs[0].ID != 201 {
		t.Fatalf("expected device 3 to belong to subgroup 201 only, got %+v", subs)
	}

	// Reloading with a different membership must replace the old index,
	// not accumulate onto it.
	r.LoadGroups([]*Group{
		NewGroup(300, 0, "subgroup-all", []ID{1, 2, 3}, true),
	})
	subs = r.SubgroupsContaining(1)
	if len(subs) != 1 || subs[0].ID != 300 {
		t.Fatalf("expected stale subgroup 200 to be gone after reload, got %+v", subs)
	}
}

func TestRegistryGroupMembersSkipsUnresolvedIDs(t *testing.T) {
	r := newTestRegistry()
	r.LoadGroups([]*Group{
		NewGroup(400, 0, "stale-room", []ID{1, 999}, false),
	})
	g, err := r.Group(400)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	members := r.GroupMembers(g)
	if len(members) != 1 || members[0].ID != 1 {
		t.Fatalf("expected only device 1 to resolve, got %+v", members)
	}
}

func TestRegistryPrimaryRoomGroupIgnoresSubgroups(t *testing.T) {
	r := newTestRegistry()
	room, ok := r.PrimaryRoomGroup(1)
	if !ok || room.ID != 100 {
		t.Fatalf("expected device 1's primary room group to be 100, got %+v ok=%v", room, ok)
	}
}

func TestRegistryListsAreSortedByID(t *testing.T) {
	r := newTestRegistry()

	devices := r.ListDevices()
	for i := 1; i < len(devices); i++ {
		if devices[i-1].ID > devices[i].ID {
			t.Fatalf("ListDevices not sorted: %+v", devices)
		}
	}

	groups := r.ListGroups()
	for i := 1; i < len(groups); i++ {
		if groups[i-1].ID > groups[i].ID {
			t.Fatalf("ListGroups not sorted: %+v", groups)
		}
	}
}
