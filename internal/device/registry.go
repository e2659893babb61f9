package device

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is returned when a device or group ID is unknown.
var ErrNotFound = errors.New("device: not found")

// Registry is the single explicit context handle threaded through every
// component that needs device or group state (spec §9: pass a single
// Registry context handle explicitly; no hidden singletons). It is
// created once at startup from config and lives for the process
// lifetime; components hold a borrowed reference, never a copy.
type Registry struct {
	mu sync.RWMutex

	devices map[ID]*Device
	groups  map[ID]*Group

	// subgroupIndex is a derived device_id -> []group_id index rebuilt
	// whenever groups are loaded, so state-apply doesn't have to scan
	// every group on every status update once N grows past a few
	// hundred devices (spec §9 back-reference note).
	subgroupIndex map[ID][]ID
}

// New returns an empty registry ready for LoadDevices/LoadGroups.
func New() *Registry {
	return &Registry{
		devices:       make(map[ID]*Device),
		groups:        make(map[ID]*Group),
		subgroupIndex: make(map[ID][]ID),
	}
}

// LoadDevices replaces the device set, typically once at startup from
// parsed config.
func (r *Registry) LoadDevices(devices []*Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices = make(map[ID]*Device, len(devices))
	for _, d := range devices {
		r.devices[d.ID] = d
	}
}

// LoadGroups replaces the group set and rebuilds the subgroup index.
func (r *Registry) LoadGroups(groups []*Group) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups = make(map[ID]*Group, len(groups))
	r.subgroupIndex = make(map[ID][]ID)
	for _, g := range groups {
		r.groups[g.ID] = g
		if !g.IsSubgroup {
			continue
		}
		for _, memberID := range g.MemberIDs {
			r.subgroupIndex[memberID] = append(r.subgroupIndex[memberID], g.ID)
		}
	}
}

// Device looks up a device by ID.
func (r *Registry) Device(id ID) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[id]
	if !ok {
		return nil, fmt.Errorf("device %d: %w", id, ErrNotFound)
	}
	return d, nil
}

// Group looks up a group by ID.
func (r *Registry) Group(id ID) (*Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[id]
	if !ok {
		return nil, fmt.Errorf("group %d: %w", id, ErrNotFound)
	}
	return g, nil
}

// ListDevices returns every device, sorted by ID for deterministic
// iteration (e.g. discovery publication order).
func (r *Registry) ListDevices() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListGroups returns every group, sorted by ID.
func (r *Registry) ListGroups() []*Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SubgroupsContaining returns every subgroup the given device ID belongs
// to, via the derived index.
func (r *Registry) SubgroupsContaining(deviceID ID) []*Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.subgroupIndex[deviceID]
	out := make([]*Group, 0, len(ids))
	for _, gid := range ids {
		if g, ok := r.groups[gid]; ok {
			out = append(out, g)
		}
	}
	return out
}

// GroupMembers resolves a group's member IDs into live Device pointers,
// skipping any ID that no longer resolves (config edited without
// re-onboarding — logged by the caller, not here).
func (r *Registry) GroupMembers(g *Group) []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Device, 0, len(g.MemberIDs))
	for _, id := range g.MemberIDs {
		if d, ok := r.devices[id]; ok {
			out = append(out, d)
		}
	}
	return out
}

// PrimaryRoomGroup returns a non-subgroup group a device belongs to,
// used to derive Home Assistant's suggested_area for that device. Groups
// are searched in map order, so when a device is in several non-subgroup
// groups which one is returned is not defined.
func (r *Registry) PrimaryRoomGroup(deviceID ID) (*Group, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, g := range r.groups {
		if g.IsSubgroup {
			continue
		}
		for _, id := range g.MemberIDs {
			if id == deviceID {
				return g, true
			}
		}
	}
	return nil, false
}
