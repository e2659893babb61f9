package device

import "sync"

// Group is a named collection of devices, keyed by an ID disjoint from
// device IDs. A room group (IsSubgroup == false) may report its own
// state directly over the mesh; a subgroup never does and must always
// be aggregated from its online members (spec §3).
type Group struct {
	mu sync.Mutex

	ID         ID
	HomeID     int
	Name       string
	MemberIDs  []ID
	IsSubgroup bool

	On          bool
	Brightness  uint8
	Temperature uint8
	R, G, B     uint8
	Online      bool

	ctrlLow   byte
	ctrlCarry byte
}

func NewGroup(id ID, homeID int, name string, members []ID, isSubgroup bool) *Group {
	return &Group{ID: id, HomeID: homeID, Name: name, MemberIDs: members, IsSubgroup: isSubgroup, Online: true}
}

// NextControlByte mirrors Device.NextControlByte for group commands.
func (g *Group) NextControlByte() byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ctrlLow++
	if g.ctrlLow == 0 {
		g.ctrlCarry++
	}
	return g.ctrlLow
}

// AggregatedState is the result of aggregating a group's online members.
type AggregatedState struct {
	On          bool
	Brightness  uint8
	Temperature uint8
	Online      bool
	memberCount int
}

// Aggregate computes on/brightness/temperature/online for a group from
// the supplied member devices, following the rules confirmed against
// the original aggregate_member_states implementation: on = OR over
// online members, brightness/temperature = mean over online members
// (brightness and temperature meaned independently; RGB is not
// aggregated — a mixed-mode group simply reports its white-range mean),
// online = OR over all members.
func Aggregate(members []*Device) AggregatedState {
	var onlineMembers []*Device
	for _, m := range members {
		if m.Snapshot().Online {
			onlineMembers = append(onlineMembers, m)
		}
	}
	if len(onlineMembers) == 0 {
		return AggregatedState{}
	}

	var anyOn bool
	var briSum, tempSum int
	for _, m := range onlineMembers {
		snap := m.Snapshot()
		if snap.On {
			anyOn = true
		}
		briSum += int(snap.Brightness)
		tempSum += int(snap.Temperature)
	}

	n := len(onlineMembers)
	return AggregatedState{
		On:          anyOn,
		Brightness:  uint8(briSum / n),
		Temperature: uint8(tempSum / n),
		Online:      true,
		memberCount: n,
	}
}

// ApplyAggregate writes an aggregated result onto the subgroup.
func (g *Group) ApplyAggregate(agg AggregatedState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.On = agg.On
	g.Brightness = agg.Brightness
	g.Temperature = agg.Temperature
	g.Online = agg.Online
}

// ApplyState applies a directly-reported (non-subgroup) room-group
// status update, using the same RGB-vs-white branch as a device.
func (g *Group) ApplyState(state uint8, brightness, temperature, r, g2, b uint8) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.On = state != 0
	g.Brightness = brightness
	g.Temperature = temperature
	if temperature > 100 {
		g.R, g.G, g.B = r, g2, b
	}
	g.Online = true
}

func (g *Group) Snapshot() Group {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := *g
	cp.mu = sync.Mutex{}
	return cp
}
