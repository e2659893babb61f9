package device

import "testing"

func TestAggregateSkipsOfflineMembers(t *testing.T) {
	online := NewDevice(1, 0, "a", KindLight)
	online.ApplyState(1, 100, 50, 0, 0, 0)

	offline := NewDevice(2, 0, "b", KindLight)
	offline.ApplyState(1, 0, 0, 0, 0, 0)
	for i := 0; i < offlineThreshold; i++ {
		offline.ApplyOnlineByte(0)
	}

	agg := Aggregate([]*Device{online, offline})
	if !agg.On {
		t.Fatalf("expected On true, driven by the single online member")
	}
	if agg.Brightness != 100 {
		t.Fatalf("brightness = %d, want 100 (offline member excluded from mean)", agg.Brightness)
	}
}

func TestAggregateMeansBrightnessAndTemperatureOverOnlineMembers(t *testing.T) {
	a := NewDevice(1, 0, "a", KindLight)
	a.ApplyState(1, 40, 20, 0, 0, 0)
	b := NewDevice(2, 0, "b", KindLight)
	b.ApplyState(0, 60, 40, 0, 0, 0)

	agg := Aggregate([]*Device{a, b})
	if agg.Brightness != 50 {
		t.Fatalf("brightness = %d, want 50", agg.Brightness)
	}
	if agg.Temperature != 30 {
		t.Fatalf("temperature = %d, want 30", agg.Temperature)
	}
	if !agg.On {
		t.Fatalf("expected On true: at least one member (a) is on")
	}
}

func TestAggregateAllOfflineYieldsZeroValue(t *testing.T) {
	a := NewDevice(1, 0, "a", KindLight)
	for i := 0; i < offlineThreshold; i++ {
		a.ApplyOnlineByte(0)
	}

	agg := Aggregate([]*Device{a})
	if agg.Online {
		t.Fatalf("expected Online false when every member is offline")
	}
}

func TestGroupApplyStateRGBBranch(t *testing.T) {
	g := NewGroup(100, 0, "room", []ID{1, 2}, false)
	g.ApplyState(1, 70, 254, 5, 6, 7)
	snap := g.Snapshot()
	if snap.R != 5 || snap.G != 6 || snap.B != 7 {
		t.Fatalf("expected RGB written in color mode, got %d/%d/%d", snap.R, snap.G, snap.B)
	}
}

func TestGroupApplyAggregateWritesThrough(t *testing.T) {
	g := NewGroup(200, 0, "subgroup", []ID{1, 2}, true)
	g.ApplyAggregate(AggregatedState{On: true, Brightness: 55, Temperature: 33, Online: true})
	snap := g.Snapshot()
	if !snap.On || snap.Brightness != 55 || snap.Temperature != 33 || !snap.Online {
		t.Fatalf("unexpected group state after ApplyAggregate: %+v", snap)
	}
}
