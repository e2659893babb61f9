package device

import "testing"

func TestApplyOnlineByteRequiresThreeConsecutiveOfflineReports(t *testing.T) {
	d := NewDevice(1, 0, "lamp", KindLight)

	for i := 0; i < offlineThreshold-1; i++ {
		if changed := d.ApplyOnlineByte(0); changed {
			t.Fatalf("report %d: did not expect a change before threshold", i+1)
		}
		if !d.Snapshot().Online {
			t.Fatalf("report %d: device flipped offline before threshold", i+1)
		}
	}

	if changed := d.ApplyOnlineByte(0); !changed {
		t.Fatalf("expected the %dth consecutive offline report to flip the device offline", offlineThreshold)
	}
	if d.Snapshot().Online {
		t.Fatalf("device still reports online after threshold reached")
	}
}

func TestApplyOnlineByteResetsCounterOnAnyOnlineReport(t *testing.T) {
	d := NewDevice(1, 0, "lamp", KindLight)

	d.ApplyOnlineByte(0)
	d.ApplyOnlineByte(0)
	if changed := d.ApplyOnlineByte(1); changed {
		t.Fatalf("an online report while still online should not itself be a change")
	}

	d.ApplyOnlineByte(0)
	d.ApplyOnlineByte(0)
	if d.Snapshot().Online != true {
		t.Fatalf("counter should have reset after the intervening online report")
	}
}

func TestApplyOnlineByteReportsChangeOnRecoveryFromOffline(t *testing.T) {
	d := NewDevice(1, 0, "lamp", KindLight)
	for i := 0; i < offlineThreshold; i++ {
		d.ApplyOnlineByte(0)
	}
	if !d.Snapshot().Online == false {
		t.Fatalf("setup: device should be offline")
	}

	if changed := d.ApplyOnlineByte(1); !changed {
		t.Fatalf("expected recovery from offline to report a change")
	}
	if !d.Snapshot().Online {
		t.Fatalf("device should be online after recovery")
	}
}

func TestApplyStateWritesRGBOnlyInColorMode(t *testing.T) {
	d := NewDevice(1, 0, "lamp", KindLight)

	d.ApplyState(1, 80, 50, 10, 20, 30)
	snap := d.Snapshot()
	if snap.R != 0 || snap.G != 0 || snap.B != 0 {
		t.Fatalf("white-mode update should leave RGB untouched, got %d/%d/%d", snap.R, snap.G, snap.B)
	}
	if !snap.On || snap.Brightness != 80 || snap.Temperature != 50 {
		t.Fatalf("unexpected white-mode state: %+v", snap)
	}

	d.ApplyState(1, 80, 254, 10, 20, 30)
	snap = d.Snapshot()
	if snap.R != 10 || snap.G != 20 || snap.B != 30 {
		t.Fatalf("color-mode update should write RGB, got %d/%d/%d", snap.R, snap.G, snap.B)
	}
}

func TestApplyStateOffClearsOn(t *testing.T) {
	d := NewDevice(1, 0, "lamp", KindLight)
	d.ApplyState(1, 100, 50, 0, 0, 0)
	d.ApplyState(0, 100, 50, 0, 0, 0)
	if d.Snapshot().On {
		t.Fatalf("expected On to be false after a state=0 report")
	}
}

func TestNextControlByteWrapsWithCarry(t *testing.T) {
	d := NewDevice(1, 0, "lamp", KindLight)
	var last byte
	for i := 0; i < 256; i++ {
		last = d.NextControlByte()
	}
	if last != 0 {
		t.Fatalf("expected control byte to wrap to 0 after 256 increments, got %d", last)
	}
	if d.Snapshot().ctrlCarry != 1 {
		t.Fatalf("expected carry to increment once after wrap")
	}
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	d := NewDevice(1, 0, "lamp", KindLight)
	snap := d.Snapshot()
	d.ApplyState(1, 90, 50, 0, 0, 0)
	if snap.Brightness == 90 {
		t.Fatalf("snapshot should not observe later writes")
	}
}

func TestPendingCommandMarker(t *testing.T) {
	d := NewDevice(1, 0, "lamp", KindLight)
	if d.PendingCommand() {
		t.Fatalf("expected no pending command initially")
	}
	d.SetPendingCommand(true)
	if !d.PendingCommand() {
		t.Fatalf("expected pending command marker to be set")
	}
}
