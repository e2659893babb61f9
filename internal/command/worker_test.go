package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cyncbridge/cyncbridge/internal/device"
	"github.com/cyncbridge/cyncbridge/internal/wire"
)

type fakeSender struct {
	mu     sync.Mutex
	frames [][]byte
}

func (f *fakeSender) SendToPrimary(queueID wire.QueueID, frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeSender) Broadcast(queueID wire.QueueID, frame []byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
	return 1
}

type fakeResolver struct{ id wire.QueueID }

func (f fakeResolver) QueueIDFor(deviceID device.ID) (wire.QueueID, bool) { return f.id, true }

type fakePublisher struct {
	mu    sync.Mutex
	calls int
}

func (f *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return nil
}

type fakeMesh struct{ requested int }

func (f *fakeMesh) RequestMeshInfo(queueID wire.QueueID) error {
	f.requested++
	return nil
}

func newTestWorker() (*Worker, *fakeSender, *fakePublisher, *fakeMesh) {
	registry := device.New()
	registry.LoadDevices([]*device.Device{device.NewDevice(7, 0, "lamp", device.KindLight)})

	sender := &fakeSender{}
	publisher := &fakePublisher{}
	mesh := &fakeMesh{}
	w := NewWorker(registry, sender, fakeResolver{id: wire.QueueID{1, 2, 3, 4, 5}}, publisher, mesh, nil)
	return w, sender, publisher, mesh
}

func TestExecutePowerCommandTimesOutWithoutAck(t *testing.T) {
	w, sender, publisher, mesh := newTestWorker()

	cmd := &Command{Kind: KindPower, Target: TargetDevice, TargetID: 7, On: true}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	outcome := w.Execute(ctx, cmd)
	if outcome.Acked {
		t.Fatalf("expected no ack since nothing ever notifies the worker")
	}
	if len(sender.frames) != 1 {
		t.Fatalf("expected 1 frame sent, got %d", len(sender.frames))
	}
	if publisher.calls != 1 {
		t.Fatalf("expected 1 optimistic publish, got %d", publisher.calls)
	}
	if mesh.requested != 1 {
		t.Fatalf("expected mesh refresh requested once, got %d", mesh.requested)
	}
}

func TestExecuteAppliesOptimisticStateBeforeAck(t *testing.T) {
	w, _, _, _ := newTestWorker()

	cmd := &Command{Kind: KindBrightness, Target: TargetDevice, TargetID: 7, Brightness: 66}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	go w.Execute(ctx, cmd)

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		d, _ := w.registry.Device(7)
		if d.Snapshot().Brightness == 66 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected optimistic brightness to be applied quickly")
}

func TestNotifyAckUnblocksWaitingExecute(t *testing.T) {
	w, _, _, _ := newTestWorker()

	cmd := &Command{Kind: KindPower, Target: TargetDevice, TargetID: 7, On: true}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	resultCh := make(chan Outcome, 1)
	go func() {
		resultCh <- w.Execute(ctx, cmd)
	}()

	// Give Execute time to register its waiter, then notify with the
	// control byte the device would have allocated (first call -> 1).
	time.Sleep(50 * time.Millisecond)
	w.NotifyAck(wire.QueueID{1, 2, 3, 4, 5}, wire.ControlAck{MsgID: 1, Kind: 0xD0, Success: true})

	select {
	case outcome := <-resultCh:
		if !outcome.Acked {
			t.Fatalf("expected acked outcome")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for Execute to return after NotifyAck")
	}
}
