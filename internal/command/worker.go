package command

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cyncbridge/cyncbridge/internal/device"
	"github.com/cyncbridge/cyncbridge/internal/wire"
)

// ackWaitTimeout is how long the worker waits for a control-ack before
// treating the command as timed out (spec §5).
const ackWaitTimeout = 2 * time.Second

// settleDelay is the pause after an ack (or timeout) before the worker
// requests a mesh-info refresh, giving the mesh time to converge.
const settleDelay = 500 * time.Millisecond

// FrameSender is the subset of bridge.Registry the worker needs to
// deliver frames to one or more live device sessions.
type FrameSender interface {
	SendToPrimary(queueID wire.QueueID, frame []byte) error
	Broadcast(queueID wire.QueueID, frame []byte) int
}

// QueueIDResolver maps a device ID to the physical bridge's queue id,
// populated as devices identify themselves over the wire.
type QueueIDResolver interface {
	QueueIDFor(deviceID device.ID) (wire.QueueID, bool)
}

// Publisher is the subset of mqttio.Client the worker needs for
// optimistic state publication ahead of a command's ack.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MeshRefresher requests a mesh-info re-read after a command settles.
type MeshRefresher interface {
	RequestMeshInfo(queueID wire.QueueID) error
}

// Logger is the narrow logging surface the worker needs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Worker executes one Command at a time: optimistic publish, fan-out
// send, ack wait, settle, mesh refresh.
type Worker struct {
	registry  *device.Registry
	sender    FrameSender
	resolver  QueueIDResolver
	publisher Publisher
	mesh      MeshRefresher
	logger    Logger

	acksMu sync.Mutex
	acks   map[ackKey]chan wire.ControlAck
}

type ackKey struct {
	queueID wire.QueueID
	msgID   byte
}

// NewWorker wires a Worker to its collaborators.
func NewWorker(registry *device.Registry, sender FrameSender, resolver QueueIDResolver, publisher Publisher, mesh MeshRefresher, logger Logger) *Worker {
	return &Worker{
		registry:  registry,
		sender:    sender,
		resolver:  resolver,
		publisher: publisher,
		mesh:      mesh,
		logger:    logger,
		acks:      make(map[ackKey]chan wire.ControlAck),
	}
}

// NotifyAck is called by the bridge's frame handler when a control-ack
// frame arrives, waking whichever Execute call is waiting on it.
func (w *Worker) NotifyAck(queueID wire.QueueID, ack wire.ControlAck) {
	key := ackKey{queueID: queueID, msgID: ack.MsgID}
	w.acksMu.Lock()
	ch, ok := w.acks[key]
	w.acksMu.Unlock()
	if ok {
		select {
		case ch <- ack:
		default:
		}
	}
}

func (w *Worker) registerWaiter(queueID wire.QueueID, msgID byte) chan wire.ControlAck {
	ch := make(chan wire.ControlAck, 1)
	key := ackKey{queueID: queueID, msgID: msgID}
	w.acksMu.Lock()
	w.acks[key] = ch
	w.acksMu.Unlock()
	return ch
}

func (w *Worker) unregisterWaiter(queueID wire.QueueID, msgID byte) {
	key := ackKey{queueID: queueID, msgID: msgID}
	w.acksMu.Lock()
	delete(w.acks, key)
	w.acksMu.Unlock()
}

// Execute runs a command's full lifecycle and returns its outcome.
func (w *Worker) Execute(ctx context.Context, cmd *Command) Outcome {
	queueID, ok := w.resolveQueueID(cmd)
	if !ok {
		return Outcome{Err: fmt.Errorf("command: no live session for target")}
	}

	w.applyOptimisticState(cmd)
	w.publishOptimistic(cmd)

	frame, msgID, err := w.buildFrame(cmd, queueID)
	if err != nil {
		return Outcome{Err: err}
	}

	waiter := w.registerWaiter(queueID, msgID)
	defer w.unregisterWaiter(queueID, msgID)

	if cmd.Kind == KindLightshow {
		// Lightshow commands are fire-and-forget: no ack correlation,
		// mirroring the original controller's behavior for effects.
		w.sender.Broadcast(queueID, frame)
		return Outcome{Acked: false}
	}

	if cmd.Target == TargetGroup {
		err = w.sender.SendToPrimary(queueID, frame)
	} else {
		sent := w.sender.Broadcast(queueID, frame)
		if sent == 0 {
			err = fmt.Errorf("command: broadcast reached no sessions")
		}
	}
	if err != nil {
		return Outcome{Err: err}
	}

	acked := w.waitForAck(ctx, waiter)

	select {
	case <-time.After(settleDelay):
	case <-ctx.Done():
		return Outcome{Acked: acked, Err: ctx.Err()}
	}

	if w.mesh != nil {
		if err := w.mesh.RequestMeshInfo(queueID); err != nil && w.logger != nil {
			w.logger.Warn("mesh refresh request failed", "err", err)
		}
	}

	return Outcome{Acked: acked}
}

func (w *Worker) waitForAck(ctx context.Context, waiter chan wire.ControlAck) bool {
	select {
	case ack := <-waiter:
		return ack.Success
	case <-time.After(ackWaitTimeout):
		return false
	case <-ctx.Done():
		return false
	}
}

func (w *Worker) resolveQueueID(cmd *Command) (wire.QueueID, bool) {
	if cmd.Target == TargetDevice {
		return w.resolver.QueueIDFor(device.ID(cmd.TargetID))
	}
	g, err := w.registry.Group(device.ID(cmd.TargetID))
	if err != nil {
		return wire.QueueID{}, false
	}
	members := w.registry.GroupMembers(g)
	if len(members) == 0 {
		return wire.QueueID{}, false
	}
	return w.resolver.QueueIDFor(members[0].ID)
}

// applyOptimisticState writes the command's intended result onto the
// in-memory device/group state immediately, before the device has
// acked anything, matching the original bridge's optimistic-sync
// behavior ahead of the physical mesh converging.
func (w *Worker) applyOptimisticState(cmd *Command) {
	if cmd.Target == TargetDevice {
		d, err := w.registry.Device(device.ID(cmd.TargetID))
		if err != nil {
			return
		}
		w.applyOptimisticDevice(d, cmd)
		return
	}

	g, err := w.registry.Group(device.ID(cmd.TargetID))
	if err != nil {
		return
	}
	for _, member := range w.registry.GroupMembers(g) {
		w.applyOptimisticDevice(member, cmd)
	}
	if !g.IsSubgroup {
		g.ApplyState(boolToByte(cmd.On), cmd.Brightness, cmd.Temperature, cmd.R, cmd.G, cmd.B)
	}
}

func (w *Worker) applyOptimisticDevice(d *device.Device, cmd *Command) {
	switch cmd.Kind {
	case KindPower:
		d.ApplyState(boolToByte(cmd.On), currentBrightness(d), currentTemperature(d), 0, 0, 0)
	case KindBrightness:
		d.ApplyState(boolToByte(cmd.Brightness > 0), cmd.Brightness, currentTemperature(d), 0, 0, 0)
	case KindTemperature:
		d.ApplyState(1, currentBrightness(d), cmd.Temperature, 0, 0, 0)
	case KindRGB:
		d.ApplyState(1, currentBrightness(d), 254, cmd.R, cmd.G, cmd.B)
	case KindFanSpeed:
		d.ApplyState(boolToByte(fanSpeedPercent(cmd.FanSpeed) > 0), uint8(fanSpeedPercent(cmd.FanSpeed)), currentTemperature(d), 0, 0, 0)
	}
}

func currentBrightness(d *device.Device) uint8  { return d.Snapshot().Brightness }
func currentTemperature(d *device.Device) uint8 { return d.Snapshot().Temperature }

func boolToByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func (w *Worker) publishOptimistic(cmd *Command) {
	if w.publisher == nil {
		return
	}
	var snap any
	var topic string
	if cmd.Target == TargetDevice {
		d, err := w.registry.Device(device.ID(cmd.TargetID))
		if err != nil {
			return
		}
		s := d.Snapshot()
		snap = stateView{On: s.On, Brightness: s.Brightness, Temperature: s.Temperature, R: s.R, G: s.G, B: s.B}
		topic = fmt.Sprintf("cyncbridge/device/%d/state", cmd.TargetID)
	} else {
		g, err := w.registry.Group(device.ID(cmd.TargetID))
		if err != nil {
			return
		}
		s := g.Snapshot()
		snap = stateView{On: s.On, Brightness: s.Brightness, Temperature: s.Temperature, R: s.R, G: s.G, B: s.B}
		topic = fmt.Sprintf("cyncbridge/group/%d/state", cmd.TargetID)
		for _, m := range w.registry.GroupMembers(g) {
			ms := m.Snapshot()
			memberPayload, err := json.Marshal(stateView{On: ms.On, Brightness: ms.Brightness, Temperature: ms.Temperature, R: ms.R, G: ms.G, B: ms.B})
			if err != nil {
				continue
			}
			if err := w.publisher.Publish(fmt.Sprintf("cyncbridge/device/%d/state", ms.ID), memberPayload, 1, true); err != nil && w.logger != nil {
				w.logger.Warn("optimistic publish failed", "err", err)
			}
		}
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := w.publisher.Publish(topic, payload, 1, true); err != nil && w.logger != nil {
		w.logger.Warn("optimistic publish failed", "err", err)
	}
}

type stateView struct {
	On          bool  `json:"on"`
	Brightness  uint8 `json:"brightness"`
	Temperature uint8 `json:"temperature"`
	R           uint8 `json:"r"`
	G           uint8 `json:"g"`
	B           uint8 `json:"b"`
}
