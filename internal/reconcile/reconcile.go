// Package reconcile turns inbound mesh status reports into device/group
// registry updates and the resulting MQTT publications: the online
// hysteresis dispatch, subgroup re-aggregation, and mesh-info bulk
// ingestion (spec §4.4).
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cyncbridge/cyncbridge/internal/device"
	"github.com/cyncbridge/cyncbridge/internal/eventlog"
	"github.com/cyncbridge/cyncbridge/internal/wire"
)

// Publisher is the subset of mqttio.Client the reconciler needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Streamer is the subset of api.Hub the reconciler needs to feed the
// diagnostics WebSocket with reconciliation events. Optional — a nil
// Streamer simply skips the broadcast.
type Streamer interface {
	Broadcast(event any)
}

// EventRecorder is the subset of eventlog.Repository used to record
// observed state transitions to the append-only audit trail. Optional —
// a nil EventRecorder simply skips recording.
type EventRecorder interface {
	RecordState(ctx context.Context, e eventlog.StateEvent) error
}

// MetricsSink is the subset of metrics.Client used to record device
// telemetry as it's reconciled. Optional — a nil MetricsSink simply
// skips the write (spec §9: metrics are ambient, never load-bearing).
type MetricsSink interface {
	WriteDeviceState(deviceID int, brightness, temperature uint8, online bool)
}

// Reconciler applies status reports to the registry and republishes
// affected device/group/subgroup state.
type Reconciler struct {
	registry  *device.Registry
	publisher Publisher
	streamer  Streamer
	events    EventRecorder
	metrics   MetricsSink
}

// New builds a Reconciler over registry, publishing through publisher
// and (optionally) streaming to a diagnostics Hub.
func New(registry *device.Registry, publisher Publisher, streamer Streamer) *Reconciler {
	return &Reconciler{registry: registry, publisher: publisher, streamer: streamer}
}

// SetEventRecorder attaches the append-only audit log. Separate from
// New so tests that don't care about the event log can omit it.
func (r *Reconciler) SetEventRecorder(events EventRecorder) {
	r.events = events
}

// SetMetricsSink attaches the optional InfluxDB telemetry sink.
func (r *Reconciler) SetMetricsSink(sink MetricsSink) {
	r.metrics = sink
}

// ApplyStatusEntry applies one parsed status tuple (from an inbound
// 0x43/0x83 status report) to the device it names, then re-aggregates
// every subgroup the device belongs to.
func (r *Reconciler) ApplyStatusEntry(entry wire.StatusEntry) error {
	d, err := r.registry.Device(device.ID(entry.ID))
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	var onlineChanged bool
	if entry.HasOnline {
		onlineChanged = d.ApplyOnlineByte(entry.Online)
	}

	if d.Snapshot().Online {
		d.ApplyState(entry.State, entry.Brightness, entry.Temperature, entry.R, entry.G, entry.B)
	}

	r.publishDevice(d)
	if onlineChanged {
		r.publishDeviceAvailability(d)
	}
	r.reaggregateSubgroups(entry.ID)
	return nil
}

// ApplyMeshInfo applies a full mesh-info reply (every device the
// bridge's mesh currently reports on) in one pass, then re-aggregates
// every touched subgroup once rather than once per device.
func (r *Reconciler) ApplyMeshInfo(infos []wire.MeshDeviceInfo) {
	touchedSubgroups := make(map[device.ID]struct{})

	for _, info := range infos {
		d, err := r.registry.Device(device.ID(info.DeviceID))
		if err != nil {
			continue
		}
		d.ApplyState(info.State, info.Brightness, info.Temperature, info.R, info.G, info.B)
		r.publishDevice(d)

		for _, g := range r.registry.SubgroupsContaining(device.ID(info.DeviceID)) {
			touchedSubgroups[g.ID] = struct{}{}
		}
	}

	for gid := range touchedSubgroups {
		r.reaggregateGroup(gid)
	}
}

func (r *Reconciler) reaggregateSubgroups(deviceID device.ID) {
	for _, g := range r.registry.SubgroupsContaining(device.ID(deviceID)) {
		r.reaggregateGroup(g.ID)
	}
}

func (r *Reconciler) reaggregateGroup(groupID device.ID) {
	g, err := r.registry.Group(groupID)
	if err != nil {
		return
	}
	members := r.registry.GroupMembers(g)
	agg := device.Aggregate(members)
	g.ApplyAggregate(agg)
	r.publishGroup(g)
}

func (r *Reconciler) publishDevice(d *device.Device) {
	s := d.Snapshot()
	view := stateView{On: s.On, Brightness: s.Brightness, Temperature: s.Temperature, R: s.R, G: s.G, B: s.B}
	r.stream("device", int(s.ID), view)
	r.recordEvent(eventlog.EntityDevice, int(s.ID), view, s.Online)
	if r.metrics != nil {
		r.metrics.WriteDeviceState(int(s.ID), s.Brightness, s.Temperature, s.Online)
	}

	if r.publisher == nil {
		return
	}
	payload, err := json.Marshal(view)
	if err != nil {
		return
	}
	topic := fmt.Sprintf("cyncbridge/device/%d/state", s.ID)
	_ = r.publisher.Publish(topic, payload, 1, true)
}

func (r *Reconciler) publishDeviceAvailability(d *device.Device) {
	if r.publisher == nil {
		return
	}
	s := d.Snapshot()
	payload := []byte("offline")
	if s.Online {
		payload = []byte("online")
	}
	topic := fmt.Sprintf("cyncbridge/device/%d/availability", s.ID)
	_ = r.publisher.Publish(topic, payload, 1, true)
}

func (r *Reconciler) publishGroup(g *device.Group) {
	s := g.Snapshot()
	view := stateView{On: s.On, Brightness: s.Brightness, Temperature: s.Temperature, R: s.R, G: s.G, B: s.B}
	r.stream("group", int(s.ID), view)
	r.recordEvent(eventlog.EntityGroup, int(s.ID), view, true)

	if r.publisher == nil {
		return
	}
	payload, err := json.Marshal(view)
	if err != nil {
		return
	}
	topic := fmt.Sprintf("cyncbridge/group/%d/state", s.ID)
	_ = r.publisher.Publish(topic, payload, 1, true)
}

func (r *Reconciler) recordEvent(kind eventlog.EntityKind, entityID int, state stateView, online bool) {
	if r.events == nil {
		return
	}
	_ = r.events.RecordState(context.Background(), eventlog.StateEvent{
		EntityKind:  kind,
		EntityID:    entityID,
		On:          state.On,
		Brightness:  state.Brightness,
		Temperature: state.Temperature,
		Online:      online,
		Source:      "mesh_status",
	})
}

func (r *Reconciler) stream(entityKind string, entityID int, state stateView) {
	if r.streamer == nil {
		return
	}
	r.streamer.Broadcast(map[string]any{
		"entity_kind": entityKind,
		"entity_id":   entityID,
		"state":       state,
	})
}

type stateView struct {
	On          bool  `json:"on"`
	Brightness  uint8 `json:"brightness"`
	Temperature uint8 `json:"temperature"`
	R           uint8 `json:"r"`
	G           uint8 `json:"g"`
	B           uint8 `json:"b"`
}
