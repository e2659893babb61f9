package mqttio

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cyncbridge/cyncbridge/internal/command"
)

// Enqueuer is the subset of command.Queue the router needs to hand off
// parsed commands.
type Enqueuer interface {
	Enqueue(cmd *command.Command) *command.Command
}

// setMessage is the JSON body accepted on a device/group "set" topic.
// Every field is optional; only the ones present select the command
// kind, mirroring the original bridge's permissive command payloads.
type setMessage struct {
	On          *bool   `json:"on,omitempty"`
	Brightness  *uint8  `json:"brightness,omitempty"`
	Temperature *uint8  `json:"temperature,omitempty"`
	R           *uint8  `json:"r,omitempty"`
	G           *uint8  `json:"g,omitempty"`
	B           *uint8  `json:"b,omitempty"`
	FanSpeed    *string `json:"fan_speed,omitempty"`
	Effect      *string `json:"effect,omitempty"`
}

// Router subscribes to the device and group command wildcard topics and
// turns each inbound "set" payload into one or more command.Command
// values on the queue (spec §4.6). A single payload may carry more than
// one field (e.g. brightness + temperature); each present field becomes
// its own queued command so the worker's single-field Kind model still
// applies. The exception is "on": it is folded into the brightness
// command when brightness is present, and it is not queued at all when
// temperature is present without brightness.
type Router struct {
	client Subscriber
	queue  Enqueuer
}

// Subscriber is the subset of *Client the router depends on.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler MessageHandler) error
}

// NewRouter builds a Router over client, enqueuing onto queue.
func NewRouter(client Subscriber, queue Enqueuer) *Router {
	return &Router{client: client, queue: queue}
}

// Start subscribes to both command wildcard topics.
func (r *Router) Start() error {
	topics := Topics{}
	if err := r.client.Subscribe(topics.DeviceCommandWildcard(), 1, r.handleDevice); err != nil {
		return fmt.Errorf("mqttio: subscribe device commands: %w", err)
	}
	if err := r.client.Subscribe(topics.GroupCommandWildcard(), 1, r.handleGroup); err != nil {
		return fmt.Errorf("mqttio: subscribe group commands: %w", err)
	}
	return nil
}

func (r *Router) handleDevice(topic string, payload []byte) error {
	id, err := extractID(topic, "cyncbridge/device/", "/set")
	if err != nil {
		return err
	}
	return r.dispatch(command.TargetDevice, id, payload)
}

func (r *Router) handleGroup(topic string, payload []byte) error {
	id, err := extractID(topic, "cyncbridge/group/", "/set")
	if err != nil {
		return err
	}
	return r.dispatch(command.TargetGroup, id, payload)
}

func extractID(topic, prefix, suffix string) (int, error) {
	if !strings.HasPrefix(topic, prefix) || !strings.HasSuffix(topic, suffix) {
		return 0, fmt.Errorf("mqttio: unexpected topic shape %q", topic)
	}
	idStr := strings.TrimSuffix(strings.TrimPrefix(topic, prefix), suffix)
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return 0, fmt.Errorf("mqttio: non-numeric id in topic %q: %w", topic, err)
	}
	return id, nil
}

func (r *Router) dispatch(target command.TargetKind, id int, payload []byte) error {
	var msg setMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("mqttio: invalid set payload: %w", err)
	}

	for _, cmd := range commandsFor(target, id, msg) {
		r.queue.Enqueue(cmd)
	}
	return nil
}

// commandsFor splits a multi-field set payload into one Command per
// populated field, in a fixed order so related fields (e.g. r/g/b) are
// coalesced into a single RGB command rather than three.
func commandsFor(target command.TargetKind, id int, msg setMessage) []*command.Command {
	var out []*command.Command

	if msg.On != nil && msg.Brightness == nil && msg.Temperature == nil {
		out = append(out, &command.Command{Kind: command.KindPower, Target: target, TargetID: id, On: *msg.On})
	}
	if msg.Brightness != nil {
		on := *msg.Brightness > 0
		if msg.On != nil {
			on = *msg.On
		}
		out = append(out, &command.Command{Kind: command.KindBrightness, Target: target, TargetID: id, On: on, Brightness: *msg.Brightness})
	}
	if msg.Temperature != nil {
		out = append(out, &command.Command{Kind: command.KindTemperature, Target: target, TargetID: id, Temperature: *msg.Temperature})
	}
	if msg.R != nil || msg.G != nil || msg.B != nil {
		out = append(out, &command.Command{Kind: command.KindRGB, Target: target, TargetID: id, R: deref(msg.R), G: deref(msg.G), B: deref(msg.B)})
	}
	if msg.FanSpeed != nil {
		out = append(out, &command.Command{Kind: command.KindFanSpeed, Target: target, TargetID: id, FanSpeed: *msg.FanSpeed})
	}
	if msg.Effect != nil {
		out = append(out, &command.Command{Kind: command.KindLightshow, Target: target, TargetID: id, Effect: *msg.Effect})
	}
	return out
}

func deref(p *uint8) uint8 {
	if p == nil {
		return 0
	}
	return *p
}
