package mqttio

import (
	"testing"

	"github.com/cyncbridge/cyncbridge/internal/command"
)

type fakeSubscriber struct {
	handlers map[string]MessageHandler
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{handlers: make(map[string]MessageHandler)}
}

func (f *fakeSubscriber) Subscribe(topic string, qos byte, handler MessageHandler) error {
	f.handlers[topic] = handler
	return nil
}

type fakeQueue struct {
	enqueued []*command.Command
}

func (f *fakeQueue) Enqueue(cmd *command.Command) *command.Command {
	f.enqueued = append(f.enqueued, cmd)
	return cmd
}

func TestRouterStartSubscribesBothWildcards(t *testing.T) {
	sub := newFakeSubscriber()
	r := NewRouter(sub, &fakeQueue{})
	if err := r.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := sub.handlers["cyncbridge/device/+/set"]; !ok {
		t.Fatalf("expected device wildcard subscription")
	}
	if _, ok := sub.handlers["cyncbridge/group/+/set"]; !ok {
		t.Fatalf("expected group wildcard subscription")
	}
}

func TestHandleDeviceParsesPowerOnlyPayload(t *testing.T) {
	sub := newFakeSubscriber()
	q := &fakeQueue{}
	r := NewRouter(sub, q)
	r.Start()

	if err := sub.handlers["cyncbridge/device/+/set"]("cyncbridge/device/42/set", []byte(`{"on":true}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.enqueued) != 1 {
		t.Fatalf("expected 1 queued command, got %d", len(q.enqueued))
	}
	cmd := q.enqueued[0]
	if cmd.Kind != command.KindPower || cmd.TargetID != 42 || !cmd.On {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestHandleDeviceSplitsMultiFieldPayloadIntoSeparateCommands(t *testing.T) {
	sub := newFakeSubscriber()
	q := &fakeQueue{}
	r := NewRouter(sub, q)
	r.Start()

	payload := []byte(`{"brightness":60,"temperature":40,"r":10,"g":20,"b":30}`)
	if err := sub.handlers["cyncbridge/device/+/set"]("cyncbridge/device/7/set", payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.enqueued) != 3 {
		t.Fatalf("expected 3 queued commands (brightness, temperature, rgb), got %d", len(q.enqueued))
	}
}

func TestHandleGroupUsesGroupTarget(t *testing.T) {
	sub := newFakeSubscriber()
	q := &fakeQueue{}
	r := NewRouter(sub, q)
	r.Start()

	if err := sub.handlers["cyncbridge/group/+/set"]("cyncbridge/group/100/set", []byte(`{"fan_speed":"high"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.enqueued) != 1 {
		t.Fatalf("expected 1 queued command, got %d", len(q.enqueued))
	}
	cmd := q.enqueued[0]
	if cmd.Target != command.TargetGroup || cmd.TargetID != 100 || cmd.FanSpeed != "high" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestExtractIDRejectsMalformedTopic(t *testing.T) {
	if _, err := extractID("cyncbridge/device/not-a-number/set", "cyncbridge/device/", "/set"); err == nil {
		t.Fatalf("expected an error for a non-numeric id")
	}
	if _, err := extractID("wrong/shape", "cyncbridge/device/", "/set"); err == nil {
		t.Fatalf("expected an error for a mismatched prefix/suffix")
	}
}

func TestHandleDeviceRejectsInvalidJSON(t *testing.T) {
	sub := newFakeSubscriber()
	q := &fakeQueue{}
	r := NewRouter(sub, q)
	r.Start()

	err := sub.handlers["cyncbridge/device/+/set"]("cyncbridge/device/1/set", []byte("not json"))
	if err == nil {
		t.Fatalf("expected an error for malformed payload")
	}
	if len(q.enqueued) != 0 {
		t.Fatalf("expected no commands enqueued on a bad payload")
	}
}
