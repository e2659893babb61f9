package command

import (
	"fmt"

	"github.com/cyncbridge/cyncbridge/internal/device"
	"github.com/cyncbridge/cyncbridge/internal/wire"
)

// fanSpeedPercent maps the named fan speeds to the brightness-channel
// percent scale fan control reuses, grounded on the original
// set_fan_speed implementation (OFF=0, LOW=25, MEDIUM=50, HIGH=75,
// MAX=100).
func fanSpeedPercent(speed string) int {
	switch speed {
	case "off":
		return 0
	case "low":
		return 25
	case "medium":
		return 50
	case "high":
		return 75
	case "max":
		return 100
	default:
		return 0
	}
}

// buildFrame encodes the wire-level control frame for cmd, embedding
// queueID (the owning bridge's identity) and returns the control-byte
// message id used to correlate its ack.
func (w *Worker) buildFrame(cmd *Command, q wire.QueueID) (frame []byte, msgID byte, err error) {
	ctrl, targetID, queueErr := w.controlByteFor(cmd)
	if queueErr != nil {
		return nil, 0, queueErr
	}

	switch cmd.Kind {
	case KindPower:
		frame, err = wire.EncodeControlFrame(q, ctrl, wire.OpPower, targetID, wire.PowerPayload(cmd.On))
	case KindBrightness:
		frame, err = wire.EncodeControlFrame(q, ctrl, wire.OpBrightTemp, targetID, wire.BrightnessPayload(cmd.Brightness))
	case KindTemperature:
		frame, err = wire.EncodeControlFrame(q, ctrl, wire.OpBrightTemp, targetID, wire.TemperaturePayload(cmd.Temperature))
	case KindRGB:
		frame, err = wire.EncodeControlFrame(q, ctrl, wire.OpBrightTemp, targetID, wire.RGBPayload(cmd.R, cmd.G, cmd.B))
	case KindFanSpeed:
		pct := uint8(fanSpeedPercent(cmd.FanSpeed))
		frame, err = wire.EncodeControlFrame(q, ctrl, wire.OpBrightTemp, targetID, wire.BrightnessPayload(pct))
	case KindLightshow:
		payload, ok := wire.LightshowPayload(cmd.Effect)
		if !ok {
			return nil, 0, fmt.Errorf("command: unknown lightshow effect %q", cmd.Effect)
		}
		frame, err = wire.EncodeControlFrame(q, ctrl, wire.OpLightshow, targetID, payload)
	default:
		return nil, 0, fmt.Errorf("command: unknown kind %v", cmd.Kind)
	}
	if err != nil {
		return nil, 0, err
	}
	return frame, ctrl, nil
}

// controlByteFor allocates the next control byte for cmd's target and
// resolves the numeric wire target id (device id, or group id for
// group/subgroup commands).
func (w *Worker) controlByteFor(cmd *Command) (ctrl byte, targetID uint16, err error) {
	if cmd.Target == TargetDevice {
		d, derr := w.registry.Device(device.ID(cmd.TargetID))
		if derr != nil {
			return 0, 0, derr
		}
		return d.NextControlByte(), uint16(cmd.TargetID), nil
	}
	g, gerr := w.registry.Group(device.ID(cmd.TargetID))
	if gerr != nil {
		return 0, 0, gerr
	}
	return g.NextControlByte(), uint16(cmd.TargetID), nil
}
