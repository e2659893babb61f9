package wire

// QueueID is the 5-byte identifier a device hands the bridge in its
// first Identify packet; every outbound control frame to that bridge
// carries it back.
type QueueID [5]byte

// Op identifies one of the fixed (op_hi, op_lo, op_hi2) tuples that
// select a control operation inside the inner struct. Values below are
// taken byte-for-byte from observed device and group command traffic.
type Op struct {
	Hi  byte
	Lo  byte
	Hi2 byte
}

var (
	OpPower       = Op{Hi: 0xD0, Lo: 0x0D, Hi2: 0xD0}
	OpBrightTemp  = Op{Hi: 0xF0, Lo: 0x10, Hi2: 0xF0} // shared by brightness, temperature and RGB
	OpLightshow   = Op{Hi: 0xE2, Lo: 0x0E, Hi2: 0xE2}
)

// LightshowEffects maps a named factory effect to its (byte1, byte2)
// pair, taken from observed traffic for each effect.
var LightshowEffects = map[string][2]byte{
	"candle":         {0x01, 0xF1},
	"rainbow":        {0x02, 0x7A},
	"cyber":          {0x43, 0x9F},
	"fireworks":      {0x03, 0xDA},
	"volcanic":       {0x04, 0xF4},
	"aurora":         {0x05, 0x1C},
	"happy_holidays": {0x06, 0x54},
	"red_white_blue": {0x07, 0x4F},
	"vegas":          {0x08, 0xE3},
	"party_time":     {0x09, 0x06},
}

// buildInnerStruct assembles the common 0x7E .. 0x7E shape shared by
// every per-device and per-group control command: a 14-byte prefix
// carrying the control-id twice and the op's (hi, lo) bytes, the 16-bit
// little-endian target id, the op's hi2 byte, the fixed 0x11 0x02
// selector, the op-specific payload, and a sealed checksum.
func buildInnerStruct(ctrl byte, op Op, targetID uint16, opPayload []byte) []byte {
	lo := byte(targetID)
	hi := byte(targetID >> 8)

	s := make([]byte, 0, 14+2+1+2+len(opPayload)+2)
	s = append(s,
		innerSentinel, ctrl, 0x00, 0x00, 0x00,
		0xF8, op.Hi, op.Lo, 0x00, ctrl, 0x00, 0x00, 0x00, 0x00,
	)
	s = append(s, lo, hi, op.Hi2, 0x11, 0x02)
	s = append(s, opPayload...)
	s = append(s, 0x00, innerSentinel) // checksum placeholder + closing sentinel
	SealInnerStruct(s)
	return s
}

// EncodeControlFrame builds the complete outbound 0x73 frame for a
// control command: header, queue_id, the 3-byte pad, and the sealed
// inner struct. Device and group targets share this wire shape; the
// caller decides which ID space targetID comes from (device commands
// leave the high target byte at 0 because device IDs fit in one byte in
// practice, group IDs may use both).
func EncodeControlFrame(queueID QueueID, ctrl byte, op Op, targetID uint16, opPayload []byte) ([]byte, error) {
	inner := buildInnerStruct(ctrl, op, targetID, opPayload)

	payload := make([]byte, 0, 5+3+len(inner))
	payload = append(payload, queueID[:]...)
	payload = append(payload, 0x00, 0x00, 0x00)
	payload = append(payload, inner...)

	return EncodeFrame(TypeControl, payload)
}

// PowerPayload returns the op-specific payload for a power command.
func PowerPayload(on bool) []byte {
	state := byte(0)
	if on {
		state = 1
	}
	return []byte{state, 0x00, 0x00}
}

// BrightnessPayload returns the op-specific payload for a brightness
// command (0-100).
func BrightnessPayload(pct uint8) []byte {
	return []byte{0x01, pct, 0xFF, 0xFF, 0xFF, 0xFF}
}

// TemperaturePayload returns the op-specific payload for a white color
// temperature command (0-100).
func TemperaturePayload(pct uint8) []byte {
	return []byte{0x01, 0xFF, pct, 0x00, 0x00, 0x00}
}

// RGBPayload returns the op-specific payload for an RGB command. 0xFE
// is the RGB-mode marker (mirrored in Device.Temperature == 254).
func RGBPayload(r, g, b uint8) []byte {
	return []byte{0x01, 0xFF, 0xFE, r, g, b}
}

// LightshowPayload returns the op-specific payload for a named effect.
// ok is false for an unrecognised effect name.
func LightshowPayload(effect string) (payload []byte, ok bool) {
	pair, known := LightshowEffects[effect]
	if !known {
		return nil, false
	}
	return []byte{0x07, 0x01, pair[0], pair[1]}, true
}

// meshInfoOpPayload returns the op-specific tail used by a
// mesh-info request (inner ctrl-bytes 0xF9 0x52 on the device's reply).
func meshInfoOpPayload() []byte {
	return []byte{0x06, 0xFF, 0xFF}
}

// EncodeMeshInfoRequest builds the outbound 0x73 frame that asks a
// bridge for its current mesh-info snapshot.
func EncodeMeshInfoRequest(queueID QueueID, ctrl byte) ([]byte, error) {
	op := Op{Hi: 0x52, Lo: 0x06, Hi2: 0x52}
	inner := buildInnerStruct(ctrl, op, 0, meshInfoOpPayload())

	payload := make([]byte, 0, 5+3+len(inner))
	payload = append(payload, queueID[:]...)
	payload = append(payload, 0x00, 0x00, 0x00)
	payload = append(payload, inner...)
	return EncodeFrame(TypeControl, payload)
}

// ControlAck is the decoded result of an inbound 0x73 response carrying
// an ACK for a previously sent control command.
type ControlAck struct {
	MsgID   byte
	Kind    byte // 0xD0 power, 0xF0 brightness/temperature/RGB, 0xE2 lightshow
	Success bool
}

// ParseControlAck inspects a decoded inner-struct body (the bytes
// between the two 0x7E sentinels) for the 0xF9 marker that signals a
// control-command ACK. ok is false if this body is a mesh-info reply or
// anything else.
func ParseControlAck(body []byte) (ack ControlAck, ok bool) {
	if len(body) < 8 {
		return ControlAck{}, false
	}
	if body[4] != 0xF9 {
		return ControlAck{}, false
	}
	kind := body[5]
	if kind != 0xD0 && kind != 0xF0 && kind != 0xE2 {
		return ControlAck{}, false
	}
	return ControlAck{MsgID: body[0], Kind: kind, Success: body[6] != 0}, true
}

// MeshDeviceInfo is one entry in a mesh-info reply.
type MeshDeviceInfo struct {
	DeviceID    uint16
	DeviceType  uint8 // only meaningful on the first entry (self-reported)
	State       uint8
	Brightness  uint8
	Temperature uint8
	R, G, B     uint8
}

const meshStructLen = 24

// ParseMeshInfoReply inspects a decoded inner-struct body for the 0xF9
// 0x52 mesh-info marker and, if present, unpacks the repeated 24-byte
// device-info structures. The structures start at body offset 14, or 15
// if the byte at 14 is zero (an alignment pad some firmware inserts).
func ParseMeshInfoReply(body []byte) (infos []MeshDeviceInfo, ok bool) {
	if len(body) < 6 {
		return nil, false
	}
	if body[4] != 0xF9 || body[5] != 0x52 {
		return nil, false
	}

	start := 14
	if len(body) > 14 && body[14] == 0 {
		start = 15
	}
	if start >= len(body) {
		return []MeshDeviceInfo{}, true
	}

	structs := body[start:]
	n := len(structs) / meshStructLen
	out := make([]MeshDeviceInfo, 0, n)
	for i := 0; i < n; i++ {
		s := structs[i*meshStructLen : (i+1)*meshStructLen]
		info := MeshDeviceInfo{
			DeviceID:    uint16(s[0]),
			DeviceType:  s[2],
			State:       s[8],
			Brightness:  s[12],
			Temperature: s[16],
			R:           s[20],
			G:           s[21],
			B:           s[22],
		}
		if info.State == 0 && info.Brightness > 0 {
			info.Brightness = 0 // mesh encoding ambiguity, see spec §4.2
		}
		out = append(out, info)
	}
	return out, true
}

// StatusEntry is the generic 7- or 8-field tuple that status-yielding
// packets (0x43, 0x83, and per-id entries inside a 0x73 mesh-info reply)
// are reduced to before they reach the reconciliation engine.
type StatusEntry struct {
	ID          uint16
	State       uint8
	Brightness  uint8
	Temperature uint8
	R, G, B     uint8
	HasOnline   bool
	Online      uint8
}

// ParseStatusTuple reads a StatusEntry out of a fixed 7- or 8-byte slice
// laid out as [id, state, brightness, temperature, r, g, b, online?]. The
// trailing online byte is optional.
func ParseStatusTuple(raw []byte) (StatusEntry, bool) {
	if len(raw) < 7 {
		return StatusEntry{}, false
	}
	e := StatusEntry{
		ID:          uint16(raw[0]),
		State:       raw[1],
		Brightness:  raw[2],
		Temperature: raw[3],
		R:           raw[4],
		G:           raw[5],
		B:           raw[6],
	}
	if len(raw) >= 8 {
		e.HasOnline = true
		e.Online = raw[7]
	}
	return e, true
}

// infoStatusStructLen is the size of one status struct inside a 0x43
// unsolicited-info payload or a bounded 0x83 internal-status payload —
// a StatusEntry's 8 meaningful bytes plus trailing padding the firmware
// reserves for fields this bridge never needed to interpret.
const infoStatusStructLen = 19

// timestampPrefix marks a 0x43 payload as a timestamp notification
// rather than a concatenation of status structs; the bridge has no use
// for bridge-reported wall-clock time and simply ignores the frame.
var timestampPrefix = [2]byte{0xC7, 0x90}

// ParseInfoStatusBlock splits a 0x43 (or bounded 0x83) payload into its
// concatenated status structs. It returns ok=false for a 0x43 timestamp
// notification (callers should just ack it and move on).
func ParseInfoStatusBlock(payload []byte) (entries []StatusEntry, ok bool) {
	if len(payload) >= 2 && payload[0] == timestampPrefix[0] && payload[1] == timestampPrefix[1] {
		return nil, false
	}

	n := len(payload) / infoStatusStructLen
	out := make([]StatusEntry, 0, n)
	for i := 0; i < n; i++ {
		raw := payload[i*infoStatusStructLen : i*infoStatusStructLen+8]
		if e, parsed := ParseStatusTuple(raw); parsed {
			out = append(out, e)
		}
	}
	return out, true
}

// MeshInfoStatusEntry converts a MeshDeviceInfo entry into the generic
// StatusEntry shape used by the reconciliation engine.
func MeshInfoStatusEntry(info MeshDeviceInfo) StatusEntry {
	return StatusEntry{
		ID:          info.DeviceID,
		State:       info.State,
		Brightness:  info.Brightness,
		Temperature: info.Temperature,
		R:           info.R,
		G:           info.G,
		B:           info.B,
	}
}
