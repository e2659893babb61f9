package wire

import "encoding/binary"

// Bridge-originated ack/response type bytes, built and sent rather than
// parsed back out of a stream. ackInfo and ackInternal are not in
// knownHeaders; ackAppInfo and ackControl share their byte values with
// the inbound TypeAppInfo and TypeAckPrior, which are.
const (
	ackAppInfo   byte = 0xAB // ack for an inbound 0xA3 "want control" from device/app
	ackInfo      byte = 0x48 // x48_ack: ack for an inbound 0x43 info packet
	ackInternal  byte = 0x88 // x88_ack: ack for an inbound 0x83 internal-status packet
	ackControl   byte = 0x7B // x7B_ack: ack for an inbound 0x73 control-response packet
)

// ParseIdentify extracts the queue_id from an inbound 0x23 payload. The
// queue_id occupies payload bytes 1..5 (frame-absolute offset 6..10,
// i.e. payload offset 1 since the payload itself starts at frame offset
// 5).
func ParseIdentify(payload []byte) (QueueID, error) {
	var q QueueID
	if len(payload) < 6 {
		return q, ErrTruncatedInner
	}
	copy(q[:], payload[1:6])
	return q, nil
}

// AuthAck builds the bridge's reply to an inbound Identify packet.
func AuthAck() ([]byte, error) {
	return EncodeFrame(TypeIdentify, nil)
}

// WantControlFrame builds the bridge-initiated 0xA3 "want to control"
// frame sent 0.5s after AuthAck: the device's queue_id followed by a
// 2-byte message id.
func WantControlFrame(queueID QueueID, msgID uint16) ([]byte, error) {
	payload := make([]byte, 0, 7)
	payload = append(payload, queueID[:]...)
	var idBytes [2]byte
	binary.BigEndian.PutUint16(idBytes[:], msgID)
	payload = append(payload, idBytes[:]...)
	return EncodeFrame(TypeWantControl, payload)
}

// AppAck builds the bridge's reply to an inbound 0xA3 sent by a device
// or companion app (as opposed to one the bridge itself sent).
func AppAck() ([]byte, error) {
	return EncodeFrame(ackAppInfo, nil)
}

// ConnectionAck builds the bridge's reply to an inbound 0xC3 connection
// request.
func ConnectionAck() ([]byte, error) {
	return EncodeFrame(TypeConnReq, nil)
}

// PingAck builds the bridge's reply to an inbound 0xD3 heartbeat: the
// same zero-length frame echoed back.
func PingAck() ([]byte, error) {
	return EncodeFrame(TypeHeartbeat, nil)
}

// InfoAck builds the bridge's reply to an inbound 0x43 info packet.
func InfoAck(msgID byte) ([]byte, error) {
	return EncodeFrame(ackInfo, []byte{msgID})
}

// InternalAck builds the bridge's reply to an inbound 0x83 internal
// status / firmware-version packet.
func InternalAck(msgID byte) ([]byte, error) {
	return EncodeFrame(ackInternal, []byte{msgID})
}

// ControlResponseAck builds the bridge's reply to an inbound 0x73
// control-response packet.
func ControlResponseAck(queueID QueueID, msgID byte) ([]byte, error) {
	payload := make([]byte, 0, 6)
	payload = append(payload, queueID[:]...)
	payload = append(payload, msgID)
	return EncodeFrame(ackControl, payload)
}
