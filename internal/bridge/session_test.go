package bridge

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/cyncbridge/cyncbridge/internal/wire"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func TestSessionHandshakeTransitionsToReadyToControl(t *testing.T) {
	deviceConn, bridgeConn := net.Pipe()
	defer deviceConn.Close()

	session := NewSession(bridgeConn, nopLogger{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var forwarded []wire.Frame
	go func() {
		_ = session.Run(ctx, func(s *Session, f wire.Frame) {
			forwarded = append(forwarded, f)
		})
	}()

	identifyPayload := append([]byte{0x00}, []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE}...)
	identifyFrame, err := wire.EncodeFrame(wire.TypeIdentify, identifyPayload)
	if err != nil {
		t.Fatalf("encode identify: %v", err)
	}
	if _, err := deviceConn.Write(identifyFrame); err != nil {
		t.Fatalf("write identify: %v", err)
	}

	ackBuf := make([]byte, 64)
	n, err := deviceConn.Read(ackBuf)
	if err != nil {
		t.Fatalf("read auth ack: %v", err)
	}
	if ackBuf[0] != wire.TypeIdentify {
		t.Fatalf("expected auth ack type 0x23, got %#x", ackBuf[0])
	}
	_ = n

	// net.Pipe is unbuffered: the session's WantControl write only
	// completes once this end reads it.
	if _, err := deviceConn.Read(ackBuf); err != nil {
		t.Fatalf("read want-control frame: %v", err)
	}
	if ackBuf[0] != wire.TypeWantControl {
		t.Fatalf("expected want-control type %#x, got %#x", wire.TypeWantControl, ackBuf[0])
	}

	deadline := time.Now().Add(1500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if session.State() == StateReadyToControl {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if session.State() != StateReadyToControl {
		t.Fatalf("expected session to reach ready_to_control, got %s", session.State())
	}
	if session.QueueID() != (wire.QueueID{0xAA, 0xBB, 0xCC, 0xDD, 0xEE}) {
		t.Fatalf("unexpected queue id: %v", session.QueueID())
	}
}

func TestSessionHeartbeatIsEchoedAndNotForwarded(t *testing.T) {
	deviceConn, bridgeConn := net.Pipe()
	defer deviceConn.Close()

	session := NewSession(bridgeConn, nopLogger{})
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	forwarded := 0
	go func() {
		_ = session.Run(ctx, func(s *Session, f wire.Frame) {
			forwarded++
		})
	}()

	hb, _ := wire.EncodeFrame(wire.TypeHeartbeat, nil)
	if _, err := deviceConn.Write(hb); err != nil {
		t.Fatalf("write heartbeat: %v", err)
	}

	buf := make([]byte, 16)
	if err := deviceConn.SetReadDeadline(time.Now().Add(500 * time.Millisecond)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	n, err := deviceConn.Read(buf)
	if err != nil {
		t.Fatalf("read heartbeat echo: %v", err)
	}
	if n != 5 || buf[0] != wire.TypeHeartbeat {
		t.Fatalf("unexpected heartbeat echo: % x", buf[:n])
	}
	if forwarded != 0 {
		t.Fatalf("expected heartbeat to be handled internally, not forwarded")
	}
}

func TestRegistryElectsFirstSessionPrimaryAndReelectsOnRemoval(t *testing.T) {
	registry := NewRegistry()

	_, connA := net.Pipe()
	_, connB := net.Pipe()
	defer connA.Close()
	defer connB.Close()

	sessA := NewSession(connA, nopLogger{})
	sessB := NewSession(connB, nopLogger{})
	queueID := wire.QueueID{1, 2, 3, 4, 5}
	sessA.mu.Lock()
	sessA.queueID = queueID
	sessA.mu.Unlock()
	sessB.mu.Lock()
	sessB.queueID = queueID
	sessB.mu.Unlock()

	registry.Add(sessA)
	registry.Add(sessB)

	if !sessA.IsPrimary() || sessB.IsPrimary() {
		t.Fatalf("expected sessA to be elected primary")
	}

	registry.Remove(sessA)
	if !sessB.IsPrimary() {
		t.Fatalf("expected sessB to be elected primary after sessA removal")
	}
}

func TestRegistryTracksAllSessionsForAQueueID(t *testing.T) {
	registry := NewRegistry()
	queueID := wire.QueueID{9, 9, 9, 9, 9}

	var conns []net.Conn
	for i := 0; i < maxFanout+2; i++ {
		_, bridgeConn := net.Pipe()
		conns = append(conns, bridgeConn)
		s := NewSession(bridgeConn, nopLogger{})
		s.mu.Lock()
		s.queueID = queueID
		s.mu.Unlock()
		registry.Add(s)
	}
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	if got := len(registry.Sessions(queueID)); got != maxFanout+2 {
		t.Fatalf("expected %d registered sessions, got %d", maxFanout+2, got)
	}
}
