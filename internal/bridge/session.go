package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cyncbridge/cyncbridge/internal/wire"
)

// State is a session's position in the handshake/control lifecycle.
type State int

const (
	StateAccepted State = iota
	StateIdentified
	StateReadyToControl
	StateMeshKnown
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateIdentified:
		return "identified"
	case StateReadyToControl:
		return "ready_to_control"
	case StateMeshKnown:
		return "mesh_known"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Logger is the narrow structured-logging surface a session needs.
// Satisfied by the logging package's wrapper around log/slog.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// wantControlDelay is the pause between AuthAck and the bridge-initiated
// WantControl frame.
const wantControlDelay = 500 * time.Millisecond

// handshakeTimeout bounds how long a session may sit in StateAccepted
// before an Identify frame must arrive.
const handshakeTimeout = 30 * time.Second

// readDeadlineSlack is added to the heartbeat interval to derive the
// read deadline refreshed after every frame.
const readDeadlineSlack = 100 * time.Millisecond

// heartbeatInterval is the device-side heartbeat cadence assumed absent
// any other signal; sessions idle longer than heartbeatInterval plus
// slack are considered dead.
const heartbeatInterval = 30 * time.Second

var (
	// ErrSessionClosed is returned by writes or sends after Close.
	ErrSessionClosed = errors.New("bridge: session closed")
	// ErrHandshakeTimeout is returned when Identify never arrives.
	ErrHandshakeTimeout = errors.New("bridge: handshake timeout")
)

// Session is one physical device's TCP connection.
type Session struct {
	conn   net.Conn
	logger Logger

	mu       sync.Mutex
	state    State
	queueID  wire.QueueID
	lastSeen time.Time
	primary  bool

	framer    *wire.Framer
	checksums wire.ChecksumTracker

	writeMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
}

// NewSession wraps an accepted connection, ready for Run.
func NewSession(conn net.Conn, logger Logger) *Session {
	return &Session{
		conn:     conn,
		logger:   logger,
		state:    StateAccepted,
		lastSeen: time.Now(),
		framer:   wire.NewFramer(),
		closed:   make(chan struct{}),
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// QueueID returns the device's queue id, valid once State() is past
// StateAccepted.
func (s *Session) QueueID() wire.QueueID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queueID
}

// IsPrimary reports whether the registry elected this session as the
// primary listener; the registry keeps one primary across all sessions.
func (s *Session) IsPrimary() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.primary
}

func (s *Session) setPrimary(p bool) {
	s.mu.Lock()
	s.primary = p
	s.mu.Unlock()
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// LastSeen reports the time of the most recently received frame.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Send writes a pre-encoded frame to the device, serialized against
// concurrent writers (the command package may write from its worker
// while the read loop's ack path writes concurrently).
func (s *Session) Send(frame []byte) error {
	select {
	case <-s.closed:
		return ErrSessionClosed
	default:
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.conn.Write(frame)
	return err
}

// Close tears the connection down exactly once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.setState(StateClosed)
		close(s.closed)
		err = s.conn.Close()
	})
	return err
}

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}

// FrameHandler is invoked by Run for every successfully reassembled
// frame. Identify and heartbeat frames are handled internally by Run;
// everything else, including inbound WantControl frames, is forwarded
// here.
type FrameHandler func(s *Session, frame wire.Frame)

// Run drives the session's read loop until the connection closes or ctx
// is cancelled. It performs the Identify/AuthAck/WantControl handshake
// internally, then forwards every subsequent frame to handle.
func (s *Session) Run(ctx context.Context, handle FrameHandler) error {
	defer s.Close()

	if err := s.conn.SetReadDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return fmt.Errorf("bridge: set handshake deadline: %w", err)
	}

	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closed:
			return ErrSessionClosed
		default:
		}

		n, err := s.conn.Read(buf)
		if n > 0 {
			frames := s.framer.Feed(buf[:n])
			for _, f := range frames {
				s.touch()
				if handledInternally, hErr := s.handleHandshake(f); hErr != nil {
					return hErr
				} else if !handledInternally {
					handle(s, f)
				}
			}
			if deadlineErr := s.conn.SetReadDeadline(time.Now().Add(heartbeatInterval + readDeadlineSlack)); deadlineErr != nil {
				return fmt.Errorf("bridge: refresh read deadline: %w", deadlineErr)
			}
		}
		if err != nil {
			return err
		}
	}
}

// handleHandshake intercepts Identify/heartbeat frames so callers never
// see protocol plumbing; it returns handled=true when the frame was
// fully dealt with here.
func (s *Session) handleHandshake(f wire.Frame) (handled bool, err error) {
	switch f.Type {
	case wire.TypeIdentify:
		queueID, perr := wire.ParseIdentify(f.Payload)
		if perr != nil {
			return true, fmt.Errorf("bridge: parse identify: %w", perr)
		}
		s.mu.Lock()
		s.queueID = queueID
		s.state = StateIdentified
		s.mu.Unlock()

		ack, aerr := wire.AuthAck()
		if aerr != nil {
			return true, aerr
		}
		if err := s.Send(ack); err != nil {
			return true, err
		}
		go s.sendWantControlAfterDelay()
		return true, nil

	case wire.TypeHeartbeat:
		ack, aerr := wire.PingAck()
		if aerr != nil {
			return true, aerr
		}
		return true, s.Send(ack)

	default:
		return false, nil
	}
}

func (s *Session) sendWantControlAfterDelay() {
	select {
	case <-time.After(wantControlDelay):
	case <-s.closed:
		return
	}
	s.mu.Lock()
	queueID := s.queueID
	s.mu.Unlock()

	frame, err := wire.WantControlFrame(queueID, 1)
	if err != nil {
		s.logger.Error("build want-control frame", "err", err)
		return
	}
	if err := s.Send(frame); err != nil {
		s.logger.Warn("send want-control frame", "err", err)
		return
	}
	s.setState(StateReadyToControl)
}

// MarkMeshKnown advances the session once a mesh-info reply has been
// received and parsed for this device.
func (s *Session) MarkMeshKnown() {
	s.mu.Lock()
	if s.state == StateReadyToControl {
		s.state = StateMeshKnown
	}
	s.mu.Unlock()
}
