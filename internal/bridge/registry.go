package bridge

import (
	"sync"

	"github.com/cyncbridge/cyncbridge/internal/wire"
)

// maxFanout is the number of live sessions a control command is sent to
// concurrently when more than one bridge claims the same device queue
// id (spec §5: CMD_BROADCASTS).
const maxFanout = 3

// Registry tracks every live session, keyed by device queue id, for
// command routing, and separately elects one global primary listener
// across every connected bridge regardless of queue id (spec §3's
// registry-wide primary_bridge field). Two distinct bridges can witness
// the same BT mesh and report status for the same devices under
// entirely different queue ids, so the primary listener cannot be
// scoped per queue id — it has to be a single registry-wide election,
// first bridge connected wins, next survivor in connection order takes
// over on disconnect.
type Registry struct {
	mu       sync.Mutex
	sessions map[wire.QueueID][]*Session
	order    []*Session // every live session, across every queue id, in connection order
}

// NewRegistry returns an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[wire.QueueID][]*Session)}
}

// Add registers a session under its queue id and appends it to the
// global connection order, electing it the primary listener if it is
// the first live session in the whole registry.
func (r *Registry) Add(s *Session) {
	queueID := s.QueueID()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[queueID] = append(r.sessions[queueID], s)
	r.order = append(r.order, s)
	if len(r.order) == 1 {
		s.setPrimary(true)
	}
}

// Remove drops a closed session from both its queue id's bucket and the
// global connection order and, if it was the primary listener, elects
// the next remaining session system-wide (by connection order) as the
// new primary.
func (r *Registry) Remove(s *Session) {
	queueID := s.QueueID()

	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := r.sessions[queueID]
	out := sessions[:0]
	for _, sess := range sessions {
		if sess != s {
			out = append(out, sess)
		}
	}
	if len(out) == 0 {
		delete(r.sessions, queueID)
	} else {
		r.sessions[queueID] = out
	}

	wasPrimary := s.IsPrimary()
	remaining := r.order[:0]
	for _, sess := range r.order {
		if sess != s {
			remaining = append(remaining, sess)
		}
	}
	r.order = remaining
	if wasPrimary && len(r.order) > 0 {
		r.order[0].setPrimary(true)
	}
}

// Sessions returns every live session for a queue id, connection order
// first.
func (r *Registry) Sessions(queueID wire.QueueID) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions := r.sessions[queueID]
	out := make([]*Session, len(sessions))
	copy(out, sessions)
	return out
}

// connLead returns the longest-connected live session for a queue id —
// the one command routing addresses directly, so a flaky reconnecting
// bridge never gets two parallel deliveries of the same command.
func (r *Registry) connLead(queueID wire.QueueID) (*Session, bool) {
	sessions := r.Sessions(queueID)
	if len(sessions) == 0 {
		return nil, false
	}
	return sessions[0], true
}

// Broadcast sends frame to up to maxFanout live sessions for queueID,
// returning the number of sessions it was successfully written to.
func (r *Registry) Broadcast(queueID wire.QueueID, frame []byte) int {
	sessions := r.Sessions(queueID)
	if len(sessions) > maxFanout {
		sessions = sessions[:maxFanout]
	}
	sent := 0
	for _, s := range sessions {
		if err := s.Send(frame); err == nil {
			sent++
		}
	}
	return sent
}

// SendToPrimary sends frame only to the longest-connected session for
// queueID, used for group commands and mesh-info requests.
func (r *Registry) SendToPrimary(queueID wire.QueueID, frame []byte) error {
	s, ok := r.connLead(queueID)
	if !ok {
		return ErrSessionClosed
	}
	return s.Send(frame)
}
