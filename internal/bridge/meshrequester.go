package bridge

import (
	"sync/atomic"

	"github.com/cyncbridge/cyncbridge/internal/wire"
)

// MeshRequester implements command.MeshRefresher: it asks the primary
// session for a given queue id to re-report its mesh-info snapshot
// after a command settles (spec §5).
type MeshRequester struct {
	registry *Registry
	ctrl     uint32
}

// NewMeshRequester wraps registry for mesh-info refresh requests.
func NewMeshRequester(registry *Registry) *MeshRequester {
	return &MeshRequester{registry: registry}
}

// RequestMeshInfo sends a mesh-info request frame to the primary
// session for queueID. Each call allocates its own control byte so
// overlapping refreshes never collide on message id.
func (m *MeshRequester) RequestMeshInfo(queueID wire.QueueID) error {
	ctrl := byte(atomic.AddUint32(&m.ctrl, 1))
	frame, err := wire.EncodeMeshInfoRequest(queueID, ctrl)
	if err != nil {
		return err
	}
	return m.registry.SendToPrimary(queueID, frame)
}
