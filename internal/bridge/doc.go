// Package bridge owns one TLS-accepted connection per physical bridge
// device: the handshake sequencing (Identify -> AuthAck -> WantControl),
// the read loop that turns framed bytes into wire.Frame values, the
// per-session ChecksumTracker, and the connection registry. The
// registry fans outbound control frames across up to three live
// sessions per device queue id, routes single-delivery sends to the
// longest-connected session for that queue id, and separately elects
// one primary listener across every connected bridge registry-wide —
// the only session whose status and mesh-info reports reach the
// reconciler.
package bridge
