// Package api is the bridge's optional diagnostics and commissioning
// HTTP surface: a read-only view of in-memory device/group state and
// recent event-log rows, a JWT-protected command-enqueue endpoint for
// bring-up without an MQTT broker, and a WebSocket feed of state
// reconciliation events for a local diagnostics UI. It carries no
// protocol semantics of its own and never bypasses the command queue.
package api
