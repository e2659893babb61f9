// Package auth signs and validates the single shared-secret JWT the
// diagnostics HTTP API uses to protect its command-enqueue endpoint.
// There is no per-user account model here — the bridge has one
// operator secret, configured as security.jwt.secret.
package auth
