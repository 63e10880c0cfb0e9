// Package server exposes the bridge to frontends.
//
// The monitor server is optional and off by default. When enabled it
// serves:
//
//   - GET /events — a WebSocket stream of session events (phone
//     plugged/unplugged, dongle info, media metadata, supervisor
//     status), each wrapped in a timestamped JSON envelope.
//   - GET /api/status — a JSON snapshot of the latest state, for
//     frontends that poll instead of subscribing.
//   - POST /api/key — injects a named key or command into the phone
//     session, e.g. {"name": "play"}.
//
// With mDNS enabled the server advertises itself as _carlink._tcp so
// frontends on the same network find it without configuration.
//
// Event delivery is best-effort: a client that stops reading has its
// connection dropped rather than stalling the session goroutines.
package server
