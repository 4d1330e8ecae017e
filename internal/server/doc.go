// Package server implements the devtree event server.
//
// The server owns a long-lived device session and streams hotplug
// events to WebSocket clients. A single pump goroutine opens the
// session, starts a monitor, and publishes every event to a hub; the
// hub fans events out to connected clients and keeps a bounded backlog
// so a client connecting late still sees recent history.
//
// # Endpoints
//
//   - GET /events   - WebSocket stream of hotplug events (JSON), with
//     the backlog replayed on connect
//   - GET /devices  - JSON listing of the current device tree,
//     optionally filtered by ?subsystem= and ?sysname=
//   - GET /healthz  - liveness probe with client and event counters
//
// # Session ownership
//
// Device sessions are confined to the goroutine that opened them. The
// pump goroutine opens its own session for monitoring; each /devices
// request opens a short-lived session of its own in the handler
// goroutine. No session is ever shared across goroutines.
//
// # Graceful Shutdown
//
// The server handles SIGINT and SIGTERM:
//  1. Stop the event pump and close its session
//  2. Stop accepting new HTTP connections
//  3. Disconnect WebSocket clients
package server
