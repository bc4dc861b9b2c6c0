// Package server exposes the bridge to WebSocket clients.
//
// The Server owns the HTTP listener: GET / answers a liveness probe and
// GET /ws upgrades to WebSocket. The Hub tracks connected clients and fans
// raw device output out to all of them; the Dispatcher classifies inbound
// client messages and routes them to the palpation session (pain scores),
// the backend client (token and patient lookups), or the device link
// (opaque passthrough commands).
//
// Replies to a request always go only to the client that sent it; device
// output is broadcast to everyone. When mDNS is enabled the bridge
// advertises itself as _palpbridge._tcp so clients on the clinic network
// can discover it.
package server
