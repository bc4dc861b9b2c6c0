// Package device owns the serial transport to the palpation sensor rig.
//
// The Link reads newline-delimited records, relays every line to connected
// WebSocket clients before classifying it, and routes decoded events
// (ready, reset, force samples) to the palpation session. Outbound client
// commands that the dispatch layer does not recognize are written to the
// rig verbatim via Send.
//
// The transport is any io.ReadWriteCloser; production code opens a real
// serial port with go.bug.st/serial, tests use in-memory pipes.
package device
