// Package monitor provides a terminal UI for watching a running bridge.
//
// The monitor is an ordinary WebSocket client: it connects to the
// bridge's /ws endpoint and displays every broadcast frame as it
// arrives, so an operator can watch raw sensor telemetry and client
// replies side by side without wiring up a browser. Key bindings let
// the operator exercise the command surface directly (request a
// token, list patients) from the same terminal.
//
// The UI is built on bubbletea with bubbles components for the
// spinner, key bindings and help view, styled with lipgloss.
package monitor
