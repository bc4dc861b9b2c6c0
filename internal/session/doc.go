// Package session implements the palpation-session state machine.
//
// A Session owns the ordered per-region measurement map for one examination
// pass. Force samples arrive from the device link and advance a cursor
// through the region order; pain scores from WebSocket clients pair with
// the most recently forced region. When the pass completes the accumulated
// mapping is posted to the backend and the local state cleared.
//
// Two mutually exclusive completion policies exist, selected explicitly in
// configuration:
//
//   - reset: flush only on the device's {"ack":"reset"} signal. This is the
//     default and matches the rig firmware currently in the field.
//   - circular: a fixed region list is filled in wrap-around order and the
//     flush fires automatically once every region has a force value.
//
// A failed flush is logged and the data stays cleared; the bridge does not
// retry or persist sessions.
package session
