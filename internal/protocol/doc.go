// Package protocol decodes the two text protocols the bridge sits between.
//
// The sensor rig emits newline-delimited records over serial, each optionally
// a small JSON object:
//
//	{"ack":"ready"}   device finished booting
//	{"ack":"reset"}   examination finished, session should flush
//	{"data":"123"}    one force sample (string-encoded integer)
//
// WebSocket clients send text frames that are classified in a fixed order:
// a JSON object with a numeric "pain" field, the literal commands "token"
// and "patients", a 13-digit patient identifier, and finally an opaque
// passthrough command for the device.
//
// Both streams are decoded exactly once at the transport boundary into
// tagged-union values (DeviceEvent, ClientCommand) with an explicit unknown
// or passthrough fallback, so downstream handlers switch on a variant
// instead of re-inspecting raw JSON.
//
// All functions are stateless and safe for concurrent use.
package protocol
