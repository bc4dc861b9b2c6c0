package protocol

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Device acknowledgment values recognized in {"ack": ...} frames.
const (
	AckReady = "ready"
	AckReset = "reset"
)

// DeviceEventKind identifies the variant of a decoded device line.
type DeviceEventKind int

const (
	// DeviceUnknown is the fallback for lines that are not JSON or carry
	// neither an "ack" nor a "data" field.
	DeviceUnknown DeviceEventKind = iota
	// DeviceReady is the {"ack":"ready"} startup handshake.
	DeviceReady
	// DeviceReset is the {"ack":"reset"} end-of-examination signal.
	DeviceReset
	// DeviceForce is a {"data":<value>} force sample.
	DeviceForce
)

// String returns a human-readable name for the event kind.
func (k DeviceEventKind) String() string {
	switch k {
	case DeviceReady:
		return "ready"
	case DeviceReset:
		return "reset"
	case DeviceForce:
		return "force"
	case DeviceUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("DeviceEventKind(%d)", int(k))
	}
}

// DeviceEvent is one decoded newline-delimited record from the sensor rig.
type DeviceEvent struct {
	Kind   DeviceEventKind
	Force  int    // Valid only when Kind == DeviceForce
	Reason string // Why decoding fell through to DeviceUnknown
}

// deviceFrame mirrors the rig's JSON line shape. The firmware encodes force
// samples as strings ({"data":"12"}), but numbers are accepted too.
type deviceFrame struct {
	Ack  string          `json:"ack"`
	Data json.RawMessage `json:"data"`
}

// DecodeDeviceLine classifies one trimmed line from the serial stream.
// It never fails: undecodable input yields a DeviceUnknown event with the
// reason attached, and the caller decides whether to warn and drop.
func DecodeDeviceLine(line string) DeviceEvent {
	var frame deviceFrame
	if err := json.Unmarshal([]byte(line), &frame); err != nil {
		return DeviceEvent{Kind: DeviceUnknown, Reason: fmt.Sprintf("not JSON: %v", err)}
	}

	switch frame.Ack {
	case AckReady:
		return DeviceEvent{Kind: DeviceReady}
	case AckReset:
		return DeviceEvent{Kind: DeviceReset}
	}

	if len(frame.Data) > 0 {
		value, err := decodeForceValue(frame.Data)
		if err != nil {
			return DeviceEvent{Kind: DeviceUnknown, Reason: err.Error()}
		}
		return DeviceEvent{Kind: DeviceForce, Force: value}
	}

	return DeviceEvent{Kind: DeviceUnknown, Reason: "JSON missing both 'ack' and 'data'"}
}

// decodeForceValue parses the "data" field, which arrives either as a
// string-encoded integer or a bare number.
func decodeForceValue(raw json.RawMessage) (int, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		value, err := strconv.Atoi(strings.TrimSpace(asString))
		if err != nil {
			return 0, fmt.Errorf("force data %q is not an integer", asString)
		}
		return value, nil
	}

	var asNumber int
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return asNumber, nil
	}

	return 0, fmt.Errorf("force data %s is not an integer", string(raw))
}

// ClientCommandKind identifies the variant of a decoded client message.
type ClientCommandKind int

const (
	// ClientPassthrough is the fallback: the raw text is forwarded to the
	// device verbatim.
	ClientPassthrough ClientCommandKind = iota
	// ClientPain is a JSON message with a numeric "pain" field.
	ClientPain
	// ClientToken is the literal "token" request.
	ClientToken
	// ClientPatients is the literal "patients" request.
	ClientPatients
	// ClientPatient is a 13-digit patient identifier.
	ClientPatient
)

// String returns a human-readable name for the command kind.
func (k ClientCommandKind) String() string {
	switch k {
	case ClientPain:
		return "pain"
	case ClientToken:
		return "token"
	case ClientPatients:
		return "patients"
	case ClientPatient:
		return "patient"
	case ClientPassthrough:
		return "passthrough"
	default:
		return fmt.Sprintf("ClientCommandKind(%d)", int(k))
	}
}

// ClientCommand is one decoded inbound WebSocket text message.
type ClientCommand struct {
	Kind      ClientCommandKind
	Pain      int    // Valid only when Kind == ClientPain
	PatientID string // Valid only when Kind == ClientPatient
	Raw       string // Original text, used for passthrough
}

// patientIDPattern matches the 13-digit national patient identifiers the
// clients send to look up a single record.
var patientIDPattern = regexp.MustCompile(`^\d{13}$`)

// painMessage is the JSON shape clients use to submit a pain score.
// A pointer distinguishes an absent field from a legitimate zero. The
// field is a float because any numeric pain counts as a pain update;
// fractional scores are truncated toward zero.
type painMessage struct {
	Pain *float64 `json:"pain"`
}

// DecodeClientMessage classifies one inbound client text message.
// Classification order matters and first match wins: pain JSON, the literal
// "token" and "patients" commands, a 13-digit patient ID, then passthrough.
func DecodeClientMessage(raw string) ClientCommand {
	var pain painMessage
	if err := json.Unmarshal([]byte(raw), &pain); err == nil && pain.Pain != nil {
		return ClientCommand{Kind: ClientPain, Pain: int(*pain.Pain), Raw: raw}
	}

	switch raw {
	case "token":
		return ClientCommand{Kind: ClientToken, Raw: raw}
	case "patients":
		return ClientCommand{Kind: ClientPatients, Raw: raw}
	}

	if patientIDPattern.MatchString(raw) {
		return ClientCommand{Kind: ClientPatient, PatientID: raw, Raw: raw}
	}

	return ClientCommand{Kind: ClientPassthrough, Raw: raw}
}
