package server

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/palpamed/palpbridge/internal/backend"
	"github.com/palpamed/palpbridge/internal/logging"
	"github.com/palpamed/palpbridge/internal/protocol"
)

// SessionSink is the slice of the palpation session the dispatcher needs.
type SessionSink interface {
	OnPainReading(value int) error
	SetPatient(id string)
}

// Backend is the slice of the backend client the dispatcher needs.
type Backend interface {
	Authenticate(ctx context.Context, password string) (string, error)
	GetPatient(ctx context.Context, patientID string) (json.RawMessage, error)
	GetAllPatients(ctx context.Context) (json.RawMessage, error)
}

// DeviceWriter forwards unrecognized client text to the sensor rig.
type DeviceWriter interface {
	Send(text string) error
}

// Conn is the reply target for a dispatched message. *Client satisfies it;
// tests substitute fakes.
type Conn interface {
	Send(text string) error
	SendJSON(v any) error
	RemoteAddr() string
}

// Reply is the structured JSON answer for pain acknowledgments, token
// requests, and failed backend calls.
type Reply struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Dispatcher routes inbound client messages to the session, the backend
// client, or the device link.
type Dispatcher struct {
	session SessionSink
	backend Backend
	device  DeviceWriter

	// password is the shared backend credential from configuration, used
	// for "token" requests.
	password string

	// timeout bounds each backend call made on behalf of a client.
	timeout time.Duration
}

// NewDispatcher wires the three routing targets together.
func NewDispatcher(session SessionSink, api Backend, device DeviceWriter, password string) *Dispatcher {
	return &Dispatcher{
		session:  session,
		backend:  api,
		device:   device,
		password: password,
		timeout:  backend.DefaultTimeout,
	}
}

// Dispatch classifies one inbound text message and routes it. Classification
// order is fixed and first match wins: pain update, "token", "patients",
// 13-digit patient ID, then raw passthrough to the device. Replies go only
// to the requesting client; failures become structured JSON, never a
// dropped connection.
func (d *Dispatcher) Dispatch(conn Conn, raw string) {
	cmd := protocol.DecodeClientMessage(raw)
	logging.LogClientMessage(conn.RemoteAddr(), cmd.Kind.String(), raw)

	switch cmd.Kind {
	case protocol.ClientPain:
		d.handlePain(conn, cmd.Pain)
	case protocol.ClientToken:
		d.handleToken(conn)
	case protocol.ClientPatients:
		d.handlePatients(conn)
	case protocol.ClientPatient:
		d.handlePatient(conn, cmd.PatientID)
	case protocol.ClientPassthrough:
		// Write failures are logged by the device link; there is nothing
		// useful to tell the client about an opaque command.
		_ = d.device.Send(cmd.Raw)
	}
}

func (d *Dispatcher) handlePain(conn Conn, value int) {
	if err := d.session.OnPainReading(value); err != nil {
		d.sendJSON(conn, Reply{Success: false, Error: err.Error()})
		return
	}
	d.sendJSON(conn, Reply{Success: true})
}

func (d *Dispatcher) handleToken(conn Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	token, err := d.backend.Authenticate(ctx, d.password)
	if err != nil {
		logging.Error("Token request failed", zap.Error(err))
		d.sendJSON(conn, Reply{Success: false, Error: "Failed to obtain token"})
		return
	}
	d.sendJSON(conn, Reply{Success: true, Token: token})
}

func (d *Dispatcher) handlePatients(conn Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	data, err := d.backend.GetAllPatients(ctx)
	if err != nil {
		d.sendJSON(conn, Reply{Success: false, Error: failureMessage(err)})
		return
	}
	d.sendRaw(conn, data)
}

func (d *Dispatcher) handlePatient(conn Conn, patientID string) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	data, err := d.backend.GetPatient(ctx, patientID)
	if err != nil {
		d.sendJSON(conn, Reply{Success: false, Error: failureMessage(err)})
		return
	}

	// The looked-up patient becomes the active one, so session flushes
	// land on the record the clinician is working with.
	d.session.SetPatient(patientID)
	d.sendRaw(conn, data)
}

func (d *Dispatcher) sendRaw(conn Conn, data json.RawMessage) {
	if err := conn.Send(string(data)); err != nil {
		logging.Debug("Reply to client failed",
			zap.String("remote_addr", conn.RemoteAddr()),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) sendJSON(conn Conn, reply Reply) {
	if err := conn.SendJSON(reply); err != nil {
		logging.Debug("Reply to client failed",
			zap.String("remote_addr", conn.RemoteAddr()),
			zap.Error(err),
		)
	}
}

// failureMessage maps backend errors to the message forwarded to clients.
func failureMessage(err error) string {
	var be *backend.Error
	if errors.As(err, &be) {
		return be.Message
	}
	return err.Error()
}
