package device

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/palpamed/palpbridge/internal/logging"
	"github.com/palpamed/palpbridge/internal/protocol"
)

// Session receives the structured events the link extracts from the
// device stream. Implemented by *session.Session.
type Session interface {
	OnForceReading(value int)
	OnResetSignal()
}

// Link owns the newline-delimited byte stream to and from the sensor rig.
// Inbound lines are broadcast to WebSocket clients verbatim before any
// classification is attempted, then decoded and routed to the session.
type Link struct {
	port      io.ReadWriteCloser
	session   Session
	broadcast func(text string)

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewLink creates a Link over an open transport. The broadcast callback may
// be nil (useful in tests); a nil callback disables the raw passthrough.
func NewLink(port io.ReadWriteCloser, session Session, broadcast func(text string)) *Link {
	return &Link{
		port:      port,
		session:   session,
		broadcast: broadcast,
	}
}

// Run reads the device stream until the context is canceled or the
// transport fails. Read errors are logged and terminate the loop; they
// never propagate as a panic or crash the rest of the bridge.
func (l *Link) Run(ctx context.Context) error {
	// Closing the port is the only way to unblock a pending read. The done
	// channel stops the watcher when the loop exits on its own (EOF, read
	// error) so it does not outlive Run.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = l.Close()
		case <-done:
		}
	}()
	defer func() { _ = l.Close() }()

	scanner := bufio.NewScanner(l.port)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		l.handleLine(line)
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil || errors.Is(err, io.ErrClosedPipe) {
			return nil
		}
		logging.Error("Serial read failed", zap.Error(err))
		return fmt.Errorf("serial read failed: %w", err)
	}
	return nil
}

// handleLine processes one trimmed record: broadcast first, unconditionally,
// then classify and dispatch.
func (l *Link) handleLine(line string) {
	logging.LogDeviceLine(line)

	if l.broadcast != nil {
		l.broadcast(line)
	}

	event := protocol.DecodeDeviceLine(line)
	switch event.Kind {
	case protocol.DeviceReady:
		logging.Info("Device is ready")

	case protocol.DeviceReset:
		l.session.OnResetSignal()

	case protocol.DeviceForce:
		l.session.OnForceReading(event.Force)

	case protocol.DeviceUnknown:
		logging.Warn("Unrecognized device line, dropped",
			zap.String("line", line),
			zap.String("reason", event.Reason),
		)
	}
}

// Send writes a raw client command to the device. Write failures are
// logged; callers that cannot do anything useful with the error (the
// passthrough dispatch path) ignore the return value.
func (l *Link) Send(text string) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if _, err := l.port.Write([]byte(text)); err != nil {
		logging.Error("Serial write failed",
			zap.Int("length", len(text)),
			zap.Error(err),
		)
		return fmt.Errorf("serial write failed: %w", err)
	}

	logging.Debug("Forwarded command to device",
		zap.String("command", text),
	)
	return nil
}

// Close shuts the transport down. Safe to call more than once.
func (l *Link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		err = l.port.Close()
	})
	return err
}
