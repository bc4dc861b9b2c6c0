package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/palpamed/palpbridge/internal/logging"
	"github.com/palpamed/palpbridge/internal/version"
)

// mDNS service identity advertised when discovery is enabled.
const (
	mdnsInstance = "palpbridge"
	mdnsService  = "_palpbridge._tcp"
	mdnsDomain   = "local."
)

// Config holds the server configuration
type Config struct {
	Host     string
	Port     int
	LogLevel string
	MDNS     bool // Advertise the bridge via mDNS for tablet clients
}

// Server exposes the bridge to WebSocket clients: a liveness route on /,
// the WebSocket endpoint on /ws, and an optional mDNS advertisement.
type Server struct {
	config     *Config
	hub        *Hub
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
	httpServer *http.Server
	mdns       *zeroconf.Server
}

// New creates a new Server instance
func New(config *Config, hub *Hub, dispatcher *Dispatcher) (*Server, error) {
	// Initialize logging
	if err := logging.Initialize(config.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	return &Server{
		config:     config,
		hub:        hub,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients are tablets/browsers on the clinic network; the
			// bridge has no origin allowlist.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}, nil
}

// Start starts the server and blocks until shutdown
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	logging.Info("Starting palpbridge server",
		zap.String("addr", addr),
		zap.String("log_level", s.config.LogLevel),
		zap.Bool("mdns", s.config.MDNS),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.config.MDNS {
		if err := s.registerMDNS(); err != nil {
			// Discovery is a convenience; the bridge still works without it.
			logging.Warn("Failed to register mDNS service", zap.Error(err))
		}
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logging.Info("Server listening for connections", zap.String("addr", addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
			return
		}
		errChan <- nil
	}()

	// Wait for shutdown signal or error
	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	if s.mdns != nil {
		s.mdns.Shutdown()
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			logging.Error("Error shutting down HTTP server", zap.Error(err))
		}
	}

	s.hub.CloseAll()
	logging.Info("All connections closed")

	// Sync logger
	logging.Sync()

	return nil
}

// handleHealth answers the liveness route.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"message": "palpbridge server is running",
	})
}

// handleWebSocket upgrades a client connection and runs its read loop.
// Each connection gets its own goroutine from net/http; the loop exits on
// the first read error and deregisters the client.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	client := NewClient(conn)
	s.hub.Register(client)
	defer func() {
		s.hub.Unregister(client)
		_ = client.Close()
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn("Client connection error",
					zap.String("remote_addr", client.RemoteAddr()),
					zap.Error(err),
				)
			}
			return
		}
		if messageType != websocket.TextMessage {
			logging.Debug("Ignoring non-text frame",
				zap.String("remote_addr", client.RemoteAddr()),
				zap.Int("message_type", messageType),
			)
			continue
		}
		s.dispatcher.Dispatch(client, string(data))
	}
}

// registerMDNS advertises the bridge on the local network so tablet clients
// can find it without hardcoding an address.
func (s *Server) registerMDNS() error {
	txt := []string{"version=" + version.Version}
	mdns, err := zeroconf.Register(mdnsInstance, mdnsService, mdnsDomain, s.config.Port, txt, nil)
	if err != nil {
		return fmt.Errorf("mDNS registration failed: %w", err)
	}
	s.mdns = mdns
	logging.Info("mDNS service registered",
		zap.String("instance", mdnsInstance),
		zap.String("service", mdnsService),
		zap.Int("port", s.config.Port),
	)
	return nil
}
