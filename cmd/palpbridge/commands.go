package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.bug.st/serial"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/palpamed/palpbridge/internal/backend"
	"github.com/palpamed/palpbridge/internal/config"
	"github.com/palpamed/palpbridge/internal/device"
	"github.com/palpamed/palpbridge/internal/logging"
	"github.com/palpamed/palpbridge/internal/monitor"
	"github.com/palpamed/palpbridge/internal/server"
	"github.com/palpamed/palpbridge/internal/session"
)

// Serve command flags
var (
	configPath string
	serialPath string
	host       string
	port       int
	backendURL string
	logLevel   string
	mdns       bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bridge",
	Long: `Start the palpation bridge.

The bridge opens the sensor rig's serial port, listens for WebSocket
clients, and connects the two: every serial line is broadcast to all
clients, force and reset frames drive the palpation session, and client
messages are routed to the backend or passed through to the rig.

Configuration is resolved in order: built-in defaults, then the YAML
config file, then environment variables (SERIAL_PORT_PATH, PORT,
REST_API_URL, PASSWORD), then command-line flags.

If the backend password is not set and stdin is a terminal, the bridge
prompts for it at startup.`,
	Example: `  # Start with defaults and environment variables
  palpbridge serve

  # Start with a config file
  palpbridge serve --config /etc/palpbridge/config.yaml

  # Override the serial port and listen port
  palpbridge serve --serial /dev/ttyACM0 --port 8080

  # Advertise the bridge via mDNS for tablet clients
  palpbridge serve --mdns --log-level debug`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "Path to YAML config file (optional)")
	serveCmd.Flags().StringVar(&serialPath, "serial", "", "Serial port path (overrides config)")
	serveCmd.Flags().StringVar(&host, "host", "", "Listen host (empty = all interfaces)")
	serveCmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides config)")
	serveCmd.Flags().StringVar(&backendURL, "backend-url", "", "REST backend base URL (overrides config)")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&mdns, "mdns", false, "Advertise the bridge via mDNS")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	password, err := resolvePassword(cfg)
	if err != nil {
		return err
	}

	// Backend client with token cache
	api := backend.NewClient(cfg.Backend.URL)
	if cfg.Backend.TimeoutSeconds > 0 {
		api.SetTimeout(time.Duration(cfg.Backend.TimeoutSeconds) * time.Second)
	}

	// Palpation session
	policy, err := session.PolicyFromString(cfg.Session.Completion)
	if err != nil {
		return err
	}
	sess := session.New(session.Config{
		Regions:   cfg.Session.Regions,
		Policy:    policy,
		PatientID: cfg.Session.PatientID,
	}, api)

	hub := server.NewHub()

	// Serial link to the sensor rig
	rig, err := serial.Open(cfg.Serial.Path, &serial.Mode{BaudRate: cfg.Serial.BaudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", cfg.Serial.Path, err)
	}
	link := device.NewLink(rig, sess, hub.Broadcast)

	dispatcher := server.NewDispatcher(sess, api, link, password)

	srv, err := server.New(&server.Config{
		Host:     cfg.Server.Host,
		Port:     cfg.Server.Port,
		LogLevel: cfg.LogLevel,
		MDNS:     cfg.Server.MDNS,
	}, hub, dispatcher)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Serial read loop runs until the server shuts down
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := link.Run(ctx); err != nil {
			logging.Error("Serial link terminated", zap.Error(err))
		}
	}()

	return srv.Start()
}

// loadConfig resolves the effective configuration: defaults, then the
// optional YAML file with env overrides, then command-line flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if serialPath != "" {
		cfg.Serial.Path = serialPath
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if backendURL != "" {
		cfg.Backend.URL = backendURL
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if mdns {
		cfg.Server.MDNS = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolvePassword returns the backend password from config/env, prompting
// on the terminal as a fallback. A missing password is not fatal: the
// bridge runs fine without one until a client requests a token.
func resolvePassword(cfg *config.Config) (string, error) {
	if cfg.Backend.Password != "" {
		return cfg.Backend.Password, nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", nil
	}

	fmt.Fprint(os.Stderr, "Backend password (empty to skip): ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(raw), nil
}

// Monitor command flags
var (
	monitorHost string
	monitorPort int
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch a running bridge from the terminal",
	Long: `Connect to a running bridge as a WebSocket client and tail
everything it broadcasts: raw sensor telemetry, client replies, and
backend responses.

Key bindings let you exercise the command surface directly:
  t - request a backend token
  p - list patients
  c - clear the tail
  q - quit`,
	Example: `  # Monitor a bridge on localhost
  palpbridge monitor

  # Monitor a bridge on another machine
  palpbridge monitor --host 192.168.1.50 --port 3000`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&monitorHost, "host", "localhost", "Bridge host")
	monitorCmd.Flags().IntVar(&monitorPort, "port", 3000, "Bridge port")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if err := monitor.Run(monitorHost, monitorPort); err != nil {
		return fmt.Errorf("monitor error: %w", err)
	}
	return nil
}
