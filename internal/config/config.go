package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Environment variable names. The SERIAL_PORT_PATH/PORT/REST_API_URL/PASSWORD
// names are kept from the original deployment so existing .env files keep
// working; the PALPBRIDGE_* names are preferred for new installs.
const (
	EnvSerialPath = "SERIAL_PORT_PATH"
	EnvListenPort = "PORT"
	EnvBackendURL = "REST_API_URL"
	EnvPassword   = "PASSWORD"

	EnvPatientID  = "PALPBRIDGE_PATIENT_ID"
	EnvCompletion = "PALPBRIDGE_COMPLETION"
)

// Completion policy names accepted in config files and PALPBRIDGE_COMPLETION.
const (
	CompletionReset    = "reset"
	CompletionCircular = "circular"
)

// Serial holds the serial transport settings for the sensor rig.
type Serial struct {
	Path     string `yaml:"path"`      // Device path (e.g. /dev/ttyACM0)
	BaudRate int    `yaml:"baud_rate"` // Line speed, rig firmware uses 115200
}

// Server holds the WebSocket/HTTP listener settings.
type Server struct {
	Host string `yaml:"host,omitempty"` // Empty = all interfaces
	Port int    `yaml:"port"`
	MDNS bool   `yaml:"mdns"` // Advertise _palpbridge._tcp via mDNS
}

// Backend holds the REST API settings.
type Backend struct {
	URL            string `yaml:"url"`
	Password       string `yaml:"password,omitempty"` // Usually supplied via PASSWORD env
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
}

// Session holds the palpation session settings.
type Session struct {
	PatientID  string   `yaml:"patient_id,omitempty"` // Default patient for flushes
	Regions    []string `yaml:"regions,omitempty"`    // Fixed region keys; empty = dynamic R1..Rn
	Completion string   `yaml:"completion"`           // "reset" or "circular"
}

// Config is the full bridge configuration, loadable from a YAML file with
// environment variable overrides applied on top.
type Config struct {
	Serial   Serial  `yaml:"serial"`
	Server   Server  `yaml:"server"`
	Backend  Backend `yaml:"backend"`
	Session  Session `yaml:"session"`
	LogLevel string  `yaml:"log_level,omitempty"`
}

// Default returns a Config with the defaults the original bridge shipped with.
func Default() *Config {
	return &Config{
		Serial: Serial{
			Path:     "/dev/cu.usbmodem1101",
			BaudRate: 115200,
		},
		Server: Server{
			Port: 3000,
		},
		Backend: Backend{
			TimeoutSeconds: 10,
		},
		Session: Session{
			Completion: CompletionReset,
		},
	}
}

// Load reads a YAML config file, applies environment overrides, and validates.
// An empty path skips the file and uses defaults + environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides config fields from the environment. Environment values
// win over the config file, matching the original dotenv behavior.
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvSerialPath); v != "" {
		c.Serial.Path = v
	}
	if v := os.Getenv(EnvListenPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv(EnvBackendURL); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		c.Backend.Password = v
	}
	if v := os.Getenv(EnvPatientID); v != "" {
		c.Session.PatientID = v
	}
	if v := os.Getenv(EnvCompletion); v != "" {
		c.Session.Completion = v
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Serial.Path == "" {
		return fmt.Errorf("serial path must not be empty")
	}
	if c.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial baud rate must be positive, got %d", c.Serial.BaudRate)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be 1-65535, got %d", c.Server.Port)
	}
	switch c.Session.Completion {
	case CompletionReset:
		// Fixed region list is optional in reset mode
	case CompletionCircular:
		if len(c.Session.Regions) == 0 {
			return fmt.Errorf("circular completion requires a fixed region list")
		}
	default:
		return fmt.Errorf("unknown completion policy %q (want %q or %q)",
			c.Session.Completion, CompletionReset, CompletionCircular)
	}
	if c.Backend.TimeoutSeconds < 0 {
		return fmt.Errorf("backend timeout must not be negative, got %d", c.Backend.TimeoutSeconds)
	}
	return nil
}
