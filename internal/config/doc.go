// Package config holds the bridge configuration.
//
// Configuration is resolved in layers: built-in defaults, an optional
// YAML file, and environment variable overrides on top. The environment
// names (SERIAL_PORT_PATH, PORT, REST_API_URL, PASSWORD) match what the
// deployed rigs already export, so the bridge drops into an existing
// installation without changes.
package config
