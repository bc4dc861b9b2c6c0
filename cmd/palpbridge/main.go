// Palpbridge bridges a serial palpation sensor rig to WebSocket clients
// and a clinical REST backend.
//
// It reads force and reset frames from the rig over a serial port,
// broadcasts every raw line to connected WebSocket clients, accumulates
// per-region measurements into a palpation session, and flushes completed
// sessions to the backend with a cached bearer token.
//
// Usage:
//
//	palpbridge serve [flags]
//
// See 'palpbridge serve --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/palpamed/palpbridge/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "palpbridge",
	Short: "Palpation Sensor Bridge",
	Long: `A bridge between a serial palpation sensor rig, WebSocket clients,
and a clinical REST backend.

The bridge tails the rig's serial output, relays every raw line to all
connected WebSocket clients, tracks a palpation session of per-region
force and pain measurements, and posts completed sessions to the backend.

Use 'palpbridge serve' to start the bridge and 'palpbridge monitor' to
watch a running bridge from the terminal.`,
	Version: version.Version,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("palpbridge %s (commit: %s)\n", version.Version, version.Commit)
	},
}
