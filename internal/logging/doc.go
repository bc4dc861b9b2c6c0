// Package logging provides structured logging for the palpbridge server.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the bridge. It provides both general logging
// functions and specialized helpers for connection and message events.
//
// # Log Levels
//
//   - Debug: Detailed debugging info (raw device lines, frame classification)
//   - Info: Normal operations (connections, client messages, session flushes)
//   - Warn: Non-fatal issues (malformed frames, dropped payloads)
//   - Error: Failures (serial write errors, backend call failures)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Session flushed",
//	    zap.String("patient_id", "8001011234567"),
//	    zap.Int("regions", 5),
//	)
//
// # Configuration
//
// Initialize logging at server startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// CLI commands that want silent-by-default behavior should use
// InitializeFromEnv, which only enables output when PALPBRIDGE_LOG_LEVEL
// is set.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap
// logger handles synchronization automatically.
package logging
