// Package logging provides structured logging for the CarLink bridge.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the bridge. It provides both general logging
// functions and specialized functions for protocol-specific logging needs.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (hex dumps, frame parsing, heartbeats)
//   - Info: Normal operations (device claims, phone plug events, state changes)
//   - Warn: Non-fatal issues (dropped messages, underruns, retries)
//   - Error: Fatal issues (startup failures, device loss, critical errors)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Phone plugged",
//	    zap.Stringer("phone_type", msg.PhoneType),
//	    zap.Bool("wifi", msg.HasWifi),
//	)
//
// # Specialized Logging
//
// The package provides domain-specific logging functions:
//
// Protocol Frame Logging:
//
//	logging.LogFrame("in", msgType, payload)
//	logging.LogFrame("out", msgType, payload)
//
// Raw Byte Logging:
//
//	logging.LogRawBytes("Unrecognized payload", data)
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Logging is silent by default; set CARLINK_LOG_LEVEL or pass an explicit
// level to enable output.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap
// logger handles synchronization automatically.
package logging
