// Package logging provides structured logging for the airctrl client.
//
// This package wraps zap logger with convenience functions for common
// logging patterns used throughout the client. Logging is silent by
// default so library consumers and CLI users are not flooded with
// protocol chatter unless they ask for it.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Protocol detail (envelopes, token rotation, raw payloads)
//   - Info: Normal operations (sync completed, observation started)
//   - Warn: Non-fatal issues (control retries, watchdog resubscribes)
//   - Error: Fatal issues (transport teardown failures)
//
// # Configuration
//
// The AIRCTRL_LOG_LEVEL environment variable controls verbosity. When
// unset, the nop logger is installed and no output is produced:
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Debug("Session token set",
//	    zap.String("token", token),
//	)
//
// Raw protocol payloads can be dumped at debug level:
//
//	logging.LogRawBytes("status payload", payload)
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap
// logger handles synchronization automatically.
package logging
