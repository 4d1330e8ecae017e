// Package logging provides structured logging for the devtree tools.
//
// This package wraps zap with convenience functions for the logging
// patterns used throughout the repository. CLI invocations are silent
// by default; setting DEVTREE_LOG_LEVEL (or passing --log-level where a
// command exposes it) turns on output.
//
// # Log Levels
//
//   - Debug: handle lifecycle, raw uevent datagrams, scan internals
//   - Info: normal operations (sessions, monitors, server requests)
//   - Warn: non-fatal issues (dropped events, slow clients)
//   - Error: failures (socket errors, startup failures)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("monitor started",
//	    zap.String("subsystem", "block"),
//	    zap.Uint64("session", uint64(ctx.RawHandle())),
//	)
//
// # Domain helpers
//
//	logging.LogUevent("add", "/sys/devices/.../sdb", "block")
//	logging.LogSession("opened", raw)
//
// # Configuration
//
// Initialize at startup:
//
//	if err := logging.Initialize(logLevel); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying
// zap logger handles synchronization automatically.
package logging
