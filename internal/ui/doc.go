// Package ui provides terminal UI components for the devtree CLIs.
//
// This package uses Bubble Tea and Lipgloss to render polished terminal
// output. Two patterns coexist:
//
//   - "Run once and exit" output for devtree-ctl commands: headers,
//     device listings, property tables, and success/error result boxes,
//     printed through a Printer.
//   - The interactive watch view for devtree-watch: a live, scrolling
//     event feed with pause and clear controls.
//
// # Components
//
//   - Header: command banner showing operation name and parameters
//   - Printer: styled line/box output for listings and results
//   - WatchModel: Bubble Tea model rendering live hotplug events
//
// # Logging Integration
//
// This package expects logging to be controlled via the
// DEVTREE_LOG_LEVEL environment variable. When unset or empty, zap
// logging is silent, allowing the curated UI output to be displayed
// cleanly. Set DEVTREE_LOG_LEVEL to "debug", "info", "warn", or "error"
// to enable logging output.
//
// # Event Ownership
//
// The watch view never touches device handles. The command's pump
// goroutine owns the session and monitor, converts each event to a
// plain WatchEvent, and sends it over a channel; the model only reads
// that channel.
package ui
