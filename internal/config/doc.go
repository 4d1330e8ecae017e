// Package config provides user configuration management for the
// devtree tools.
//
// This package manages a YAML-based configuration file storing
// user-defined metadata (device nicknames, last-seen bookkeeping) and
// application preferences (default subsystem filters, server listen
// address, event backlog size). The file lives in the OS-appropriate
// config directory:
//
//   - Linux: $XDG_CONFIG_HOME/devtree or $HOME/.config/devtree
//   - macOS: $HOME/.config/devtree
//   - Windows: %LOCALAPPDATA%\devtree
//
// The registry is loaded lazily, cached process-wide, and written back
// atomically (write-to-temp plus rename) so a crash can never corrupt
// it.
package config
