// Devtree-server streams device hotplug events over WebSocket.
//
// It opens a long-lived device session, monitors hotplug events, and
// fans them out to WebSocket clients with a replayable backlog. A JSON
// endpoint serves snapshots of the current device tree.
//
// Usage:
//
//	devtree-server serve [flags]
//
// See 'devtree-server serve --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/devtree/internal/config"
	"github.com/muurk/devtree/internal/server"
	"github.com/muurk/devtree/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "devtree-server",
	Short: "Device Event Server",
	Long: `A standalone server streaming device hotplug events over WebSocket.

Clients connect to /events and receive a JSON stream of hotplug
events, starting with a replay of the most recent ones. /devices
serves a filtered snapshot of the device tree and /healthz reports
liveness.

Note: for one-off inspection from a terminal, use the separate
'devtree-ctl' utility; for an interactive event view, use
'devtree-watch'.`,
	Version: version.Version,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve command and flags
var (
	certPath   string
	keyPath    string
	host       string
	port       int
	logLevel   string
	backlog    int
	subsystems []string
	sysfsRoot  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the event server",
	Long: `Start the devtree event server.

Host, port, backlog size, and default subsystem filters fall back to
the local registry's preferences when the corresponding flag is not
given. TLS is enabled by providing both --cert and --key.`,
	Example: `  # Serve on the registry's preferred address (default 127.0.0.1:8337)
  devtree-server serve

  # Serve block and usb events only, on all interfaces
  devtree-server serve --host 0.0.0.0 --port 8337 --subsystem block --subsystem usb

  # Serve with TLS
  devtree-server serve --cert /path/to/fullchain.pem --key /path/to/privkey.pem`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&certPath, "cert", "", "Path to TLS certificate file (optional)")
	serveCmd.Flags().StringVar(&keyPath, "key", "", "Path to TLS private key file (optional)")
	serveCmd.Flags().StringVar(&host, "host", "", "Listen address (default from registry preferences)")
	serveCmd.Flags().IntVar(&port, "port", 0, "Listen port (default from registry preferences)")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().IntVar(&backlog, "backlog", 0, "Events kept for replay to new clients (default from registry preferences)")
	serveCmd.Flags().StringSliceVar(&subsystems, "subsystem", nil, "Monitor filter (repeatable; default from registry preferences)")
	serveCmd.Flags().StringVar(&sysfsRoot, "sysfs-root", "", "Device tree root (default /sys)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Validate: either both cert and key are provided, or neither
	if (certPath != "") != (keyPath != "") {
		return fmt.Errorf("both --cert and --key must be provided together, or neither")
	}
	if certPath != "" {
		if _, err := os.Stat(certPath); os.IsNotExist(err) {
			return fmt.Errorf("certificate file not found: %s", certPath)
		}
		if _, err := os.Stat(keyPath); os.IsNotExist(err) {
			return fmt.Errorf("private key file not found: %s", keyPath)
		}
	}

	// Fill unset flags from registry preferences
	reg, err := config.LoadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	prefs := reg.Preferences
	if host == "" {
		host = config.DefaultHost
		if prefs != nil && prefs.Server != nil && prefs.Server.Host != "" {
			host = prefs.Server.Host
		}
	}
	if port == 0 {
		port = config.DefaultPort
		if prefs != nil && prefs.Server != nil && prefs.Server.Port != 0 {
			port = prefs.Server.Port
		}
	}
	if backlog == 0 && prefs != nil {
		backlog = prefs.Backlog
	}
	if len(subsystems) == 0 && prefs != nil {
		subsystems = prefs.Subsystems
	}

	srv, err := server.New(&server.Config{
		Host:       host,
		Port:       port,
		CertPath:   certPath,
		KeyPath:    keyPath,
		LogLevel:   logLevel,
		Backlog:    backlog,
		Subsystems: subsystems,
		SysfsRoot:  sysfsRoot,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("devtree-server %s\n", version.Full())
	},
}
