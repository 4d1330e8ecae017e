// Devtree-ctl is a command-line utility for inspecting the device tree.
//
// It provides device enumeration, detailed device inspection, a live
// event monitor, and a small registry of user-defined device nicknames.
// All device access goes through reference-counted sessions over sysfs.
//
// Usage:
//
//	devtree-ctl [command] [flags]
//
// See 'devtree-ctl --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/devtree/internal/logging"
	"github.com/muurk/devtree/internal/version"
)

func main() {
	if err := logging.InitializeFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "devtree-ctl",
	Short: "Device Tree Inspection Utility",
	Long: `A standalone utility for inspecting the kernel device tree.

Provides device enumeration with subsystem, sysname, and property
filters, detailed per-device inspection including the parent chain,
a live hotplug event monitor, and user-defined device nicknames.

Set DEVTREE_LOG_LEVEL to enable structured logging output.`,
	Version: version.Version,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("devtree-ctl %s\n", version.Full())
	},
}
