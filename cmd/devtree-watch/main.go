// Devtree-watch is an interactive viewer for device hotplug events.
//
// It opens a device session, subscribes to hotplug events, and renders
// them in a live terminal view with pause and clear controls. Without a
// terminal it degrades to plain line output.
//
// Usage:
//
//	devtree-watch [flags]
//
// See 'devtree-watch --help' for available options.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/devtree/internal/config"
	"github.com/muurk/devtree/internal/devtree"
	"github.com/muurk/devtree/internal/logging"
	"github.com/muurk/devtree/internal/sysfs"
	"github.com/muurk/devtree/internal/ui"
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

var (
	subsystems []string
	sysfsRoot  string
)

var rootCmd = &cobra.Command{
	Use:   "devtree-watch",
	Short: "Interactive Device Event Viewer",
	Long: `An interactive terminal viewer for device hotplug events.

Events scroll live in the terminal; press p to pause the view, c to
clear it, and q to quit. Subsystem filters default to the local
registry's preferences when no --subsystem flag is given.`,
	Example: `  # Watch everything
  devtree-watch

  # Watch USB and block events only
  devtree-watch --subsystem usb --subsystem block`,
	Version: version.Version,
	RunE:    runWatch,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.Flags().StringSliceVar(&subsystems, "subsystem", nil, "Restrict to a subsystem (repeatable)")
	rootCmd.Flags().StringVar(&sysfsRoot, "sysfs-root", "", "Device tree root (default /sys)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("devtree-watch %s\n", version.Full())
	},
}

func runWatch(cmd *cobra.Command, args []string) error {
	filters := subsystems
	if len(filters) == 0 {
		if reg, err := config.LoadRegistry(); err == nil && reg.Preferences != nil {
			filters = reg.Preferences.Subsystems
		}
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan ui.WatchEvent, 64)
	pumpErr := make(chan error, 1)
	go runPump(pumpCtx, filters, events, pumpErr)

	if !ui.IsTerminal() {
		return watchPlain(pumpCtx, cancel, filters, events, pumpErr)
	}

	if err := ui.RunWatch(events, filters); err != nil {
		return fmt.Errorf("watch error: %w", err)
	}
	cancel()

	// A pump failure is the interesting error when the view exits
	// immediately after startup.
	select {
	case err := <-pumpErr:
		return err
	default:
		return nil
	}
}

// runPump owns the monitoring session. It converts each event to a
// plain WatchEvent and closes the channel when the session ends.
func runPump(ctx context.Context, filters []string, events chan<- ui.WatchEvent, pumpErr chan<- error) {
	defer close(events)

	dctx, err := devtree.Open(newSubsystem())
	if err != nil {
		pumpErr <- fmt.Errorf("failed to open device session: %w", err)
		return
	}
	defer dctx.Close()

	mon, err := devtree.NewMonitor(dctx)
	if err != nil {
		pumpErr <- fmt.Errorf("failed to create monitor: %w", err)
		return
	}
	defer mon.Close()

	for _, name := range filters {
		mon.FilterSubsystem(name, "")
	}
	if err := mon.Start(); err != nil {
		pumpErr <- fmt.Errorf("failed to start monitor: %w", err)
		return
	}

	for {
		dev, err := mon.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		ev := ui.WatchEvent{
			Time:      time.Now(),
			Action:    dev.Action(),
			Subsystem: dev.Subsystem(),
			Syspath:   dev.Syspath(),
			Devnode:   dev.Devnode(),
		}
		_ = dev.Close()

		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func newSubsystem() *sysfs.Subsystem {
	var opts []sysfs.Option
	if sysfsRoot != "" {
		opts = append(opts, sysfs.WithRoot(sysfsRoot))
	}
	return sysfs.New(opts...)
}

// watchPlain prints events line by line when stdout is not a terminal.
func watchPlain(ctx context.Context, cancel context.CancelFunc, filters []string, events <-chan ui.WatchEvent, pumpErr <-chan error) error {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(filters) > 0 {
		fmt.Printf("Watching %s...\n", strings.Join(filters, ", "))
	} else {
		fmt.Println("Watching all subsystems...")
	}

	for {
		select {
		case <-sigCtx.Done():
			cancel()
			return nil
		case err := <-pumpErr:
			return err
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			line := fmt.Sprintf("%s %-7s %-10s %s",
				ev.Time.Format("15:04:05"), ev.Action, ev.Subsystem, ev.Syspath)
			if ev.Devnode != "" {
				line += " (" + ev.Devnode + ")"
			}
			fmt.Println(line)
		}
	}
}
