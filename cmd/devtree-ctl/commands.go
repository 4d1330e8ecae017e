package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/devtree/internal/config"
	"github.com/muurk/devtree/internal/devtree"
	"github.com/muurk/devtree/internal/sysfs"
	"github.com/muurk/devtree/internal/ui"
)

// Command flags
var (
	sysfsRoot    string
	subsystems   []string
	sysnameGlob  string
	properties   []string
	outputFormat string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&sysfsRoot, "sysfs-root", "", "Device tree root (default /sys)")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(nicknameCmd)
}

// newSubsystem builds the sysfs backend honoring --sysfs-root.
func newSubsystem() *sysfs.Subsystem {
	var opts []sysfs.Option
	if sysfsRoot != "" {
		opts = append(opts, sysfs.WithRoot(sysfsRoot))
	}
	return sysfs.New(opts...)
}

// defaultSubsystems falls back to the registry's preferred filters when
// no --subsystem flag was given.
func defaultSubsystems() []string {
	if len(subsystems) > 0 {
		return subsystems
	}
	reg, err := config.LoadRegistry()
	if err != nil || reg.Preferences == nil {
		return nil
	}
	return reg.Preferences.Subsystems
}

// listCmd enumerates the device tree
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List devices in the device tree",
	Long: `Enumerate the device tree and list all matching devices.

Subsystem and property matches are combined with AND; a device must
satisfy every filter to be listed. Sysname filters accept glob
patterns. Without filters, every device is listed.`,
	Example: `  # List everything
  devtree-ctl list

  # List block devices
  devtree-ctl list --subsystem block

  # List sda and its partitions
  devtree-ctl list --subsystem block --sysname 'sda*'

  # List disks only, as JSON
  devtree-ctl list --subsystem block --property DEVTYPE=disk --format json`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringSliceVar(&subsystems, "subsystem", nil, "Restrict to a subsystem (repeatable)")
	listCmd.Flags().StringVar(&sysnameGlob, "sysname", "", "Restrict to sysnames matching a glob pattern")
	listCmd.Flags().StringSliceVar(&properties, "property", nil, "Restrict to devices with KEY=VALUE (repeatable)")
	listCmd.Flags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, json)")
}

type deviceListing struct {
	Syspath   string `json:"syspath"`
	Subsystem string `json:"subsystem,omitempty"`
	Sysname   string `json:"sysname,omitempty"`
	Devtype   string `json:"devtype,omitempty"`
	Devnode   string `json:"devnode,omitempty"`
	Nickname  string `json:"nickname,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true

	ctx, err := devtree.Open(newSubsystem())
	if err != nil {
		ui.NewPrinter(nil).PrintError("Failed to open device session", err, []string{
			"Check that the device tree is mounted at /sys",
			"Pass --sysfs-root when inspecting a synthetic tree",
		})
		return fmt.Errorf("failed to open device session: %w", err)
	}
	defer ctx.Close()

	e, err := devtree.NewEnumerator(ctx)
	if err != nil {
		return fmt.Errorf("failed to create enumerator: %w", err)
	}
	defer e.Close()

	for _, name := range defaultSubsystems() {
		e.MatchSubsystem(name)
	}
	if sysnameGlob != "" {
		e.MatchSysname(sysnameGlob)
	}
	for _, prop := range properties {
		key, value, ok := strings.Cut(prop, "=")
		if !ok {
			return fmt.Errorf("invalid --property %q (expected KEY=VALUE)", prop)
		}
		e.MatchProperty(key, value)
	}

	devices, err := e.Devices()
	if err != nil {
		return fmt.Errorf("enumeration failed: %w", err)
	}

	reg, _ := config.LoadRegistry()

	listings := make([]deviceListing, 0, len(devices))
	for _, dev := range devices {
		info := dev.Info()
		l := deviceListing{
			Syspath:   info.Syspath,
			Subsystem: info.Subsystem,
			Sysname:   info.Sysname,
			Devtype:   info.Devtype,
			Devnode:   info.Devnode,
		}
		if reg != nil {
			if entry := reg.GetDevice(info.Syspath); entry != nil {
				l.Nickname = entry.Nickname
			}
		}
		listings = append(listings, l)
		_ = dev.Close()
	}

	if outputFormat == "json" {
		data, err := json.MarshalIndent(listings, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(listings) == 0 {
		fmt.Println("No matching devices.")
		return nil
	}

	p := ui.NewPrinter(nil)
	for _, l := range listings {
		syspath := l.Syspath
		if l.Nickname != "" {
			syspath += " [" + l.Nickname + "]"
		}
		p.PrintDeviceLine(l.Subsystem, syspath, l.Devnode)
	}
	fmt.Printf("\n%d device(s)\n", len(listings))

	return nil
}

// infoCmd shows one device in detail
var infoCmd = &cobra.Command{
	Use:   "info <syspath>",
	Short: "Show device details",
	Long: `Display one device in detail: identity, properties, and the
chain of parent devices up to the root of its tree.`,
	Example: `  # Inspect a block device
  devtree-ctl info /sys/class/block/sda

  # Inspect a network interface
  devtree-ctl info /sys/class/net/eth0`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true
	p := ui.NewPrinter(nil)

	ctx, err := devtree.Open(newSubsystem())
	if err != nil {
		p.PrintError("Failed to open device session", err, []string{
			"Check that the device tree is mounted at /sys",
			"Pass --sysfs-root when inspecting a synthetic tree",
		})
		return fmt.Errorf("failed to open device session: %w", err)
	}
	defer ctx.Close()

	dev, err := devtree.DeviceFromSyspath(ctx, args[0])
	if err != nil {
		p.PrintError("Device lookup failed", err, []string{
			"Verify the syspath with 'devtree-ctl list'",
			"Syspaths are absolute, e.g. /sys/class/block/sda",
		})
		return fmt.Errorf("failed to look up device: %w", err)
	}
	defer dev.Close()

	info := dev.Info()
	params := map[string]string{
		"Syspath":   info.Syspath,
		"Subsystem": info.Subsystem,
		"Sysname":   info.Sysname,
	}
	if info.Devtype != "" {
		params["Devtype"] = info.Devtype
	}
	if info.Devnode != "" {
		params["Devnode"] = info.Devnode
	}
	if reg, err := config.LoadRegistry(); err == nil {
		if entry := reg.GetDevice(info.Syspath); entry != nil && entry.Nickname != "" {
			params["Nickname"] = entry.Nickname
		}
	}

	p.PrintHeader("Device Details", "devtree-ctl info", params)
	p.Newline()

	if props := dev.Properties(); len(props) > 0 {
		p.Println("Properties:")
		p.PrintProperties(props)
		p.Newline()
	}

	// Walk the parent chain, closing each hop as we go.
	parent, ok := dev.Parent()
	if ok {
		p.Println("Parents:")
		for ok {
			p.PrintDeviceLine(parent.Subsystem(), parent.Syspath(), "")
			next, nextOK := parent.Parent()
			_ = parent.Close()
			parent, ok = next, nextOK
		}
	}

	return nil
}

// monitorCmd streams hotplug events as plain lines
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print hotplug events as they happen",
	Long: `Subscribe to hotplug events and print one line per event until
interrupted. For an interactive view, use devtree-watch instead.

Seen devices are recorded in the registry so 'list' can show when a
device was last active.`,
	Example: `  # Monitor everything
  devtree-ctl monitor

  # Monitor USB and block events only
  devtree-ctl monitor --subsystem usb --subsystem block`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringSliceVar(&subsystems, "subsystem", nil, "Restrict to a subsystem (repeatable)")
	monitorCmd.Flags().StringVar(&outputFormat, "format", "text", "Output format (text, json)")
}

type eventListing struct {
	Action    string `json:"action"`
	Subsystem string `json:"subsystem,omitempty"`
	Syspath   string `json:"syspath"`
	Devtype   string `json:"devtype,omitempty"`
	Devnode   string `json:"devnode,omitempty"`
}

func runMonitor(cmd *cobra.Command, args []string) error {
	dctx, err := devtree.Open(newSubsystem())
	if err != nil {
		return fmt.Errorf("failed to open device session: %w", err)
	}
	defer dctx.Close()

	mon, err := devtree.NewMonitor(dctx)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}
	defer mon.Close()

	filters := defaultSubsystems()
	for _, name := range filters {
		mon.FilterSubsystem(name, "")
	}
	if err := mon.Start(); err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jsonOut := outputFormat == "json"
	if !jsonOut {
		if len(filters) > 0 {
			fmt.Printf("Monitoring %s (Ctrl-C to stop)...\n\n", strings.Join(filters, ", "))
		} else {
			fmt.Println("Monitoring all subsystems (Ctrl-C to stop)...")
			fmt.Println()
		}
	}

	reg, _ := config.LoadRegistry()
	seen := 0

	for {
		dev, err := mon.Receive(sigCtx)
		if err != nil {
			if sigCtx.Err() != nil {
				break
			}
			fmt.Fprintf(os.Stderr, "receive error: %v\n", err)
			continue
		}

		info := dev.Info()
		if jsonOut {
			data, err := json.Marshal(eventListing{
				Action:    info.Action,
				Subsystem: info.Subsystem,
				Syspath:   info.Syspath,
				Devtype:   info.Devtype,
				Devnode:   info.Devnode,
			})
			if err == nil {
				fmt.Println(string(data))
			}
		} else {
			line := fmt.Sprintf("%-7s %-10s %s", info.Action, info.Subsystem, info.Syspath)
			if info.Devnode != "" {
				line += " (" + info.Devnode + ")"
			}
			fmt.Println(line)
		}

		if reg != nil {
			reg.UpdateDeviceSeen(info.Syspath, info.Action)
		}
		seen++
		_ = dev.Close()
	}

	if !jsonOut {
		fmt.Printf("\n%d event(s) observed\n", seen)
	}

	if reg != nil && seen > 0 {
		if err := reg.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to save registry: %v\n", err)
		}
	}

	return nil
}

// nicknameCmd manages user-defined device names
var nicknameCmd = &cobra.Command{
	Use:   "nickname <syspath> [name]",
	Short: "Set or clear a device nickname",
	Long: `Assign a user-defined nickname to a device. Nicknames are stored
in the local registry and shown by 'list' and 'info'. Omitting the
name clears an existing nickname.`,
	Example: `  # Name the boot disk
  devtree-ctl nickname /sys/class/block/sda boot-disk

  # Clear it again
  devtree-ctl nickname /sys/class/block/sda`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runNickname,
}

func runNickname(cmd *cobra.Command, args []string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true
	p := ui.NewPrinter(nil)
	syspath := args[0]

	// Verify the device exists before touching the registry.
	ctx, err := devtree.Open(newSubsystem())
	if err != nil {
		p.PrintError("Failed to open device session", err, []string{
			"Check that the device tree is mounted at /sys",
			"Pass --sysfs-root when inspecting a synthetic tree",
		})
		return fmt.Errorf("failed to open device session: %w", err)
	}
	defer ctx.Close()

	dev, err := devtree.DeviceFromSyspath(ctx, syspath)
	if err != nil {
		p.PrintError("Device lookup failed", err, []string{
			"Verify the syspath with 'devtree-ctl list'",
			"Nicknames can only be set for devices that exist",
		})
		return fmt.Errorf("failed to look up device: %w", err)
	}
	_ = dev.Close()

	reg, err := config.LoadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if len(args) == 2 {
		reg.EnsureDevice(syspath).Nickname = args[1]
		if err := reg.Save(); err != nil {
			return fmt.Errorf("failed to save registry: %w", err)
		}
		p.PrintSuccess("Nickname saved", map[string]string{
			"Device":   syspath,
			"Nickname": args[1],
		})
		return nil
	}

	if entry := reg.GetDevice(syspath); entry != nil {
		entry.Nickname = ""
	}
	if err := reg.Save(); err != nil {
		return fmt.Errorf("failed to save registry: %w", err)
	}
	p.PrintSuccess("Nickname cleared", map[string]string{
		"Device": syspath,
	})
	return nil
}
