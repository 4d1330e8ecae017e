package config

import (
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if configDir == "" {
		t.Error("GetConfigDir() returned empty string")
	}

	if !strings.Contains(configDir, "devtree") {
		t.Errorf("GetConfigDir() = %v, should contain 'devtree'", configDir)
	}

	switch runtime.GOOS {
	case "windows":
		if !strings.Contains(configDir, "AppData") && !strings.Contains(configDir, "Local") {
			t.Errorf("Windows config dir should contain 'AppData' or 'Local', got: %v", configDir)
		}
	case "darwin", "linux":
		if !strings.Contains(configDir, ".config") {
			t.Errorf("Unix config dir should contain '.config', got: %v", configDir)
		}
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}

	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}
	if reg.Devices == nil {
		t.Error("NewRegistry().Devices should not be nil")
	}
	if reg.Preferences == nil {
		t.Fatal("NewRegistry().Preferences should not be nil")
	}
	if reg.Preferences.Backlog != DefaultBacklog {
		t.Errorf("NewRegistry().Preferences.Backlog = %v, want %v", reg.Preferences.Backlog, DefaultBacklog)
	}
	if reg.Preferences.Server == nil || reg.Preferences.Server.Port != DefaultPort {
		t.Errorf("NewRegistry().Preferences.Server = %+v, want port %d", reg.Preferences.Server, DefaultPort)
	}
}

func TestRegistryEnsureDevice(t *testing.T) {
	reg := NewRegistry()

	const syspath = "/sys/devices/virtual/net/lo"

	// First call should create device
	device1 := reg.EnsureDevice(syspath)
	if device1 == nil {
		t.Fatal("EnsureDevice() returned nil")
	}

	// Second call should return same device
	device2 := reg.EnsureDevice(syspath)
	if device1 != device2 {
		t.Error("EnsureDevice() should return same instance for same syspath")
	}

	// Different syspath should create new device
	device3 := reg.EnsureDevice("/sys/devices/virtual/net/dummy0")
	if device1 == device3 {
		t.Error("EnsureDevice() should create new instance for different syspath")
	}
}

func TestUpdateDeviceSeen(t *testing.T) {
	reg := NewRegistry()

	const syspath = "/sys/devices/pci0000:00/0000:00:14.0/usb1/1-2"
	before := time.Now()
	reg.UpdateDeviceSeen(syspath, "add")

	device := reg.GetDevice(syspath)
	if device == nil {
		t.Fatal("GetDevice() returned nil after UpdateDeviceSeen")
	}
	if device.LastAction != "add" {
		t.Errorf("LastAction = %q, want %q", device.LastAction, "add")
	}
	if device.LastSeen.Before(before) {
		t.Errorf("LastSeen = %v, want >= %v", device.LastSeen, before)
	}
}

func TestSaveAndReload(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("config dir override uses XDG_CONFIG_HOME")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	reg := NewRegistry()
	reg.EnsureDevice("/sys/devices/virtual/net/lo").Nickname = "loopback"
	reg.Preferences.Subsystems = []string{"net", "block"}

	if err := reg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := ReloadRegistry()
	if err != nil {
		t.Fatalf("ReloadRegistry() error = %v", err)
	}
	device := loaded.GetDevice("/sys/devices/virtual/net/lo")
	if device == nil || device.Nickname != "loopback" {
		t.Fatalf("reloaded device = %+v, want nickname %q", device, "loopback")
	}
	if len(loaded.Preferences.Subsystems) != 2 {
		t.Errorf("reloaded Subsystems = %v, want 2 entries", loaded.Preferences.Subsystems)
	}
}
