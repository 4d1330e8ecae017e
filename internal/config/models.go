package config

import "time"

// Registry represents the entire user configuration file.
// This stores user-defined metadata for devices and application preferences.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by syspath
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Device represents user-defined metadata for a single device,
// keyed by its syspath in the Registry. Everything here is client-side
// bookkeeping; the device tree itself is read-only.
type Device struct {
	Nickname   string    `yaml:"nickname,omitempty"`    // User-friendly name
	LastSeen   time.Time `yaml:"last_seen,omitempty"`   // Last enumeration/event time
	LastAction string    `yaml:"last_action,omitempty"` // Last hotplug action observed
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	// Subsystems are the default filters applied by list/monitor/watch
	// when no --subsystem flag is given. Empty means no filtering.
	Subsystems []string `yaml:"subsystems,omitempty"`

	// Backlog is how many events the server keeps for replay to newly
	// connected clients.
	Backlog int `yaml:"backlog"`

	// Server holds the default listen address for devtree-server.
	Server *ServerPrefs `yaml:"server,omitempty"`
}

// ServerPrefs represents the default devtree-server listen address.
type ServerPrefs struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Default preference values.
const (
	DefaultBacklog = 256
	DefaultHost    = "127.0.0.1"
	DefaultPort    = 8337
)

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version: 1,
		Devices: make(map[string]*Device),
		Preferences: &Preferences{
			Backlog: DefaultBacklog,
			Server: &ServerPrefs{
				Host: DefaultHost,
				Port: DefaultPort,
			},
		},
	}
}

// GetDevice retrieves device metadata by syspath.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(syspath string) *Device {
	return r.Devices[syspath]
}

// EnsureDevice ensures a device entry exists in the registry.
// If the device doesn't exist, creates a new entry with default values.
// Returns the device entry (existing or newly created).
func (r *Registry) EnsureDevice(syspath string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}

	if device, exists := r.Devices[syspath]; exists {
		return device
	}

	device := &Device{}
	r.Devices[syspath] = device
	return device
}

// UpdateDeviceSeen updates the last-seen timestamp and action for a
// device.
func (r *Registry) UpdateDeviceSeen(syspath, action string) {
	device := r.EnsureDevice(syspath)
	device.LastSeen = time.Now()
	device.LastAction = action
}
