package subsys

import (
	"context"
	"errors"
)

// Raw is an opaque handle to an object owned by the device subsystem.
// It is only meaningful to the subsystem that issued it.
type Raw uint64

// Null is the zero handle. Constructor operations return Null to signal
// allocation failure; a live wrapper value never holds it.
const Null Raw = 0

// IsNull reports whether the handle is the null value.
func (r Raw) IsNull() bool { return r == Null }

var (
	// ErrAllocation is returned when a subsystem constructor reports
	// allocation failure (a null handle).
	ErrAllocation = errors.New("subsystem allocation failed")

	// ErrNotFound is returned when a syspath does not name a device in
	// the subsystem's tree.
	ErrNotFound = errors.New("device not found")
)

// Match is a single enumeration filter. Exactly one field group is
// normally set per Match; an enumerator ANDs all of its matches.
type Match struct {
	// Subsystem matches devices belonging to the named kernel subsystem
	// (e.g. "block", "net", "usb").
	Subsystem string

	// Sysname matches device names against a glob pattern
	// (e.g. "sda*", "eth0").
	Sysname string

	// Property and Value match a device property by exact value.
	// Property is the key (e.g. "DEVTYPE"); Value is required with it.
	Property string
	Value    string
}

// DeviceInfo is an immutable snapshot of a device's identity.
type DeviceInfo struct {
	// Syspath is the absolute path of the device directory in the
	// virtual device tree (e.g. "/sys/devices/.../sda").
	Syspath string

	// Subsystem is the kernel subsystem the device belongs to.
	Subsystem string

	// Sysname is the final component of the syspath.
	Sysname string

	// Devtype further qualifies the subsystem (e.g. "disk", "partition").
	// Empty when the kernel does not report one.
	Devtype string

	// Devnode is the device node under /dev, when one exists.
	Devnode string

	// Action is the hotplug action ("add", "remove", "change", "bind",
	// "unbind") for devices received from a monitor; empty for devices
	// obtained by lookup or enumeration.
	Action string
}

// Subsystem is the collaborator that owns the device tree. All handles
// it issues are reference-counted; every operation other than the three
// lifecycle primitives requires a live (non-null, not yet released)
// handle of the appropriate kind, which is a precondition the wrapper
// layer makes unreachable rather than a runtime error.
type Subsystem interface {
	// OpenSession creates a new session with refcount 1, or returns
	// Null on allocation failure.
	OpenSession() Raw

	// Ref increments the reference count of raw and returns the same
	// handle.
	Ref(raw Raw) Raw

	// Unref decrements the reference count of raw, releasing the
	// underlying object when the count reaches zero.
	Unref(raw Raw)

	// DeviceFromSyspath looks up a device by syspath within a session.
	// The returned handle is owned by the caller (refcount 1).
	DeviceFromSyspath(session Raw, syspath string) (Raw, error)

	// DeviceInfo returns the identity snapshot of a device.
	DeviceInfo(dev Raw) DeviceInfo

	// DeviceProperty returns one device property value and whether the
	// property exists.
	DeviceProperty(dev Raw, key string) (string, bool)

	// DeviceProperties returns a copy of all device properties.
	DeviceProperties(dev Raw) map[string]string

	// DeviceSysattr reads one sysfs attribute of the device.
	DeviceSysattr(dev Raw, name string) (string, error)

	// DeviceParent returns a handle to the device's parent, already
	// referenced on the caller's behalf, or Null when the device has no
	// parent.
	DeviceParent(dev Raw) Raw

	// NewEnumerator creates an enumerator bound to a session, or
	// returns Null on allocation failure.
	NewEnumerator(session Raw) Raw

	// EnumeratorAddMatch adds a filter to an enumerator.
	EnumeratorAddMatch(enum Raw, m Match)

	// EnumeratorScan walks the device tree and returns the sorted
	// syspaths of all devices passing the enumerator's filters.
	EnumeratorScan(enum Raw) ([]string, error)

	// NewMonitor creates a hotplug monitor bound to a session, or
	// returns Null on allocation failure.
	NewMonitor(session Raw) Raw

	// MonitorFilter restricts a monitor to one subsystem and optional
	// devtype. May be called multiple times before MonitorStart;
	// filters are ORed.
	MonitorFilter(mon Raw, subsystem, devtype string)

	// MonitorStart begins event delivery. Filters added after this
	// point are ignored.
	MonitorStart(mon Raw) error

	// MonitorReceive blocks until the next event passing the monitor's
	// filters arrives, the context is cancelled, or the monitor's event
	// source closes. The returned device handle is owned by the caller.
	MonitorReceive(ctx context.Context, mon Raw) (Raw, error)
}
