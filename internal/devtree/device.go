package devtree

import (
	"fmt"

	"github.com/muurk/devtree/internal/handle"
	"github.com/muurk/devtree/internal/subsys"
)

// Device is one reference-counted record in the device tree.
type Device struct {
	obj *handle.Object
	ctx *Context
}

// newDevice wraps a device handle the caller already owns and attaches
// it to ctx's session graph.
func newDevice(ctx *Context, raw subsys.Raw) (*Device, error) {
	obj, err := handle.Adopt(ctx.sys, raw, ctx.obj.Guard())
	if err != nil {
		return nil, err
	}
	return &Device{obj: obj, ctx: ctx.Clone()}, nil
}

// DeviceFromSyspath looks up a device by its path in the virtual
// device tree.
func DeviceFromSyspath(ctx *Context, syspath string) (*Device, error) {
	raw, err := ctx.sys.DeviceFromSyspath(ctx.obj.Raw(), syspath)
	if err != nil {
		return nil, fmt.Errorf("device lookup: %w", err)
	}
	dev, err := newDevice(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("device lookup: %w", err)
	}
	return dev, nil
}

// Clone returns a second owner of the same device record.
func (d *Device) Clone() *Device {
	return &Device{obj: d.obj.Clone(), ctx: d.ctx.Clone()}
}

// Close releases this owner's reference on the device and on the
// session clone it holds.
func (d *Device) Close() error {
	if err := d.obj.Close(); err != nil {
		return err
	}
	return d.ctx.Close()
}

// RawHandle returns the raw device handle.
func (d *Device) RawHandle() subsys.Raw {
	return d.obj.Raw()
}

// Info returns the device's identity snapshot.
func (d *Device) Info() subsys.DeviceInfo {
	return d.ctx.sys.DeviceInfo(d.obj.Raw())
}

// Syspath returns the device's absolute path in the device tree.
func (d *Device) Syspath() string { return d.Info().Syspath }

// Subsystem returns the kernel subsystem the device belongs to.
func (d *Device) Subsystem() string { return d.Info().Subsystem }

// Sysname returns the final component of the syspath.
func (d *Device) Sysname() string { return d.Info().Sysname }

// Devtype returns the device type within its subsystem, if reported.
func (d *Device) Devtype() string { return d.Info().Devtype }

// Devnode returns the device node path under /dev, if one exists.
func (d *Device) Devnode() string { return d.Info().Devnode }

// Action returns the hotplug action for devices received from a
// Monitor, and "" for devices obtained by lookup or enumeration.
func (d *Device) Action() string { return d.Info().Action }

// Property returns one device property and whether it exists.
func (d *Device) Property(key string) (string, bool) {
	return d.ctx.sys.DeviceProperty(d.obj.Raw(), key)
}

// Properties returns a copy of all device properties.
func (d *Device) Properties() map[string]string {
	return d.ctx.sys.DeviceProperties(d.obj.Raw())
}

// Sysattr reads one sysfs attribute of the device.
func (d *Device) Sysattr(name string) (string, error) {
	return d.ctx.sys.DeviceSysattr(d.obj.Raw(), name)
}

// Parent returns the device's parent as a new owning value, or false
// when the device sits at the top of its tree. The parent must be
// closed like any other Device.
func (d *Device) Parent() (*Device, bool) {
	raw := d.ctx.sys.DeviceParent(d.obj.Raw())
	if raw.IsNull() {
		return nil, false
	}
	p, err := newDevice(d.ctx, raw)
	if err != nil {
		// Unreachable: raw is non-null by the check above.
		return nil, false
	}
	return p, true
}

// String returns a short human-readable description of the device.
func (d *Device) String() string {
	info := d.Info()
	if info.Action != "" {
		return fmt.Sprintf("%s %s %s", info.Action, info.Subsystem, info.Syspath)
	}
	return fmt.Sprintf("%s %s", info.Subsystem, info.Syspath)
}
