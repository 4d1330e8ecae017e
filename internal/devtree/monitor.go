package devtree

import (
	"context"
	"fmt"

	"github.com/muurk/devtree/internal/handle"
	"github.com/muurk/devtree/internal/subsys"
)

// Monitor delivers hotplug events as Devices carrying an Action.
type Monitor struct {
	obj *handle.Object
	ctx *Context
}

// NewMonitor creates a monitor bound to ctx's session. Filters may be
// added before Start; Receive delivers events after it.
func NewMonitor(ctx *Context) (*Monitor, error) {
	obj, err := handle.Adopt(ctx.sys, ctx.sys.NewMonitor(ctx.obj.Raw()), ctx.obj.Guard())
	if err != nil {
		return nil, fmt.Errorf("new monitor: %w", err)
	}
	return &Monitor{obj: obj, ctx: ctx.Clone()}, nil
}

// Clone returns a second owner of the same monitor.
func (m *Monitor) Clone() *Monitor {
	return &Monitor{obj: m.obj.Clone(), ctx: m.ctx.Clone()}
}

// Close releases this owner's reference on the monitor and on the
// session clone it holds.
func (m *Monitor) Close() error {
	if err := m.obj.Close(); err != nil {
		return err
	}
	return m.ctx.Close()
}

// RawHandle returns the raw monitor handle.
func (m *Monitor) RawHandle() subsys.Raw {
	return m.obj.Raw()
}

// FilterSubsystem restricts delivery to one subsystem, optionally
// narrowed by devtype. Multiple filters are ORed; a monitor without
// filters delivers everything. Filters added after Start are ignored.
func (m *Monitor) FilterSubsystem(subsystem, devtype string) {
	m.ctx.sys.MonitorFilter(m.obj.Raw(), subsystem, devtype)
}

// Start begins event delivery.
func (m *Monitor) Start() error {
	if err := m.ctx.sys.MonitorStart(m.obj.Raw()); err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}
	return nil
}

// Receive blocks until the next matching event arrives or stdctx is
// cancelled. The returned Device carries the hotplug Action and is
// owned by the caller.
//
// Receive must be called from the owning goroutine like every other
// operation; use Context.Transfer to move the graph into a dedicated
// pump goroutine first.
func (m *Monitor) Receive(stdctx context.Context) (*Device, error) {
	raw, err := m.ctx.sys.MonitorReceive(stdctx, m.obj.Raw())
	if err != nil {
		return nil, fmt.Errorf("receive: %w", err)
	}
	dev, err := newDevice(m.ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("receive: %w", err)
	}
	return dev, nil
}
