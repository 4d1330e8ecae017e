package devtree

import (
	"fmt"

	"github.com/muurk/devtree/internal/handle"
	"github.com/muurk/devtree/internal/subsys"
)

// Enumerator builds filtered listings of the device tree. Matches are
// ANDed; an enumerator with no matches lists every device.
type Enumerator struct {
	obj *handle.Object
	ctx *Context
}

// NewEnumerator creates an enumerator bound to ctx's session.
func NewEnumerator(ctx *Context) (*Enumerator, error) {
	obj, err := handle.Adopt(ctx.sys, ctx.sys.NewEnumerator(ctx.obj.Raw()), ctx.obj.Guard())
	if err != nil {
		return nil, fmt.Errorf("new enumerator: %w", err)
	}
	return &Enumerator{obj: obj, ctx: ctx.Clone()}, nil
}

// Clone returns a second owner of the same enumerator.
func (e *Enumerator) Clone() *Enumerator {
	return &Enumerator{obj: e.obj.Clone(), ctx: e.ctx.Clone()}
}

// Close releases this owner's reference on the enumerator and on the
// session clone it holds.
func (e *Enumerator) Close() error {
	if err := e.obj.Close(); err != nil {
		return err
	}
	return e.ctx.Close()
}

// RawHandle returns the raw enumerator handle.
func (e *Enumerator) RawHandle() subsys.Raw {
	return e.obj.Raw()
}

// MatchSubsystem restricts the scan to devices of the named subsystem.
func (e *Enumerator) MatchSubsystem(name string) {
	e.ctx.sys.EnumeratorAddMatch(e.obj.Raw(), subsys.Match{Subsystem: name})
}

// MatchSysname restricts the scan to devices whose sysname matches the
// glob pattern.
func (e *Enumerator) MatchSysname(glob string) {
	e.ctx.sys.EnumeratorAddMatch(e.obj.Raw(), subsys.Match{Sysname: glob})
}

// MatchProperty restricts the scan to devices carrying the property
// with exactly the given value.
func (e *Enumerator) MatchProperty(key, value string) {
	e.ctx.sys.EnumeratorAddMatch(e.obj.Raw(), subsys.Match{Property: key, Value: value})
}

// Scan walks the device tree and returns the sorted syspaths of all
// matching devices.
func (e *Enumerator) Scan() ([]string, error) {
	paths, err := e.ctx.sys.EnumeratorScan(e.obj.Raw())
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return paths, nil
}

// Devices scans and resolves every matching syspath to a Device. The
// caller owns the returned devices and must close each one. Devices
// that disappear between the scan and the lookup are skipped.
func (e *Enumerator) Devices() ([]*Device, error) {
	paths, err := e.Scan()
	if err != nil {
		return nil, err
	}
	devices := make([]*Device, 0, len(paths))
	for _, sp := range paths {
		dev, err := DeviceFromSyspath(e.ctx, sp)
		if err != nil {
			continue
		}
		devices = append(devices, dev)
	}
	return devices, nil
}
