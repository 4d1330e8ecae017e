//go:build !linux

package uevent

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by Dial on platforms without
// kobject-uevent netlink sockets.
var ErrUnsupported = errors.New("uevent: netlink uevent sockets require linux")

// Conn is a placeholder on non-Linux platforms; Dial always fails, so
// no Conn value is ever constructed.
type Conn struct{}

// Dial fails on non-Linux platforms. The rest of the toolkit still
// builds; monitors report the error at start time.
func Dial(group uint32) (*Conn, error) {
	return nil, ErrUnsupported
}

// Receive implements the Conn surface; unreachable off Linux.
func (c *Conn) Receive(ctx context.Context) (*Message, error) {
	return nil, ErrUnsupported
}

// Close implements the Conn surface; unreachable off Linux.
func (c *Conn) Close() error {
	return nil
}
