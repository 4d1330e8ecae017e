//go:build linux

package uevent

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const (
	// pollInterval bounds how long Receive sleeps in the kernel before
	// re-checking context cancellation.
	pollInterval = 250 // milliseconds

	// recvBuffer is sized for the largest uevent the kernel emits.
	recvBuffer = 16 * 1024
)

// Conn is an open kobject-uevent netlink socket.
type Conn struct {
	fd     int
	closed bool
}

// Dial opens the uevent socket and subscribes to the given multicast
// group, normally KernelGroup. Requires a Linux kernel; binding the
// kernel group needs no privileges beyond network namespace membership.
func Dial(group uint32) (*Conn, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, fmt.Errorf("uevent socket: %w", err)
	}
	sa := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: group}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("uevent bind: %w", err)
	}
	return &Conn{fd: fd}, nil
}

// Receive blocks until the next kernel uevent arrives or ctx is
// cancelled. Daemon-originated and malformed datagrams are skipped.
func (c *Conn) Receive(ctx context.Context) (*Message, error) {
	if c.closed {
		return nil, os.ErrClosed
	}
	buf := make([]byte, recvBuffer)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fds := []unix.PollFd{{Fd: int32(c.fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, pollInterval)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return nil, fmt.Errorf("uevent poll: %w", err)
		}
		if n == 0 {
			continue
		}

		nr, _, err := unix.Recvfrom(c.fd, buf, 0)
		if err != nil {
			if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
				continue
			}
			return nil, fmt.Errorf("uevent recv: %w", err)
		}

		msg, err := Parse(buf[:nr])
		if err != nil {
			continue
		}
		return msg, nil
	}
}

// Close releases the socket. Safe to call more than once.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := unix.Close(c.fd); err != nil {
		return fmt.Errorf("uevent close: %w", err)
	}
	return nil
}
