// Package uevent receives kernel hotplug notifications from the
// netlink kobject-uevent socket.
//
// Each notification is a NUL-separated datagram: a header of the form
// "action@devpath" followed by KEY=VALUE environment pairs. The
// package exposes just enough of the wire format for the production
// device subsystem: opening the socket on a multicast group, a
// cancellable receive loop, and message parsing. Datagrams originating
// from the udev daemon's own multicast protocol are recognized and
// skipped; consumers of this package always see raw kernel messages.
package uevent
