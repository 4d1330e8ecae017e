package uevent

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// Multicast groups of the kobject-uevent netlink family.
const (
	// KernelGroup carries raw uevents straight from the kernel.
	KernelGroup = 0x1

	// UdevGroup carries events re-broadcast by the udev daemon after
	// rule processing. Messages there use udev's own framing, not the
	// kernel's, and are rejected by Parse.
	UdevGroup = 0x2
)

// ErrDaemonMessage marks a datagram produced by the udev daemon's
// multicast protocol rather than the kernel.
var ErrDaemonMessage = errors.New("udev daemon message, not a kernel uevent")

// daemonMagic opens every udev daemon datagram.
var daemonMagic = []byte("libudev\x00")

// Message is one parsed kernel uevent.
type Message struct {
	// Action is the hotplug action: add, remove, change, move, online,
	// offline, bind, or unbind.
	Action string

	// Devpath is the device path relative to the sysfs mount point
	// (e.g. "/devices/pci0000:00/.../block/sda").
	Devpath string

	// Env holds the KEY=VALUE pairs following the header, including
	// ACTION, DEVPATH, SUBSYSTEM, and SEQNUM.
	Env map[string]string
}

// Subsystem returns the SUBSYSTEM environment value.
func (m *Message) Subsystem() string { return m.Env["SUBSYSTEM"] }

// Devtype returns the DEVTYPE environment value, if any.
func (m *Message) Devtype() string { return m.Env["DEVTYPE"] }

// Parse decodes one datagram from the kernel group.
func Parse(data []byte) (*Message, error) {
	if bytes.HasPrefix(data, daemonMagic) {
		return nil, ErrDaemonMessage
	}

	fields := bytes.Split(data, []byte{0})
	header := string(fields[0])
	at := strings.IndexByte(header, '@')
	if at < 1 || at == len(header)-1 {
		return nil, fmt.Errorf("malformed uevent header %q", header)
	}

	msg := &Message{
		Action:  header[:at],
		Devpath: header[at+1:],
		Env:     make(map[string]string),
	}
	for _, f := range fields[1:] {
		if len(f) == 0 {
			continue
		}
		kv := string(f)
		if i := strings.IndexByte(kv, '='); i > 0 {
			msg.Env[kv[:i]] = kv[i+1:]
		}
	}
	return msg, nil
}
