package sysfs

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/muurk/devtree/internal/logging"
	"github.com/muurk/devtree/internal/subsys"
	"github.com/muurk/devtree/internal/uevent"
)

// NewMonitor implements subsys.Subsystem. The netlink socket is opened
// lazily by MonitorStart so that filter setup cannot leak a socket.
func (s *Subsystem) NewMonitor(session subsys.Raw) subsys.Raw {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(session, kindSession)
	return s.alloc(&object{kind: kindMonitor})
}

// MonitorFilter implements subsys.Subsystem.
func (s *Subsystem) MonitorFilter(mon subsys.Raw, subsystem, devtype string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.get(mon, kindMonitor)
	if o.started {
		return
	}
	o.filters = append(o.filters, subsys.Match{Subsystem: subsystem, Value: devtype})
}

// MonitorStart implements subsys.Subsystem.
func (s *Subsystem) MonitorStart(mon subsys.Raw) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.get(mon, kindMonitor)
	if o.started {
		return nil
	}
	conn, err := uevent.Dial(s.group)
	if err != nil {
		return fmt.Errorf("monitor start: %w", err)
	}
	o.conn = conn
	o.started = true
	return nil
}

// MonitorReceive implements subsys.Subsystem. It blocks on the netlink
// socket without holding the handle table lock.
func (s *Subsystem) MonitorReceive(ctx context.Context, mon subsys.Raw) (subsys.Raw, error) {
	s.mu.Lock()
	o := s.get(mon, kindMonitor)
	if !o.started || o.conn == nil {
		s.mu.Unlock()
		return subsys.Null, fmt.Errorf("monitor receive: monitor not started")
	}
	conn := o.conn
	filters := append([]subsys.Match(nil), o.filters...)
	s.mu.Unlock()

	for {
		msg, err := conn.Receive(ctx)
		if err != nil {
			return subsys.Null, err
		}
		if !monitorPasses(filters, msg) {
			continue
		}
		logging.LogUevent(msg.Action, msg.Devpath, msg.Subsystem())

		rec := s.eventRecord(msg)
		s.mu.Lock()
		raw := s.alloc(&object{kind: kindDevice, rec: rec})
		s.mu.Unlock()
		return raw, nil
	}
}

// monitorPasses ORs the monitor's filters against one event.
func monitorPasses(filters []subsys.Match, msg *uevent.Message) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if f.Subsystem == msg.Subsystem() && (f.Value == "" || f.Value == msg.Devtype()) {
			return true
		}
	}
	return false
}

// eventRecord builds a device record for one hotplug event. For
// removals the device directory is already gone, so the record comes
// from the event environment alone.
func (s *Subsystem) eventRecord(msg *uevent.Message) *record {
	syspath := filepath.Join(s.root, msg.Devpath)
	if rec, err := readDevice(s.root, syspath); err == nil {
		rec.action = msg.Action
		// The event environment supersedes the tree snapshot.
		for k, v := range msg.Env {
			rec.props[k] = v
		}
		return rec
	}

	rec := &record{
		syspath:   syspath,
		subsystem: msg.Subsystem(),
		sysname:   filepath.Base(syspath),
		devtype:   msg.Devtype(),
		props:     make(map[string]string, len(msg.Env)),
		action:    msg.Action,
	}
	for k, v := range msg.Env {
		rec.props[k] = v
	}
	if name := msg.Env["DEVNAME"]; name != "" {
		rec.devnode = "/dev/" + name
	}
	return rec
}
