package sysfs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/muurk/devtree/internal/subsys"
)

// record is the in-memory device snapshot backing one device handle.
type record struct {
	syspath   string
	subsystem string
	sysname   string
	devtype   string
	devnode   string
	props     map[string]string
	action    string
}

// readDevice builds a record from a device directory. The directory
// must contain a uevent file; anything else under the tree is not a
// device.
func readDevice(root, syspath string) (*record, error) {
	ueventPath := filepath.Join(syspath, "uevent")
	f, err := os.Open(ueventPath)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", syspath, subsys.ErrNotFound)
	}
	defer f.Close()

	rec := &record{
		syspath: syspath,
		sysname: filepath.Base(syspath),
		props:   make(map[string]string),
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '='); i > 0 {
			rec.props[line[:i]] = line[i+1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", ueventPath, err)
	}

	// The subsystem link points into <root>/class or <root>/bus.
	if target, err := os.Readlink(filepath.Join(syspath, "subsystem")); err == nil {
		rec.subsystem = filepath.Base(target)
	}
	rec.devtype = rec.props["DEVTYPE"]
	if name := rec.props["DEVNAME"]; name != "" {
		rec.devnode = "/dev/" + name
	}
	return rec, nil
}

func (rec *record) info() subsys.DeviceInfo {
	return subsys.DeviceInfo{
		Syspath:   rec.syspath,
		Subsystem: rec.subsystem,
		Sysname:   rec.sysname,
		Devtype:   rec.devtype,
		Devnode:   rec.devnode,
		Action:    rec.action,
	}
}

// DeviceFromSyspath implements subsys.Subsystem.
func (s *Subsystem) DeviceFromSyspath(session subsys.Raw, syspath string) (subsys.Raw, error) {
	s.mu.Lock()
	s.get(session, kindSession)
	s.mu.Unlock()

	rec, err := readDevice(s.root, filepath.Clean(syspath))
	if err != nil {
		return subsys.Null, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alloc(&object{kind: kindDevice, rec: rec}), nil
}

// DeviceInfo implements subsys.Subsystem.
func (s *Subsystem) DeviceInfo(dev subsys.Raw) subsys.DeviceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(dev, kindDevice).rec.info()
}

// DeviceProperty implements subsys.Subsystem.
func (s *Subsystem) DeviceProperty(dev subsys.Raw, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.get(dev, kindDevice).rec.props[key]
	return v, ok
}

// DeviceProperties implements subsys.Subsystem.
func (s *Subsystem) DeviceProperties(dev subsys.Raw) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.get(dev, kindDevice).rec
	props := make(map[string]string, len(rec.props))
	for k, v := range rec.props {
		props[k] = v
	}
	return props
}

// DeviceSysattr implements subsys.Subsystem. Attributes are files in
// the device directory; values are returned with trailing whitespace
// trimmed, the way the kernel formats single-value attributes.
func (s *Subsystem) DeviceSysattr(dev subsys.Raw, name string) (string, error) {
	s.mu.Lock()
	rec := s.get(dev, kindDevice).rec
	s.mu.Unlock()

	p := filepath.Join(rec.syspath, filepath.Clean("/"+name))
	fi, err := os.Lstat(p)
	if err != nil {
		return "", fmt.Errorf("sysattr %q: %w", name, subsys.ErrNotFound)
	}
	if !fi.Mode().IsRegular() {
		return "", fmt.Errorf("sysattr %q: not a readable attribute", name)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("sysattr %q: %w", name, err)
	}
	return strings.TrimRight(string(data), "\x00 \n\t"), nil
}

// DeviceParent implements subsys.Subsystem. The parent is the nearest
// ancestor directory that is itself a device.
func (s *Subsystem) DeviceParent(dev subsys.Raw) subsys.Raw {
	s.mu.Lock()
	rec := s.get(dev, kindDevice).rec
	s.mu.Unlock()

	dir := filepath.Dir(rec.syspath)
	stop := filepath.Clean(s.root)
	for len(dir) > len(stop) && dir != "/" {
		if parent, err := readDevice(s.root, dir); err == nil {
			s.mu.Lock()
			defer s.mu.Unlock()
			return s.alloc(&object{kind: kindDevice, rec: parent})
		}
		dir = filepath.Dir(dir)
	}
	return subsys.Null
}
