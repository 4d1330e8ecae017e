package sysfs

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/muurk/devtree/internal/subsys"
)

// makeTree builds a small synthetic device tree:
//
//	devices/pci0000:00/0000:00:10.0/host0/target0:0:0/0:0:0:0   (scsi)
//	devices/pci0000:00/0000:00:10.0/host0/target0:0:0/0:0:0:0/block/vda
//	devices/virtual/net/lo
//
// reachable through class/block, class/net, and bus/scsi/devices.
func makeTree(t *testing.T) (root, vdaPath, scsiPath, loPath string) {
	t.Helper()
	// Resolve the temp dir so EvalSymlinks'd scan results compare equal
	// on systems where the temp root is itself a symlink.
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolve temp dir: %v", err)
	}

	scsiPath = filepath.Join(root, "devices/pci0000:00/0000:00:10.0/host0/target0:0:0/0:0:0:0")
	vdaPath = filepath.Join(scsiPath, "block/vda")
	loPath = filepath.Join(root, "devices/virtual/net/lo")

	writeFile(t, filepath.Join(scsiPath, "uevent"), "DEVTYPE=scsi_device\n")
	writeFile(t, filepath.Join(scsiPath, "vendor"), "QEMU    \n")

	writeFile(t, filepath.Join(vdaPath, "uevent"),
		"MAJOR=253\nMINOR=0\nDEVNAME=vda\nDEVTYPE=disk\n")
	writeFile(t, filepath.Join(vdaPath, "size"), "83886080\n")
	writeFile(t, filepath.Join(vdaPath, "removable"), "0\n")

	writeFile(t, filepath.Join(loPath, "uevent"), "INTERFACE=lo\nIFINDEX=1\n")

	symlink(t, filepath.Join(root, "class/block"), filepath.Join(vdaPath, "subsystem"))
	symlink(t, filepath.Join(root, "class/net"), filepath.Join(loPath, "subsystem"))
	symlink(t, filepath.Join(root, "bus/scsi"), filepath.Join(scsiPath, "subsystem"))

	symlink(t, vdaPath, filepath.Join(root, "class/block/vda"))
	symlink(t, loPath, filepath.Join(root, "class/net/lo"))
	symlink(t, scsiPath, filepath.Join(root, "bus/scsi/devices/0:0:0:0"))

	return root, vdaPath, scsiPath, loPath
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func symlink(t *testing.T, target, link string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(link), err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Fatalf("symlink %s -> %s: %v", link, target, err)
	}
}

func openSession(t *testing.T, s *Subsystem) subsys.Raw {
	t.Helper()
	session := s.OpenSession()
	if session.IsNull() {
		t.Fatal("OpenSession() returned null for an existing tree")
	}
	t.Cleanup(func() { s.Unref(session) })
	return session
}

func TestOpenSessionMissingRoot(t *testing.T) {
	s := New(WithRoot(filepath.Join(t.TempDir(), "nope")))
	if raw := s.OpenSession(); !raw.IsNull() {
		t.Fatalf("OpenSession() = %v for a missing root, want null", raw)
	}
}

func TestDeviceFromSyspath(t *testing.T) {
	root, vdaPath, _, _ := makeTree(t)
	s := New(WithRoot(root))
	session := openSession(t, s)

	dev, err := s.DeviceFromSyspath(session, vdaPath)
	if err != nil {
		t.Fatalf("DeviceFromSyspath() error = %v", err)
	}
	defer s.Unref(dev)

	info := s.DeviceInfo(dev)
	if info.Sysname != "vda" {
		t.Errorf("Sysname = %q, want %q", info.Sysname, "vda")
	}
	if info.Subsystem != "block" {
		t.Errorf("Subsystem = %q, want %q", info.Subsystem, "block")
	}
	if info.Devtype != "disk" {
		t.Errorf("Devtype = %q, want %q", info.Devtype, "disk")
	}
	if info.Devnode != "/dev/vda" {
		t.Errorf("Devnode = %q, want %q", info.Devnode, "/dev/vda")
	}
	if info.Action != "" {
		t.Errorf("Action = %q for a lookup, want empty", info.Action)
	}

	if v, ok := s.DeviceProperty(dev, "MAJOR"); !ok || v != "253" {
		t.Errorf("DeviceProperty(MAJOR) = %q, %v", v, ok)
	}
	if _, ok := s.DeviceProperty(dev, "MISSING"); ok {
		t.Error("DeviceProperty(MISSING) reported present")
	}
}

func TestDeviceFromSyspathNotFound(t *testing.T) {
	root, _, _, _ := makeTree(t)
	s := New(WithRoot(root))
	session := openSession(t, s)

	if _, err := s.DeviceFromSyspath(session, filepath.Join(root, "devices/ghost")); !errors.Is(err, subsys.ErrNotFound) {
		t.Fatalf("DeviceFromSyspath() error = %v, want ErrNotFound", err)
	}
}

func TestDeviceSysattr(t *testing.T) {
	root, vdaPath, _, _ := makeTree(t)
	s := New(WithRoot(root))
	session := openSession(t, s)

	dev, err := s.DeviceFromSyspath(session, vdaPath)
	if err != nil {
		t.Fatalf("DeviceFromSyspath() error = %v", err)
	}
	defer s.Unref(dev)

	tests := []struct {
		name    string
		attr    string
		want    string
		wantErr bool
	}{
		{name: "size trimmed", attr: "size", want: "83886080"},
		{name: "removable", attr: "removable", want: "0"},
		{name: "missing", attr: "serial", wantErr: true},
		{name: "symlink rejected", attr: "subsystem", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.DeviceSysattr(dev, tt.attr)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("DeviceSysattr(%q) = %q, want error", tt.attr, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("DeviceSysattr(%q) error = %v", tt.attr, err)
			}
			if got != tt.want {
				t.Errorf("DeviceSysattr(%q) = %q, want %q", tt.attr, got, tt.want)
			}
		})
	}
}

func TestDeviceParent(t *testing.T) {
	root, vdaPath, scsiPath, loPath := makeTree(t)
	s := New(WithRoot(root))
	session := openSession(t, s)

	dev, err := s.DeviceFromSyspath(session, vdaPath)
	if err != nil {
		t.Fatalf("DeviceFromSyspath() error = %v", err)
	}
	defer s.Unref(dev)

	// The intermediate block/ directory has no uevent file and must be
	// skipped on the way up.
	parent := s.DeviceParent(dev)
	if parent.IsNull() {
		t.Fatal("DeviceParent() = null, want the scsi ancestor")
	}
	defer s.Unref(parent)
	if got := s.DeviceInfo(parent).Syspath; got != scsiPath {
		t.Fatalf("parent Syspath = %q, want %q", got, scsiPath)
	}

	lo, err := s.DeviceFromSyspath(session, loPath)
	if err != nil {
		t.Fatalf("DeviceFromSyspath() error = %v", err)
	}
	defer s.Unref(lo)
	if p := s.DeviceParent(lo); !p.IsNull() {
		s.Unref(p)
		t.Fatal("virtual device reported a parent")
	}
}

func TestEnumeratorScan(t *testing.T) {
	root, vdaPath, scsiPath, loPath := makeTree(t)

	tests := []struct {
		name    string
		matches []subsys.Match
		want    []string
	}{
		{
			name: "everything",
			want: []string{scsiPath, vdaPath, loPath},
		},
		{
			name:    "block only",
			matches: []subsys.Match{{Subsystem: "block"}},
			want:    []string{vdaPath},
		},
		{
			name:    "sysname glob",
			matches: []subsys.Match{{Sysname: "vd?"}},
			want:    []string{vdaPath},
		},
		{
			name:    "property",
			matches: []subsys.Match{{Property: "IFINDEX", Value: "1"}},
			want:    []string{loPath},
		},
		{
			name:    "conjunction misses",
			matches: []subsys.Match{{Subsystem: "block"}, {Property: "IFINDEX", Value: "1"}},
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(WithRoot(root))
			session := openSession(t, s)

			enum := s.NewEnumerator(session)
			defer s.Unref(enum)
			for _, m := range tt.matches {
				s.EnumeratorAddMatch(enum, m)
			}

			got, err := s.EnumeratorScan(enum)
			if err != nil {
				t.Fatalf("EnumeratorScan() error = %v", err)
			}

			want := append([]string(nil), tt.want...)
			sort.Strings(want)
			if len(got) != len(want) {
				t.Fatalf("EnumeratorScan() = %v, want %v", got, want)
			}
			for i := range got {
				if got[i] != want[i] {
					t.Fatalf("EnumeratorScan()[%d] = %q, want %q", i, got[i], want[i])
				}
			}
		})
	}
}

func TestRefcountReleasesObjects(t *testing.T) {
	root, vdaPath, _, _ := makeTree(t)
	s := New(WithRoot(root))

	session := s.OpenSession()
	if session.IsNull() {
		t.Fatal("OpenSession() returned null")
	}
	dev, err := s.DeviceFromSyspath(session, vdaPath)
	if err != nil {
		t.Fatalf("DeviceFromSyspath() error = %v", err)
	}

	s.Ref(dev)
	s.Unref(dev)
	// Still one reference; the handle must stay usable.
	if got := s.DeviceInfo(dev).Sysname; got != "vda" {
		t.Fatalf("Sysname = %q after ref/unref, want %q", got, "vda")
	}
	s.Unref(dev)
	s.Unref(session)

	if len(s.objects) != 0 {
		t.Fatalf("%d objects still live after full release", len(s.objects))
	}
}
